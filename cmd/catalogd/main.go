// Command catalogd runs the catalog browse and search service: it watches
// the live content-version announcements, keeps a full-text index of every
// live version's files, directories and sprites, and serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/oriath-net/bundlecat/pkg/catalog"
	"github.com/oriath-net/bundlecat/pkg/config"
	"github.com/oriath-net/bundlecat/pkg/httpapi"
	"github.com/oriath-net/bundlecat/pkg/metrics"
	"github.com/oriath-net/bundlecat/pkg/searchindex"
	"github.com/oriath-net/bundlecat/pkg/watcher"
)

func main() {
	root := &cobra.Command{
		Use:   "catalogd",
		Short: "Browse and search service over a live game's asset catalog",
	}
	root.AddCommand(serveCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server, version watcher and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	state, err := searchindex.Open(cfg.IndexScratchDir)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer state.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	live := &watcher.LiveList{}
	fetcher := catalog.NewHTTPFetcher(http.DefaultClient)

	wcfg := watcher.DefaultConfig(cfg.FrontendURL)
	wcfg.PollInterval = cfg.PollInterval
	wcfg.DialTimeout = cfg.AnnounceTimeout
	wcfg.WriterHeapBytes = cfg.WriterHeapBytes

	w := watcher.New(wcfg, state, live, fetcher, m, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("watcher stopped unexpectedly", slog.Any("error", err))
		}
	}()

	server := httpapi.New(state, live, nil, m, reg, cfg.DefaultSearchCap, log)
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("listening", slog.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
