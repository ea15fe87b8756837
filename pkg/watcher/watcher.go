package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/dustin/go-humanize"
	concurrently "github.com/tejzpr/ordered-concurrently/v3"
	"golang.org/x/sync/errgroup"

	"github.com/oriath-net/bundlecat/pkg/catalog"
	"github.com/oriath-net/bundlecat/pkg/metrics"
	"github.com/oriath-net/bundlecat/pkg/searchindex"
)

// LiveList is the read-mostly shared state request handlers clone from and
// the watcher swaps after a successful commit.
type LiveList struct {
	mu   sync.RWMutex
	urls []string
}

// Snapshot returns a copy of the current live version list.
func (l *LiveList) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.urls))
	copy(out, l.urls)
	return out
}

// Replace atomically swaps the live list. Called by the watcher only after
// a successful reindex commit.
func (l *LiveList) Replace(urls []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = urls
}

// Config bounds the watcher's tick behavior.
type Config struct {
	PollInterval    time.Duration
	DialTimeout     time.Duration
	WriterHeapBytes int
	FrontendURL     string
	Endpoints       []Endpoint
	WorkerPoolSize  int
}

// DefaultConfig is the fixed 10-minute poll cadence and 10-second
// announcement timeout this service runs with in production.
func DefaultConfig(frontendURL string) Config {
	return Config{
		PollInterval:    600 * time.Second,
		DialTimeout:     10 * time.Second,
		WriterHeapBytes: 50 << 20,
		FrontendURL:     frontendURL,
		Endpoints:       DefaultEndpoints,
		WorkerPoolSize:  4,
	}
}

// Watcher runs the periodic probe/diff/reindex loop against a single
// searchindex.State.
type Watcher struct {
	cfg     Config
	state   *searchindex.State
	live    *LiveList
	fetcher catalog.Fetcher
	metrics *metrics.Metrics
	log     *slog.Logger

	// writeMu serializes access to the shared commit batch across the
	// worker pool: bleve's Batch is not safe for concurrent Index/Delete
	// calls, so each job fills its own batch unlocked and takes this lock
	// only to merge it into the shared one.
	writeMu sync.Mutex
}

// New constructs a Watcher. fetcher is used both for the announcement
// probe's onward catalog fetches and the sprite sub-fetches; pass nil to
// use an HTTP-backed default. m may be nil to skip metrics recording.
func New(cfg Config, state *searchindex.State, live *LiveList, fetcher catalog.Fetcher, m *metrics.Metrics, log *slog.Logger) *Watcher {
	if fetcher == nil {
		fetcher = catalog.NewHTTPFetcher(http.DefaultClient)
	}
	return &Watcher{cfg: cfg, state: state, live: live, fetcher: fetcher, metrics: m, log: log}
}

// Run blocks, ticking at cfg.PollInterval until ctx is cancelled. The first
// tick fires immediately rather than waiting a full PollInterval, so the
// catalog is built at startup rather than only after the first cadence
// elapses.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one probe/diff/reindex cycle. Probe or reindex failures are
// logged and leave the live list untouched.
func (w *Watcher) tick(ctx context.Context) {
	updated, err := w.probeAll(ctx)
	if err != nil {
		w.log.Warn("announcement probe failed, skipping tick", slog.Any("error", err))
		return
	}

	prev := w.live.Snapshot()
	removed, added := diff(prev, updated)
	if len(removed) == 0 && len(added) == 0 {
		return
	}

	reindexStart := time.Now()
	err = w.reindex(ctx, removed, added)
	if w.metrics != nil {
		w.metrics.ReindexDuration.Observe(time.Since(reindexStart).Seconds())
	}
	if err != nil {
		w.log.Warn("reindex failed, live list unchanged", slog.Any("error", err))
		if w.metrics != nil {
			w.metrics.ReindexFailures.Inc()
		}
		return
	}

	w.live.Replace(updated)
	if w.metrics != nil {
		w.metrics.LiveVersions.Set(float64(len(updated)))
	}
	w.log.Info("live version list updated",
		slog.Int("removed", len(removed)), slog.Int("added", len(added)), slog.Int("live", len(updated)))
}

// probeAll runs both announcement probes concurrently and concatenates
// their URL lists in endpoint order, deduped, insertion-ordered.
func (w *Watcher) probeAll(ctx context.Context) ([]string, error) {
	results := make([][]string, len(w.cfg.Endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range w.cfg.Endpoints {
		i, ep := i, ep
		g.Go(func() error {
			urls, err := ProbeVersions(gctx, ep.Addr, w.cfg.DialTimeout)
			if err != nil {
				return fmt.Errorf("probe %s (%s): %w", ep.Name, ep.Addr, err)
			}
			results[i] = urls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, urls := range results {
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out, nil
}

// diff computes set difference by exact string: removed = prev\updated,
// added = updated\prev.
func diff(prev, updated []string) (removed, added []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, v := range prev {
		prevSet[v] = true
	}
	updatedSet := make(map[string]bool, len(updated))
	for _, v := range updated {
		updatedSet[v] = true
	}
	for _, v := range prev {
		if !updatedSet[v] {
			removed = append(removed, v)
		}
	}
	for _, v := range updated {
		if !prevSet[v] {
			added = append(added, v)
		}
	}
	return removed, added
}

// reindex deletes every removed version's documents, ingests every added
// version on a bounded worker pool suitable for blocking decompression and
// parsing work, and commits once. Deletes are queued before any add runs,
// so a version removed and re-added within the same tick ends up with only
// the new documents.
func (w *Watcher) reindex(ctx context.Context, removed, added []string) error {
	idx := w.state.Index()
	batch := idx.NewBatch()

	w.writeMu.Lock()
	for _, v := range removed {
		n, err := searchindex.DeleteVersion(idx, batch, v)
		if err != nil {
			w.writeMu.Unlock()
			return fmt.Errorf("deleting version %q: %w", v, err)
		}
		w.log.Info("queued version delete", slog.String("version", v), slog.Int("documents", n))
	}
	w.writeMu.Unlock()

	var addedDocs int
	if len(added) > 0 {
		n, err := w.ingestAdded(ctx, idx, batch, added)
		if err != nil {
			return err
		}
		addedDocs = n
	}

	if err := searchindex.Commit(idx, batch); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ReindexDocs.Add(float64(addedDocs))
	}
	if total, err := idx.DocCount(); err == nil {
		w.log.Info("index commit complete", slog.String("documents", humanize.Comma(int64(total))))
	}
	return nil
}

// ingestAdded dispatches one ingestion job per added version onto a
// worker-pool, each job batching its own documents and merging them into
// the shared batch under writeMu, and returns the total number of documents
// added.
func (w *Watcher) ingestAdded(ctx context.Context, idx bleve.Index, batch *bleve.Batch, added []string) (int, error) {
	inputChan := make(chan concurrently.WorkFunction, len(added))
	outputChan := concurrently.Process(ctx, inputChan, &concurrently.Options{
		PoolSize:         w.cfg.WorkerPoolSize,
		OutChannelBuffer: len(added),
	})

	var wg sync.WaitGroup
	var firstErr error
	var totalDocs int
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range outputChan {
			switch v := result.Value.(type) {
			case error:
				mu.Lock()
				if firstErr == nil {
					firstErr = v
				}
				mu.Unlock()
			case int:
				mu.Lock()
				totalDocs += v
				mu.Unlock()
			}
		}
	}()

	for _, v := range added {
		inputChan <- versionIngestJob{version: v, watcher: w, idx: idx, batch: batch}
	}
	close(inputChan)
	wg.Wait()

	return totalDocs, firstErr
}

// versionIngestJob ingests one version into its own BatchSink and merges
// the resulting batch into the shared commit batch under the watcher's
// write lock, so the worker pool never touches the shared batch
// concurrently.
type versionIngestJob struct {
	version string
	watcher *Watcher
	idx     bleve.Index
	batch   *bleve.Batch
}

func (j versionIngestJob) Run(ctx context.Context) interface{} {
	sink := searchindex.NewBatchSink(j.idx)

	if err := catalog.Ingest(ctx, j.version, j.watcher.cfg.FrontendURL, j.watcher.fetcher, nil, sink, j.watcher.log); err != nil {
		return fmt.Errorf("ingest %s: %w", j.version, err)
	}

	j.watcher.writeMu.Lock()
	defer j.watcher.writeMu.Unlock()
	j.batch.Merge(sink.Batch())
	j.watcher.log.Info("ingested version", slog.String("version", j.version), slog.Int("documents", sink.Count()))
	return sink.Count()
}
