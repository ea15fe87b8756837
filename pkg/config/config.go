// Package config binds the service's environment variables and operational
// knobs through viper, the way the rest of the retrieval pack's
// command-line tools layer flags and env vars.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved set of operational knobs: the HTTP listen
// port, the sibling frontend used for sprite fetches, the watcher's poll
// cadence and announcement dial timeout, the writer's heap budget, and the
// default search result limit.
type Config struct {
	Port             int
	FrontendURL      string
	PollInterval     time.Duration
	AnnounceTimeout  time.Duration
	WriterHeapBytes  int
	DefaultSearchCap int
	IndexScratchDir  string
}

// Load reads configuration from the environment, applying defaults that
// match a small single-process deployment.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("PORT", 3000)
	v.SetDefault("FRONTEND_URL", "")
	v.SetDefault("POLL_INTERVAL_SECONDS", 600)
	v.SetDefault("ANNOUNCE_TIMEOUT_SECONDS", 10)
	v.SetDefault("WRITER_HEAP_BYTES", 50<<20)
	v.SetDefault("DEFAULT_SEARCH_LIMIT", 50)
	v.SetDefault("INDEX_SCRATCH_DIR", "")

	cfg := Config{
		Port:             v.GetInt("PORT"),
		FrontendURL:      v.GetString("FRONTEND_URL"),
		PollInterval:     time.Duration(v.GetInt("POLL_INTERVAL_SECONDS")) * time.Second,
		AnnounceTimeout:  time.Duration(v.GetInt("ANNOUNCE_TIMEOUT_SECONDS")) * time.Second,
		WriterHeapBytes:  v.GetInt("WRITER_HEAP_BYTES"),
		DefaultSearchCap: v.GetInt("DEFAULT_SEARCH_LIMIT"),
		IndexScratchDir:  v.GetString("INDEX_SCRATCH_DIR"),
	}
	if cfg.IndexScratchDir == "" {
		cfg.IndexScratchDir = "."
	}
	return cfg, nil
}
