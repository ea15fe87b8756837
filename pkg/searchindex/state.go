package searchindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
)

// State is the process's single full-text index: one writer (the version
// watcher), many concurrent readers (request handlers), backed by a scratch
// directory removed on Close.
type State struct {
	idx     bleve.Index
	dir     string
	Adapter string // not set or read anywhere in this module; queries take the adapter from the request
}

// Open creates a fresh on-disk index under a unique subdirectory of
// baseDir. The directory is private to this process and is deleted by
// Close; nothing in the index survives a restart, by design.
func Open(baseDir string) (*State, error) {
	dir := filepath.Join(baseDir, "catalog-index-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("searchindex: creating scratch dir: %w", err)
	}

	idx, err := bleve.NewUsing(dir, BuildMapping(), bleve.Config.DefaultIndexType, bleve.Config.DefaultKVStore, nil)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("searchindex: creating index: %w", err)
	}

	return &State{idx: idx, dir: dir}, nil
}

// Close releases the index handle and removes its scratch directory.
func (s *State) Close() error {
	err := s.idx.Close()
	if rmErr := os.RemoveAll(s.dir); err == nil {
		err = rmErr
	}
	return err
}

// Index exposes the underlying bleve handle for search and batch writes.
func (s *State) Index() bleve.Index {
	return s.idx
}
