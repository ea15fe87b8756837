package searchindex

import (
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/require"

	"github.com/oriath-net/bundlecat/pkg/catalog"
)

func newMemIndex(t *testing.T) bleve.Index {
	t.Helper()
	idx, err := bleve.NewMemOnly(BuildMapping())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBatchSinkAddsAndCommits(t *testing.T) {
	idx := newMemIndex(t)
	sink := NewBatchSink(idx)

	require.NoError(t, sink.Add(catalog.Document{Version: "v1", Path: "a/b.txt", Name: "b.txt", Parent: "a", Type: catalog.TypeFile}))
	require.NoError(t, sink.Add(catalog.Document{Version: "v1", Path: "a", Name: "a", Parent: "", Type: catalog.TypeDir}))
	require.Equal(t, 2, sink.Count())

	require.NoError(t, Commit(idx, sink.Batch()))

	count, err := idx.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestDeleteVersionRemovesOnlyMatchingDocs(t *testing.T) {
	idx := newMemIndex(t)

	seed := idx.NewBatch()
	sinkV1 := NewBatchSink(idx)
	require.NoError(t, sinkV1.Add(catalog.Document{Version: "v1", Path: "a.txt", Name: "a.txt", Type: catalog.TypeFile}))
	sinkV2 := NewBatchSink(idx)
	require.NoError(t, sinkV2.Add(catalog.Document{Version: "v2", Path: "b.txt", Name: "b.txt", Type: catalog.TypeFile}))
	seed.Merge(sinkV1.Batch())
	seed.Merge(sinkV2.Batch())
	require.NoError(t, Commit(idx, seed))

	count, err := idx.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	batch := idx.NewBatch()
	deleted, err := DeleteVersion(idx, batch, "v1")
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.NoError(t, Commit(idx, batch))

	count, err = idx.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}
