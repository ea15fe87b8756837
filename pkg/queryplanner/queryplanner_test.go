package queryplanner

import (
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oriath-net/bundlecat/pkg/catalog"
	"github.com/oriath-net/bundlecat/pkg/searchindex"
)

func newTestIndex(t *testing.T, docs ...catalog.Document) bleve.Index {
	t.Helper()
	idx, err := bleve.NewMemOnly(searchindex.BuildMapping())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	batch := idx.NewBatch()
	for _, d := range docs {
		require.NoError(t, batch.Index(uuid.NewString(), d))
	}
	require.NoError(t, idx.Batch(batch))
	return idx
}

func fileDoc(version, path, bundleName string, size uint64) catalog.Document {
	parent, name := splitPath(path)
	return catalog.Document{
		Version: version, Path: path, Name: name, Parent: parent,
		Type: catalog.TypeFile, Extension: extensionOf(name),
		Bundle: bundleName, BundleSize: 1000, Offset: 10, Size: size,
	}
}

func dirDoc(version, path string) catalog.Document {
	parent, name := splitPath(path)
	return catalog.Document{Version: version, Path: path, Name: name, Parent: parent, Type: catalog.TypeDir}
}

func TestPlanReady(t *testing.T) {
	idx := newTestIndex(t)
	live := []string{"https://A/", "https://B/"}

	resp, errResp, err := Plan(idx, live, nil, Request{Command: CmdReady})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Equal(t, "https://A/", resp.Adapter)
	require.Equal(t, live, resp.Storages)
	require.Empty(t, resp.Files)
}

func TestPlanNoLiveVersions(t *testing.T) {
	idx := newTestIndex(t)
	_, _, err := Plan(idx, nil, nil, Request{Command: CmdReady})
	require.ErrorIs(t, err, ErrNoLiveVersions)
}

func TestPlanIndexRoot(t *testing.T) {
	idx := newTestIndex(t,
		dirDoc("v1", "art"),
		dirDoc("v1", "data"),
		fileDoc("v1", "art/icons/a.png", "b0", 20),
	)
	resp, errResp, err := Plan(idx, []string{"v1"}, nil, Request{Command: CmdIndex, Adapter: "v1", Path: ""})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Len(t, resp.Files, 2)
	require.Equal(t, "art", resp.Files[0].Basename)
	require.Equal(t, "data", resp.Files[1].Basename)
}

func TestPlanDetails(t *testing.T) {
	idx := newTestIndex(t, fileDoc("v1", "data/t.txt", "b0", 5))
	resp, errResp, err := Plan(idx, []string{"v1"}, nil, Request{Command: CmdDetails, Adapter: "v1", Path: "data/t.txt"})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.Len(t, resp.Files, 1)
	n := resp.Files[0]
	require.Equal(t, "data/t.txt", n.Path)
	require.Equal(t, "t.txt", n.Basename)
	require.Equal(t, "txt", n.Extension)
	require.Equal(t, "text/plain", n.MimeType)
}

func TestPlanSearchFuzzy(t *testing.T) {
	idx := newTestIndex(t,
		fileDoc("v1", "aaa/bbb/ccc.xml", "b0", 1),
		fileDoc("v1", "aaa/bbb/ddd.xml", "b0", 1),
	)
	resp, errResp, err := Plan(idx, []string{"v1"}, nil, Request{Command: CmdSearch, Adapter: "v1", Path: "aaa", Filter: "ccc"})
	require.NoError(t, err)
	require.Nil(t, errResp)
	require.NotEmpty(t, resp.Files)
	require.Equal(t, "ccc.xml", resp.Files[0].Basename)
}

func TestPlanAdapterFallback(t *testing.T) {
	idx := newTestIndex(t)
	resp, _, err := Plan(idx, []string{"https://A/"}, nil, Request{Command: CmdReady, Adapter: "unknown"})
	require.NoError(t, err)
	require.Equal(t, "https://A/", resp.Adapter)
}

func TestSortNodesDirBeforeFile(t *testing.T) {
	nodes := []Node{
		{Type: "file", Path: "b.txt", Basename: "b.txt"},
		{Type: "dir", Path: "a", Basename: "a"},
		{Type: "sprite", Path: "a.png", Basename: "a.png"},
	}
	sortNodesStable(nodes)
	require.Equal(t, "dir", nodes[0].Type)
}
