package catalog

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oriath-net/bundlecat/pkg/bundle"
	"github.com/oriath-net/bundlecat/pkg/hash"
)

// identityExtractor treats "compressed" bytes as already decompressed,
// letting tests build bundle framing without a real Oodle payload.
func identityExtractor(r io.Reader, compressedSize int64, out []byte) error {
	buf := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	copy(out, buf)
	return nil
}

func wrapBundle(payload []byte) []byte {
	var buf bytes.Buffer
	fixed := make([]byte, bundle.HeaderSize)
	binary.LittleEndian.PutUint64(fixed[20:28], uint64(len(payload)))
	binary.LittleEndian.PutUint32(fixed[36:40], 1)
	binary.LittleEndian.PutUint32(fixed[40:44], uint32(len(payload)))
	buf.Write(fixed)
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(payload)))
	buf.Write(sz[:])
	buf.Write(payload)
	return buf.Bytes()
}

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func u64le(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func pathRecord(path string) []byte {
	var buf bytes.Buffer
	buf.Write(u32le(1))
	buf.WriteString(path)
	buf.WriteByte(0)
	return buf.Bytes()
}

// buildIndexBundle assembles a full, wrapped index bundle containing the
// given files (path -> locator/bundle info) and a nested path bundle
// emitting exactly those paths.
func buildIndexBundle(t *testing.T, bundleName string, bundleSize uint32, files map[string]locator) []byte {
	t.Helper()

	var pathBuf bytes.Buffer
	for p := range files {
		pathBuf.Write(pathRecord(p))
	}
	nestedPathBundle := wrapBundle(pathBuf.Bytes())

	var inner bytes.Buffer
	inner.Write(u32le(1)) // bundle count
	inner.Write(u32le(uint32(len(bundleName))))
	inner.WriteString(bundleName)
	inner.Write(u32le(bundleSize))

	inner.Write(u32le(uint32(len(files)))) // file count
	for p, loc := range files {
		inner.Write(u64le(hash.PathHash(p)))
		inner.Write(u32le(loc.bundleIndex))
		inner.Write(u32le(loc.offset))
		inner.Write(u32le(loc.size))
	}

	inner.Write(u32le(0)) // path_rep_count
	inner.Write(nestedPathBundle)

	return wrapBundle(inner.Bytes())
}

type fakeFetcher func(ctx context.Context, url string) ([]byte, error)

func (f fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

type fakeSink struct {
	docs []Document
}

func (s *fakeSink) Add(d Document) error {
	s.docs = append(s.docs, d)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngestProducesFilesAndDirectories(t *testing.T) {
	files := map[string]locator{
		"art/icons/a.png": {bundleIndex: 0, offset: 10, size: 20},
		"data/t.txt":      {bundleIndex: 0, offset: 50, size: 5},
	}
	indexBody := buildIndexBundle(t, "bundle0.bin", 1000, files)

	fetcher := fakeFetcher(func(_ context.Context, url string) ([]byte, error) {
		require.Equal(t, "https://example/v1/Bundles2/_.index.bin", url)
		return indexBody, nil
	})

	sink := &fakeSink{}
	err := Ingest(context.Background(), "https://example/v1/", "https://frontend", fetcher, identityExtractor, sink, discardLogger())
	require.NoError(t, err)

	var fileDocs, dirDocs []Document
	for _, d := range sink.docs {
		switch d.Type {
		case TypeFile:
			fileDocs = append(fileDocs, d)
		case TypeDir:
			dirDocs = append(dirDocs, d)
		}
	}
	require.Len(t, fileDocs, 2)
	require.Len(t, dirDocs, 3) // art, art/icons, data

	var png Document
	for _, d := range fileDocs {
		if d.Path == "art/icons/a.png" {
			png = d
		}
	}
	require.Equal(t, "a.png", png.Name)
	require.Equal(t, "art/icons", png.Parent)
	require.Equal(t, "png", png.Extension)
	require.Equal(t, "bundle0.bin", png.Bundle)
	require.Equal(t, uint64(10), png.Offset)
	require.Equal(t, uint64(20), png.Size)

	var sawArt, sawArtIcons bool
	for _, d := range dirDocs {
		if d.Path == "art" {
			sawArt = true
		}
		if d.Path == "art/icons" {
			sawArtIcons = true
			require.Equal(t, "art", d.Parent)
			require.Equal(t, "icons", d.Name)
		}
	}
	require.True(t, sawArt)
	require.True(t, sawArtIcons)
}

func TestIngestOrphanPathStillProducesFileAndDirs(t *testing.T) {
	var pathBuf bytes.Buffer
	pathBuf.Write(pathRecord("no/such/locator.dat"))
	nestedPathBundle := wrapBundle(pathBuf.Bytes())

	var inner bytes.Buffer
	inner.Write(u32le(0)) // no bundles
	inner.Write(u32le(0)) // no files
	inner.Write(u32le(0)) // no path reps
	inner.Write(nestedPathBundle)
	indexBody := wrapBundle(inner.Bytes())

	fetcher := fakeFetcher(func(context.Context, string) ([]byte, error) { return indexBody, nil })
	sink := &fakeSink{}

	err := Ingest(context.Background(), "https://example/v1/", "https://frontend", fetcher, identityExtractor, sink, discardLogger())
	require.NoError(t, err)

	var fileDocs, dirDocs []Document
	for _, d := range sink.docs {
		switch d.Type {
		case TypeFile:
			fileDocs = append(fileDocs, d)
		case TypeDir:
			dirDocs = append(dirDocs, d)
		}
	}
	require.Len(t, fileDocs, 1)
	require.Equal(t, "no/such/locator.dat", fileDocs[0].Path)
	require.Equal(t, "locator.dat", fileDocs[0].Name)
	require.Equal(t, "dat", fileDocs[0].Extension)
	require.Empty(t, fileDocs[0].Bundle)
	require.Zero(t, fileDocs[0].Size)

	require.Len(t, dirDocs, 2) // no, no/such
	var paths []string
	for _, d := range dirDocs {
		paths = append(paths, d.Path)
	}
	require.ElementsMatch(t, []string{"no", "no/such"}, paths)
}

func TestIngestSpritesFromArtTxt(t *testing.T) {
	files := map[string]locator{
		"art/sheets/icons.txt": {bundleIndex: 0, offset: 100, size: 42},
	}
	indexBody := buildIndexBundle(t, "bundle0.bin", 1000, files)
	spriteBody := []byte("a.png Sheet.png 0 0 9 9\nSub/b.png sheet.png 5 5 5 5\n")

	fetcher := fakeFetcher(func(_ context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "sprite.txt") {
			require.Contains(t, url, "bundle_offset=100")
			return spriteBody, nil
		}
		return indexBody, nil
	})

	sink := &fakeSink{}
	err := Ingest(context.Background(), "https://example/v1/", "https://frontend", fetcher, identityExtractor, sink, discardLogger())
	require.NoError(t, err)

	var sprites []Document
	for _, d := range sink.docs {
		if d.Type == TypeSprite {
			sprites = append(sprites, d)
		}
	}
	require.Len(t, sprites, 2)

	byPath := map[string]Document{}
	for _, s := range sprites {
		byPath[s.Path] = s
	}

	top := byPath["a.png"]
	require.Equal(t, "art/sprites", top.Parent)
	require.Equal(t, "sheet.png", top.SpriteSheet) // lowercased
	require.Equal(t, uint64(0), top.SpriteX)
	require.Equal(t, uint64(0), top.SpriteY)
	require.Equal(t, uint64(10), top.SpriteW)
	require.Equal(t, uint64(10), top.SpriteH)

	nested := byPath["sub/b.png"] // lowercased
	require.Equal(t, "sub", nested.Parent)
	require.Equal(t, "b.png", nested.Name)
	require.Equal(t, uint64(1), nested.SpriteW)
	require.Equal(t, uint64(1), nested.SpriteH)
}

func TestIngestSpriteFailureIsNonFatal(t *testing.T) {
	files := map[string]locator{
		"art/sheets/icons.txt": {bundleIndex: 0, offset: 100, size: 42},
	}
	indexBody := buildIndexBundle(t, "bundle0.bin", 1000, files)

	fetcher := fakeFetcher(func(_ context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "sprite.txt") {
			return nil, errors.New("sprite fetch failed")
		}
		return indexBody, nil
	})

	sink := &fakeSink{}
	err := Ingest(context.Background(), "https://example/v1/", "https://frontend", fetcher, identityExtractor, sink, discardLogger())
	require.NoError(t, err) // sprite fetch failure doesn't fail the whole ingest

	var sawFile bool
	for _, d := range sink.docs {
		if d.Type == TypeFile && d.Path == "art/sheets/icons.txt" {
			sawFile = true
		}
	}
	require.True(t, sawFile)
}

func TestSpriteRectGeometryInvariant(t *testing.T) {
	rx, ry, w, h := spriteRect(10, 20, 5, 25)
	require.Equal(t, uint64(5), rx)
	require.Equal(t, uint64(20), ry)
	require.Equal(t, uint64(6), w)
	require.Equal(t, uint64(6), h)
}
