package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/oriath-net/bundlecat/pkg/binreader"
	"github.com/oriath-net/bundlecat/pkg/bundle"
	"github.com/oriath-net/bundlecat/pkg/hash"
	"github.com/oriath-net/bundlecat/pkg/pathtable"
)

// Fetcher retrieves the full body of a URL. Production code backs this with
// an http.Client (see HTTPFetcher); tests substitute an in-memory fake.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Sink receives every Document produced during ingestion, in file-then-
// sprite-then-directory order. pkg/searchindex implements this over a batch
// writer.
type Sink interface {
	Add(Document) error
}

var lowerCaser = cases.Lower(language.Und)

type locator struct {
	bundleIndex uint32
	offset      uint32
	size        uint32
}

// Ingest fetches and decodes version's index bundle and feeds every File,
// Sprite and Directory document it implies to sink. extractor is the block
// decompressor passed through to bundle.Decode; nil selects the real Oodle
// extractor.
func Ingest(ctx context.Context, version, frontendURL string, fetcher Fetcher, extractor bundle.Extractor, sink Sink, log *slog.Logger) error {
	body, err := fetcher.Fetch(ctx, version+"Bundles2/_.index.bin")
	if err != nil {
		return fmt.Errorf("fetch index bundle: %w", err)
	}
	indexBuf, err := bundle.Decode(bytes.NewReader(body), extractor)
	if err != nil {
		return fmt.Errorf("decode index bundle: %w", err)
	}

	bundleNames, bundleSizes, fileMap, pathBuf, err := parseIndex(indexBuf, extractor)
	if err != nil {
		return err
	}

	dirs := make(map[string]struct{})
	var sprites []Document

	err = pathtable.Decode(pathBuf, func(p string) error {
		parent, name := splitPath(p)
		doc := Document{
			Version:   version,
			Path:      p,
			Name:      name,
			Parent:    parent,
			Type:      TypeFile,
			Extension: extensionOf(name),
		}

		// An orphan path (no matching locator) or a locator with a bundle
		// index outside the bundle table still produces a File document and
		// its implied directories, just without locator fields; only the
		// locator join is best-effort, not the path's existence in the
		// catalog.
		h := hash.PathHash(p)
		loc, ok := fileMap[h]
		switch {
		case !ok:
			log.Warn("orphan path has no locator", slog.String("path", p))
		case int(loc.bundleIndex) >= len(bundleNames):
			log.Warn("locator references unknown bundle index",
				slog.String("path", p), slog.Uint64("bundle_index", uint64(loc.bundleIndex)))
		default:
			doc.Bundle = bundleNames[loc.bundleIndex]
			doc.BundleSize = uint64(bundleSizes[loc.bundleIndex])
			doc.Offset = uint64(loc.offset)
			doc.Size = uint64(loc.size)
		}

		for _, pfx := range prefixesOf(p) {
			dirs[pfx] = struct{}{}
		}

		if strings.HasPrefix(p, "art/") && strings.HasSuffix(p, ".txt") {
			sprites = append(sprites, doc)
		}

		return sink.Add(doc)
	})
	if err != nil {
		return fmt.Errorf("decode path table: %w", err)
	}

	for _, d := range sprites {
		if err := ingestSprites(ctx, d, frontendURL, fetcher, sink, dirs, log); err != nil {
			log.Warn("sprite sub-ingest failed", slog.String("path", d.Path), slog.Any("error", err))
		}
	}

	for d := range dirs {
		parent, name := splitPath(d)
		if err := sink.Add(Document{Version: version, Path: d, Name: name, Parent: parent, Type: TypeDir}); err != nil {
			return fmt.Errorf("add directory %q: %w", d, err)
		}
	}

	return nil
}

// parseIndex reads the bundle name/size table, the hash->locator file map,
// skips the path-representation table, and decodes the nested path bundle
// that follows it.
func parseIndex(data []byte, extractor bundle.Extractor) (names []string, sizes []uint32, fileMap map[uint64]locator, pathBuf []byte, err error) {
	r := binreader.New(bytes.NewReader(data))

	count, err := r.U32()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("reading bundle count: %w", err)
	}

	names = make([]string, count)
	sizes = make([]uint32, count)
	for i := range names {
		nameLen, err := r.U32()
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading bundle %d name length: %w", i, err)
		}
		nameBytes, err := r.Bytes(int(nameLen))
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading bundle %d name: %w", i, err)
		}
		names[i] = string(nameBytes)
		sz, err := r.U32()
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading bundle %d size: %w", i, err)
		}
		sizes[i] = sz
	}

	fileCount, err := r.U32()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("reading file count: %w", err)
	}
	fileMap = make(map[uint64]locator, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		h, err := r.U64()
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading file %d hash: %w", i, err)
		}
		bi, err := r.U32()
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading file %d bundle index: %w", i, err)
		}
		off, err := r.U32()
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading file %d offset: %w", i, err)
		}
		size, err := r.U32()
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("reading file %d size: %w", i, err)
		}
		fileMap[h] = locator{bundleIndex: bi, offset: off, size: size}
	}

	pathRepCount, err := r.U32()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("reading path rep count: %w", err)
	}
	if err := r.Seek(int64(pathRepCount) * 20); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("skipping path rep table: %w", err)
	}

	pos, err := r.Pos()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("locating nested path bundle: %w", err)
	}

	pathBuf, err = bundle.Decode(bytes.NewReader(data[pos:]), extractor)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("decode path bundle: %w", err)
	}

	return names, sizes, fileMap, pathBuf, nil
}

// ingestSprites fetches the sprite.txt body owned by the File document d,
// parses each whitespace-delimited rectangle record, and emits one Sprite
// document per record.
func ingestSprites(ctx context.Context, d Document, frontendURL string, fetcher Fetcher, sink Sink, dirs map[string]struct{}, log *slog.Logger) error {
	versionSegment := lastPathSegment(d.Version)
	base := strings.TrimRight(frontendURL, "/")

	q := url.Values{}
	q.Set("path", "sprite")
	q.Set("dirname", "/")
	q.Set("basename", "sprite")
	q.Set("extension", "txt")
	q.Set("type", "file")
	q.Set("mime_type", "text/plain")
	q.Set("storage", d.Version)
	q.Set("file_size", strconv.FormatUint(d.Size, 10))
	q.Set("bundle_offset", strconv.FormatUint(d.Offset, 10))
	q.Set("bundle[size]", strconv.FormatUint(d.BundleSize, 10))
	q.Set("bundle[name]", d.Bundle)

	fetchURL := fmt.Sprintf("%s/%s/sprite.txt?%s", base, versionSegment, q.Encode())

	body, err := fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		return fmt.Errorf("fetch sprite.txt: %w", err)
	}

	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		fields := strings.Fields(string(line))
		if len(fields) != 6 {
			log.Warn("malformed sprite record", slog.String("line", string(line)))
			continue
		}

		x, errX := strconv.ParseUint(fields[2], 10, 64)
		y, errY := strconv.ParseUint(fields[3], 10, 64)
		x2, errX2 := strconv.ParseUint(fields[4], 10, 64)
		y2, errY2 := strconv.ParseUint(fields[5], 10, 64)
		if errX != nil || errY != nil || errX2 != nil || errY2 != nil {
			log.Warn("malformed sprite geometry", slog.String("line", string(line)))
			continue
		}

		rx, ry, w, h := spriteRect(x, y, x2, y2)
		filename := lowerCaser.String(fields[0])
		source := lowerCaser.String(fields[1])

		parent, name := splitPath(filename)
		if parent == "" {
			parent = "art/sprites"
		}

		doc := Document{
			Version:     d.Version,
			Path:        filename,
			Name:        name,
			Parent:      parent,
			Type:        TypeSprite,
			SpriteSheet: source,
			SpriteTxt:   d.Path,
			SpriteX:     rx,
			SpriteY:     ry,
			SpriteW:     w,
			SpriteH:     h,
		}
		if err := sink.Add(doc); err != nil {
			return fmt.Errorf("add sprite %q: %w", filename, err)
		}

		for _, pfx := range prefixesOf(filename) {
			dirs[pfx] = struct{}{}
		}
	}

	return nil
}

func lastPathSegment(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func spriteRect(x, y, x2, y2 uint64) (rx, ry, w, h uint64) {
	rx, ry = minU64(x, x2), minU64(y, y2)
	w, h = absDiffU64(x, x2)+1, absDiffU64(y, y2)+1
	return
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func absDiffU64(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
