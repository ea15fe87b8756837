// Package bundle decodes the Oodle-compressed container framing shared by
// every bundle in the catalog (the index bundle, its nested path bundle, and
// ordinary data bundles). It treats Oodle itself as an opaque per-block
// extractor and only owns the framing around it, operating on any
// io.Reader so it can decode an HTTP response body or a nested in-memory
// buffer equally.
package bundle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/new-world-tools/go-oodle"
)

// ErrBadBundle is returned for any short read or extractor failure while
// decoding a container.
var ErrBadBundle = errors.New("bundle: malformed container")

// Extractor decompresses one Oodle block read from r into out, advancing r
// by exactly one block's worth of compressed bytes. Production code uses
// oodleExtractor; tests substitute a fake to exercise the framing without a
// real compressed payload.
type Extractor func(r io.Reader, compressedSize int64, out []byte) error

func oodleExtractor(r io.Reader, compressedSize int64, out []byte) error {
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return fmt.Errorf("%w: reading compressed block: %v", ErrBadBundle, err)
	}
	decompressed, err := oodle.Decompress(compressed, int64(len(out)))
	if err != nil {
		return fmt.Errorf("%w: oodle decompress: %v", ErrBadBundle, err)
	}
	if len(decompressed) != len(out) {
		return fmt.Errorf("%w: block produced %d bytes, wanted %d", ErrBadBundle, len(decompressed), len(out))
	}
	copy(out, decompressed)
	return nil
}

// Decode parses the framing documented in Header off r (positioned at the
// start of a compressed container) and returns the fully decompressed
// payload. It calls extractor once per block with the output window
// [i*granularity, min((i+1)*granularity, uncompressedSize)); extractor is
// trusted to advance r by exactly one block.
func Decode(r io.Reader, extractor Extractor) ([]byte, error) {
	if extractor == nil {
		extractor = oodleExtractor
	}

	fixed := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrBadBundle, err)
	}

	var h Header
	h.UncompressedSize = int32(binary.LittleEndian.Uint32(fixed[0:4]))
	h.CompressedSize = int32(binary.LittleEndian.Uint32(fixed[4:8]))
	h.HeadSize = int32(binary.LittleEndian.Uint32(fixed[8:12]))
	h.Compressor = int32(binary.LittleEndian.Uint32(fixed[12:16]))
	h.Unknown1 = int32(binary.LittleEndian.Uint32(fixed[16:20]))
	h.UncompressedSizeLong = int64(binary.LittleEndian.Uint64(fixed[20:28]))
	h.CompressedSizeLong = int64(binary.LittleEndian.Uint64(fixed[28:36]))
	h.ChunkCount = int32(binary.LittleEndian.Uint32(fixed[36:40]))
	h.ChunkSize = int32(binary.LittleEndian.Uint32(fixed[40:44]))
	// fixed[44:60] is the 16-byte unknown region; ignored.

	if h.ChunkCount < 0 {
		return nil, fmt.Errorf("%w: negative chunk count %d", ErrBadBundle, h.ChunkCount)
	}
	if h.UncompressedSizeLong < 0 {
		return nil, fmt.Errorf("%w: negative uncompressed size %d", ErrBadBundle, h.UncompressedSizeLong)
	}

	blockSizes := make([]int32, h.ChunkCount)
	if h.ChunkCount > 0 {
		raw := make([]byte, 4*h.ChunkCount)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("%w: reading block size table: %v", ErrBadBundle, err)
		}
		for i := range blockSizes {
			blockSizes[i] = int32(binary.LittleEndian.Uint32(raw[4*i : 4*i+4]))
		}
	}

	out := make([]byte, h.UncompressedSizeLong)
	granularity := int64(h.ChunkSize)
	var offset int64
	for i := int32(0); i < h.ChunkCount; i++ {
		if blockSizes[i] < 0 {
			return nil, fmt.Errorf("%w: negative block size at %d", ErrBadBundle, i)
		}
		end := offset + granularity
		if end > int64(len(out)) {
			end = int64(len(out))
		}
		window := out[offset:end]
		if err := extractor(r, int64(blockSizes[i]), window); err != nil {
			if errors.Is(err, ErrBadBundle) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: block %d: %v", ErrBadBundle, i, err)
		}
		offset = end
	}

	return out, nil
}
