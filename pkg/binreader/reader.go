// Package binreader reads fixed-width little-endian primitives off any
// byte-addressable source, the utility shared by the path-table and catalog
// decoders.
package binreader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated is returned whenever fewer bytes are available than requested.
var ErrTruncated = errors.New("binreader: truncated read")

// Reader wraps a read-exact/seek source with little-endian primitive readers.
// *bytes.Reader satisfies this, which is how the path-table and catalog
// decoders drive it: the caller materializes a body fully in memory and then
// seeks around it rather than streaming the decode.
type Reader struct {
	r io.ReadSeeker
}

// New wraps r for little-endian primitive reads.
func New(r io.ReadSeeker) *Reader {
	return &Reader{r: r}
}

// Pos returns the current offset from the start of the underlying stream.
func (d *Reader) Pos() (int64, error) {
	return d.r.Seek(0, io.SeekCurrent)
}

// Seek advances (or rewinds) the cursor by delta bytes relative to its
// current position.
func (d *Reader) Seek(delta int64) error {
	_, err := d.r.Seek(delta, io.SeekCurrent)
	return err
}

func (d *Reader) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: need %d bytes: %v", ErrTruncated, n, err)
		}
		return nil, err
	}
	return buf, nil
}

// U32 reads one little-endian uint32.
func (d *Reader) U32() (uint32, error) {
	b, err := d.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads one little-endian uint64.
func (d *Reader) U64() (uint64, error) {
	b, err := d.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bytes reads n raw bytes verbatim.
func (d *Reader) Bytes(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	return d.readExact(n)
}

// NulString reads bytes up to and including a NUL terminator and returns the
// string with the terminator stripped. Returns ErrTruncated if EOF is hit
// before a NUL is seen.
func (d *Reader) NulString() (string, error) {
	var out []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(d.r, one); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: unterminated string", ErrTruncated)
			}
			return "", err
		}
		if one[0] == 0 {
			return string(out), nil
		}
		out = append(out, one[0])
	}
}
