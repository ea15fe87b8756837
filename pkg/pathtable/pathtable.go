// Package pathtable decodes the compressed path-delta stream embedded in a
// bundle index: a sequence of base-building and emit phases that expand to
// the full path list of a catalog version.
package pathtable

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/oriath-net/bundlecat/pkg/binreader"
)

// ErrBadPaths is returned for invalid UTF-8 or a command stream that ends
// mid-fragment.
var ErrBadPaths = errors.New("pathtable: malformed path stream")

// Decode walks data, a decompressed path-bundle buffer, invoking emit once
// per path produced during an emit phase, in stream order.
//
// The stream is a sequence of records, each beginning with a 4-byte
// little-endian command word:
//
//   - cmd == 0 toggles the phase between base-building and emit; entering
//     base-building clears the base list.
//   - cmd != 0 is followed by a NUL-terminated UTF-8 fragment. If
//     cmd <= len(bases) the path is bases[cmd-1] + fragment, otherwise it is
//     the fragment alone. In base-building phase the result is appended to
//     the base list; in emit phase it is handed to emit.
func Decode(data []byte, emit func(path string) error) error {
	r := binreader.New(bytes.NewReader(data))

	var bases []string
	basePhase := false

	total := int64(len(data))
	for {
		pos, err := r.Pos()
		if err != nil {
			return err
		}
		if pos >= total {
			return nil
		}

		cmd, err := r.U32()
		if err != nil {
			return fmt.Errorf("%w: reading command: %v", ErrBadPaths, err)
		}

		if cmd == 0 {
			basePhase = !basePhase
			if basePhase {
				bases = bases[:0]
			}
			continue
		}

		fragment, err := r.NulString()
		if err != nil {
			return fmt.Errorf("%w: reading fragment: %v", ErrBadPaths, err)
		}
		if !utf8.ValidString(fragment) {
			return fmt.Errorf("%w: invalid UTF-8 fragment", ErrBadPaths)
		}

		var full string
		if idx := int(cmd); idx <= len(bases) {
			full = bases[idx-1] + fragment
		} else {
			full = fragment
		}

		if basePhase {
			bases = append(bases, full)
			continue
		}
		if err := emit(full); err != nil {
			return err
		}
	}
}
