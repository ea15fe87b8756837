package pathtable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func cmdRecord(buf *bytes.Buffer, cmd uint32, fragment string) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], cmd)
	buf.Write(b[:])
	if cmd != 0 {
		buf.WriteString(fragment)
		buf.WriteByte(0)
	}
}

func TestDecodeBaseThenEmit(t *testing.T) {
	var buf bytes.Buffer
	cmdRecord(&buf, 0, "") // enter base-building
	cmdRecord(&buf, 1, "art/")
	cmdRecord(&buf, 0, "") // enter emit
	cmdRecord(&buf, 1, "icon.png")
	cmdRecord(&buf, 2, "models/x.geo")

	var got []string
	err := Decode(buf.Bytes(), func(p string) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"art/icon.png", "models/x.geo"}, got)
}

func TestDecodeEmitOnlyOncePerPath(t *testing.T) {
	var buf bytes.Buffer
	cmdRecord(&buf, 0, "")
	cmdRecord(&buf, 1, "base/")
	cmdRecord(&buf, 0, "")
	cmdRecord(&buf, 1, "a.txt")
	cmdRecord(&buf, 1, "b.txt")
	cmdRecord(&buf, 1, "c.txt")

	count := 0
	err := Decode(buf.Bytes(), func(string) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestDecodeTruncatedFragment(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 0, 0, 0}) // cmd = 1, no terminated fragment follows
	buf.WriteString("no-terminator")

	err := Decode(buf.Bytes(), func(string) error { return nil })
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBadPaths))
}

func TestDecodeCallbackErrorPropagates(t *testing.T) {
	var buf bytes.Buffer
	cmdRecord(&buf, 1, "x.txt")

	sentinel := errors.New("boom")
	err := Decode(buf.Bytes(), func(string) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}
