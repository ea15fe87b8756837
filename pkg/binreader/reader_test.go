package binreader

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderPrimitives(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00})                               // u32 = 1
	buf.Write([]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})        // u64 = 2
	buf.WriteString("hi\x00")

	r := New(bytes.NewReader(buf.Bytes()))

	v32, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(1), v32)

	v64, err := r.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(2), v64)

	s, err := r.NulString()
	require.NoError(t, err)
	require.Equal(t, "hi", s)
}

func TestReaderTruncated(t *testing.T) {
	r := New(bytes.NewReader([]byte{0x01, 0x02}))
	_, err := r.U32()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTruncated))
}

func TestReaderNulStringTruncated(t *testing.T) {
	r := New(bytes.NewReader([]byte("no-terminator")))
	_, err := r.NulString()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTruncated))
}

func TestReaderSeekAndPos(t *testing.T) {
	r := New(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5}))
	require.NoError(t, r.Seek(3))
	pos, err := r.Pos()
	require.NoError(t, err)
	require.Equal(t, int64(3), pos)
	b, err := r.Bytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, b)
}
