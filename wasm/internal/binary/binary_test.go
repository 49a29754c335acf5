package binary

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		require.Equal(t, i, r.Position(), "position before read %d", i)
		b, err := r.ReadByte()
		require.NoError(t, err)
		require.Equal(t, want, b)
	}

	_, err := r.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderReadBytesShort(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})

	got, err := r.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, got)

	_, err = r.ReadBytes(10)
	require.ErrorIs(t, err, ErrShortRead)
	require.Equal(t, 1, r.Len(), "failed read must not consume input")
}

func TestReaderSkip(t *testing.T) {
	r := NewSubReader([]byte{1, 2, 3, 4}, 100)
	require.NoError(t, r.Skip(3))
	require.Equal(t, 103, r.Position())

	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(4), b)

	require.ErrorIs(t, r.Skip(1), ErrShortRead)
}

func TestReaderLEB128(t *testing.T) {
	u32 := []struct {
		encoded []byte
		want    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}
	for _, tt := range u32 {
		got, err := NewReader(tt.encoded).ReadU32()
		require.NoError(t, err, "ReadU32(%v)", tt.encoded)
		require.Equal(t, tt.want, got, "ReadU32(%v)", tt.encoded)
	}

	s32 := []struct {
		encoded []byte
		want    int32
	}{
		{[]byte{0x2a}, 42},
		{[]byte{0x7f}, -1},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, -2147483648},
	}
	for _, tt := range s32 {
		got, err := NewReader(tt.encoded).ReadS32()
		require.NoError(t, err, "ReadS32(%v)", tt.encoded)
		require.Equal(t, tt.want, got, "ReadS32(%v)", tt.encoded)
	}

	got, err := NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}).ReadS64()
	require.NoError(t, err)
	require.Equal(t, int64(1<<63-1), got)
}

func TestReaderOverflow(t *testing.T) {
	_, err := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).ReadU32()
	require.ErrorIs(t, err, ErrOverflow)
	_, err = NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).ReadS32()
	require.ErrorIs(t, err, ErrOverflow)
}

func TestReaderReadName(t *testing.T) {
	name, err := NewReader([]byte{0x05, 'h', 'e', 'l', 'l', 'o'}).ReadName()
	require.NoError(t, err)
	require.Equal(t, "hello", name)

	_, err = NewReader([]byte{0x02, 0xff, 0xfe}).ReadName()
	require.Error(t, err, "invalid UTF-8")
}

func TestReaderFixedWidth(t *testing.T) {
	r := NewReader([]byte{0x00, 0x61, 0x73, 0x6d, 1, 0, 0, 0, 0, 0, 0, 0x80})
	magic, err := r.ReadU32LE()
	require.NoError(t, err)
	require.Equal(t, uint32(0x6d736100), magic)

	v, err := r.ReadU64LE()
	require.NoError(t, err)
	require.Equal(t, uint64(0x8000000000000001), v)
}

func TestReaderWrapError(t *testing.T) {
	r := NewSubReader([]byte{0x01, 0x02}, 10)
	_, _ = r.ReadByte()

	err := r.WrapError("type section", io.ErrUnexpectedEOF)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 11, pe.Position)
	require.Equal(t, "type section", pe.Section)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	require.Same(t, pe, r.WrapError("outer", err), "wrapping twice keeps the innermost location")
	require.EqualError(t, &ParseError{Position: 3, Err: io.EOF}, "wasm: at position 3: EOF")
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32(624485)
	w.WriteU64(1 << 40)
	w.WriteS32(-128)
	w.WriteS64(-1 << 40)
	w.WriteName("env")
	w.WriteU32LE(0xdeadbeef)
	w.WriteU64LE(0x0102030405060708)

	r := NewReader(w.Bytes())

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(624485), u32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40), u64)

	s32, err := r.ReadS32()
	require.NoError(t, err)
	require.Equal(t, int32(-128), s32)

	s64, err := r.ReadS64()
	require.NoError(t, err)
	require.Equal(t, int64(-1<<40), s64)

	name, err := r.ReadName()
	require.NoError(t, err)
	require.Equal(t, "env", name)

	u32, err = r.ReadU32LE()
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), u32)

	u64, err = r.ReadU64LE()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	require.Zero(t, r.Len(), "trailing bytes")
}

func TestWriterSection(t *testing.T) {
	w := NewWriter()
	w.Section(0x05, []byte{0x01, 0x00, 0x01})
	require.Equal(t, []byte{0x05, 0x03, 0x01, 0x00, 0x01}, w.Bytes())
}
