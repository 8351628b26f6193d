package tagset

import (
	"encoding/binary"
	"testing"

	"github.com/arloliu/memetag/errs"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s, err := NewFromStrings([]string{"cat", "dog"})
	require.NoError(t, err)

	payload := Encode(s)
	require.True(t, HasMagic(payload))

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.True(t, s.Equal(decoded))
}

func TestEncode_LiteralLayout(t *testing.T) {
	s, err := NewFromStrings([]string{"cat", "dog"})
	require.NoError(t, err)

	payload := Encode(s)

	want := append([]byte("MEME"), 2, 0, 0, 0)
	want = append(want, 3, 0, 0, 0)
	want = append(want, "cat"...)
	want = append(want, 3, 0, 0, 0)
	want = append(want, "dog"...)

	require.Equal(t, want, payload)
}

func TestEncode_Empty(t *testing.T) {
	s := New()
	payload := Encode(s)
	require.Equal(t, append([]byte("MEME"), 0, 0, 0, 0), payload)
}

func TestDecode_MissingMagic(t *testing.T) {
	_, err := Decode([]byte("XXXXnope"))
	require.ErrorIs(t, err, errs.ErrTagCodec)
}

func TestDecode_TruncatedCount(t *testing.T) {
	_, err := Decode([]byte("MEME\x01\x00"))
	require.ErrorIs(t, err, errs.ErrTagCodec)
}

func TestDecode_TruncatedTagData(t *testing.T) {
	buf := append([]byte("MEME"), 1, 0, 0, 0)
	buf = append(buf, 10, 0, 0, 0) // claims 10 bytes of tag data
	buf = append(buf, "short"...)
	_, err := Decode(buf)
	require.ErrorIs(t, err, errs.ErrTagCodec)
}

func TestDecode_InvalidTagOnWire(t *testing.T) {
	buf := append([]byte("MEME"), 1, 0, 0, 0)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], 1)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, 0x00) // a single control-character byte: invalid tag
	_, err := Decode(buf)
	require.ErrorIs(t, err, errs.ErrInvalidTag)
}
