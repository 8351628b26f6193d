package isobmff

import (
	"bytes"
	"testing"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/tagset"
	"github.com/stretchr/testify/require"
)

func box(typ string, data []byte) []byte {
	var buf bytes.Buffer

	size := uint32(8 + len(data))
	buf.Write([]byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)})
	buf.WriteString(typ)
	buf.Write(data)

	return buf.Bytes()
}

func minimalMP4() []byte {
	var buf bytes.Buffer
	buf.Write(box("ftyp", []byte("isom\x00\x00\x02\x00isomiso2avc1mp41")))
	buf.Write(box("free", nil))
	buf.Write(box("mdat", []byte{1, 2, 3, 4}))

	return buf.Bytes()
}

func TestWriteRead_RoundTrip(t *testing.T) {
	tags, err := tagset.NewFromStrings([]string{"cat", "dog"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalMP4()), &out, tags))

	got, err := Read(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.True(t, tags.Equal(got))
}

func TestWrite_PreservesOtherBoxes(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"x"})

	var out bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalMP4()), &out, tags))

	require.True(t, bytes.Contains(out.Bytes(), []byte("mdat")))
	require.True(t, bytes.Contains(out.Bytes(), []byte("free")))
}

func TestLiteralScenario_EmptyTagSetErasesCarrier(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"sunset", "beach"})

	var withCarrier bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalMP4()), &withCarrier, tags))

	var erased bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(withCarrier.Bytes()), &erased, tagset.New()))

	require.NotContains(t, erased.String(), "meme")

	got, err := Read(bytes.NewReader(erased.Bytes()))
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestWrite_Idempotent(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"cat", "dog"})

	var first bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalMP4()), &first, tags))

	var second bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(first.Bytes()), &second, tags))

	require.Equal(t, first.Bytes(), second.Bytes())
}

func TestWrite_MissingFtyp(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(box("free", nil))
	buf.Write(box("mdat", []byte{1, 2, 3}))

	tags, _ := tagset.NewFromStrings([]string{"x"})

	err := Write(bytes.NewReader(buf.Bytes()), &bytes.Buffer{}, tags)
	require.ErrorIs(t, err, errs.ErrFormatStructure)
}

func TestRead_DuplicateCarrier(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"x"})
	payload := tagset.Encode(tags)

	var buf bytes.Buffer
	buf.Write(box("ftyp", []byte("isom")))
	buf.Write(box(carrierType, payload))
	buf.Write(box(carrierType, payload))

	_, err := Read(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrDuplicateTags)
}

func TestRead_LargesizeBox(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"x"})
	payload := tagset.Encode(tags)

	var buf bytes.Buffer
	buf.Write(box("ftyp", []byte("isom")))

	// Largesize-form carrier box: size32=1, type, 8-byte largesize, data.
	total := uint64(16 + len(payload))
	buf.Write([]byte{0, 0, 0, 1})
	buf.WriteString(carrierType)

	var largeBuf [8]byte
	for i := 0; i < 8; i++ {
		largeBuf[7-i] = byte(total >> (8 * i))
	}
	buf.Write(largeBuf[:])
	buf.Write(payload)

	got, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, tags.Equal(got))
}

func TestWrite_LenientFirstBoxAcceptsNonFtyp(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(box("free", nil))
	buf.Write(box("mdat", []byte{1, 2, 3}))

	tags, _ := tagset.NewFromStrings([]string{"x"})

	var out bytes.Buffer
	err := Write(bytes.NewReader(buf.Bytes()), &out, tags, WithLenientFirstBox())
	require.NoError(t, err)

	require.True(t, bytes.Contains(out.Bytes(), []byte("free")))
	require.True(t, bytes.Contains(out.Bytes(), []byte("mdat")))

	got, err := Read(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.True(t, tags.Equal(got))
}

func TestWrite_LargesizeBoxOnOversizedPayload(t *testing.T) {
	// A carrier payload just past 2^32-9 bytes pushes the compact box total
	// (8-byte header + payload) past the uint32 max, forcing the largesize
	// form: size32=1 followed by an 8-byte largesize.
	const dataLen = uint64(1)<<32 - 8

	var out bytes.Buffer
	require.NoError(t, writeNewBoxHeader(&out, carrierType, dataLen))

	got := out.Bytes()
	require.Len(t, got, largeHeaderLen)
	require.Equal(t, []byte{0, 0, 0, 1}, got[0:4])
	require.Equal(t, carrierType, string(got[4:8]))

	var large uint64
	for _, b := range got[8:16] {
		large = large<<8 | uint64(b)
	}

	require.Equal(t, uint64(largeHeaderLen)+dataLen, large)
}

func TestRead_NonMemeBoxPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(box("ftyp", []byte("isom")))
	buf.Write(box("free", nil))

	got, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, got.Empty())
}
