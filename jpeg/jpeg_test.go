package jpeg

import (
	"bytes"
	"testing"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/tagset"
	"github.com/stretchr/testify/require"
)

func segment(code byte, data []byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, code})
	buf.Write([]byte{byte((len(data) + 2) >> 8), byte(len(data) + 2)})
	buf.Write(data)

	return buf.Bytes()
}

// minimalJPEG builds SOI, APP0/JFIF, SOS with a tiny stuffed-byte scan, EOI.
func minimalJPEG() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, markerSOI})
	buf.Write(segment(0xE0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")))
	buf.Write(segment(markerSOS, []byte{0x01, 0x00, 0x00, 0x3F, 0x00}))
	// Entropy-coded data containing a stuffed 0xFF00 and an RST0 marker.
	buf.Write([]byte{0x12, 0x34, 0xFF, 0x00, 0x56, 0xFF, 0xD0, 0x78})
	buf.Write([]byte{0xFF, markerEOI})

	return buf.Bytes()
}

func TestWriteRead_RoundTrip(t *testing.T) {
	tags, err := tagset.NewFromStrings([]string{"cat", "dog"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalJPEG()), &out, tags))

	got, err := Read(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.True(t, tags.Equal(got))
}

func TestWriteRead_PreservesEntropyStuffingAndRST(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"x"})

	src := minimalJPEG()

	var out bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(src), &out, tags))

	// The stuffed byte and RST0 marker in the scan data must survive verbatim.
	require.True(t, bytes.Contains(out.Bytes(), []byte{0x12, 0x34, 0xFF, 0x00, 0x56, 0xFF, 0xD0, 0x78}))
}

func TestLiteralScenario_EmptyTagSetErasesCarrier(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"sunset", "beach"})

	var withCarrier bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalJPEG()), &withCarrier, tags))

	var erased bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(withCarrier.Bytes()), &erased, tagset.New()))

	got, err := Read(bytes.NewReader(erased.Bytes()))
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestWrite_Idempotent(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"cat", "dog"})

	var first bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalJPEG()), &first, tags))

	var second bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(first.Bytes()), &second, tags))

	require.Equal(t, first.Bytes(), second.Bytes())
}

func TestRead_MissingSOI(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0xFF, 0xE0, 0x00, 0x02}))
	require.ErrorIs(t, err, errs.ErrFormatStructure)
}

func TestRead_DuplicateCarrier(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"x"})
	payload := tagset.Encode(tags)

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, markerSOI})
	buf.Write(segment(markerAPP1, payload))
	buf.Write(segment(markerAPP1, payload))
	buf.Write([]byte{0xFF, markerEOI})

	_, err := Read(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errs.ErrDuplicateTags)
}

func TestRead_NonMemeAPP1PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, markerSOI})
	buf.Write(segment(markerAPP1, append([]byte("Exif\x00\x00"), 0, 0, 0, 0)))
	buf.Write([]byte{0xFF, markerEOI})

	got, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, got.Empty())
}

func TestWrite_InsertsCarrierRightAfterSOI(t *testing.T) {
	tags, _ := tagset.NewFromStrings([]string{"x"})

	var out bytes.Buffer
	require.NoError(t, Write(bytes.NewReader(minimalJPEG()), &out, tags))

	b := out.Bytes()
	require.Equal(t, []byte{0xFF, markerSOI, 0xFF, markerAPP1}, b[:4])
}
