package container

import (
	"bytes"
	"io"
	"testing"

	"github.com/arloliu/memetag/errs"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want FormatID
	}{
		{"png", append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "IHDR"...), FormatPNG},
		{"gif87a", []byte("GIF87a rest"), FormatGIF},
		{"gif89a", []byte("GIF89a rest"), FormatGIF},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, FormatJPEG},
		{"riff webp", []byte("RIFF\x00\x00\x00\x00WEBP"), FormatRIFF},
		{"isobmff", []byte{0, 0, 0, 0x14, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, FormatISOBMFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, rest, err := Identify(bytes.NewReader(tt.data))
			require.NoError(t, err)
			require.Equal(t, tt.want, format)

			got, err := io.ReadAll(rest)
			require.NoError(t, err)
			require.Equal(t, tt.data, got)
		})
	}
}

func TestIdentify_Unknown(t *testing.T) {
	_, _, err := Identify(bytes.NewReader([]byte("not a container file")))
	require.ErrorIs(t, err, errs.ErrUnknownFormat)
}

func TestIdentify_ShortInput(t *testing.T) {
	_, _, err := Identify(bytes.NewReader([]byte{0x89, 'P'}))
	require.ErrorIs(t, err, errs.ErrUnknownFormat)
}

func TestFormatID_String(t *testing.T) {
	require.Equal(t, "PNG", FormatPNG.String())
	require.Equal(t, "Unknown", FormatUnknown.String())
}
