package container

import (
	"bytes"
	"errors"
	"io"

	"github.com/arloliu/memetag/errs"
)

// sniffLen is the maximum number of leading bytes identification inspects.
const sniffLen = 12

var (
	pngMagic  = [8]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	gif87a    = [6]byte{'G', 'I', 'F', '8', '7', 'a'}
	gif89a    = [6]byte{'G', 'I', 'F', '8', '9', 'a'}
	jpegSOI   = [3]byte{0xFF, 0xD8, 0xFF}
	riffMagic = [4]byte{'R', 'I', 'F', 'F'}
	ftypMagic = [4]byte{'f', 't', 'y', 'p'}
)

// Identify examines up to the first 12 bytes of r and returns the matching
// FormatID along with a Source that still yields the full original stream —
// the sniffed bytes are buffered in front of the rest of r, so the chosen
// dispatcher parses its header from memory instead of issuing another read
// against the underlying source.
//
// Returns errs.ErrUnknownFormat if no signature matches.
func Identify(r io.Reader) (FormatID, io.Reader, error) {
	header := make([]byte, sniffLen)

	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, nil, errors.Join(errs.ErrIo, err)
	}

	header = header[:n]
	rest := io.MultiReader(bytes.NewReader(header), r)

	format := match(header)
	if format == FormatUnknown {
		return FormatUnknown, nil, errs.ErrUnknownFormat
	}

	return format, rest, nil
}

func match(header []byte) FormatID {
	switch {
	case len(header) >= 8 && bytes.Equal(header[:8], pngMagic[:]):
		return FormatPNG
	case len(header) >= 6 && (bytes.Equal(header[:6], gif87a[:]) || bytes.Equal(header[:6], gif89a[:])):
		return FormatGIF
	case len(header) >= 3 && bytes.Equal(header[:3], jpegSOI[:]):
		return FormatJPEG
	case len(header) >= 8 && bytes.Equal(header[4:8], ftypMagic[:]):
		return FormatISOBMFF
	case len(header) >= 4 && bytes.Equal(header[:4], riffMagic[:]):
		return FormatRIFF
	default:
		return FormatUnknown
	}
}
