package container

import (
	"io"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/gif"
	"github.com/arloliu/memetag/isobmff"
	"github.com/arloliu/memetag/jpeg"
	"github.com/arloliu/memetag/png"
	"github.com/arloliu/memetag/riff"
	"github.com/arloliu/memetag/tagset"
)

// Read identifies r's container format and returns its tag set, empty if no
// carrier is present. Returns errs.ErrUnknownFormat if the format cannot be
// identified.
func Read(r io.Reader) (*tagset.Set, error) {
	format, body, err := Identify(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatPNG:
		return png.Read(body)
	case FormatJPEG:
		return jpeg.Read(body)
	case FormatGIF:
		return gif.Read(body)
	case FormatRIFF:
		return riff.Read(body)
	case FormatISOBMFF:
		return isobmff.Read(body)
	default:
		return nil, errs.ErrUnknownFormat
	}
}

// Write identifies r's container format and emits a rewritten stream to w
// carrying tags as its MemeDB payload. Returns errs.ErrUnknownFormat if the
// format cannot be identified. isobmffOpts is forwarded to isobmff.Write and
// ignored for every other format.
func Write(r io.Reader, w io.Writer, tags *tagset.Set, isobmffOpts ...isobmff.Option) error {
	format, body, err := Identify(r)
	if err != nil {
		return err
	}

	switch format {
	case FormatPNG:
		return png.Write(body, w, tags)
	case FormatJPEG:
		return jpeg.Write(body, w, tags)
	case FormatGIF:
		return gif.Write(body, w, tags)
	case FormatRIFF:
		return riff.Write(body, w, tags)
	case FormatISOBMFF:
		return isobmff.Write(body, w, tags, isobmffOpts...)
	default:
		return errs.ErrUnknownFormat
	}
}
