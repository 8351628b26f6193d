// Package isobmff implements the ISOBMFF format dispatcher: reading and
// writing a MemeDB tag payload carried in a top-level "meme" leaf box.
//
// Layout: a sequence of boxes. Each box begins with a 4-byte big-endian
// size and a 4-byte type. If size == 1, an 8-byte big-endian "largesize"
// follows and gives the real size; if size == 0, the box extends to
// end-of-stream. Size includes the 8 (or 16) byte header. The first box of
// a valid file is "ftyp". Every box other than the carrier is streamed
// straight from r to w with io.CopyN and never buffered, so peak memory is
// bounded by the carrier's own payload rather than by the largest media box
// in the file (a trailing mdat routinely dwarfs it).
package isobmff

import (
	"bytes"
	"errors"
	"io"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/internal/options"
	"github.com/arloliu/memetag/ioprim"
	"github.com/arloliu/memetag/tagset"
)

const (
	carrierType = "meme"
	ftypType    = "ftyp"

	headerLen      = 8
	largeHeaderLen = 16
)

// config holds Write's configurable structural requirements.
type config struct {
	requireFtypFirst bool
}

func defaultConfig() *config {
	return &config{requireFtypFirst: true}
}

// Option configures Write's structural requirements.
type Option = options.Option[*config]

// WithLenientFirstBox relaxes Write's default requirement that the first
// top-level box be ftyp. With this option, a stream whose first box is
// something else is accepted, and the carrier box is inserted before it
// instead of after it.
func WithLenientFirstBox() Option {
	return options.NoError(func(c *config) {
		c.requireFtypFirst = false
	})
}

// Read consumes an ISOBMFF stream and returns its tag set, empty if no
// top-level "meme" box is present.
func Read(r io.Reader) (*tagset.Set, error) {
	var found *tagset.Set

	for {
		size, hdrLen, typ, err := readBoxHeader(r)
		if err == io.EOF {
			return emptyIfNil(found), nil
		} else if err != nil {
			return nil, err
		}

		if typ == carrierType {
			data, err := readBoxPayload(r, size, hdrLen)
			if err != nil {
				return nil, err
			}

			if !tagset.HasMagic(data) {
				continue
			}

			if found != nil {
				return nil, errs.ErrDuplicateTags
			}

			found, err = tagset.Decode(data)
			if err != nil {
				return nil, err
			}

			continue
		}

		if err := skipBoxPayload(r, size, hdrLen); err != nil {
			return nil, err
		}
	}
}

func emptyIfNil(s *tagset.Set) *tagset.Set {
	if s == nil {
		return tagset.New()
	}

	return s
}

// Write consumes an ISOBMFF stream and emits a rewritten stream to w
// carrying tags as its MemeDB payload, inserted as the first top-level box
// after ftyp. By default, Write fails with a FormatError wrapping
// errs.ErrFormatStructure if the first box is not ftyp; pass
// WithLenientFirstBox to relax that requirement.
func Write(r io.Reader, w io.Writer, tags *tagset.Set, opts ...Option) error {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return err
	}

	size, hdrLen, typ, err := readBoxHeader(r)
	if err != nil {
		return err
	}

	if typ != ftypType {
		if cfg.requireFtypFirst {
			return errs.NewFormatError("isobmff", "missing ftyp as first box")
		}

		if !tags.Empty() {
			if err := writeCarrierBox(w, tags); err != nil {
				return err
			}
		}

		var hdr bytes.Buffer
		if err := writeBoxHeaderRaw(&hdr, typ, size, hdrLen); err != nil {
			return err
		}

		return copyRemainingBoxes(io.MultiReader(&hdr, r), w) // replay the first box's header.
	}

	if err := copyBox(r, w, size, hdrLen, typ); err != nil {
		return err
	}

	if !tags.Empty() {
		if err := writeCarrierBox(w, tags); err != nil {
			return err
		}
	}

	return copyRemainingBoxes(r, w)
}

// copyRemainingBoxes copies every remaining top-level box to w verbatim,
// dropping any pre-existing carrier box. A "meme" box whose payload lacks the
// MemeDB magic is not ours and is copied through like any other box.
func copyRemainingBoxes(r io.Reader, w io.Writer) error {
	for {
		size, hdrLen, typ, err := readBoxHeader(r)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		if typ == carrierType {
			data, err := readBoxPayload(r, size, hdrLen)
			if err != nil {
				return err
			}

			if tagset.HasMagic(data) {
				continue // drop pre-existing carrier.
			}

			r = io.MultiReader(bytes.NewReader(data), r) // not ours: copy it through below.
		}

		if err := copyBox(r, w, size, hdrLen, typ); err != nil {
			return err
		}
	}
}

// readBoxHeader reads a box's size and 4-byte type, resolving the largesize
// form when size == 1. Returns the full box size (header included, 0
// meaning "extends to end-of-stream"), the header length actually used (8
// or 16), and the type. Returns io.EOF unwrapped if the stream ends before
// the next box starts.
func readBoxHeader(r io.Reader) (uint64, int, string, error) {
	size32, err := ioprim.ReadU32BEOrEOF(r)
	if err != nil {
		return 0, 0, "", err
	}

	typBytes, err := ioprim.ReadFull(r, 4)
	if err != nil {
		return 0, 0, "", err
	}

	typ := string(typBytes)

	switch size32 {
	case 0:
		return 0, headerLen, typ, nil
	case 1:
		large, err := ioprim.ReadU64BE(r)
		if err != nil {
			return 0, 0, "", err
		}

		if large < largeHeaderLen {
			return 0, 0, "", errs.NewFormatError("isobmff", "largesize smaller than header")
		}

		return large, largeHeaderLen, typ, nil
	default:
		if uint64(size32) < headerLen {
			return 0, 0, "", errs.NewFormatError("isobmff", "box size smaller than header")
		}

		return uint64(size32), headerLen, typ, nil
	}
}

// readBoxPayload reads a box's payload into memory. size == 0 means the box
// extends to end-of-stream, so the payload is read until r is exhausted.
// This path is only ever taken for a "meme" box, never for a media box such
// as mdat.
func readBoxPayload(r io.Reader, size uint64, hdrLen int) ([]byte, error) {
	if size == 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Join(errs.ErrIo, err)
		}

		return data, nil
	}

	n := int64(size) - int64(hdrLen)

	return ioprim.ReadFull(r, int(n))
}

// skipBoxPayload discards a box's payload without buffering it, using the
// forward-only stream's own EOF as the end marker when size == 0.
func skipBoxPayload(r io.Reader, size uint64, hdrLen int) error {
	if size == 0 {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return errors.Join(errs.ErrIo, err)
		}

		return nil
	}

	n := int64(size) - int64(hdrLen)

	return ioprim.Skip(r, n)
}

// copyBox copies a box's header and payload verbatim to w. The header is
// reproduced in its original form (compact, largesize, or size-to-EOF), and
// the payload is streamed straight from r to w with io.CopyN, never
// buffered, so a large leaf box like mdat never touches a Go byte slice.
func copyBox(r io.Reader, w io.Writer, size uint64, hdrLen int, typ string) error {
	if err := writeBoxHeaderRaw(w, typ, size, hdrLen); err != nil {
		return err
	}

	if size == 0 {
		if _, err := io.Copy(w, r); err != nil {
			return errors.Join(errs.ErrIo, err)
		}

		return nil
	}

	n := int64(size) - int64(hdrLen)

	return copyN(w, r, n)
}

func writeBoxHeaderRaw(w io.Writer, typ string, size uint64, hdrLen int) error {
	if hdrLen == largeHeaderLen {
		if err := ioprim.WriteU32BE(w, 1); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, []byte(typ)); err != nil {
			return err
		}

		return ioprim.WriteU64BE(w, size)
	}

	if err := ioprim.WriteU32BE(w, uint32(size)); err != nil { // size == 0 is preserved literally.
		return err
	}

	return ioprim.WriteBytes(w, []byte(typ))
}

func copyN(w io.Writer, r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}

	if _, err := io.CopyN(w, r, n); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.ErrUnexpectedEof
		}

		return errors.Join(errs.ErrIo, err)
	}

	return nil
}

func writeCarrierBox(w io.Writer, tags *tagset.Set) error {
	return writeBox(w, carrierType, tagset.Encode(tags))
}

// writeBox writes a box with the given type and payload, choosing the
// compact 32-bit size form when it fits and the largesize form otherwise.
// Used only to construct the new carrier box, whose payload is always the
// small in-memory tag set encoding rather than bulk data.
func writeBox(w io.Writer, typ string, data []byte) error {
	if err := writeNewBoxHeader(w, typ, uint64(len(data))); err != nil {
		return err
	}

	return ioprim.WriteBytes(w, data)
}

// writeNewBoxHeader writes the header for a freshly constructed box (never
// a pass-through, whose header form is fixed by readBoxHeader instead)
// given its payload length, choosing the compact 32-bit size form when it
// fits and the largesize form otherwise.
func writeNewBoxHeader(w io.Writer, typ string, dataLen uint64) error {
	total := uint64(headerLen) + dataLen

	if total <= 0xFFFFFFFF {
		if err := ioprim.WriteU32BE(w, uint32(total)); err != nil {
			return err
		}

		return ioprim.WriteBytes(w, []byte(typ))
	}

	if err := ioprim.WriteU32BE(w, 1); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, []byte(typ)); err != nil {
		return err
	}

	return ioprim.WriteU64BE(w, uint64(largeHeaderLen)+dataLen)
}
