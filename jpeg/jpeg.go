// Package jpeg implements the JPEG format dispatcher: reading and writing a
// MemeDB tag payload carried in an APP1 segment distinguished from EXIF's
// APP1 by a leading "MEME" magic instead of "Exif\0\0".
//
// Layout: SOI, then marker segments (most length-prefixed, SOI/EOI/RSTn/TEM
// are not), SOS, entropy-coded scan data honoring 0xFF00 stuffing and RSTn
// markers, and EOI.
package jpeg

import (
	"io"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/ioprim"
	"github.com/arloliu/memetag/tagset"
)

const (
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP1  = 0xE1
	markerTEM   = 0x01
	markerRSTLo = 0xD0
	markerRSTHi = 0xD7
)

func isNoLengthMarker(code byte) bool {
	return code == markerTEM || (code >= markerRSTLo && code <= markerRSTHi)
}

// Read consumes a JPEG stream and returns its tag set, empty if no
// APP1-MEME segment is present.
func Read(r io.Reader) (*tagset.Set, error) {
	code, err := readMarkerCode(r)
	if err != nil {
		return nil, err
	}

	if code != markerSOI {
		return nil, errs.NewFormatError("jpeg", "missing SOI")
	}

	var found *tagset.Set

	afterSOS := false
	for {
		code, err := nextMarker(r, &afterSOS, nil)
		if err != nil {
			return nil, err
		}

		switch {
		case code == markerEOI:
			return emptyIfNil(found), nil
		case code == markerSOS:
			if _, err := readSegmentData(r); err != nil {
				return nil, err
			}

			afterSOS = true
		case isNoLengthMarker(code):
			// no length, no data.
		default:
			data, err := readSegmentData(r)
			if err != nil {
				return nil, err
			}

			if code == markerAPP1 && tagset.HasMagic(data) {
				if found != nil {
					return nil, errs.ErrDuplicateTags
				}

				found, err = tagset.Decode(data)
				if err != nil {
					return nil, err
				}
			}
		}
	}
}

func emptyIfNil(s *tagset.Set) *tagset.Set {
	if s == nil {
		return tagset.New()
	}

	return s
}

// Write consumes a JPEG stream and emits a rewritten stream to w carrying
// tags as its MemeDB payload, inserted as the first segment after SOI.
func Write(r io.Reader, w io.Writer, tags *tagset.Set) error {
	code, err := readMarkerCode(r)
	if err != nil {
		return err
	}

	if code != markerSOI {
		return errs.NewFormatError("jpeg", "missing SOI")
	}

	if err := writeMarker(w, markerSOI); err != nil {
		return err
	}

	if !tags.Empty() {
		if err := writeCarrierSegment(w, tags); err != nil {
			return err
		}
	}

	afterSOS := false
	for {
		code, err := nextMarker(r, &afterSOS, w)
		if err != nil {
			return err
		}

		if code == markerEOI {
			return writeMarker(w, markerEOI)
		}

		if isNoLengthMarker(code) {
			if err := writeMarker(w, code); err != nil {
				return err
			}

			continue
		}

		data, err := readSegmentData(r)
		if err != nil {
			return err
		}

		if code == markerAPP1 && tagset.HasMagic(data) {
			continue // drop pre-existing MEME carrier.
		}

		if err := writeMarker(w, code); err != nil {
			return err
		}

		if err := writeSegmentData(w, data); err != nil {
			return err
		}

		if code == markerSOS {
			afterSOS = true
		}
	}
}

// nextMarker returns the code of the next real marker. If *afterSOS is set,
// it first scans past entropy-coded data (honoring 0xFF00 stuffing and
// RSTn markers), echoing those bytes to echo if non-nil, before looking for
// the next marker; otherwise it reads the marker directly.
func nextMarker(r io.Reader, afterSOS *bool, echo io.Writer) (byte, error) {
	if *afterSOS {
		*afterSOS = false
		return scanEntropyData(r, echo)
	}

	return readMarkerCode(r)
}

// readMarkerCode reads a 0xFF byte (skipping any fill 0xFF bytes) followed
// by a non-0xFF marker code, and returns the code.
func readMarkerCode(r io.Reader) (byte, error) {
	b, err := readByte(r)
	if err != nil {
		return 0, err
	}

	if b != 0xFF {
		return 0, errs.NewFormatError("jpeg", "expected marker")
	}

	for b == 0xFF {
		b, err = readByte(r)
		if err != nil {
			return 0, err
		}
	}

	return b, nil
}

// scanEntropyData consumes entropy-coded scan data until a real marker is
// found, returning that marker's code. 0xFF00 stuff sequences and RSTn
// markers are treated as data and, if echo is non-nil, copied to it
// verbatim.
func scanEntropyData(r io.Reader, echo io.Writer) (byte, error) {
	for {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}

		if b != 0xFF {
			if echo != nil {
				if err := writeByte(echo, b); err != nil {
					return 0, err
				}
			}

			continue
		}

		b2, err := readByte(r)
		if err != nil {
			return 0, err
		}

		for b2 == 0xFF {
			if echo != nil {
				if err := writeByte(echo, 0xFF); err != nil {
					return 0, err
				}
			}

			b2, err = readByte(r)
			if err != nil {
				return 0, err
			}
		}

		if b2 == 0x00 || (b2 >= markerRSTLo && b2 <= markerRSTHi) {
			if echo != nil {
				if err := writeByte(echo, 0xFF); err != nil {
					return 0, err
				}

				if err := writeByte(echo, b2); err != nil {
					return 0, err
				}
			}

			continue
		}

		return b2, nil
	}
}

func readByte(r io.Reader) (byte, error) {
	b, err := ioprim.ReadFull(r, 1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func writeByte(w io.Writer, b byte) error {
	return ioprim.WriteBytes(w, []byte{b})
}

func writeMarker(w io.Writer, code byte) error {
	return ioprim.WriteBytes(w, []byte{0xFF, code})
}

// readSegmentData reads a length-prefixed segment's data (the 2-byte
// length includes itself) and returns just the data.
func readSegmentData(r io.Reader) ([]byte, error) {
	length, err := ioprim.ReadU16BE(r)
	if err != nil {
		return nil, err
	}

	if length < 2 {
		return nil, errs.NewFormatError("jpeg", "segment length too small")
	}

	return ioprim.ReadFull(r, int(length)-2)
}

func writeSegmentData(w io.Writer, data []byte) error {
	if err := ioprim.WriteU16BE(w, uint16(len(data)+2)); err != nil {
		return err
	}

	return ioprim.WriteBytes(w, data)
}

func writeCarrierSegment(w io.Writer, tags *tagset.Set) error {
	data := tagset.Encode(tags)

	if err := writeMarker(w, markerAPP1); err != nil {
		return err
	}

	return writeSegmentData(w, data)
}
