// Package png implements the PNG format dispatcher: reading and writing a
// MemeDB tag payload carried in a private "meMe" ancillary chunk.
//
// Layout: an 8-byte signature followed by a sequence of chunks, each a
// 4-byte big-endian length, 4-byte ASCII type, length bytes of data, and a
// 4-byte big-endian CRC-32 over the type and data. IHDR must be the first
// chunk; IEND marks the end.
package png

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/ioprim"
	"github.com/arloliu/memetag/tagset"
)

var signature = [8]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

const (
	carrierType = "meMe"
	ihdrType    = "IHDR"
	iendType    = "IEND"
)

// Read consumes a PNG stream and returns its tag set, empty if no "meMe"
// chunk is present.
func Read(r io.Reader) (*tagset.Set, error) {
	if err := readSignature(r); err != nil {
		return nil, err
	}

	var found *tagset.Set

	for {
		length, typ, err := readChunkHeader(r)
		if errors.Is(err, io.EOF) {
			return nil, errs.ErrUnexpectedEof
		} else if err != nil {
			return nil, err
		}

		if typ == iendType {
			return emptyIfNil(found), nil
		}

		if typ == carrierType {
			data, err := ioprim.ReadFull(r, int(length))
			if err != nil {
				return nil, err
			}

			if err := ioprim.Skip(r, 4); err != nil { // CRC, not verified on read.
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

		if err := ioprim.Skip(r, int64(length)+4); err != nil {
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

// Write consumes a PNG stream and emits a rewritten stream to w carrying
// tags as its MemeDB payload. Fails with a FormatError wrapping
// errs.ErrFormatStructure if the first chunk is not IHDR.
func Write(r io.Reader, w io.Writer, tags *tagset.Set) error {
	if err := readSignature(r); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, signature[:]); err != nil {
		return err
	}

	length, typ, err := readChunkHeader(r)
	if err != nil {
		return err
	}

	if typ != ihdrType {
		return errs.NewFormatError("png", "missing IHDR as first chunk")
	}

	if err := ioprim.WriteU32BE(w, length); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, []byte(typ)); err != nil {
		return err
	}

	if err := copyChunkBody(r, w, length); err != nil {
		return err
	}

	if !tags.Empty() {
		if err := writeCarrierChunk(w, tags); err != nil {
			return err
		}
	}

	for {
		length, typ, err := readChunkHeader(r)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		if typ == carrierType {
			data, err := ioprim.ReadFull(r, int(length))
			if err != nil {
				return err
			}

			if tagset.HasMagic(data) {
				if err := ioprim.Skip(r, 4); err != nil { // drop pre-existing carrier and its CRC.
					return err
				}

				continue
			}

			r = io.MultiReader(bytes.NewReader(data), r) // not ours: copy it through below.
		}

		if err := ioprim.WriteU32BE(w, length); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, []byte(typ)); err != nil {
			return err
		}

		if err := copyChunkBody(r, w, length); err != nil {
			return err
		}
	}
}

func readSignature(r io.Reader) error {
	got, err := ioprim.ReadFull(r, 8)
	if err != nil {
		return err
	}

	for i, b := range signature {
		if got[i] != b {
			return errs.NewFormatError("png", "bad signature")
		}
	}

	return nil
}

// readChunkHeader reads the 4-byte length and 4-byte type of the next
// chunk. Returns io.EOF unwrapped if the stream ends before the chunk
// starts, so callers can tell "no more chunks" apart from truncation.
func readChunkHeader(r io.Reader) (uint32, string, error) {
	length, err := ioprim.ReadU32BEOrEOF(r)
	if err != nil {
		return 0, "", err
	}

	typBytes, err := ioprim.ReadFull(r, 4)
	if err != nil {
		return 0, "", err
	}

	return length, string(typBytes), nil
}

// copyChunkBody copies a chunk's data and trailing CRC verbatim.
func copyChunkBody(r io.Reader, w io.Writer, length uint32) error {
	data, err := ioprim.ReadFull(r, int(length))
	if err != nil {
		return err
	}

	crc, err := ioprim.ReadFull(r, 4)
	if err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, data); err != nil {
		return err
	}

	return ioprim.WriteBytes(w, crc)
}

func writeCarrierChunk(w io.Writer, tags *tagset.Set) error {
	data := tagset.Encode(tags)

	if err := ioprim.WriteU32BE(w, uint32(len(data))); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, []byte(carrierType)); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, data); err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	crc.Write([]byte(carrierType))
	crc.Write(data)

	return ioprim.WriteU32BE(w, crc.Sum32())
}
