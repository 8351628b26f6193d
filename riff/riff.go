// Package riff implements the RIFF format dispatcher: reading and writing a
// MemeDB tag payload carried in a top-level "meme" chunk.
//
// Layout: a "RIFF" magic, a 4-byte little-endian size (total byte count
// following the size field), a 4-byte form type (e.g. "WEBP", "WAVE",
// "AVI "), then a sequence of chunks: 4-byte ASCII type, 4-byte
// little-endian size, size bytes of data, and a 1-byte zero pad if size is
// odd. LIST chunks nest further chunks after a 4-byte list type, the same
// way https://github.com/go-audio/riff walks INFO LIST sub-chunks.
package riff

import (
	"bytes"
	"errors"
	"io"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/ioprim"
	"github.com/arloliu/memetag/tagset"
)

const (
	carrierType = "meme"
	listType    = "LIST"
)

var riffMagic = [4]byte{'R', 'I', 'F', 'F'}

// Read consumes a RIFF stream and returns its tag set, empty if no "meme"
// chunk is present, either at the top level or inside a LIST chunk.
func Read(r io.Reader) (*tagset.Set, error) {
	size, _, err := readRiffHeader(r)
	if err != nil {
		return nil, err
	}

	lr := io.LimitReader(r, int64(size)-4) // size counts the form type too.

	found, err := readChunks(lr)
	if err != nil {
		return nil, err
	}

	return emptyIfNil(found), nil
}

func emptyIfNil(s *tagset.Set) *tagset.Set {
	if s == nil {
		return tagset.New()
	}

	return s
}

// readChunks walks a sequence of chunks until r is exhausted, recursing into
// LIST chunks. A "meme" chunk found at any nesting level is honored; a
// second one anywhere is a duplicate.
func readChunks(r io.Reader) (*tagset.Set, error) {
	var found *tagset.Set

	for {
		typ, size, err := readChunkHeader(r)
		if err == io.EOF {
			return found, nil
		} else if err != nil {
			return nil, err
		}

		if typ == listType {
			if _, err := ioprim.ReadFull(r, 4); err != nil { // list type, informational only.
				return nil, err
			}

			nested, err := readChunks(io.LimitReader(r, int64(size)-4))
			if err != nil {
				return nil, err
			}

			if err := skipPad(r, size); err != nil {
				return nil, err
			}

			if nested == nil {
				continue
			}

			if found != nil {
				return nil, errs.ErrDuplicateTags
			}

			found = nested

			continue
		}

		if typ == carrierType {
			data, err := ioprim.ReadFull(r, int(size))
			if err != nil {
				return nil, err
			}

			if err := skipPad(r, size); err != nil {
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

		if err := ioprim.Skip(r, int64(size)); err != nil {
			return nil, err
		}

		if err := skipPad(r, size); err != nil {
			return nil, err
		}
	}
}

func readRiffHeader(r io.Reader) (uint32, [4]byte, error) {
	var form [4]byte

	magic, err := ioprim.ReadFull(r, 4)
	if err != nil {
		return 0, form, err
	}

	for i, b := range riffMagic {
		if magic[i] != b {
			return 0, form, errs.NewFormatError("riff", "bad RIFF magic")
		}
	}

	size, err := ioprim.ReadU32LE(r)
	if err != nil {
		return 0, form, err
	}

	formBytes, err := ioprim.ReadFull(r, 4)
	if err != nil {
		return 0, form, err
	}

	copy(form[:], formBytes)

	return size, form, nil
}

// readChunkHeader reads a chunk's 4-byte type and 4-byte little-endian size.
// Returns io.EOF unwrapped if the stream ends before a chunk starts.
func readChunkHeader(r io.Reader) (string, uint32, error) {
	typ, err := ioprim.ReadFullOrEOF(r, 4)
	if err != nil {
		return "", 0, err
	}

	size, err := ioprim.ReadU32LE(r)
	if err != nil {
		return "", 0, err
	}

	return string(typ), size, nil
}

func skipPad(r io.Reader, size uint32) error {
	if size&1 == 1 {
		return ioprim.Skip(r, 1)
	}

	return nil
}

// Write consumes a RIFF stream and emits a rewritten stream to w carrying
// tags as its MemeDB payload, inserted as the first top-level chunk after
// the form type. Write never buffers a chunk's data: the new total size is
// computed algebraically from the input's declared size and the size delta
// of the one carrier chunk removed or inserted, and every other chunk's
// bytes are streamed straight from r to w with io.CopyN. Write removes a
// pre-existing carrier only when it is the very first top-level chunk, the
// position Write itself places it in, so finding and sizing it costs only a
// short peek rather than a scan of the whole body. A "meme" chunk at a later
// top-level position or inside a LIST chunk is copied through unchanged.
func Write(r io.Reader, w io.Writer, tags *tagset.Set) error {
	size, form, err := readRiffHeader(r)
	if err != nil {
		return err
	}

	body := io.LimitReader(r, int64(size)-4)

	rest, removed, err := peelLeadingCarrier(body)
	if err != nil {
		return err
	}

	var carrier []byte
	if !tags.Empty() {
		carrier = tagset.Encode(tags)
	}

	inserted := 0
	if carrier != nil {
		inserted = 8 + len(carrier) + (len(carrier) & 1)
	}

	newSize := int64(size) - int64(removed) + int64(inserted)

	if err := ioprim.WriteBytes(w, riffMagic[:]); err != nil {
		return err
	}

	if err := ioprim.WriteU32LE(w, uint32(newSize)); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, form[:]); err != nil {
		return err
	}

	if carrier != nil {
		if err := writeChunkHeader(w, carrierType, len(carrier)); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, carrier); err != nil {
			return err
		}

		if err := writePad(w, len(carrier)); err != nil {
			return err
		}
	}

	return copyChunksVerbatim(rest, w)
}

// peelLeadingCarrier peeks the first top-level chunk of r. If it is a
// "meme" chunk whose data begins with the MemeDB magic, its data and pad
// byte are skipped (never buffered) and the total byte footprint removed
// (header + data + pad) is returned alongside the remaining reader.
// Otherwise the peeked bytes (the header, plus up to 4 data bytes of a
// "meme" chunk) are replayed in front of r via io.MultiReader and 0 is
// returned.
func peelLeadingCarrier(r io.Reader) (io.Reader, int, error) {
	typ, err := ioprim.ReadFullOrEOF(r, 4)
	if errors.Is(err, io.EOF) {
		return r, 0, nil
	} else if err != nil {
		return nil, 0, err
	}

	sizeBytes, err := ioprim.ReadFull(r, 4)
	if err != nil {
		return nil, 0, err
	}

	if string(typ) != carrierType {
		header := append(append([]byte{}, typ...), sizeBytes...)
		return io.MultiReader(bytes.NewReader(header), r), 0, nil
	}

	size := leUint32(sizeBytes)
	padded := int64(size) + int64(size&1)

	peek, err := ioprim.ReadFull(r, int(min(padded, 4)))
	if err != nil {
		return nil, 0, err
	}

	if !tagset.HasMagic(peek) { // not ours: copy it through.
		header := append(append(append([]byte{}, typ...), sizeBytes...), peek...)
		return io.MultiReader(bytes.NewReader(header), r), 0, nil
	}

	if err := ioprim.Skip(r, padded-int64(len(peek))); err != nil {
		return nil, 0, err
	}

	return r, 8 + int(padded), nil
}

// copyChunksVerbatim streams every remaining top-level chunk from r to w
// without buffering any chunk's data.
func copyChunksVerbatim(r io.Reader, w io.Writer) error {
	for {
		typ, err := ioprim.ReadFullOrEOF(r, 4)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		sizeBytes, err := ioprim.ReadFull(r, 4)
		if err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, typ); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, sizeBytes); err != nil {
			return err
		}

		size := leUint32(sizeBytes)
		padded := int64(size) + int64(size&1)

		if err := copyN(w, r, padded); err != nil {
			return err
		}
	}
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

func writeChunkHeader(w io.Writer, typ string, dataLen int) error {
	if err := ioprim.WriteBytes(w, []byte(typ)); err != nil {
		return err
	}

	return ioprim.WriteU32LE(w, uint32(dataLen))
}

func writePad(w io.Writer, dataLen int) error {
	if dataLen&1 == 1 {
		return ioprim.WriteBytes(w, []byte{0})
	}

	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
