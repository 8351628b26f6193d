// Package gif implements the GIF format dispatcher: reading and writing a
// MemeDB tag payload carried in an Application Extension block.
//
// Layout: a 6-byte signature ("GIF87a" or "GIF89a"), a 7-byte Logical Screen
// Descriptor, an optional Global Color Table sized from the LSD's packed
// field, then a sequence of blocks (Image Descriptors, Extensions, and the
// Trailer 0x3B). An Image Descriptor starts with 0x2C, a 9-byte fixed
// header, an optional Local Color Table sized from the header's packed
// field the same way the LSD sizes the Global Color Table, then a 1-byte
// LZW minimum code size and the image data as a sub-block stream. Extension
// blocks start with 0x21, a label byte, and one or more length-prefixed
// sub-blocks terminated by a zero-length sub-block. An Application
// Extension's first sub-block is its 11-byte identifier and authentication
// code.
package gif

import (
	"bytes"
	"io"

	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/ioprim"
	"github.com/arloliu/memetag/tagset"
)

const (
	blockImageDescriptor = 0x2C
	blockExtension       = 0x21
	blockTrailer         = 0x3B

	labelApplication = 0xFF

	logicalScreenDescLen = 7
	appIdentifierLen     = 11
	imageDescriptorLen   = 9
)

// ApplicationIdentifier is the 11-byte application identifier and
// authentication code used to mark the carrier Application Extension.
const ApplicationIdentifier = "MEMEDBMEMES"

var (
	gif87a = [6]byte{'G', 'I', 'F', '8', '7', 'a'}
	gif89a = [6]byte{'G', 'I', 'F', '8', '9', 'a'}
)

// Read consumes a GIF stream and returns its tag set, empty if no
// MEMEDBMEMES Application Extension is present.
func Read(r io.Reader) (*tagset.Set, error) {
	_, lsd, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	if err := skipGlobalColorTable(r, lsd); err != nil {
		return nil, err
	}

	var found *tagset.Set

	for {
		lead, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return nil, err
		}

		if lead[0] == blockTrailer {
			return emptyIfNil(found), nil
		}

		if lead[0] == blockImageDescriptor {
			if err := skipImageDescriptor(r); err != nil {
				return nil, err
			}

			continue
		}

		if lead[0] != blockExtension {
			return nil, errs.NewFormatError("gif", "unrecognized block introducer")
		}

		label, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return nil, err
		}

		ident, payload, err := readSubBlocks(r, label[0])
		if err != nil {
			return nil, err
		}

		if label[0] != labelApplication || ident != ApplicationIdentifier {
			continue
		}

		if !tagset.HasMagic(payload) {
			continue
		}

		if found != nil {
			return nil, errs.ErrDuplicateTags
		}

		found, err = tagset.Decode(payload)
		if err != nil {
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

// Write consumes a GIF stream and emits a rewritten stream to w carrying
// tags as its MemeDB payload, inserted as the first block after the Global
// Color Table.
func Write(r io.Reader, w io.Writer, tags *tagset.Set) error {
	sig, lsd, err := readHeader(r)
	if err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, sig[:]); err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, lsd); err != nil {
		return err
	}

	gctSize := globalColorTableSize(lsd)
	if gctSize > 0 {
		gct, err := ioprim.ReadFull(r, gctSize)
		if err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, gct); err != nil {
			return err
		}
	}

	if !tags.Empty() {
		if err := writeCarrierExtension(w, tags); err != nil {
			return err
		}
	}

	for {
		lead, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return err
		}

		if lead[0] == blockTrailer {
			return ioprim.WriteBytes(w, []byte{blockTrailer})
		}

		if lead[0] == blockImageDescriptor {
			if err := copyImageDescriptor(r, w); err != nil {
				return err
			}

			continue
		}

		if lead[0] != blockExtension {
			return errs.NewFormatError("gif", "unrecognized block introducer")
		}

		label, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return err
		}

		var raw bytes.Buffer

		ident, payload, err := readSubBlocks(io.TeeReader(r, &raw), label[0])
		if err != nil {
			return err
		}

		if label[0] == labelApplication && ident == ApplicationIdentifier && tagset.HasMagic(payload) {
			continue // drop pre-existing carrier.
		}

		if err := ioprim.WriteBytes(w, []byte{blockExtension, label[0]}); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, raw.Bytes()); err != nil { // sub-blocks copied verbatim.
			return err
		}
	}
}

func readHeader(r io.Reader) ([6]byte, []byte, error) {
	var sig [6]byte

	got, err := ioprim.ReadFull(r, 6)
	if err != nil {
		return sig, nil, err
	}

	copy(sig[:], got)
	if sig != gif87a && sig != gif89a {
		return sig, nil, errs.NewFormatError("gif", "bad signature")
	}

	lsd, err := ioprim.ReadFull(r, logicalScreenDescLen)
	if err != nil {
		return sig, nil, err
	}

	return sig, lsd, nil
}

// globalColorTableSize returns the byte size of the Global Color Table
// implied by the LSD's packed field (byte index 4), 0 if none is present.
func globalColorTableSize(lsd []byte) int {
	return colorTableSize(lsd[4])
}

// colorTableSize returns the byte size of a color table implied by a packed
// field (the LSD's byte 4 for a Global Color Table, an Image Descriptor's
// byte 8 for a Local Color Table): both pack a presence flag in bit 7 and
// the table's size exponent in bits 0-2, giving 2^(n+1) 3-byte RGB entries.
func colorTableSize(packed byte) int {
	if packed&0x80 == 0 {
		return 0
	}

	tableSizeBits := packed & 0x07
	entries := 2 << tableSizeBits

	return entries * 3
}

func skipGlobalColorTable(r io.Reader, lsd []byte) error {
	n := globalColorTableSize(lsd)
	if n == 0 {
		return nil
	}

	return ioprim.Skip(r, int64(n))
}

// skipImageDescriptor discards an Image Descriptor block (its 0x2C
// introducer already consumed by the caller): the 9-byte fixed header, an
// optional Local Color Table, the LZW minimum code size byte, and the
// length-prefixed image data sub-blocks.
func skipImageDescriptor(r io.Reader) error {
	hdr, err := ioprim.ReadFull(r, imageDescriptorLen)
	if err != nil {
		return err
	}

	if n := colorTableSize(hdr[8]); n > 0 {
		if err := ioprim.Skip(r, int64(n)); err != nil {
			return err
		}
	}

	if _, err := ioprim.ReadFull(r, 1); err != nil { // LZW minimum code size.
		return err
	}

	return skipSubBlockStream(r)
}

// copyImageDescriptor copies an Image Descriptor block to w verbatim (the
// 0x2C introducer already consumed by the caller, and rewritten here): the
// 9-byte fixed header, an optional Local Color Table, the LZW minimum code
// size byte, and the length-prefixed image data sub-blocks.
func copyImageDescriptor(r io.Reader, w io.Writer) error {
	if err := ioprim.WriteBytes(w, []byte{blockImageDescriptor}); err != nil {
		return err
	}

	hdr, err := ioprim.ReadFull(r, imageDescriptorLen)
	if err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, hdr); err != nil {
		return err
	}

	if n := colorTableSize(hdr[8]); n > 0 {
		lct, err := ioprim.ReadFull(r, n)
		if err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, lct); err != nil {
			return err
		}
	}

	lzwMinCodeSize, err := ioprim.ReadFull(r, 1)
	if err != nil {
		return err
	}

	if err := ioprim.WriteBytes(w, lzwMinCodeSize); err != nil {
		return err
	}

	return copySubBlockStream(r, w)
}

// skipSubBlockStream discards a length-prefixed sub-block stream until its
// zero-length terminator, the same framing readSubBlocks parses for
// extensions but here used for an Image Descriptor's image data, whose
// content this dispatcher never needs to inspect.
func skipSubBlockStream(r io.Reader) error {
	for {
		lenByte, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return err
		}

		n := int(lenByte[0])
		if n == 0 {
			return nil
		}

		if err := ioprim.Skip(r, int64(n)); err != nil {
			return err
		}
	}
}

// copySubBlockStream copies a length-prefixed sub-block stream to w
// verbatim, including the zero-length terminator.
func copySubBlockStream(r io.Reader, w io.Writer) error {
	for {
		lenByte, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, lenByte); err != nil {
			return err
		}

		n := int(lenByte[0])
		if n == 0 {
			return nil
		}

		chunk, err := ioprim.ReadFull(r, n)
		if err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, chunk); err != nil {
			return err
		}
	}
}

// readSubBlocks reads an extension's sub-block stream after its label byte
// until the zero-length terminator. For an Application Extension the first
// sub-block is its 11-byte identifier, returned separately from the
// concatenated data of the remaining sub-blocks.
func readSubBlocks(r io.Reader, label byte) (ident string, payload []byte, err error) {
	first := true

	for {
		lenByte, err := ioprim.ReadFull(r, 1)
		if err != nil {
			return "", nil, err
		}

		n := int(lenByte[0])
		if n == 0 {
			return ident, payload, nil
		}

		chunk, err := ioprim.ReadFull(r, n)
		if err != nil {
			return "", nil, err
		}

		if first && label == labelApplication && n == appIdentifierLen {
			ident = string(chunk)
		} else {
			payload = append(payload, chunk...)
		}

		first = false
	}
}

func writeCarrierExtension(w io.Writer, tags *tagset.Set) error {
	return writeExtension(w, labelApplication, ApplicationIdentifier, tagset.Encode(tags))
}

func writeExtension(w io.Writer, label byte, ident string, payload []byte) error {
	if err := ioprim.WriteBytes(w, []byte{blockExtension, label}); err != nil {
		return err
	}

	if ident != "" {
		if err := ioprim.WriteBytes(w, []byte{appIdentifierLen}); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, []byte(ident)); err != nil {
			return err
		}
	}

	for len(payload) > 0 {
		n := len(payload)
		if n > 255 {
			n = 255
		}

		if err := ioprim.WriteBytes(w, []byte{byte(n)}); err != nil {
			return err
		}

		if err := ioprim.WriteBytes(w, payload[:n]); err != nil {
			return err
		}

		payload = payload[n:]
	}

	return ioprim.WriteBytes(w, []byte{0})
}
