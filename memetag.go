// Package memetag reads and writes user-supplied text tags embedded into
// GIF, JPEG, PNG, RIFF (WebP/WAVE/AVI), and ISOBMFF (MP4/HEIF) media
// container files, without disturbing the host file's decodability.
//
// Each supported format carries the tag set in a private, format-native
// location — an ancillary chunk, marker segment, extension block, or leaf
// box — chosen so that decoders ignorant of memetag skip over it
// transparently. A single deterministic wire encoding, MemeDB, is shared
// across all five formats; see the tagset package for its layout.
//
// # Basic usage
//
//	tags, err := memetag.Read(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	newTags, _ := tagset.NewFromStrings([]string{"sunset", "beach"})
//	err = memetag.Write(f, out, newTags)
//
// Format identification happens automatically: Read and Write inspect the
// input's leading bytes and dispatch to the matching format's codec. Errors
// are drawn from the closed taxonomy in the errs package; callers wanting
// to distinguish a specific failure should use errors.Is against errs'
// sentinel values.
package memetag

import (
	"io"

	"github.com/arloliu/memetag/container"
	"github.com/arloliu/memetag/isobmff"
	"github.com/arloliu/memetag/tagset"
)

// WithLenientISOBMFFFirstBox relaxes Write's default requirement that an
// ISOBMFF stream's first top-level box be ftyp. It has no effect on the
// other four formats.
func WithLenientISOBMFFFirstBox() isobmff.Option {
	return isobmff.WithLenientFirstBox()
}

// Read identifies source's container format and returns its tag set, empty
// if the file carries no tags. Returns errs.ErrUnknownFormat if the format
// is not one of the five supported families, or a FormatError wrapping
// errs.ErrFormatStructure if the input is structurally invalid for its
// identified format.
func Read(source io.Reader) (*tagset.Set, error) {
	return container.Read(source)
}

// Write identifies source's container format and emits a rewritten stream
// to sink carrying tags as the new tag set, replacing whatever tags (if
// any) source already carried. Passing an empty tags erases any existing
// carrier, leaving the file tagless (for RIFF, see riff.Write for which
// carrier chunks are removed). Write never mutates the bytes of any
// element it does not own — other chunks, segments, and boxes pass through
// unchanged. isobmffOpts configures ISOBMFF-specific behavior (see
// WithLenientISOBMFFFirstBox) and is ignored for every other format.
func Write(source io.Reader, sink io.Writer, tags *tagset.Set, isobmffOpts ...isobmff.Option) error {
	return container.Write(source, sink, tags, isobmffOpts...)
}

// IsTagValid reports whether s would be accepted as a tag by Write: it must
// be non-empty, valid UTF-8, free of control characters, and no longer than
// 2^32-1 bytes.
func IsTagValid(s string) bool {
	return tagset.IsValid(s)
}

// NewTagSet creates a tag set from plain strings, validating each one.
// Returns errs.ErrInvalidTag on the first invalid string.
func NewTagSet(tags ...string) (*tagset.Set, error) {
	return tagset.NewFromStrings(tags)
}

// Codec is a convenience wrapper bundling Read and Write behind a type,
// for callers that prefer a value to pass around over the bare package
// functions.
type Codec struct{}

// NewCodec creates a Codec. Codec holds no state; every call is independent
// and safe to use from multiple goroutines concurrently.
func NewCodec() Codec {
	return Codec{}
}

// Read delegates to the package-level Read.
func (Codec) Read(source io.Reader) (*tagset.Set, error) {
	return Read(source)
}

// Write delegates to the package-level Write.
func (Codec) Write(source io.Reader, sink io.Writer, tags *tagset.Set, isobmffOpts ...isobmff.Option) error {
	return Write(source, sink, tags, isobmffOpts...)
}
