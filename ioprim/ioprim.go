// Package ioprim provides the fixed-width, forward-only byte I/O primitives
// shared by every format dispatcher: exact-length reads, positional skips,
// and big/little-endian fixed-width integer reads and writes.
//
// Every primitive operates on a plain io.Reader / io.Writer. Dispatchers
// never seek backward and never require random access, so these helpers
// only ever consume forward.
package ioprim

import (
	"errors"
	"io"

	"github.com/arloliu/memetag/endian"
	"github.com/arloliu/memetag/errs"
)

var (
	be = endian.GetBigEndianEngine()
	le = endian.GetLittleEndianEngine()
)

// Source is the input byte stream a dispatcher reads from.
type Source = io.Reader

// Sink is the output byte stream a dispatcher writes to.
type Sink = io.Writer

// ReadFull reads exactly n bytes from r, translating any EOF or short-read
// failure into errs.ErrUnexpectedEof and other failures into errs.ErrIo.
func ReadFull(r Source, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, wrapReadErr(err)
	}

	return buf, nil
}

// ReadFullOrEOF behaves like ReadFull, except that if the stream ends before
// any of the n bytes are available it returns io.EOF unwrapped instead of
// errs.ErrUnexpectedEof. Dispatchers use this at the start of each
// structural element to tell "no more elements" apart from a truncated one.
func ReadFullOrEOF(r Source, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, wrapReadErr(err)
	}

	return buf, nil
}

// Skip advances r by exactly n bytes without materializing them.
func Skip(r Source, n int64) error {
	if n <= 0 {
		return nil
	}

	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return wrapReadErr(err)
	}

	return nil
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.ErrUnexpectedEof
	}

	return errors.Join(errs.ErrIo, err)
}

// ReadU16BE reads a big-endian uint16.
func ReadU16BE(r Source) (uint16, error) {
	b, err := ReadFull(r, 2)
	if err != nil {
		return 0, err
	}

	return be.Uint16(b), nil
}

// ReadU32BE reads a big-endian uint32.
func ReadU32BE(r Source) (uint32, error) {
	b, err := ReadFull(r, 4)
	if err != nil {
		return 0, err
	}

	return be.Uint32(b), nil
}

// ReadU64BE reads a big-endian uint64.
func ReadU64BE(r Source) (uint64, error) {
	b, err := ReadFull(r, 8)
	if err != nil {
		return 0, err
	}

	return be.Uint64(b), nil
}

// ReadU32BEOrEOF reads a big-endian uint32, returning io.EOF unwrapped if
// the stream ends before any bytes are available (see ReadFullOrEOF).
func ReadU32BEOrEOF(r Source) (uint32, error) {
	b, err := ReadFullOrEOF(r, 4)
	if err != nil {
		return 0, err
	}

	return be.Uint32(b), nil
}

// ReadU16LE reads a little-endian uint16.
func ReadU16LE(r Source) (uint16, error) {
	b, err := ReadFull(r, 2)
	if err != nil {
		return 0, err
	}

	return le.Uint16(b), nil
}

// ReadU32LE reads a little-endian uint32.
func ReadU32LE(r Source) (uint32, error) {
	b, err := ReadFull(r, 4)
	if err != nil {
		return 0, err
	}

	return le.Uint32(b), nil
}

// ReadU64LE reads a little-endian uint64.
func ReadU64LE(r Source) (uint64, error) {
	b, err := ReadFull(r, 8)
	if err != nil {
		return 0, err
	}

	return le.Uint64(b), nil
}

// WriteBytes writes b to w verbatim, translating sink failures to errs.ErrIo.
func WriteBytes(w Sink, b []byte) error {
	if len(b) == 0 {
		return nil
	}

	if _, err := w.Write(b); err != nil {
		return errors.Join(errs.ErrIo, err)
	}

	return nil
}

// WriteU16BE writes v as big-endian.
func WriteU16BE(w Sink, v uint16) error {
	var b [2]byte
	be.PutUint16(b[:], v)

	return WriteBytes(w, b[:])
}

// WriteU32BE writes v as big-endian.
func WriteU32BE(w Sink, v uint32) error {
	var b [4]byte
	be.PutUint32(b[:], v)

	return WriteBytes(w, b[:])
}

// WriteU64BE writes v as big-endian.
func WriteU64BE(w Sink, v uint64) error {
	var b [8]byte
	be.PutUint64(b[:], v)

	return WriteBytes(w, b[:])
}

// WriteU16LE writes v as little-endian.
func WriteU16LE(w Sink, v uint16) error {
	var b [2]byte
	le.PutUint16(b[:], v)

	return WriteBytes(w, b[:])
}

// WriteU32LE writes v as little-endian.
func WriteU32LE(w Sink, v uint32) error {
	var b [4]byte
	le.PutUint32(b[:], v)

	return WriteBytes(w, b[:])
}

// WriteU64LE writes v as little-endian.
func WriteU64LE(w Sink, v uint64) error {
	var b [8]byte
	le.PutUint64(b[:], v)

	return WriteBytes(w, b[:])
}
