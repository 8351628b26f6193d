// Package tagset implements memetag's Tag and Tag set types: the validity
// policy a byte sequence must satisfy to be a tag, the deterministic
// self-delimited MemeDB wire encoding of a tag set, and a Set type with O(1)
// duplicate detection.
package tagset

import (
	"unicode/utf8"

	"github.com/arloliu/memetag/errs"
)

// Tag is a single user-supplied text tag. A Tag must be valid UTF-8,
// non-empty, free of control characters, and no longer than 2^32-1 bytes to
// be accepted by Write or returned by Read; see IsValid.
type Tag string

// IsValid reports whether s satisfies the tag validity policy: non-empty,
// valid UTF-8, no control characters (code points < 0x20 or 0x7F), and a
// byte length that fits in 32 bits.
func IsValid(s string) bool {
	if len(s) == 0 {
		return false
	}

	if uint64(len(s)) > maxUint32 {
		return false
	}

	if !utf8.ValidString(s) {
		return false
	}

	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			return false
		}
	}

	return true
}

const maxUint32 = 1<<32 - 1

// Validate returns errs.ErrInvalidTag if s fails the tag validity policy,
// nil otherwise.
func Validate(s string) error {
	if !IsValid(s) {
		return errs.ErrInvalidTag
	}

	return nil
}
