package tagset

import (
	"sort"

	"github.com/arloliu/memetag/internal/hash"
)

// Set is an unordered collection of unique, valid Tags.
//
// Set maintains an order-independent fingerprint: the XOR of each member
// tag's xxHash64 (via internal/hash). Since XOR is commutative and
// self-canceling, two sets with the same members always have the same
// fingerprint regardless of insertion order, and a differing fingerprint
// proves the sets differ without a single byte comparison. Equal uses this
// as a cheap pre-check, falling back to an exact string comparison only
// when fingerprints match, both to guard against the astronomically
// unlikely hash collision and to confirm equality rather than merely fail
// to disprove it.
type Set struct {
	tags        map[string]struct{}
	fingerprint uint64
	ordered     []string
}

// New creates an empty Set.
func New() *Set {
	return &Set{
		tags: make(map[string]struct{}),
	}
}

// NewFromStrings creates a Set from plain strings, validating each one.
// Returns errs.ErrInvalidTag on the first invalid tag.
func NewFromStrings(tags []string) (*Set, error) {
	s := New()
	for _, t := range tags {
		if err := s.Add(Tag(t)); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Add inserts t into the set. Returns errs.ErrInvalidTag if t fails the
// validity policy. Adding a tag already present is a no-op, not an error;
// the codec layer (not Set) is responsible for rejecting duplicate carriers
// found on the wire (errs.ErrDuplicateTags).
func (s *Set) Add(t Tag) error {
	str := string(t)
	if err := Validate(str); err != nil {
		return err
	}

	if _, ok := s.tags[str]; ok {
		return nil
	}

	s.tags[str] = struct{}{}
	s.fingerprint ^= hash.Tag(str)
	s.ordered = append(s.ordered, str)

	return nil
}

// Contains reports whether t is present in the set.
func (s *Set) Contains(t Tag) bool {
	_, ok := s.tags[string(t)]
	return ok
}

// Len returns the number of tags in the set.
func (s *Set) Len() int {
	return len(s.tags)
}

// Empty reports whether the set holds no tags.
func (s *Set) Empty() bool {
	return len(s.tags) == 0
}

// Tags returns the set's tags in insertion order.
func (s *Set) Tags() []Tag {
	out := make([]Tag, len(s.ordered))
	for i, t := range s.ordered {
		out[i] = Tag(t)
	}

	return out
}

// Sorted returns the set's tags sorted lexicographically by byte value, the
// deterministic order the MemeDB codec uses so write is reproducible.
func (s *Set) Sorted() []Tag {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	sort.Strings(out)

	tags := make([]Tag, len(out))
	for i, t := range out {
		tags[i] = Tag(t)
	}

	return tags
}

// Equal reports whether s and other contain exactly the same tags.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}

	if s.fingerprint != other.fingerprint {
		return false
	}

	for t := range s.tags {
		if _, ok := other.tags[t]; !ok {
			return false
		}
	}

	return true
}

// validateAll is used by the codec's decode path to surface errs.ErrInvalidTag
// for any tag that was well-formed on the wire but violates the validity
// policy, guarding against hand-crafted payloads.
func validateAll(tags []string) error {
	for _, t := range tags {
		if err := Validate(t); err != nil {
			return err
		}
	}

	return nil
}
