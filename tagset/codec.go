package tagset

import (
	"errors"

	"github.com/arloliu/memetag/endian"
	"github.com/arloliu/memetag/errs"
	"github.com/arloliu/memetag/internal/pool"
)

// magic is the 4-byte ASCII prefix identifying a MemeDB payload.
var magic = [4]byte{'M', 'E', 'M', 'E'}

var le = endian.GetLittleEndianEngine()

// HasMagic reports whether data begins with the MemeDB magic. A carrier
// element whose data lacks this prefix is not ours and must be treated as an
// opaque pass-through element by the dispatcher, never an error.
func HasMagic(data []byte) bool {
	return len(data) >= 4 && data[0] == magic[0] && data[1] == magic[1] && data[2] == magic[2] && data[3] == magic[3]
}

// Encode serializes a Set as a MemeDB payload:
//
//	4 bytes  "MEME"
//	4 bytes  tag count, little-endian uint32
//	for each tag, sorted lexicographically:
//	  4 bytes  tag length, little-endian uint32
//	  N bytes  tag data
func Encode(s *Set) []byte {
	buf := pool.GetCarrierBuffer()
	defer pool.PutCarrierBuffer(buf)

	buf.Write(magic[:])

	sorted := s.Sorted()

	var countBuf [4]byte
	le.PutUint32(countBuf[:], uint32(len(sorted)))
	buf.Write(countBuf[:])

	for _, t := range sorted {
		str := string(t)

		var lenBuf [4]byte
		le.PutUint32(lenBuf[:], uint32(len(str)))
		buf.Write(lenBuf[:])
		buf.Write([]byte(str))
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return out
}

// Decode parses a MemeDB payload back into a Set.
//
// Decode returns errs.ErrTagCodec if the magic is missing or any length or
// count field is truncated, and errs.ErrInvalidTag if a decoded tag fails
// the validity policy, guarding against hand-crafted payloads.
func Decode(data []byte) (*Set, error) {
	if !HasMagic(data) {
		return nil, errors.Join(errs.ErrTagCodec, errors.New("missing MEME magic"))
	}

	pos := 4
	count, err := readU32LE(data, &pos)
	if err != nil {
		return nil, err
	}

	// count is wire-supplied and fully untrusted; a single length-prefixed
	// tag needs at least 4 bytes, so cap the preallocation there instead of
	// trusting count directly, or a crafted count near 2^32 would attempt a
	// multi-gigabyte allocation before the truncation check below ever runs.
	prealloc := count
	if maxPossible := uint32(len(data) / 4); prealloc > maxPossible {
		prealloc = maxPossible
	}

	tags := make([]string, 0, prealloc)
	for i := uint32(0); i < count; i++ {
		n, err := readU32LE(data, &pos)
		if err != nil {
			return nil, err
		}

		if pos+int(n) > len(data) {
			return nil, errors.Join(errs.ErrTagCodec, errors.New("truncated tag data"))
		}

		tags = append(tags, string(data[pos:pos+int(n)]))
		pos += int(n)
	}

	if err := validateAll(tags); err != nil {
		return nil, err
	}

	s := New()
	for _, t := range tags {
		// Validity was already checked above; Add cannot fail here.
		_ = s.Add(Tag(t))
	}

	return s, nil
}

func readU32LE(data []byte, pos *int) (uint32, error) {
	if *pos+4 > len(data) {
		return 0, errors.Join(errs.ErrTagCodec, errors.New("truncated length field"))
	}

	v := le.Uint32(data[*pos : *pos+4])
	*pos += 4

	return v, nil
}
