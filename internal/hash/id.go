// Package hash provides the xxHash64 helper behind tagset.Set's
// order-independent fingerprint, which Set.Equal uses to rule out unequal
// sets without comparing their tags.
package hash

import "github.com/cespare/xxhash/v2"

// Tag computes the xxHash64 of a tag's bytes.
func Tag(data string) uint64 {
	return xxhash.Sum64String(data)
}
