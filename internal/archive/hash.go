package archive

import "github.com/cespare/xxhash/v2"

// filenameHash computes the hash used to prefilter FLDR scans by filename
// (spec.md §3 invariant 8: "the 16 low bits of the defined filename hash
// function"). Grounded on arloliu-mebo/internal/hash/id.go, which folds
// xxhash.Sum64String down to a domain-specific id the same way.
func filenameHash(name string) uint64 {
	return xxhash.Sum64String(name)
}
