// Package safeconv converts text sizes and indexes between integer widths,
// panicking when a value does not fit.
package safeconv

import "math"

// MustIntToUint32 converts a line index, line length or offset to uint32.
// It panics on negative values and values above math.MaxUint32, which an
// in-memory document cannot produce.
func MustIntToUint32(v int) uint32 {
	if v < 0 || uint64(v) > math.MaxUint32 {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// MustIntToUint64 converts a non-negative size to uint64. It panics on
// negative values.
func MustIntToUint64(v int) uint64 {
	if v < 0 {
		panic("safeconv: negative int to uint64 conversion")
	}

	return uint64(v)
}
