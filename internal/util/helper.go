// Package util holds small generic helpers shared by the remregs packages.
package util

// CloneSlice returns a copy of src with length size, truncating or
// zero-extending as needed. A size of 0 copies src as is.
func CloneSlice[T any](src []T, size int) []T {
	if size == 0 {
		size = len(src)
	}

	clone := make([]T, size)
	copy(clone, src)

	return clone
}
