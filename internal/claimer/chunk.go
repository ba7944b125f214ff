package claimer

import (
	"fmt"
	"slices"
)

// Chunk splits items into consecutive groups of at most size. The last group
// may be shorter. Concatenating the groups yields items unchanged.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		panic(fmt.Sprintf("claimer: chunk size must be at least 1, got %d", size))
	}
	return slices.Collect(slices.Chunk(items, size))
}
