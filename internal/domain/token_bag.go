package domain

import "sort"

// TokenBag maps a token ID to the number of times the token occurred.
// The zero value is not usable for writes; use NewTokenBag or make.
type TokenBag map[int]int

// NewTokenBag creates an empty bag.
func NewTokenBag() TokenBag { return make(TokenBag) }

// Add increments the count of id by n, creating the entry when absent.
// Non-positive n is ignored so counts stay non-negative.
func (b TokenBag) Add(id, n int) {
	if n <= 0 {
		return
	}
	b[id] += n
}

// Merge adds every count in other into b.
func (b TokenBag) Merge(other TokenBag) {
	for id, n := range other {
		b.Add(id, n)
	}
}

// Len returns the number of distinct tokens in the bag.
func (b TokenBag) Len() int { return len(b) }

// Total returns the sum of all counts.
func (b TokenBag) Total() int {
	total := 0
	for _, n := range b {
		total += n
	}
	return total
}

// IDs returns the token IDs in ascending order.
func (b TokenBag) IDs() []int {
	ids := make([]int, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
