package core

import "math/rand/v2"

// SampleIDs returns k distinct ids drawn uniformly without replacement.
// The input slice is not modified. Returns nil when fewer than k ids are
// available. Pass a seeded rand for deterministic tests.
func SampleIDs(rng *rand.Rand, ids []int, k int) []int {
	if k <= 0 || len(ids) < k {
		return nil
	}

	shuffled := make([]int, len(ids))
	copy(shuffled, ids)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return shuffled[:k]
}

// PickIndex returns a uniform random index in [0, n).
func PickIndex(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(n)
}
