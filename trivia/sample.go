/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

// Sample returns n elements of items chosen uniformly at random without
// replacement, using a partial Fisher-Yates shuffle over a copy. If n is at
// least len(items), every element is returned in shuffled order. intN must
// return a uniform value in [0, n).
func Sample[T any](items []T, n int, intN func(int) int) []T {
	if n <= 0 || len(items) == 0 {
		return []T{}
	}

	pool := make([]T, len(items))
	copy(pool, items)

	if n > len(pool) {
		n = len(pool)
	}

	for i := 0; i < n; i++ {
		j := i + intN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:n]
}
