package analysis

import "sort"

// Pair is a number with an occurrence count or accumulated score.
type Pair struct {
	Number int `json:"number"`
	Count  int `json:"count"`
}

// Counter is a multiset of numbers that remembers the order in which each
// number was first counted. Ranking ties are broken by that order, which makes
// every ranked list a deterministic function of the input sequence.
type Counter struct {
	index map[int]int // number -> position in pairs
	pairs []Pair
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{index: make(map[int]int)}
}

// Add increases the count of n by delta.
func (c *Counter) Add(n, delta int) {
	if i, ok := c.index[n]; ok {
		c.pairs[i].Count += delta
		return
	}
	c.index[n] = len(c.pairs)
	c.pairs = append(c.pairs, Pair{Number: n, Count: delta})
}

// Update counts every number in nums once.
func (c *Counter) Update(nums []int) {
	for _, n := range nums {
		c.Add(n, 1)
	}
}

// Get returns the count of n, zero when never counted.
func (c *Counter) Get(n int) int {
	if i, ok := c.index[n]; ok {
		return c.pairs[i].Count
	}
	return 0
}

// Len returns the number of distinct numbers counted.
func (c *Counter) Len() int {
	return len(c.pairs)
}

// MostCommon returns up to k pairs ordered by count descending, ties in
// first-seen order. k <= 0 returns every pair. The result is never nil.
func (c *Counter) MostCommon(k int) []Pair {
	ranked := make([]Pair, len(c.pairs))
	copy(ranked, c.pairs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
