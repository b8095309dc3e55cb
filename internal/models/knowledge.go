package models

import (
	"errors"
	"slices"
)

// KnowledgeBase maps a number to the set of its curated "companion" numbers.
// It comes from an external hand-maintained list and is independent of any
// computed statistic. A nil KnowledgeBase is valid and has no entries.
type KnowledgeBase map[int]map[int]struct{}

// NewKnowledgeBase returns an empty knowledge base.
func NewKnowledgeBase() KnowledgeBase {
	return make(KnowledgeBase)
}

// Add records companions for number. Repeated calls merge the sets.
func (kb KnowledgeBase) Add(number int, companions ...int) {
	set, ok := kb[number]
	if !ok {
		set = make(map[int]struct{}, len(companions))
		kb[number] = set
	}
	for _, c := range companions {
		set[c] = struct{}{}
	}
}

// Has reports whether companion is a known companion of number.
func (kb KnowledgeBase) Has(number, companion int) bool {
	set, ok := kb[number]
	if !ok {
		return false
	}
	_, ok = set[companion]
	return ok
}

// Companions returns the companions of number in ascending order.
func (kb KnowledgeBase) Companions(number int) []int {
	set := kb[number]
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Numbers returns every number that has an entry, ascending.
func (kb KnowledgeBase) Numbers() []int {
	out := make([]int, 0, len(kb))
	for n := range kb {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of rules.
func (kb KnowledgeBase) Len() int {
	return len(kb)
}

// Validate checks that no rule references a negative number.
func (kb KnowledgeBase) Validate() error {
	for n, set := range kb {
		if n < 0 {
			return errors.New("knowledge number must not be negative")
		}
		for c := range set {
			if c < 0 {
				return errors.New("knowledge companion must not be negative")
			}
		}
	}
	return nil
}
