package analysis

import (
	"slices"

	"github.com/rewired-gh/lotoracle/internal/models"
)

// Default form/gap parameters.
const (
	DefaultFormWindow = 50
	DefaultMaxNumber  = 90
)

// FormGap describes how a number behaved over the most recent draws.
type FormGap struct {
	Number int `json:"number"`
	Form   int `json:"form"` // Draws in the window containing the number
	Gap    int `json:"gap"`  // Most recent draws without the number
}

// FormGapTable maps every number of the domain to its entry.
type FormGapTable map[int]FormGap

// Entries returns the table ordered by number.
func (t FormGapTable) Entries() []FormGap {
	out := make([]FormGap, 0, len(t))
	for _, e := range t {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b FormGap) int { return a.Number - b.Number })
	return out
}

// ComputeFormGap evaluates numbers 1..maxNumber over the last window draws,
// or over all draws when history is shorter.
//
// A number absent from the whole slice gets gap = window even when the slice
// is shorter than window.
func ComputeFormGap(draws []models.Draw, window, maxNumber int) FormGapTable {
	recent := draws[min(len(draws), max(0, len(draws)-window)):]

	table := make(FormGapTable, max(0, maxNumber))
	for n := 1; n <= maxNumber; n++ {
		form := 0
		for i := range recent {
			if recent[i].Contains(n) {
				form++
			}
		}

		gap := 0
		for i := len(recent) - 1; i >= 0; i-- {
			if recent[i].Contains(n) {
				break
			}
			gap++
		}
		if gap == len(recent) && form == 0 {
			gap = window
		}

		table[n] = FormGap{Number: n, Form: form, Gap: gap}
	}
	return table
}
