// Package models defines the core domain entities for the lotoracle application.
// These models represent lottery draws, the static companion knowledge base,
// oracle predictions and backtest summaries.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology:
//   - Draw: one lottery event (identified by its time and name) yielding winning
//     numbers and, for most games, a second set of machine numbers.
//   - Drawn numbers: the union of winning and machine numbers. This is the set
//     every statistic is computed over.
package models

import (
	"errors"
	"regexp"
	"slices"
	"time"
)

// Draw is a normalized, immutable lottery draw.
type Draw struct {
	ID        string    `json:"id"`        // Deduplication key: "YYYYMMDDhhmm_<label>"
	Timestamp time.Time `json:"timestamp"` // Local draw time
	Label     string    `json:"label"`     // Draw name, e.g. "Fortune Thursday"
	Winning   []int     `json:"winning"`   // Winning numbers in published order
	Machine   []int     `json:"machine"`   // Machine numbers in published order
	Numbers   []int     `json:"numbers"`   // Winning ∪ Machine, ascending, no duplicates
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DrawID builds the persistence key of a draw from its time and label.
// Two draws with the same minute and label are considered the same draw.
func DrawID(ts time.Time, label string) string {
	return ts.Format("200601021504") + "_" + nonAlphanumeric.ReplaceAllString(label, "")
}

// NewDraw assembles a Draw, deriving its ID and the drawn number set.
func NewDraw(ts time.Time, label string, winning, machine []int) Draw {
	return Draw{
		ID:        DrawID(ts, label),
		Timestamp: ts,
		Label:     label,
		Winning:   winning,
		Machine:   machine,
		Numbers:   UnionNumbers(winning, machine),
	}
}

// UnionNumbers returns the ascending, duplicate-free union of the given lists.
func UnionNumbers(lists ...[]int) []int {
	var out []int
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether n was drawn.
func (d *Draw) Contains(n int) bool {
	_, found := slices.BinarySearch(d.Numbers, n)
	return found
}

// Date returns the calendar day of the draw at midnight in the draw's location.
func (d *Draw) Date() time.Time {
	return CivilDate(d.Timestamp)
}

// CivilDate truncates t to midnight in its own location.
func CivilDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}

// Validate checks that all draw fields are valid.
func (d *Draw) Validate() error {
	if d.Timestamp.IsZero() {
		return errors.New("draw timestamp must not be zero")
	}
	if len(d.Numbers) == 0 {
		return errors.New("draw must contain at least one number")
	}
	if !slices.IsSorted(d.Numbers) {
		return errors.New("drawn numbers must be sorted ascending")
	}
	for _, n := range d.Numbers {
		if n < 0 {
			return errors.New("drawn numbers must not be negative")
		}
	}
	return nil
}
