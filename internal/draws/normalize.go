// Package draws turns raw draw rows from any source (CSV file, SQL store, results API)
// into validated, time-ordered models.Draw values. It is the only place where
// source-specific text is interpreted; everything downstream sees models.Draw.
package draws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// ErrSourceUnavailable marks a history source that could not be read at all,
// as opposed to one that was read and turned out empty.
var ErrSourceUnavailable = errors.New("draw source unavailable")

// RawDraw is one unvalidated row as produced by a source adapter.
type RawDraw struct {
	Timestamp string    // Free-form date text, parsed day-first
	At        time.Time // Typed instant; takes precedence over Timestamp when set
	Label     string
	Winning   string // Comma-separated numbers
	Machine   string // Comma-separated numbers
}

// Source yields raw rows. Implementations wrap ErrSourceUnavailable when the
// underlying file or store cannot be reached.
type Source interface {
	RawDraws(ctx context.Context) ([]RawDraw, error)
}

// Stats counts rows rejected during normalization.
type Stats struct {
	Read             int
	Accepted         int
	MissingTimestamp int
	BadTimestamp     int
	NoNumbers        int
}

// Dropped returns the total number of rejected rows.
func (s Stats) Dropped() int {
	return s.MissingTimestamp + s.BadTimestamp + s.NoNumbers
}

// timestampLayouts are tried in order; day-first forms come before ISO forms.
var timestampLayouts = []string{
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// ParseTimestamp parses draw date text in loc, trying day-first layouts first.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseNumbers parses a comma-separated list, silently discarding tokens that
// are not non-negative integers. The published order is preserved.
func ParseNumbers(s string) []int {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || !isDigits(tok) {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalize converts raw rows into draws sorted ascending by timestamp. Rows
// without a usable timestamp or without any number are dropped and counted.
// Ties keep their input order. Duplicates are not removed.
func Normalize(rows []RawDraw, loc *time.Location) ([]models.Draw, Stats) {
	stats := Stats{Read: len(rows)}
	out := make([]models.Draw, 0, len(rows))

	for _, row := range rows {
		ts := row.At
		if ts.IsZero() {
			if strings.TrimSpace(row.Timestamp) == "" {
				stats.MissingTimestamp++
				continue
			}
			parsed, err := ParseTimestamp(row.Timestamp, loc)
			if err != nil {
				stats.BadTimestamp++
				continue
			}
			ts = parsed
		}

		d := models.NewDraw(ts, strings.TrimSpace(row.Label), ParseNumbers(row.Winning), ParseNumbers(row.Machine))
		if len(d.Numbers) == 0 {
			stats.NoNumbers++
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	stats.Accepted = len(out)
	return out, stats
}

// Load reads every row from src and normalizes it.
func Load(ctx context.Context, src Source, loc *time.Location) ([]models.Draw, Stats, error) {
	rows, err := src.RawDraws(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to read draws: %w", err)
	}
	out, stats := Normalize(rows, loc)
	logger.Info("Loaded %d valid draws (%d rows read)", stats.Accepted, stats.Read)
	if stats.Dropped() > 0 {
		logger.Debug("Dropped rows: missing timestamp=%d, bad timestamp=%d, no numbers=%d",
			stats.MissingTimestamp, stats.BadTimestamp, stats.NoNumbers)
	}
	return out, stats, nil
}

// FormatNumbers renders numbers as the comma-separated text stored by sources.
func FormatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
