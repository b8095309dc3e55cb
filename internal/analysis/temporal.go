package analysis

import (
	"time"

	"github.com/rewired-gh/lotoracle/internal/models"
)

// DefaultTemporalTop is the length of each temporal affinity list.
const DefaultTemporalTop = 5

// TemporalAffinity lists the numbers most often drawn, before the target
// date, on the same day of the month and in the same month as the target.
type TemporalAffinity struct {
	Day          int        `json:"day"`
	Month        time.Month `json:"month"`
	ByDayOfMonth []Pair     `json:"by_day_of_month"`
	ByMonth      []Pair     `json:"by_month"`
}

// civilKey orders calendar days without regard to location.
func civilKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// AnalyzeTemporalAffinity counts numbers drawn strictly before the target's
// calendar day, keyed by day of month and by month, and keeps the top entries.
func AnalyzeTemporalAffinity(draws []models.Draw, target time.Time) TemporalAffinity {
	return analyzeTemporalAffinity(draws, target, DefaultTemporalTop)
}

func analyzeTemporalAffinity(draws []models.Draw, target time.Time, top int) TemporalAffinity {
	targetKey := civilKey(target)
	day, month := target.Day(), target.Month()

	byDay, byMonth := NewCounter(), NewCounter()
	for i := range draws {
		ts := draws[i].Timestamp
		if civilKey(ts) >= targetKey {
			continue
		}
		if ts.Day() == day {
			byDay.Update(draws[i].Numbers)
		}
		if ts.Month() == month {
			byMonth.Update(draws[i].Numbers)
		}
	}

	return TemporalAffinity{
		Day:          day,
		Month:        month,
		ByDayOfMonth: byDay.MostCommon(top),
		ByMonth:      byMonth.MostCommon(top),
	}
}
