package analysis

import "github.com/rewired-gh/lotoracle/internal/models"

// Default relation parameters.
const (
	DefaultRelationWindow = 3
	DefaultRankLimit      = 50
)

// Relations holds the ranked associations of one number.
//
//	Companions: numbers drawn in the same draw (symmetric).
//	Precursors: numbers drawn in the window draws before a draw containing it.
//	Followers:  numbers drawn in the window draws after a draw containing it.
type Relations struct {
	Companions []Pair `json:"companions"`
	Precursors []Pair `json:"precursors"`
	Followers  []Pair `json:"followers"`
}

// RelationReport maps every drawn number to its relations.
type RelationReport map[int]Relations

type relationCounters struct {
	companions *Counter
	precursors *Counter
	followers  *Counter
}

// AnalyzeRelations scans draws in ascending time order and ranks, for every
// number, its companions, precursors and followers within window draws.
func AnalyzeRelations(draws []models.Draw, window int) RelationReport {
	return analyzeRelations(draws, window, DefaultRankLimit)
}

func analyzeRelations(draws []models.Draw, window, limit int) RelationReport {
	counters := make(map[int]*relationCounters)
	get := func(n int) *relationCounters {
		rc, ok := counters[n]
		if !ok {
			rc = &relationCounters{companions: NewCounter(), precursors: NewCounter(), followers: NewCounter()}
			counters[n] = rc
		}
		return rc
	}

	total := len(draws)
	for i := range draws {
		nums := draws[i].Numbers

		for _, n := range nums {
			rc := get(n)
			for _, other := range nums {
				if other != n {
					rc.companions.Add(other, 1)
				}
			}
		}

		for j := max(0, i-window); j < i; j++ {
			for _, n := range nums {
				get(n).precursors.Update(draws[j].Numbers)
			}
		}

		for j := i + 1; j < min(total, i+1+window); j++ {
			for _, n := range nums {
				get(n).followers.Update(draws[j].Numbers)
			}
		}
	}

	report := make(RelationReport, len(counters))
	for n, rc := range counters {
		report[n] = Relations{
			Companions: rc.companions.MostCommon(limit),
			Precursors: rc.precursors.MostCommon(limit),
			Followers:  rc.followers.MostCommon(limit),
		}
	}
	return report
}
