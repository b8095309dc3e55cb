package analysis

import (
	"time"

	"github.com/rewired-gh/lotoracle/internal/models"
)

// DefaultCandidates is the number of ranked candidates kept in a report.
const DefaultCandidates = 15

// Candidate is a number proposed for the next draw.
type Candidate struct {
	Number  int      `json:"number"`
	Score   int      `json:"score"`              // Summed follower counts from the last draw
	FormGap *FormGap `json:"form_gap,omitempty"` // Nil when outside the form/gap domain
}

// Confirmation records that the knowledge base lists Candidate as a companion
// of Source, a number of the last draw.
type Confirmation struct {
	Candidate int `json:"candidate"`
	Source    int `json:"source"`
}

// CandidateReport is everything a prompt needs about the next draw.
type CandidateReport struct {
	Target          time.Time        `json:"target"`
	LastDraw        models.Draw      `json:"last_draw"`
	DrawCount       int              `json:"draw_count"`
	RelationWindow  int              `json:"relation_window"`
	FormWindow      int              `json:"form_window"`
	Candidates      []Candidate      `json:"candidates"`
	Confirmations   []Confirmation   `json:"confirmations"`
	NoConfirmations bool             `json:"no_confirmations"`
	Temporal        TemporalAffinity `json:"temporal"`
}

// ScoreCandidates ranks the followers of the last draw's numbers by summed
// follower count, never proposing a number of the last draw itself, and cross
// references the survivors against the knowledge base.
//
// Ties keep the order in which candidates were first scored: last draw
// numbers in stored order, then each number's followers in rank order.
// A non-positive topN keeps DefaultCandidates.
func ScoreCandidates(last models.Draw, relations RelationReport, formGap FormGapTable,
	kb models.KnowledgeBase, temporal TemporalAffinity, topN int) CandidateReport {
	if topN <= 0 {
		topN = DefaultCandidates
	}
	scores := NewCounter()
	for _, m := range last.Numbers {
		rel, ok := relations[m]
		if !ok {
			continue
		}
		for _, f := range rel.Followers {
			if last.Contains(f.Number) {
				continue
			}
			scores.Add(f.Number, f.Count)
		}
	}

	ranked := scores.MostCommon(topN)
	candidates := make([]Candidate, 0, len(ranked))
	for _, p := range ranked {
		c := Candidate{Number: p.Number, Score: p.Count}
		if fg, ok := formGap[p.Number]; ok {
			c.FormGap = &fg
		}
		candidates = append(candidates, c)
	}

	confirmations := make([]Confirmation, 0)
	for _, c := range candidates {
		for _, m := range last.Numbers {
			if kb.Has(m, c.Number) {
				confirmations = append(confirmations, Confirmation{Candidate: c.Number, Source: m})
			}
		}
	}

	return CandidateReport{
		LastDraw:        last,
		Candidates:      candidates,
		Confirmations:   confirmations,
		NoConfirmations: len(confirmations) == 0,
		Temporal:        temporal,
	}
}
