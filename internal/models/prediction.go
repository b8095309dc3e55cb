package models

import (
	"errors"
	"time"
)

// Prediction is the outcome of one oracle round-trip for a target date.
// The statistics that fed the prompt are valid regardless of the oracle, so a
// Prediction is kept even when Error is set or no numbers could be extracted.
type Prediction struct {
	ID         string    `json:"id"`
	TargetDate time.Time `json:"target_date"`
	LastDrawID string    `json:"last_draw_id"`
	Prompt     string    `json:"prompt"`
	Reply      string    `json:"reply,omitempty"`
	Numbers    []int     `json:"numbers"`         // 0–2 numbers parsed from Reply
	Error      string    `json:"error,omitempty"` // Oracle failure, reported not raised
	Cached     bool      `json:"cached"`
	CreatedAt  time.Time `json:"created_at"`
}

// Found reports whether the reply yielded at least one number.
func (p *Prediction) Found() bool {
	return len(p.Numbers) > 0
}

// Validate checks that all prediction fields are valid.
func (p *Prediction) Validate() error {
	if p.ID == "" {
		return errors.New("prediction ID must not be empty")
	}
	if p.TargetDate.IsZero() {
		return errors.New("target date must not be zero")
	}
	if len(p.Numbers) > 2 {
		return errors.New("prediction must contain at most 2 numbers")
	}
	for _, n := range p.Numbers {
		if n < 0 {
			return errors.New("predicted numbers must not be negative")
		}
	}
	if p.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	return nil
}

// BacktestDay is the replay of a single historical day.
type BacktestDay struct {
	TargetDate time.Time `json:"target_date"`
	Predicted  []int     `json:"predicted"`
	Actual     []int     `json:"actual"`
	Hit        bool      `json:"hit"`
	Skipped    bool      `json:"skipped"` // No number could be extracted
	Error      string    `json:"error,omitempty"`
}

// BacktestSummary aggregates a backtest run.
type BacktestSummary struct {
	ID         string        `json:"id"`
	Days       int           `json:"days"`
	Tested     int           `json:"tested"`
	Hits       int           `json:"hits"`
	Skipped    int           `json:"skipped"`
	Results    []BacktestDay `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// HitRate returns hits over tested days as a percentage, or 0 when nothing was tested.
func (s *BacktestSummary) HitRate() float64 {
	if s.Tested == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Tested) * 100
}
