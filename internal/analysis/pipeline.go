// Package analysis computes the draw statistics behind a prediction.
//
// Three independent analyzers read the same ascending, immutable draw history:
//
//	AnalyzeRelations         companions, precursors and followers per number
//	ComputeFormGap           recent frequency and dry spell per number
//	AnalyzeTemporalAffinity  numbers favoured on the target's day and month
//
// ScoreCandidates then combines their output with the last draw and the
// static knowledge base into a CandidateReport. Every function is pure and
// deterministic; Run executes the analyzers concurrently and joins them before
// scoring.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/rewired-gh/lotoracle/internal/models"
)

// ErrNoDraws is returned when there is no history to analyze.
var ErrNoDraws = errors.New("no draws to analyze")

// Options tunes the analyzers.
type Options struct {
	RelationWindow int `mapstructure:"relation_window"`
	FormWindow     int `mapstructure:"form_window"`
	RankLimit      int `mapstructure:"rank_limit"`
	TemporalTop    int `mapstructure:"temporal_top"`
	Candidates     int `mapstructure:"candidates"`
	MaxNumber      int `mapstructure:"max_number"`
}

// DefaultOptions returns the standard analysis parameters.
func DefaultOptions() Options {
	return Options{
		RelationWindow: DefaultRelationWindow,
		FormWindow:     DefaultFormWindow,
		RankLimit:      DefaultRankLimit,
		TemporalTop:    DefaultTemporalTop,
		Candidates:     DefaultCandidates,
		MaxNumber:      DefaultMaxNumber,
	}
}

// Validate checks that all options are usable.
func (o Options) Validate() error {
	if o.RelationWindow <= 0 {
		return fmt.Errorf("relation_window must be positive")
	}
	if o.FormWindow <= 0 {
		return fmt.Errorf("form_window must be positive")
	}
	if o.RankLimit <= 0 {
		return fmt.Errorf("rank_limit must be positive")
	}
	if o.TemporalTop <= 0 {
		return fmt.Errorf("temporal_top must be positive")
	}
	if o.Candidates <= 0 {
		return fmt.Errorf("candidates must be positive")
	}
	if o.MaxNumber <= 0 {
		return fmt.Errorf("max_number must be positive")
	}
	return nil
}

// Result bundles the analyzer outputs with the report built from them.
type Result struct {
	Relations RelationReport
	FormGap   FormGapTable
	Temporal  TemporalAffinity
	Report    CandidateReport
}

// Run analyzes draws (ascending by time) for the draw following the last one,
// using target as the calendar reference. kb may be nil.
func Run(draws []models.Draw, kb models.KnowledgeBase, target time.Time, opts Options) (*Result, error) {
	if len(draws) == 0 {
		return nil, ErrNoDraws
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis options: %w", err)
	}

	var res Result
	var wg conc.WaitGroup
	wg.Go(func() {
		res.Relations = analyzeRelations(draws, opts.RelationWindow, opts.RankLimit)
	})
	wg.Go(func() {
		res.FormGap = ComputeFormGap(draws, opts.FormWindow, opts.MaxNumber)
	})
	wg.Go(func() {
		res.Temporal = analyzeTemporalAffinity(draws, target, opts.TemporalTop)
	})
	wg.Wait()

	report := ScoreCandidates(draws[len(draws)-1], res.Relations, res.FormGap, kb, res.Temporal, opts.Candidates)
	report.Target = target
	report.DrawCount = len(draws)
	report.RelationWindow = opts.RelationWindow
	report.FormWindow = opts.FormWindow
	res.Report = report

	return &res, nil
}
