// Package predictor drives the full prediction pipeline: it loads history and
// the knowledge base from the store, runs the statistics, asks the oracle and
// records the outcome.
//
// The statistics are valid whatever the oracle does, so oracle failures never
// abort a run: they are recorded on the prediction and reported. A reply from
// which no number can be extracted is likewise a normal outcome.
//
// Backtest replays the pipeline over past days using only the draws known at
// the time and checks each prediction against the real draws of the next day.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/llm"
	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// DefaultOracleTimeout bounds a single oracle call.
const DefaultOracleTimeout = 100 * time.Second

// ErrNotEnoughHistory is returned when a backtest asks for more days than
// the history can support.
var ErrNotEnoughHistory = errors.New("not enough days of history for backtest")

// errOracleDisabled is recorded on predictions made without an oracle.
var errOracleDisabled = errors.New("oracle disabled")

// Store is the persistence the predictor needs.
type Store interface {
	draws.Source
	LoadKnowledge(ctx context.Context) (models.KnowledgeBase, error)
	SavePrediction(ctx context.Context, p *models.Prediction) error
}

// ReplyCache remembers oracle replies by model and prompt.
type ReplyCache interface {
	Get(ctx context.Context, model, prompt string) (string, bool)
	Set(ctx context.Context, model, prompt, reply string) error
}

// Options configures a Predictor.
type Options struct {
	Analysis      analysis.Options
	Location      *time.Location
	OracleTimeout time.Duration
	Model         string     // Cache namespace
	Cache         ReplyCache // Optional
}

// Predictor runs predictions and backtests against a store and an oracle.
type Predictor struct {
	store  Store
	oracle llm.Oracle // nil disables the oracle
	opts   Options
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Predictor. oracle may be nil, in which case predictions carry
// the report and prompt but no numbers.
func New(store Store, oracle llm.Oracle, opts Options) *Predictor {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = DefaultOracleTimeout
	}
	return &Predictor{
		store:  store,
		oracle: oracle,
		opts:   opts,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Forecast is the outcome of Predict.
type Forecast struct {
	Prediction *models.Prediction
	Report     *analysis.CandidateReport
}

// Analyze loads history and runs the statistics for target without calling
// the oracle. A zero target means today.
func (p *Predictor) Analyze(ctx context.Context, target time.Time) (*analysis.Result, error) {
	history, kb, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Run(history, kb, p.targetOrToday(target), p.opts.Analysis)
}

// Predict runs the full pipeline for target (zero means today) and stores
// the resulting prediction.
func (p *Predictor) Predict(ctx context.Context, target time.Time) (*Forecast, error) {
	res, err := p.Analyze(ctx, target)
	if err != nil {
		return nil, err
	}
	report := &res.Report

	prompt := llm.BuildPrompt(report)
	prediction := &models.Prediction{
		ID:         uuid.New().String(),
		TargetDate: models.CivilDate(report.Target),
		LastDrawID: report.LastDraw.ID,
		Prompt:     prompt,
	}

	reply, cached, err := p.consult(ctx, prompt)
	prediction.Reply = reply
	prediction.Cached = cached
	if err != nil {
		prediction.Error = err.Error()
		logger.Warn("Oracle failed for %s: %v", prediction.TargetDate.Format(time.DateOnly), err)
	} else {
		prediction.Numbers = llm.ExtractNumbers(reply)
		if !prediction.Found() {
			logger.Info("No prediction found in oracle reply for %s", prediction.TargetDate.Format(time.DateOnly))
		}
	}
	prediction.CreatedAt = p.now()

	if err := p.store.SavePrediction(ctx, prediction); err != nil {
		logger.Error("Failed to persist prediction %s: %v", prediction.ID, err)
	}

	return &Forecast{Prediction: prediction, Report: report}, nil
}

// Backtest replays the last days days of history. For each day it predicts
// from the draws of all earlier days and counts a hit when any predicted
// number was drawn that day. pace is waited between days.
func (p *Predictor) Backtest(ctx context.Context, days int, pace time.Duration) (*models.BacktestSummary, error) {
	if days <= 0 {
		return nil, fmt.Errorf("backtest days must be positive, got %d", days)
	}

	history, kb, err := p.load(ctx)
	if err != nil {
		return nil, err
	}

	dates := uniqueDates(history)
	if len(dates) <= days {
		return nil, fmt.Errorf("%w: %d days available, %d requested", ErrNotEnoughHistory, len(dates), days)
	}

	summary := &models.BacktestSummary{
		ID:        uuid.New().String(),
		Days:      days,
		StartedAt: p.now(),
	}

	start := len(dates) - days - 1
	for i := start; i < len(dates)-1; i++ {
		previous, target := dates[i], dates[i+1]
		summary.Tested++
		logger.Info("Backtest day %d/%d: predicting %s", summary.Tested, days, target.Format(time.DateOnly))

		// history is ascending, so the known draws are a prefix
		cut := sort.Search(len(history), func(k int) bool {
			return history[k].Date().After(previous)
		})
		day := p.backtestDay(ctx, history[:cut], kb, target, drawnOn(history, target))

		if day.Skipped {
			summary.Skipped++
		} else if day.Hit {
			summary.Hits++
		}
		summary.Results = append(summary.Results, day)

		if i < len(dates)-2 && pace > 0 {
			if err := p.sleep(ctx, pace); err != nil {
				summary.FinishedAt = p.now()
				return summary, err
			}
		}
	}

	summary.FinishedAt = p.now()
	logger.Info("Backtest finished: %d hits over %d days (%d skipped)", summary.Hits, summary.Tested, summary.Skipped)
	return summary, nil
}

func (p *Predictor) backtestDay(ctx context.Context, known []models.Draw, kb models.KnowledgeBase, target time.Time, actual []int) models.BacktestDay {
	day := models.BacktestDay{TargetDate: target, Actual: actual}

	res, err := analysis.Run(known, kb, target, p.opts.Analysis)
	if err != nil {
		day.Skipped = true
		day.Error = err.Error()
		return day
	}

	reply, _, err := p.consult(ctx, llm.BuildPrompt(&res.Report))
	if err != nil {
		day.Skipped = true
		day.Error = err.Error()
		logger.Warn("Backtest oracle failed for %s: %v", target.Format(time.DateOnly), err)
		return day
	}

	day.Predicted = llm.ExtractNumbers(reply)
	if len(day.Predicted) == 0 {
		day.Skipped = true
		logger.Warn("Could not extract a prediction for %s", target.Format(time.DateOnly))
		return day
	}

	for _, n := range day.Predicted {
		if _, found := slices.BinarySearch(actual, n); found {
			day.Hit = true
			break
		}
	}
	logger.Debug("Backtest %s: predicted %v, drawn %v, hit=%t", target.Format(time.DateOnly), day.Predicted, actual, day.Hit)
	return day
}

// consult returns the oracle's reply for prompt, from the cache when possible.
func (p *Predictor) consult(ctx context.Context, prompt string) (string, bool, error) {
	if p.opts.Cache != nil {
		if reply, ok := p.opts.Cache.Get(ctx, p.opts.Model, prompt); ok {
			logger.Debug("Oracle reply served from cache")
			return reply, true, nil
		}
	}
	if p.oracle == nil {
		return "", false, errOracleDisabled
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.OracleTimeout)
	defer cancel()

	reply, err := p.oracle.Complete(callCtx, prompt)
	if err != nil {
		return "", false, fmt.Errorf("oracle call failed: %w", err)
	}

	if p.opts.Cache != nil {
		if err := p.opts.Cache.Set(ctx, p.opts.Model, prompt, reply); err != nil {
			logger.Warn("Failed to cache oracle reply: %v", err)
		}
	}
	return reply, false, nil
}

func (p *Predictor) load(ctx context.Context) ([]models.Draw, models.KnowledgeBase, error) {
	history, _, err := draws.Load(ctx, p.store, p.opts.Location)
	if err != nil {
		return nil, nil, err
	}
	if len(history) == 0 {
		return nil, nil, analysis.ErrNoDraws
	}

	kb, err := p.store.LoadKnowledge(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	return history, kb, nil
}

func (p *Predictor) targetOrToday(target time.Time) time.Time {
	if target.IsZero() {
		return models.CivilDate(p.now().In(p.opts.Location))
	}
	return target
}

// uniqueDates returns the calendar days of an ascending history.
func uniqueDates(history []models.Draw) []time.Time {
	var dates []time.Time
	for i := range history {
		d := history[i].Date()
		if len(dates) == 0 || !dates[len(dates)-1].Equal(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// drawnOn returns every number drawn on day, ascending.
func drawnOn(history []models.Draw, day time.Time) []int {
	var lists [][]int
	for i := range history {
		if history[i].Date().Equal(day) {
			lists = append(lists, history[i].Numbers)
		}
	}
	return models.UnionNumbers(lists...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
