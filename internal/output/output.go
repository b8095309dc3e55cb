// Package output renders candidate reports, predictions and backtest
// summaries for the command line as a table, JSON or CSV.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// Colors for table output.
var (
	HitColor       = color.New(color.FgGreen, color.Bold)
	MissColor      = color.New(color.FgRed)
	SkipColor      = color.New(color.FgYellow)
	ConfirmedColor = color.New(color.FgCyan, color.Bold)
)

// ParseFormat validates an output format name. Empty means table.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or csv)", s)
	}
}

// WriteReport writes a candidate report in the given format.
func WriteReport(w io.Writer, report *analysis.CandidateReport, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatCSV:
		return writeReportCSV(w, report)
	default:
		return writeReportTable(w, report)
	}
}

// WritePrediction writes a report followed by the oracle's prediction.
func WritePrediction(w io.Writer, p *models.Prediction, report *analysis.CandidateReport, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, struct {
			Prediction *models.Prediction        `json:"prediction"`
			Report     *analysis.CandidateReport `json:"report"`
		}{p, report})
	case FormatCSV:
		cw := csv.NewWriter(w)
		records := [][]string{
			{"target_date", "last_draw_id", "numbers", "cached", "error"},
			{p.TargetDate.Format("2006-01-02"), p.LastDrawID, joinNumbers(p.Numbers, " "),
				strconv.FormatBool(p.Cached), p.Error},
		}
		if err := cw.WriteAll(records); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
		return nil
	default:
		if err := writeReportTable(w, report); err != nil {
			return err
		}
		return writePredictionLine(w, p)
	}
}

// WriteBacktest writes a backtest summary in the given format.
func WriteBacktest(w io.Writer, s *models.BacktestSummary, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatCSV:
		return writeBacktestCSV(w, s)
	default:
		return writeBacktestTable(w, s)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("error writing JSON output: %w", err)
	}
	return nil
}

// confirmedBy maps each confirmed candidate to its sources in report order.
func confirmedBy(report *analysis.CandidateReport) map[int][]int {
	out := make(map[int][]int, len(report.Confirmations))
	for _, c := range report.Confirmations {
		out[c.Candidate] = append(out[c.Candidate], c.Source)
	}
	return out
}

func writeReportTable(w io.Writer, report *analysis.CandidateReport) error {
	last := report.LastDraw
	if _, err := fmt.Fprintf(w, "Target %s | last draw %s (%s, %s) | %d draws analysed\n",
		report.Target.Format("02/01/2006"), joinNumbers(last.Numbers, ", "),
		last.Label, last.Timestamp.Format("02/01/2006 15:04"), report.DrawCount); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Number", "Score", "Form", "Gap", "Confirmed By"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	confirmed := confirmedBy(report)
	var data [][]string
	for i, c := range report.Candidates {
		form, gap := "-", "-"
		if c.FormGap != nil {
			form = strconv.Itoa(c.FormGap.Form)
			gap = strconv.Itoa(c.FormGap.Gap)
		}
		number := strconv.Itoa(c.Number)
		sources := "-"
		if src, ok := confirmed[c.Number]; ok {
			number = ConfirmedColor.Sprint(number)
			sources = joinNumbers(src, ", ")
		}
		data = append(data, []string{strconv.Itoa(i + 1), number, strconv.Itoa(c.Score), form, gap, sources})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if report.NoConfirmations {
		if _, err := fmt.Fprintln(w, "No candidate confirmed by the knowledge base"); err != nil {
			return err
		}
	}

	t := report.Temporal
	if _, err := fmt.Fprintf(w, "Favourites on day %d: %s\n", t.Day, formatPairs(t.ByDayOfMonth)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Favourites in %s: %s\n", t.Month, formatPairs(t.ByMonth))
	return err
}

func writePredictionLine(w io.Writer, p *models.Prediction) error {
	var line string
	switch {
	case p.Error != "":
		line = MissColor.Sprintf("Oracle error: %s", p.Error)
	case p.Found():
		line = HitColor.Sprintf("Final prediction: %s", joinNumbers(p.Numbers, " and "))
		if p.Cached {
			line += " (cached)"
		}
	default:
		line = SkipColor.Sprint("No prediction found in the oracle reply")
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func writeReportCSV(w io.Writer, report *analysis.CandidateReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "number", "score", "form", "gap", "confirmed_by"}); err != nil {
		return fmt.Errorf("error writing CSV output: %w", err)
	}

	confirmed := confirmedBy(report)
	for i, c := range report.Candidates {
		form, gap := "", ""
		if c.FormGap != nil {
			form = strconv.Itoa(c.FormGap.Form)
			gap = strconv.Itoa(c.FormGap.Gap)
		}
		record := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.Number),
			strconv.Itoa(c.Score),
			form,
			gap,
			joinNumbers(confirmed[c.Number], " "),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func backtestResult(d models.BacktestDay) string {
	switch {
	case d.Skipped:
		return "skipped"
	case d.Hit:
		return "hit"
	default:
		return "miss"
	}
}

func writeBacktestTable(w io.Writer, s *models.BacktestSummary) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Date", "Predicted", "Drawn", "Result"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, d := range s.Results {
		result := backtestResult(d)
		switch result {
		case "hit":
			result = HitColor.Sprint("HIT")
		case "miss":
			result = MissColor.Sprint("MISS")
		default:
			result = SkipColor.Sprint("SKIP")
		}
		data = append(data, []string{
			d.TargetDate.Format("2006-01-02"),
			joinNumbers(d.Predicted, ", "),
			joinNumbers(d.Actual, ", "),
			result,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d hits over %d days (%.1f%%), %d skipped, in %v\n",
		s.Hits, s.Tested, s.HitRate(), s.Skipped, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	return err
}

func writeBacktestCSV(w io.Writer, s *models.BacktestSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "predicted", "actual", "result", "error"}); err != nil {
		return fmt.Errorf("error writing CSV output: %w", err)
	}
	for _, d := range s.Results {
		record := []string{
			d.TargetDate.Format("2006-01-02"),
			joinNumbers(d.Predicted, " "),
			joinNumbers(d.Actual, " "),
			backtestResult(d),
			d.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPairs(pairs []analysis.Pair) string {
	if len(pairs) == 0 {
		return "none"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%d(x%d)", p.Number, p.Count)
	}
	return strings.Join(parts, ", ")
}

func joinNumbers(nums []int, sep string) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}
