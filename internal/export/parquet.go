// Package export writes draws, form/gap tables and predictions to Parquet
// files for offline analysis (DuckDB, pandas, ...).
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// File names written by WriteAll.
const (
	DrawsFile       = "draws.parquet"
	FormGapFile     = "form_gap.parquet"
	PredictionsFile = "predictions.parquet"
)

// DrawRecord is one draw row.
type DrawRecord struct {
	ID      string    `parquet:"id,snappy"`
	DrawnAt time.Time `parquet:"drawn_at,snappy"`
	Label   string    `parquet:"label,snappy,dict"`
	Winning []int32   `parquet:"winning"`
	Machine []int32   `parquet:"machine"`
	Numbers []int32   `parquet:"numbers"` // Winning ∪ Machine
}

// FormGapRecord is one number of a form/gap table.
type FormGapRecord struct {
	Number int32 `parquet:"number"`
	Form   int32 `parquet:"form"`
	Gap    int32 `parquet:"gap"`
	Window int32 `parquet:"window"`
}

// PredictionRecord is one stored prediction. Prompt and reply are left out.
type PredictionRecord struct {
	ID         string    `parquet:"id,snappy"`
	TargetDate time.Time `parquet:"target_date,snappy"`
	LastDrawID string    `parquet:"last_draw_id,snappy"`
	Numbers    []int32   `parquet:"numbers"`
	Cached     bool      `parquet:"cached"`
	Error      *string   `parquet:"error,optional,snappy"`
	CreatedAt  time.Time `parquet:"created_at,snappy"`
}

// ConvertDraws maps draws to Parquet rows.
func ConvertDraws(ds []models.Draw) []DrawRecord {
	out := make([]DrawRecord, len(ds))
	for i, d := range ds {
		out[i] = DrawRecord{
			ID:      d.ID,
			DrawnAt: d.Timestamp,
			Label:   d.Label,
			Winning: toInt32(d.Winning),
			Machine: toInt32(d.Machine),
			Numbers: toInt32(d.Numbers),
		}
	}
	return out
}

// ConvertFormGap maps a form/gap table to Parquet rows ordered by number.
func ConvertFormGap(table analysis.FormGapTable, window int) []FormGapRecord {
	entries := table.Entries()
	out := make([]FormGapRecord, len(entries))
	for i, e := range entries {
		out[i] = FormGapRecord{
			Number: int32(e.Number),
			Form:   int32(e.Form),
			Gap:    int32(e.Gap),
			Window: int32(window),
		}
	}
	return out
}

// ConvertPredictions maps predictions to Parquet rows.
func ConvertPredictions(ps []models.Prediction) []PredictionRecord {
	out := make([]PredictionRecord, len(ps))
	for i, p := range ps {
		out[i] = PredictionRecord{
			ID:         p.ID,
			TargetDate: p.TargetDate,
			LastDrawID: p.LastDrawID,
			Numbers:    toInt32(p.Numbers),
			Cached:     p.Cached,
			CreatedAt:  p.CreatedAt,
		}
		if p.Error != "" {
			msg := p.Error
			out[i].Error = &msg
		}
	}
	return out
}

// WriteDrawsParquet writes draws to a Parquet file.
func WriteDrawsParquet(path string, ds []models.Draw) error {
	return writeParquet(path, ConvertDraws(ds))
}

// WriteFormGapParquet writes a form/gap table to a Parquet file.
func WriteFormGapParquet(path string, table analysis.FormGapTable, window int) error {
	return writeParquet(path, ConvertFormGap(table, window))
}

// WritePredictionsParquet writes predictions to a Parquet file.
func WritePredictionsParquet(path string, ps []models.Prediction) error {
	return writeParquet(path, ConvertPredictions(ps))
}

// WriteAll writes the three exports into dir, creating it if needed.
func WriteAll(dir string, ds []models.Draw, table analysis.FormGapTable, window int, ps []models.Prediction) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := WriteDrawsParquet(filepath.Join(dir, DrawsFile), ds); err != nil {
		return err
	}
	if err := WriteFormGapParquet(filepath.Join(dir, FormGapFile), table, window); err != nil {
		return err
	}
	return WritePredictionsParquet(filepath.Join(dir, PredictionsFile), ps)
}

func writeParquet[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file %s: %w", path, err)
	}
	return file.Close()
}

func toInt32(nums []int) []int32 {
	out := make([]int32, len(nums))
	for i, n := range nums {
		out[i] = int32(n)
	}
	return out
}
