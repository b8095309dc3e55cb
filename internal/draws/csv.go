package draws

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Column names of the historical results file.
const (
	ColumnTimestamp = "date_complete"
	ColumnLabel     = "nom_du_tirage"
	ColumnWinning   = "numeros_gagnants"
	ColumnMachine   = "numeros_machine"
)

// CSVSource reads draws from a results file with a header row.
type CSVSource struct {
	Path string
}

var _ Source = CSVSource{} // Compile-time check

// RawDraws implements Source.
func (s CSVSource) RawDraws(_ context.Context) ([]RawDraw, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrSourceUnavailable, s.Path)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f)
}

// ReadCSV parses results rows keyed by header name. Unknown columns are ignored
// and missing ones read as empty strings, leaving rejection to Normalize.
func ReadCSV(r io.Reader) ([]RawDraw, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		index[strings.TrimSpace(h)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []RawDraw
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, RawDraw{
			Timestamp: field(rec, ColumnTimestamp),
			Label:     field(rec, ColumnLabel),
			Winning:   field(rec, ColumnWinning),
			Machine:   field(rec, ColumnMachine),
		})
	}
	return rows, nil
}
