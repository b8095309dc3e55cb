package export

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/models"
)

func readAll[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[T](file)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	return rows[:n]
}

func TestSchemas(t *testing.T) {
	for name, tc := range map[string]struct {
		schema  *parquet.Schema
		columns []string
	}{
		"draws":       {parquet.SchemaOf(new(DrawRecord)), []string{"id", "drawn_at", "label", "winning", "machine", "numbers"}},
		"form_gap":    {parquet.SchemaOf(new(FormGapRecord)), []string{"number", "form", "gap", "window"}},
		"predictions": {parquet.SchemaOf(new(PredictionRecord)), []string{"id", "target_date", "last_draw_id", "numbers", "cached", "error", "created_at"}},
	} {
		for _, col := range tc.columns {
			_, ok := tc.schema.Lookup(col)
			assert.True(t, ok, "%s: column %s should exist", name, col)
		}
	}
}

func TestWriteDrawsParquet(t *testing.T) {
	ds := []models.Draw{
		models.NewDraw(time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC), "Fortune Thursday", []int{5, 1, 4}, []int{9, 1}),
		models.NewDraw(time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC), "Reveil", []int{2, 3}, nil),
	}
	path := filepath.Join(t.TempDir(), DrawsFile)
	require.NoError(t, WriteDrawsParquet(path, ds))

	rows := readAll[DrawRecord](t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, ds[0].ID, rows[0].ID)
	assert.True(t, ds[0].Timestamp.Equal(rows[0].DrawnAt))
	assert.Equal(t, []int32{5, 1, 4}, rows[0].Winning)
	assert.Equal(t, []int32{1, 4, 5, 9}, rows[0].Numbers)
	assert.Equal(t, "Reveil", rows[1].Label)
	assert.Empty(t, rows[1].Machine)
}

func TestWriteFormGapParquet(t *testing.T) {
	table := analysis.FormGapTable{
		2: {Number: 2, Form: 4, Gap: 1},
		1: {Number: 1, Form: 0, Gap: 50},
	}
	path := filepath.Join(t.TempDir(), FormGapFile)
	require.NoError(t, WriteFormGapParquet(path, table, 50))

	rows := readAll[FormGapRecord](t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, FormGapRecord{Number: 1, Form: 0, Gap: 50, Window: 50}, rows[0])
	assert.Equal(t, FormGapRecord{Number: 2, Form: 4, Gap: 1, Window: 50}, rows[1])
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "export")
	ps := []models.Prediction{
		{ID: "a", TargetDate: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), Numbers: []int{2, 9}, CreatedAt: time.Now()},
		{ID: "b", TargetDate: time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), Error: "timeout", CreatedAt: time.Now()},
	}
	require.NoError(t, WriteAll(dir, nil, analysis.FormGapTable{}, 50, ps))

	for _, name := range []string{DrawsFile, FormGapFile, PredictionsFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	rows := readAll[PredictionRecord](t, filepath.Join(dir, PredictionsFile))
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Error)
	assert.Equal(t, []int32{2, 9}, rows[0].Numbers)
	require.NotNil(t, rows[1].Error)
	assert.Equal(t, "timeout", *rows[1].Error)
}

func TestWriteParquet_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "draws.parquet")
	assert.Error(t, WriteDrawsParquet(path, nil))
}
