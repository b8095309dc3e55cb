package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(BackendSQLite, ":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDraw(ts time.Time, label string, winning ...int) models.Draw {
	return models.NewDraw(ts, label, winning, []int{winning[0] + 1})
}

func TestStorage_UpsertDraws(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 13, 10, 0, 0, 0, time.UTC)

	batch := []models.Draw{
		testDraw(base.Add(9*time.Hour), "Monday Special", 5, 17, 33),
		testDraw(base, "Reveil", 1, 2, 3),
	}
	n, err := s.UpsertDraws(ctx, batch)
	if err != nil {
		t.Fatalf("UpsertDraws failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted, got %d", n)
	}

	// Overlapping batch: only the new draw is added.
	batch = append(batch, testDraw(base.Add(3*time.Hour), "Etoile", 40, 50))
	n, err = s.UpsertDraws(ctx, batch)
	if err != nil {
		t.Fatalf("UpsertDraws failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 inserted on re-upsert, got %d", n)
	}

	count, err := s.CountDraws(ctx)
	if err != nil || count != 3 {
		t.Errorf("CountDraws() = %d, %v; want 3", count, err)
	}

	loaded, stats, err := draws.Load(ctx, s, time.UTC)
	if err != nil {
		t.Fatalf("Load from storage failed: %v", err)
	}
	if stats.Dropped() != 0 {
		t.Errorf("Expected no dropped rows, got %+v", stats)
	}
	wantLabels := []string{"Reveil", "Etoile", "Monday Special"}
	for i, d := range loaded {
		if d.Label != wantLabels[i] {
			t.Errorf("draw %d: label = %s, want %s", i, d.Label, wantLabels[i])
		}
	}
	if got := loaded[2]; got.ID != batch[0].ID || !got.Timestamp.Equal(batch[0].Timestamp) {
		t.Errorf("round trip mismatch: got %+v want %+v", got, batch[0])
	}
	if got := loaded[2].Numbers; len(got) != 4 || got[0] != 5 || got[3] != 33 {
		t.Errorf("Numbers = %v, want [5 6 17 33]", got)
	}
}

func TestStorage_SameTimestampKeepsInsertionOrder(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC)

	if _, err := s.UpsertDraws(ctx, []models.Draw{
		testDraw(at, "Zeta", 1, 2),
		testDraw(at, "Alpha", 3, 4),
	}); err != nil {
		t.Fatal(err)
	}
	// A later batch with an earlier-sorting label still lands after both.
	if _, err := s.UpsertDraws(ctx, []models.Draw{
		testDraw(at, "Alpha", 3, 4),
		testDraw(at, "Aaa", 5, 6),
	}); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := draws.Load(ctx, s, time.UTC)
	if err != nil {
		t.Fatalf("Load from storage failed: %v", err)
	}
	want := []string{"Zeta", "Alpha", "Aaa"}
	if len(loaded) != len(want) {
		t.Fatalf("loaded %d draws, want %d", len(loaded), len(want))
	}
	for i, d := range loaded {
		if d.Label != want[i] {
			t.Errorf("draw %d: label = %s, want %s", i, d.Label, want[i])
		}
	}

	latest, err := s.LatestDraw(ctx, time.UTC)
	if err != nil || latest == nil || latest.Label != "Aaa" {
		t.Errorf("LatestDraw() = %+v, %v; want Aaa", latest, err)
	}
}

func TestStorage_UpsertDrawsRejectsInvalid(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.UpsertDraws(context.Background(), []models.Draw{{ID: "x", Label: "Empty"}})
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected StoreError, got %v", err)
	}
	if storeErr.Op != "upsert draws" {
		t.Errorf("Op = %q", storeErr.Op)
	}
}

func TestStorage_LatestDraw(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	latest, err := s.LatestDraw(ctx, time.UTC)
	if err != nil || latest != nil {
		t.Fatalf("LatestDraw() on empty store = %v, %v; want nil, nil", latest, err)
	}

	base := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)
	if _, err := s.UpsertDraws(ctx, []models.Draw{
		testDraw(base.AddDate(0, 0, 2), "Fortune", 9),
		testDraw(base, "Etoile", 1),
	}); err != nil {
		t.Fatal(err)
	}

	latest, err = s.LatestDraw(ctx, time.UTC)
	if err != nil {
		t.Fatalf("LatestDraw failed: %v", err)
	}
	if latest == nil || latest.Label != "Fortune" {
		t.Errorf("LatestDraw() = %+v, want Fortune", latest)
	}
}

func TestStorage_Knowledge(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	kb, err := s.LoadKnowledge(ctx)
	if err != nil {
		t.Fatalf("LoadKnowledge on empty table failed: %v", err)
	}
	if kb.Len() != 0 {
		t.Errorf("Expected empty knowledge base, got %d rules", kb.Len())
	}

	kb = models.NewKnowledgeBase()
	kb.Add(12, 7, 33, 61)
	kb.Add(4)
	if err := s.SaveKnowledge(ctx, kb); err != nil {
		t.Fatalf("SaveKnowledge failed: %v", err)
	}

	replacement := models.NewKnowledgeBase()
	replacement.Add(12, 8)
	replacement.Add(90, 1)
	if err := s.SaveKnowledge(ctx, replacement); err != nil {
		t.Fatalf("SaveKnowledge failed: %v", err)
	}

	loaded, err := s.LoadKnowledge(ctx)
	if err != nil {
		t.Fatalf("LoadKnowledge failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("Expected 2 rules after replace, got %d", loaded.Len())
	}
	if !loaded.Has(12, 8) || loaded.Has(12, 7) || !loaded.Has(90, 1) {
		t.Errorf("Unexpected knowledge base: %v", loaded)
	}
}

func TestStorage_Predictions(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().Add(-time.Minute)

	older := &models.Prediction{
		ID:         "p-1",
		TargetDate: time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC),
		LastDrawID: "202510131900_MondaySpecial",
		Prompt:     "prompt",
		Error:      "oracle timeout",
		CreatedAt:  now.Add(-time.Hour),
	}
	newer := &models.Prediction{
		ID:         "p-2",
		TargetDate: time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC),
		LastDrawID: "202510141900_LuckyTuesday",
		Prompt:     "prompt",
		Reply:      "**12** and **45**",
		Numbers:    []int{12, 45},
		Cached:     true,
		CreatedAt:  now,
	}
	for _, p := range []*models.Prediction{older, newer} {
		if err := s.SavePrediction(ctx, p); err != nil {
			t.Fatalf("SavePrediction failed: %v", err)
		}
	}

	got, err := s.ListPredictions(ctx, 10)
	if err != nil {
		t.Fatalf("ListPredictions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 predictions, got %d", len(got))
	}
	if got[0].ID != "p-2" || got[1].ID != "p-1" {
		t.Errorf("Expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if !got[0].Cached || len(got[0].Numbers) != 2 || got[0].Numbers[1] != 45 {
		t.Errorf("Unexpected prediction: %+v", got[0])
	}
	if got[1].Error != "oracle timeout" || got[1].Found() {
		t.Errorf("Unexpected failed prediction: %+v", got[1])
	}
	if !got[0].CreatedAt.Equal(newer.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, newer.CreatedAt)
	}

	limited, err := s.ListPredictions(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("ListPredictions(1) = %d, %v", len(limited), err)
	}

	if err := s.SavePrediction(ctx, &models.Prediction{}); err == nil {
		t.Error("Expected invalid prediction to be rejected")
	}
}

func TestNew_UnsupportedBackend(t *testing.T) {
	if _, err := New("oracle", ""); err == nil {
		t.Fatal("Expected error for unsupported backend")
	}
}

func TestRebind(t *testing.T) {
	pg := &Storage{backend: BackendPostgres}
	if got := pg.rebind("SELECT ? , ?"); got != "SELECT $1 , $2" {
		t.Errorf("rebind() = %q", got)
	}
	lite := &Storage{backend: BackendSQLite}
	if got := lite.insertIgnore("t", "a, b", 2); got != "INSERT INTO t (a, b) VALUES (?, ?) ON CONFLICT DO NOTHING" {
		t.Errorf("insertIgnore() = %q", got)
	}
	my := &Storage{backend: BackendMySQL}
	if got := my.insertIgnore("t", "a", 1); got != "INSERT IGNORE INTO t (a) VALUES (?)" {
		t.Errorf("insertIgnore() = %q", got)
	}
}
