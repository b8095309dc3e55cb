package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/lotoracle/internal/config"
	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/storage"
)

type staticSource struct {
	rows []draws.RawDraw
	err  error
}

func (s staticSource) RawDraws(context.Context) ([]draws.RawDraw, error) {
	return s.rows, s.err
}

func testApp(t *testing.T) *app {
	t.Helper()
	store, err := storage.New(storage.BackendSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Oracle.Enabled = false
	return &app{cfg: cfg, loc: time.UTC, store: store}
}

func TestRunCollectCycle(t *testing.T) {
	a := testApp(t)
	src := staticSource{rows: []draws.RawDraw{
		{Timestamp: "15/01/2025 19:00", Label: "Fortune", Winning: "1,4,5", Machine: "9"},
		{Timestamp: "16/01/2025 10:00", Label: "Reveil", Winning: "2,3"},
		{Timestamp: "", Label: "Broken", Winning: "7"},
	}}

	inserted, err := runCollectCycle(context.Background(), src, a.store, a.loc)
	if err != nil {
		t.Fatalf("runCollectCycle failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	// The same rows again add nothing.
	inserted, err = runCollectCycle(context.Background(), src, a.store, a.loc)
	if err != nil || inserted != 0 {
		t.Errorf("second cycle = %d, %v; want 0, nil", inserted, err)
	}
}

func TestRunCollectCycle_SourceError(t *testing.T) {
	a := testApp(t)
	src := staticSource{err: draws.ErrSourceUnavailable}

	_, err := runCollectCycle(context.Background(), src, a.store, a.loc)
	if !errors.Is(err, draws.ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestCommandHandler(t *testing.T) {
	a := testApp(t)
	handle := commandHandler(a, a.newPredictor(true))
	ctx := context.Background()

	reply, err := handle(ctx, "status")
	if err != nil || !strings.Contains(reply, "No draws") {
		t.Errorf("empty status = %q, %v", reply, err)
	}

	src := staticSource{rows: []draws.RawDraw{
		{Timestamp: "15/01/2025 19:00", Label: "Fortune", Winning: "1,4,5"},
		{Timestamp: "16/01/2025 19:00", Label: "Fortune", Winning: "2,4"},
	}}
	if _, err := runCollectCycle(ctx, src, a.store, a.loc); err != nil {
		t.Fatal(err)
	}

	reply, err = handle(ctx, "status")
	if err != nil || !strings.Contains(reply, "*2 draws stored*") {
		t.Errorf("status = %q, %v", reply, err)
	}

	reply, err = handle(ctx, "predict")
	if err != nil || !strings.Contains(reply, "Prediction for") || !strings.Contains(reply, "oracle disabled") {
		t.Errorf("predict = %q, %v", reply, err)
	}

	reply, _ = handle(ctx, "help")
	if !strings.Contains(reply, "/predict") {
		t.Errorf("help = %q", reply)
	}
}

func TestParseDate(t *testing.T) {
	a := &app{loc: time.UTC}

	got, err := a.parseDate("2025-01-16")
	if err != nil || !got.Equal(time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDate() = %v, %v", got, err)
	}
	if got, err := a.parseDate(""); err != nil || !got.IsZero() {
		t.Errorf("empty date = %v, %v", got, err)
	}
	if _, err := a.parseDate("16/01/2025"); err == nil {
		t.Error("expected error for day-first date")
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd(&app{})
	want := []string{"collect", "import", "analyze", "predict", "backtest", "export"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
