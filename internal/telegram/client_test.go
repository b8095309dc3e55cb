package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// botServer fakes the Bot API: getMe always succeeds, sendMessage fails
// failures times before succeeding.
type botServer struct {
	mu       sync.Mutex
	failures int
	calls    int
	texts    []string
	modes    []string
}

func (s *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Oracle","username":"oracle_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls++
		if s.calls <= s.failures {
			fmt.Fprint(w, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
			return
		}
		s.texts = append(s.texts, r.FormValue("text"))
		s.modes = append(s.modes, r.FormValue("parse_mode"))
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1234,"type":"private"}}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, s *botServer, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	c, err := newClient("TOKEN", "1234", srv.URL+"/bot%s/%s", retries, time.Millisecond)
	if err != nil {
		t.Fatalf("newClient failed: %v", err)
	}
	return c
}

func sampleReport() *analysis.CandidateReport {
	last := models.NewDraw(time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC), "Fortune Thursday", []int{1, 4, 5}, nil)
	return &analysis.CandidateReport{
		LastDraw: last,
		Candidates: []analysis.Candidate{
			{Number: 2, Score: 3, FormGap: &analysis.FormGap{Number: 2, Form: 4, Gap: 1}},
			{Number: 9, Score: 1},
		},
		Confirmations: []analysis.Confirmation{{Candidate: 2, Source: 1}},
	}
}

func samplePrediction() *models.Prediction {
	return &models.Prediction{
		TargetDate: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
		Numbers:    []int{2, 9},
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	if _, err := newClient("TOKEN", "not-a-number", "http://127.0.0.1:1/bot%s/%s", 1, time.Millisecond); err == nil {
		t.Fatal("expected error for invalid chat ID")
	}
}

func TestSendPrediction(t *testing.T) {
	s := &botServer{}
	c := newTestClient(t, s, 3)

	if err := c.SendPrediction(samplePrediction(), sampleReport()); err != nil {
		t.Fatalf("SendPrediction failed: %v", err)
	}
	if len(s.texts) != 1 {
		t.Fatalf("expected one message, got %d", len(s.texts))
	}
	if s.modes[0] != "MarkdownV2" {
		t.Errorf("parse mode = %q, want MarkdownV2", s.modes[0])
	}
	if !strings.Contains(s.texts[0], "Final prediction: 2 \\- 9") {
		t.Errorf("unexpected message:\n%s", s.texts[0])
	}
}

func TestSend_Retries(t *testing.T) {
	s := &botServer{failures: 2}
	c := newTestClient(t, s, 3)

	if err := c.SendRecovery(4); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if s.calls != 3 {
		t.Errorf("calls = %d, want 3", s.calls)
	}
	if !strings.Contains(s.texts[0], "after 4 failed cycle") {
		t.Errorf("unexpected message: %s", s.texts[0])
	}
}

func TestSend_GivesUp(t *testing.T) {
	s := &botServer{failures: 10}
	c := newTestClient(t, s, 2)

	err := c.SendError(errors.New("api down"))
	if err == nil || !strings.Contains(err.Error(), "after 2 retries") {
		t.Fatalf("expected retry exhaustion error, got %v", err)
	}
	if s.calls != 2 {
		t.Errorf("calls = %d, want 2", s.calls)
	}
}

func TestFormatPrediction(t *testing.T) {
	report := sampleReport()

	msg := FormatPrediction(samplePrediction(), report)
	for _, want := range []string{
		"Prediction for 16/01/2025",
		"Last draw: *1 \\- 4 \\- 5*",
		"Fortune Thursday, 15/01/2025 19:00",
		"1\\. 2: score 3, form 4, gap 1",
		"2\\. 9: score 1\n",
		"Confirmed: 2 \\(with 1\\)",
		"Final prediction: 2 \\- 9",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	tests := []struct {
		name string
		pred models.Prediction
		want string
	}{
		{"oracle error", models.Prediction{Error: "API error 503: `busy`"}, "Oracle error: `API error 503: \\`busy\\``"},
		{"nothing found", models.Prediction{}, "No prediction found"},
		{"cached", models.Prediction{Numbers: []int{7, 8}, Cached: true}, "\\(cached\\)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := FormatPrediction(&tt.pred, report); !strings.Contains(msg, tt.want) {
				t.Errorf("message missing %q:\n%s", tt.want, msg)
			}
		})
	}

	report.NoConfirmations = true
	report.Confirmations = nil
	report.Candidates = nil
	msg = FormatPrediction(samplePrediction(), report)
	if strings.Contains(msg, "Confirmed") || !strings.Contains(msg, "No candidates") {
		t.Errorf("unexpected message without candidates:\n%s", msg)
	}
}

func TestFormatPrediction_ListsAtMostFiveCandidates(t *testing.T) {
	report := sampleReport()
	report.Candidates = nil
	for n := 10; n < 20; n++ {
		report.Candidates = append(report.Candidates, analysis.Candidate{Number: n, Score: 1})
	}
	msg := FormatPrediction(samplePrediction(), report)
	if !strings.Contains(msg, "5\\. 14") || strings.Contains(msg, "6\\. 15") {
		t.Errorf("expected exactly five candidates:\n%s", msg)
	}
}

func TestFormatBacktest(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	summary := &models.BacktestSummary{
		Days:    3,
		Tested:  3,
		Hits:    1,
		Skipped: 1,
		Results: []models.BacktestDay{
			{TargetDate: day(1), Predicted: []int{1, 2}, Hit: true},
			{TargetDate: day(2), Predicted: []int{3, 4}},
			{TargetDate: day(3), Skipped: true},
		},
	}

	msg := FormatBacktest(summary)
	for _, want := range []string{
		"Backtest over 3 days",
		"✅ 01/03: 1 \\- 2",
		"❌ 02/03: 3 \\- 4",
		"⏭ 03/03: skipped",
		"*1 hits* over 3 days \\(33\\.3%\\), 1 skipped",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"1.5%", "1\\.5%"},
		{"a_b*c", "a\\_b\\*c"},
		{"(x) [y] {z}", "\\(x\\) \\[y\\] \\{z\\}"},
		{"a\\b", "a\\\\b"},
		{"Zürich!", "Zürich\\!"},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatStatus(t *testing.T) {
	latest := models.NewDraw(time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC), "Fortune Thursday", []int{1, 4, 5}, nil)
	msg := FormatStatus(1234, &latest)
	want := "📚 *1234 draws stored*\nLatest: Fortune Thursday \\(1 \\- 4 \\- 5\\) on 15/01/2025 19:00"
	if msg != want {
		t.Errorf("FormatStatus() = %q, want %q", msg, want)
	}
}
