package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/models"
)

func TestExtractNumbers(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []int
	}{
		{"english phrase", "After weighing everything... Final prediction: 12 and 45.", []int{12, 45}},
		{"french phrase", "Mes deux numéros sont 7 et 81, car 33 est en retard.", []int{7, 81}},
		{"french final", "Prédiction Finale 3 puis 9", []int{3, 9}},
		{"numbers colon", "Numbers: 14, 28", []int{14, 28}},
		{"bold phrase", "Final prediction: **5** and **60**", []int{5, 60}},
		{"final phrase beats earlier mention", "The last numbers 12 and 45 were drawn yesterday. Final prediction: 7 and 9", []int{7, 9}},
		{"final phrase beats earlier sont", "Les favoris sont 3 et 4. Prédiction finale : 10 et 20", []int{10, 20}},
		{"numbers without colon", "Hot numbers 12 and 45 keep coming back", []int{12, 45}},
		{"are phrase", "My picks are 31 and 2, trust me on 77", []int{31, 2}},
		{"bold only", "I like **22** because of the gap, and **71** confirms it. Also **8**.", []int{22, 71}},
		{"last two", "Candidate 3 scores 12 while 40 has a gap of 9", []int{40, 9}},
		{"three digit ignored", "Score 120 and 7", nil},
		{"single number", "Play 42 tonight", nil},
		{"empty", "", nil},
		{"error text", "API error 503: upstream unavailable", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractNumbers(tt.reply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractNumbers(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func testReport() *analysis.CandidateReport {
	gap := analysis.FormGap{Number: 2, Form: 2, Gap: 1}
	return &analysis.CandidateReport{
		Target:     time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
		LastDraw:   models.NewDraw(time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC), "National", []int{1, 4, 5}, nil),
		FormWindow: 50,
		Candidates: []analysis.Candidate{
			{Number: 2, Score: 3, FormGap: &gap},
			{Number: 95, Score: 1},
		},
		Confirmations: []analysis.Confirmation{{Candidate: 2, Source: 1}},
		Temporal: analysis.TemporalAffinity{
			Day:          16,
			Month:        time.January,
			ByDayOfMonth: []analysis.Pair{{Number: 2, Count: 2}, {Number: 1, Count: 1}},
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testReport())

	for _, want := range []string{
		"- Last drawn numbers: [1, 4, 5]",
		"- Target date: 16/01/2025",
		"- Candidate 2: (Follower score: 3) | Form: 2x/50 | Gap: 1 draws",
		"- CONFIRMATION: Candidate 2 is a known companion of number 1.",
		"- Favourite numbers for this day of the month: 2(2x), 1(1x)",
		"- Favourite numbers for this month: None",
		"FINAL MISSION:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Candidate 95") {
		t.Error("candidate without form/gap should be omitted")
	}
	if strings.Contains(prompt, "No direct confirmation") {
		t.Error("confirmation fallback should not be rendered when confirmations exist")
	}

	// Section order: dynamic, static, temporal, mission.
	idx := func(s string) int { return strings.Index(prompt, s) }
	if !(idx("1. DYNAMIC") < idx("2. STATIC") && idx("2. STATIC") < idx("3. TEMPORAL") && idx("3. TEMPORAL") < idx("FINAL MISSION")) {
		t.Errorf("sections out of order:\n%s", prompt)
	}
}

func TestBuildPrompt_NoConfirmations(t *testing.T) {
	report := testReport()
	report.Confirmations = nil
	report.NoConfirmations = true

	if prompt := BuildPrompt(report); !strings.Contains(prompt, "- No direct confirmation found.") {
		t.Errorf("expected no-confirmation line:\n%s", prompt)
	}
}

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || req.Messages[1].Content != "the prompt" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.MaxTokens != 512 {
			t.Errorf("MaxTokens = %d", req.MaxTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"Final prediction: 10 and 20"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "secret", "test-model", 0.7, 512)
	reply, err := c.Complete(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "Final prediction: 10 and 20" {
		t.Errorf("reply = %q", reply)
	}
	if c.Model() != "test-model" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":"rate limited"}`, "API error 429"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no response choices"},
		{"bad json", http.StatusOK, `not json`, "failed to decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", "m", 0, 0).Complete(context.Background(), "p")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestClient_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewClient(server.URL, "", "m", 0, 0).Complete(ctx, "p"); err == nil {
		t.Fatal("expected timeout error")
	}
}
