// Package lotobonheur fetches recent draw results from the Loto Bonheur results API
// and converts them into raw draw rows.
//
// The API groups results by week, then by day ("Lundi 13/10"), then by draw
// family (night and standard draws). It does not publish draw times or years:
// the hour is inferred from the draw name and the year is the current one.
package lotobonheur

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/logger"
)

// Client provides access to the results API
type Client struct {
	apiBaseURL     string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	loc            *time.Location
	now            func() time.Time
}

var _ draws.Source = (*Client)(nil) // Compile-time check

// NewClient creates a new results client. Timestamps are built in loc.
func NewClient(apiBaseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration, loc *time.Location) *Client {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		apiBaseURL:     strings.TrimRight(apiBaseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		loc:            loc,
		now:            time.Now,
	}
}

type resultsResponse struct {
	DrawsResultsWeekly []weeklyResults `json:"drawsResultsWeekly"`
}

type weeklyResults struct {
	DrawResultsDaily []dailyResults `json:"drawResultsDaily"`
}

type dailyResults struct {
	Date        string `json:"date"` // "Lundi 13/10"
	DrawResults struct {
		NightDraws    []apiDraw `json:"nightDraws"`
		StandardDraws []apiDraw `json:"standardDraws"`
	} `json:"drawResults"`
}

type apiDraw struct {
	DrawName       string `json:"drawName"`
	WinningNumbers string `json:"winningNumbers"` // "12 - 45 - 3 - 78 - 9"
	MachineNumbers string `json:"machineNumbers"`
}

// FetchDraws retrieves the published results of the last weeks. Draws whose
// results are not yet published are skipped.
func (c *Client) FetchDraws(ctx context.Context) ([]draws.RawDraw, error) {
	url := fmt.Sprintf("%s/api/results", c.apiBaseURL)

	resp, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch results: %v", draws.ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload resultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}

	now := c.now().In(c.loc)
	var rows []draws.RawDraw
	skipped := 0
	for _, week := range payload.DrawsResultsWeekly {
		for _, d := range week.DrawResultsDaily {
			fields := strings.Fields(d.Date)
			if len(fields) == 0 {
				continue
			}
			day, month, ok := parseDayMonth(fields[len(fields)-1])
			if !ok {
				logger.Debug("Skipping results day with unparseable date %q", d.Date)
				continue
			}

			families := [][]apiDraw{d.DrawResults.NightDraws, d.DrawResults.StandardDraws}
			for _, family := range families {
				for _, ad := range family {
					row, ok := c.convert(ad, day, month, now)
					if !ok {
						skipped++
						continue
					}
					rows = append(rows, row)
				}
			}
		}
	}

	logger.Debug("Fetched %d draws from results API (%d pending or invalid)", len(rows), skipped)
	return rows, nil
}

// RawDraws implements draws.Source.
func (c *Client) RawDraws(ctx context.Context) ([]draws.RawDraw, error) {
	return c.FetchDraws(ctx)
}

func (c *Client) convert(ad apiDraw, day, month int, now time.Time) (draws.RawDraw, bool) {
	if ad.WinningNumbers == "" || strings.Contains(ad.WinningNumbers, ".") {
		return draws.RawDraw{}, false
	}

	name := CleanName(ad.DrawName)
	hour := GuessHour(name)

	ts := time.Date(now.Year(), time.Month(month), day, hour, 0, 0, 0, c.loc)
	if ts.Day() != day || int(ts.Month()) != month {
		return draws.RawDraw{}, false // e.g. 31/04
	}
	// Results of late December fetched in early January belong to last year.
	if ts.After(now.AddDate(0, 0, 1)) {
		ts = ts.AddDate(-1, 0, 0)
	}

	return draws.RawDraw{
		At:      ts,
		Label:   name,
		Winning: splitNumbers(ad.WinningNumbers),
		Machine: splitNumbers(ad.MachineNumbers),
	}, true
}

func parseDayMonth(s string) (int, int, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return day, month, true
}

func splitNumbers(s string) string {
	return strings.ReplaceAll(s, " - ", ",")
}

// CleanName normalizes draw name variants to the names used in the history.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "Réveil numérique", "Digital Reveil")
	if strings.Contains(name, "Milieu de semaine") {
		return "Midweek"
	}
	return name
}

type drawSlot struct {
	hour  int
	names []string
}

// drawSlots is searched in order.
var drawSlots = []drawSlot{
	{1, []string{"Special Weekend 1h"}},
	{3, []string{"Special Weekend 3h"}},
	{7, []string{"Digital Reveil 7h"}},
	{8, []string{"Digital Reveil 8h"}},
	{10, []string{"Reveil", "La Matinale", "Premiere Heure", "Kado", "Cash", "Soutra", "Benediction"}},
	{13, []string{"Etoile", "Emergence", "Fortune", "Privilege", "Solution", "Diamant", "Prestige"}},
	{16, []string{"Akwaba", "Sika", "Baraka", "Monni", "Wari", "Moaye", "Awale"}},
	{19, []string{"Monday Special", "Lucky Tuesday", "Midweek", "Fortune Thursday", "Friday Bonanza", "National", "Espoir", "Spécial Lundi"}},
	{21, []string{"Digital 21h"}},
	{22, []string{"Digital 22h"}},
	{23, []string{"Digital 23h"}},
}

// GuessHour infers the draw hour from its name: an exact match in the slot
// table wins, then the first table name contained in name. Unknown names map
// to midnight.
func GuessHour(name string) int {
	for _, slot := range drawSlots {
		for _, n := range slot.names {
			if name == n {
				return slot.hour
			}
		}
	}
	for _, slot := range drawSlots {
		for _, n := range slot.names {
			if strings.Contains(name, n) {
				return slot.hour
			}
		}
	}
	return 0
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelayBase):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("Results request failed (attempt %d/%d): %v", i+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Warn("Results request failed (attempt %d/%d): %v", i+1, c.maxRetries, lastErr)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		if !containsJSON(resp.Header.Get("Content-Type")) {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func containsJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}
