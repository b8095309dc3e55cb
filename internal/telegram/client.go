// Package telegram sends prediction reports, backtest summaries and service
// alerts through the Telegram Bot API, and answers a few bot commands.
//
// Messages use MarkdownV2; every piece of dynamic text goes through
// escapeMarkdownV2. Delivery is retried with a linear backoff.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/lotoracle/internal/analysis"
	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/models"
)

// maxListedCandidates caps the candidates shown in a prediction message.
const maxListedCandidates = 5

// CommandHandler answers a bot command (without the leading slash) with a
// MarkdownV2 message.
type CommandHandler func(ctx context.Context, command string) (string, error)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	return newClient(botToken, chatID, tgbotapi.APIEndpoint, maxRetries, retryDelayBase)
}

func newClient(botToken, chatID, endpoint string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendPrediction sends the outcome of a prediction run.
func (c *Client) SendPrediction(p *models.Prediction, report *analysis.CandidateReport) error {
	return c.send(FormatPrediction(p, report))
}

// SendBacktest sends a backtest summary.
func (c *Client) SendBacktest(summary *models.BacktestSummary) error {
	return c.send(FormatBacktest(summary))
}

// SendError alerts that a collection cycle failed.
func (c *Client) SendError(err error) error {
	return c.send(fmt.Sprintf("⚠️ *Collection failed*\n\n`%s`", escapeCode(err.Error())))
}

// SendRecovery reports that collection works again after failures cycles.
func (c *Client) SendRecovery(failures int) error {
	return c.send(fmt.Sprintf("✅ *Collection recovered* after %d failed cycle\\(s\\)", failures))
}

// ListenForCommands answers commands sent from the configured chat until ctx
// is cancelled. It returns immediately; updates are handled in a goroutine.
func (c *Client) ListenForCommands(ctx context.Context, handle CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		defer c.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg := update.Message
				if msg == nil || !msg.IsCommand() || msg.Chat == nil || msg.Chat.ID != c.chatID {
					continue
				}
				logger.Info("Received Telegram command /%s", msg.Command())
				reply, err := handle(ctx, msg.Command())
				if err != nil {
					logger.Warn("Command /%s failed: %v", msg.Command(), err)
					reply = fmt.Sprintf("❌ `%s`", escapeCode(err.Error()))
				}
				if err := c.send(reply); err != nil {
					logger.Error("Failed to answer command /%s: %v", msg.Command(), err)
				}
			}
		}
	}()
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Debug("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// FormatPrediction renders a prediction and its statistics as MarkdownV2.
func FormatPrediction(p *models.Prediction, report *analysis.CandidateReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🎯 *Prediction for %s*\n\n", escapeMarkdownV2(p.TargetDate.Format("02/01/2006"))))

	last := report.LastDraw
	b.WriteString(fmt.Sprintf("🎱 Last draw: *%s*\n", escapeMarkdownV2(joinNumbers(last.Numbers))))
	b.WriteString(fmt.Sprintf("   %s, %s\n\n",
		escapeMarkdownV2(last.Label), escapeMarkdownV2(last.Timestamp.Format("02/01/2006 15:04"))))

	if len(report.Candidates) == 0 {
		b.WriteString("No candidates from recent followers\\.\n\n")
	} else {
		b.WriteString("📊 *Top candidates*\n")
		for i, cand := range report.Candidates {
			if i == maxListedCandidates {
				break
			}
			line := fmt.Sprintf("%d. %d: score %d", i+1, cand.Number, cand.Score)
			if cand.FormGap != nil {
				line += fmt.Sprintf(", form %d, gap %d", cand.FormGap.Form, cand.FormGap.Gap)
			}
			b.WriteString(escapeMarkdownV2(line) + "\n")
		}
		b.WriteString("\n")
	}

	if !report.NoConfirmations {
		parts := make([]string, 0, len(report.Confirmations))
		for _, conf := range report.Confirmations {
			parts = append(parts, fmt.Sprintf("%d (with %d)", conf.Candidate, conf.Source))
		}
		b.WriteString(fmt.Sprintf("📖 Confirmed: %s\n\n", escapeMarkdownV2(strings.Join(parts, ", "))))
	}

	switch {
	case p.Error != "":
		b.WriteString(fmt.Sprintf("⚠️ Oracle error: `%s`", escapeCode(p.Error)))
	case p.Found():
		b.WriteString(fmt.Sprintf("🔮 *Final prediction: %s*", escapeMarkdownV2(joinNumbers(p.Numbers))))
		if p.Cached {
			b.WriteString(" \\(cached\\)")
		}
	default:
		b.WriteString("🤷 No prediction found in the oracle reply\\.")
	}

	return b.String()
}

// FormatBacktest renders a backtest summary as MarkdownV2.
func FormatBacktest(s *models.BacktestSummary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🧪 *Backtest over %d days*\n\n", s.Days))
	for _, d := range s.Results {
		date := d.TargetDate.Format("02/01")
		var line string
		switch {
		case d.Skipped:
			line = fmt.Sprintf("⏭ %s: skipped", date)
		case d.Hit:
			line = fmt.Sprintf("✅ %s: %s", date, joinNumbers(d.Predicted))
		default:
			line = fmt.Sprintf("❌ %s: %s", date, joinNumbers(d.Predicted))
		}
		b.WriteString(escapeMarkdownV2(line) + "\n")
	}

	rate := escapeMarkdownV2(fmt.Sprintf("%.1f%%", s.HitRate()))
	b.WriteString(fmt.Sprintf("\n*%d hits* over %d days \\(%s\\), %d skipped", s.Hits, s.Tested, rate, s.Skipped))
	return b.String()
}

// FormatStatus renders the store's draw count and latest draw as MarkdownV2.
func FormatStatus(count int, latest *models.Draw) string {
	return fmt.Sprintf("📚 *%d draws stored*\nLatest: %s on %s",
		count,
		escapeMarkdownV2(fmt.Sprintf("%s (%s)", latest.Label, joinNumbers(latest.Numbers))),
		escapeMarkdownV2(latest.Timestamp.Format("02/01/2006 15:04")))
}

func joinNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " - ")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text placed inside a MarkdownV2 code span.
func escapeCode(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}
