// Package telegram sends a completion notification for a sweep run via the
// Telegram Bot API. The message lists the run's mode, point count, degraded
// points and the points that kept the most rules.
//
// Delivery is retried with a linearly growing delay.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"

	"github.com/rewired-gh/rulesweep/internal/models"
)

// TopPoints is the number of points listed in a run summary.
const TopPoints = 5

// sender is the subset of the bot API the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// RunSummary is the content of a completion notification.
type RunSummary struct {
	RunID    string
	Mode     string
	Dataset  string
	Points   []models.RunPoint
	Degraded []string
	Elapsed  time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create bot")
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: invalid chat ID")
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

// SendRunSummary sends the completion notification of a run
func (c *Client) SendRunSummary(ctx context.Context, s RunSummary) error {
	return c.send(ctx, formatMessage(s))
}

// SendError notifies that a run aborted with a fatal error
func (c *Client) SendError(ctx context.Context, mode string, runErr error) error {
	text := fmt.Sprintf("❌ *Rule sweep failed: %s*\n\n%s\n",
		escapeMarkdownV2(mode), escapeMarkdownV2(runErr.Error()))
	return c.send(ctx, text)
}

func (c *Client) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "telegram: send cancelled")
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return eris.Wrapf(lastErr, "telegram: send failed after %d attempts", c.maxRetries)
}

// topPoints returns up to k points with the most surviving rules. Ties keep
// point order.
func topPoints(points []models.RunPoint, k int) []models.RunPoint {
	sorted := make([]models.RunPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RulesAfterFilter > sorted[j].RulesAfterFilter
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// formatMessage formats a run summary into a MarkdownV2 message
func formatMessage(s RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *Rule sweep complete: %s*\n\n", escapeMarkdownV2(s.Mode))
	if s.Dataset != "" {
		fmt.Fprintf(&b, "📁 Dataset: %s\n", escapeMarkdownV2(s.Dataset))
	}
	fmt.Fprintf(&b, "🔢 Points: %d\n", len(s.Points))
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, "⏱ Elapsed: %s\n", escapeMarkdownV2(formatDuration(s.Elapsed)))
	}
	if s.RunID != "" {
		fmt.Fprintf(&b, "🆔 Run: `%s`\n", escapeMarkdownV2(s.RunID))
	}

	if len(s.Degraded) > 0 {
		fmt.Fprintf(&b, "\n⚠️ Degraded: %s\n", escapeMarkdownV2(strings.Join(s.Degraded, ", ")))
	}

	top := topPoints(s.Points, TopPoints)
	if len(top) > 0 {
		b.WriteString("\n*Most rules*\n")
	}
	for i, p := range top {
		fmt.Fprintf(&b, "%d\\. %s: *%d* rules, %d itemsets", i+1, escapeMarkdownV2(p.Point), p.RulesAfterFilter, p.FrequentItemsets)
		if p.NumClusters > 0 {
			fmt.Fprintf(&b, ", %d clusters \\(largest %d\\)", p.NumClusters, p.LargestClusterSize)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh%dm", hours, int(d.Minutes())%60)
	}
	if mins := int(d.Minutes()); mins >= 1 {
		return fmt.Sprintf("%dm%ds", mins, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
