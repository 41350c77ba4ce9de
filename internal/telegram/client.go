// Package telegram announces room state changes to a Telegram chat.
//
// Messages use MarkdownV2 and are retried with a linear backoff. Delivery
// stops early when the context is cancelled.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbotapi.BotAPI the client needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
	loc            *time.Location
}

// NewClient creates a new Telegram client. Message times are shown in loc.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, loc *time.Location) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c := newClient(bot, chatIDInt, maxRetries, retryDelayBase)
	if loc != nil {
		c.loc = loc
	}
	return c, nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		now:            time.Now,
		loc:            time.Local,
	}
}

// Announce sends the new room state with the optional prediction line
func (c *Client) Announce(ctx context.Context, open bool, prediction string) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(open, prediction, c.now().In(c.loc)))
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
			return fmt.Errorf("telegram send cancelled: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders a state change as a MarkdownV2 message
func formatMessage(open bool, prediction string, at time.Time) string {
	var b strings.Builder

	if open {
		b.WriteString("🟢 *Room is open*\n")
	} else {
		b.WriteString("🔴 *Room is closed*\n")
	}
	b.WriteString("📅 ")
	b.WriteString(escapeMarkdownV2(at.Format("2006-01-02 15:04")))
	b.WriteString("\n")

	if prediction != "" {
		b.WriteString("\n🔮 ")
		b.WriteString(escapeMarkdownV2(prediction))
		b.WriteString("\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
