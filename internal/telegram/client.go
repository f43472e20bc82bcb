package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

// Client sends messages through the Telegram Bot API.
type Client struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewClient authorizes the bot token against the Bot API.
func NewClient(token string, logger *zap.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Client{api: api, logger: logger}, nil
}

// SetWebhook points Telegram at the webhook endpoint of this server.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}
	resp, err := c.api.Request(wh)
	if err != nil {
		return fmt.Errorf("failed to set webhook to %s: %w", url, err)
	}
	c.logger.Info("telegram webhook set", zap.String("url", url), zap.String("description", resp.Description))
	return nil
}

// Send delivers text to chatID, split into several messages when it is
// longer than MaxMessageLength.
func (c *Client) Send(ctx context.Context, chatID int64, text, parseMode string) error {
	for _, part := range SplitMessage(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = parseMode
		if _, err := c.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	return nil
}

// SplitMessage cuts text at line breaks into parts of at most limit runes.
// A single line longer than limit is cut hard.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for utf8.RuneCountInString(line) > limit {
			flush()
			r := []rune(line)
			parts = append(parts, string(r[:limit]))
			line = string(r[limit:])
		}
		n := utf8.RuneCountInString(line)
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return parts
}
