package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"weekplan/internal/app"
	"weekplan/internal/planner"
	"weekplan/internal/recipe"
	"weekplan/internal/shopping"
)

// HelpText is the reply to anything the bot does not understand.
const HelpText = "Unbekannter Befehl. Nutze: add | list | plan | swap | confirm | cancel"

const swapUsage = "Beispiel: swap 2 5 7 oder swap di fr so"

// ErrNotAllowed is returned for senders outside TELEGRAM_ALLOWLIST.
var ErrNotAllowed = errors.New("telegram user not allowed")

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text, parseMode string) error
}

// Bot answers chat commands for the household.
type Bot struct {
	app    *app.App
	sender Sender
	logger *zap.Logger
}

// NewBot creates a new Bot instance
func NewBot(a *app.App, sender Sender, logger *zap.Logger) *Bot {
	return &Bot{app: a, sender: sender, logger: logger}
}

// HandleUpdate processes one webhook update. The chat id is recorded for
// push notifications before the sender is checked against the allowlist.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}

	if err := b.app.Settings().SetLastChatID(ctx, msg.Chat.ID); err != nil {
		b.logger.Warn("failed to record last chat id", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}

	if !b.app.Config().IsAllowedTelegramUser(msg.From.ID) {
		b.logger.Warn("unauthorized telegram access attempt",
			zap.Int64("user_id", msg.From.ID),
			zap.String("username", msg.From.UserName),
		)
		return ErrNotAllowed
	}

	text, parseMode := b.Reply(ctx, msg.Text, strconv.FormatInt(msg.From.ID, 10))
	if err := b.sender.Send(ctx, msg.Chat.ID, text, parseMode); err != nil {
		b.logger.Error("failed to send telegram reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
	return nil
}

// Reply runs a chat command and returns the answer with its parse mode.
func (b *Bot) Reply(ctx context.Context, text, sender string) (string, string) {
	cmd := strings.TrimSpace(text)
	lower := strings.ToLower(cmd)
	fields := strings.Fields(lower)

	switch {
	case strings.HasPrefix(lower, "add "):
		rec, err := b.app.AddRecipe(ctx, cmd, sender)
		if err != nil {
			return "❌ Konnte nicht speichern: " + err.Error() + "\n" + recipe.AddUsage, ""
		}
		return "✅ Gespeichert: " + rec.Title, ""

	case lower == "list":
		recent, err := b.app.Recipes().ListRecent(ctx, app.RecentLimit, "")
		if err != nil {
			return b.failure("list", err), ""
		}
		return app.FormatRecent(recent), ""

	case len(fields) > 0 && (fields[0] == "shop" || fields[0] == "einkauf"):
		mode := shopping.ParseMode(strings.Join(fields[1:], " "))
		v, err := b.app.Shop(ctx, mode, false)
		if err != nil {
			return b.failure("shop", err), ""
		}
		if !v.OK {
			return v.Message, ""
		}
		return v.TelegramMessage, v.ParseMode

	case lower == "plan":
		v, err := b.app.BuildPlan(ctx, false)
		if err != nil {
			return b.failure("plan", err), ""
		}
		return v.Message, ""

	case strings.HasPrefix(lower, "swap"):
		days, err := planner.ParseSwapDays(cmd)
		if err != nil {
			return fmt.Sprintf("❌ swap Fehler: %v\n%s", err, swapUsage), ""
		}
		v, err := b.app.Swap(ctx, days, sender)
		if err != nil {
			return fmt.Sprintf("❌ swap Fehler: %v\n%s", err, swapUsage), ""
		}
		return v.Message, ""

	case lower == "confirm":
		v, err := b.app.Confirm(ctx)
		if err != nil {
			return b.failure("confirm", err), ""
		}
		return v.Message, ""

	case lower == "cancel":
		v, err := b.app.Cancel(ctx)
		if err != nil {
			return b.failure("cancel", err), ""
		}
		if v.OK {
			return planner.CancelledChat, ""
		}
		return v.Message, ""
	}

	b.logger.Info("unknown chat command", zap.String("sender", sender), zap.String("text", cmd))
	return HelpText, ""
}

func (b *Bot) failure(command string, err error) string {
	b.logger.Error("chat command failed", zap.String("command", command), zap.Error(err))
	return fmt.Sprintf("❌ Fehler bei %s: %v", command, err)
}
