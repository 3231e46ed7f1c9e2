// Package notify is an optional secondary notification channel
// alongside the callback POST (internal/callback): it posts experiment
// lifecycle events to a Telegram chat, for operators who want a push
// rather than polling the HTTP surface.
//
// Grounded on Aureuma-si/agents/telegram-bot's use of
// go-telegram-bot-api/telegram-bot-api — the bot-init + ChatID-targeted
// tgbotapi.NewMessage send shape, trimmed down to the one notifier
// needs (no inbound command polling, since this package only emits).
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/LuuuXXX/crater-ohos/internal/callback"
)

// TelegramNotifier posts experiment lifecycle events to a fixed chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authenticates against the Telegram Bot API with
// token and targets chatID for every subsequent Notify call.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram bot init: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Notify sends a short summary of a callback.Payload as a chat message.
// Failures are returned to the caller (unlike internal/callback's
// retries, a missed Telegram notification is not retried — it's a
// convenience channel, not the system of record).
func (n *TelegramNotifier) Notify(p callback.Payload) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatMessage(p))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: send telegram message: %w", err)
	}
	return nil
}

// FormatMessage renders the chat text for p. Split out from Notify so it
// can be tested without a live Telegram bot (NewTelegramNotifier itself
// calls the Bot API's getMe during construction).
func FormatMessage(p callback.Payload) string {
	text := fmt.Sprintf("%s %s: %s", emojiFor(p.Event), p.Experiment, p.Status)
	if p.Error != "" {
		text += "\n" + p.Error
	}
	if p.ReportURL != "" {
		text += "\n" + p.ReportURL
	}
	return text
}

func emojiFor(e callback.Event) string {
	switch e {
	case callback.ExperimentStarted:
		return "▶️"
	case callback.ExperimentCompleted:
		return "✅"
	case callback.ExperimentFailed:
		return "❌"
	case callback.ExperimentAborted:
		return "🛑"
	default:
		return "ℹ️"
	}
}
