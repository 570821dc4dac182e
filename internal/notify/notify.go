// internal/notify/notify.go
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers the one summary notification a sync run produces.
type Notifier interface {
	Notify(summary string) error
}

// Log is the default Notifier; it writes the summary to the log.
type Log struct{}

func (Log) Notify(summary string) error {
	slog.Info("sync summary", "summary", summary)
	return nil
}

// Telegram sends sync summaries to a chat via a bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(summary string) error {
	msg := tgbotapi.NewMessage(t.chatID, summary)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	return nil
}
