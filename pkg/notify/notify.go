// Package notify sends operator alerts for fatal invariant violations
// and clean-shutdown notices over Telegram. Only the outbound send path
// exists; this system never accepts operator commands back, so there is
// no inbound update loop.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sink delivers a single operator-facing alert string.
type Sink interface {
	Notify(text string)
}

// NoopSink discards every notification. Used when no operator channel is
// configured; the pipeline still runs, it just has no alert destination.
type NoopSink struct{}

// Notify implements Sink.
func (NoopSink) Notify(string) {}

// TelegramSink posts alerts to a single configured chat via a Telegram bot.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegramSink authenticates against the Telegram Bot API and returns a
// Sink that posts to chatID.
func NewTelegramSink(token string, chatID int64, logger *slog.Logger) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	slog.Info("notify: telegram bot authorized", "username", bot.Self.UserName)
	return &TelegramSink{bot: bot, chatID: chatID, logger: logger}, nil
}

// Notify implements Sink. Delivery failures are logged, never returned:
// an alert-sink outage must not become a second failure on top of the one
// being reported.
func (s *TelegramSink) Notify(text string) {
	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error("notify: failed to deliver telegram alert", "error", err)
	}
}
