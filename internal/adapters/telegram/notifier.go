package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет сводки импорта и синхронизации в служебный чат.
type Notifier struct {
	bot    sender
	chatID int64
	logger zerolog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier подключается к Bot API. Пустой токен даёт Nop.
func NewNotifier(token string, chatID int64, logger zerolog.Logger) (domain.Notifier, error) {
	if token == "" || chatID == 0 {
		return Nop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot api: %w", err)
	}
	return newNotifier(bot, chatID, logger), nil
}

func newNotifier(bot sender, chatID int64, logger zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, chatID: chatID, logger: logger.With().Str("component", "telegram").Logger()}
}

// Notify отправляет текст частями. Ошибка первой неудачной части прерывает отправку.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	target := strconv.FormatInt(n.chatID, 10)
	for _, part := range SplitMessage(text, MessageLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "send_message", target, start, err)
		if err != nil {
			n.logger.Error().Err(err).Msg("telegram: не удалось отправить уведомление")
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// Nop молча отбрасывает уведомления.
type Nop struct{}

// Notify ничего не делает.
func (Nop) Notify(context.Context, string) error { return nil }
