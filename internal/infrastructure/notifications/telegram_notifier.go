package notifications

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/pkg/retry"
)

// telegramSender is the part of the bot API the notifier uses
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers alerts to a Telegram chat
type TelegramNotifier struct {
	bot      telegramSender
	chatID   int64
	retryCfg retry.Config
}

// NewTelegramNotifier creates a notifier. Creating the bot calls getMe, so a
// bad token fails here rather than on the first alert.
func NewTelegramNotifier(botToken, chatID string, retryCfg retry.Config) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, chatID, retryCfg)
}

func newTelegramNotifier(bot telegramSender, chatID string, retryCfg retry.Config) (*TelegramNotifier, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	return &TelegramNotifier{
		bot:      bot,
		chatID:   chatIDInt,
		retryCfg: retryCfg,
	}, nil
}

// Name identifies the channel in logs
func (n *TelegramNotifier) Name() string {
	return "telegram"
}

// Notify sends the alert, retrying failed deliveries
func (n *TelegramNotifier) Notify(ctx context.Context, event *entities.AlertEvent) error {
	msg := tgbotapi.NewMessage(n.chatID, markdownMessage(event))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	return retry.Do(ctx, n.retryCfg, "telegram send", func() error {
		_, err := n.bot.Send(msg)
		return err
	})
}
