package notifications

import (
	"fmt"

	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
	"github.com/zatekoja/hospitalintelligence/pkg/retry"
)

// NewNotifier builds the notifier for the configured alert channel. It
// returns nil when alert delivery is disabled.
func NewNotifier(cfg config.AlertsConfig) (providers.AlertNotifier, error) {
	retryCfg := retry.LinearConfig(cfg.MaxRetries, cfg.RetryDelayBase)

	switch cfg.Channel {
	case "", "none":
		return nil, nil
	case "telegram":
		notifier, err := NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, retryCfg)
		if err != nil {
			return nil, err
		}
		return notifier, nil
	case "whatsapp":
		sender, err := NewWhatsAppCloudSender(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppRecipient, retryCfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown alert channel %q", cfg.Channel)
	}
}
