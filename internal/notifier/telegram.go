package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

const telegramMaxMessageLength = 4096

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken string // Bot API token from @BotFather
}

// Validate validates the Telegram configuration.
func (c *TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token is required")
	}
	return nil
}

// TelegramBot is the part of tgbotapi.BotAPI the notifier uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alert messages to Telegram chats through a bot.
type TelegramNotifier struct {
	bot TelegramBot
}

// NewTelegramNotifier authenticates the bot token and creates a notifier.
func NewTelegramNotifier(config TelegramConfig) (*TelegramNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telegram config: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return NewTelegramNotifierWithBot(bot), nil
}

// NewTelegramNotifierWithBot wraps an existing bot client.
func NewTelegramNotifierWithBot(bot TelegramBot) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// Channel returns the telegram channel.
func (t *TelegramNotifier) Channel() models.Channel {
	return models.ChannelTelegram
}

// Send delivers msg to every chat id in to. Every chat is attempted.
func (t *TelegramNotifier) Send(ctx context.Context, msg *Message, to []string) error {
	parts := splitMessage(summary(msg), telegramMaxMessageLength)

	var errs []error
	for _, raw := range to {
		if err := ctx.Err(); err != nil {
			return err
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid chat id %q", raw))
			continue
		}
		for _, part := range parts {
			if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
				errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op for Telegram notifier.
func (t *TelegramNotifier) Close() error {
	return nil
}

// splitMessage cuts text into chunks of at most max bytes, preferring line breaks.
func splitMessage(text string, max int) []string {
	var parts []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut <= 0 {
			cut = max
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
