package notify

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// TelegramConfig identifies the bot and the chat that receives pushes.
type TelegramConfig struct {
	Token  string `validate:"required"`
	ChatID string `validate:"required"`
}

// TelegramSink posts the push text to a chat through the Bot API.
type TelegramSink struct {
	cfg  TelegramConfig
	opts []tgbot.Option
	log  logrus.FieldLogger
}

// NewTelegramSink creates the sink. opts are passed to the bot client.
func NewTelegramSink(cfg TelegramConfig, logger logrus.FieldLogger, opts ...tgbot.Option) *TelegramSink {
	return &TelegramSink{
		cfg:  cfg,
		opts: opts,
		log:  logger.WithField("component", "telegram_sink"),
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Validate() error {
	return validate.Struct(s.cfg)
}

func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	b, err := tgbot.New(s.cfg.Token, s.opts...)
	if err != nil {
		s.log.WithError(err).Error("Failed to create Telegram bot instance")
		return fmt.Errorf("%w: failed to create bot: %w", domain.ErrDelivery, err)
	}

	_, err = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: s.cfg.ChatID,
		Text:   telegramText(msg),
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to send Telegram message")
		return fmt.Errorf("%w: failed to send message: %w", domain.ErrDelivery, err)
	}

	s.log.WithField("chat_id", s.cfg.ChatID).Info("Telegram message sent")
	return nil
}

func telegramText(msg Message) string {
	parts := []string{msg.Title, msg.Content}
	if msg.Link != "" {
		parts = append(parts, msg.Link)
	}
	return strings.Join(parts, "\n\n")
}
