// Package telegram connects the game to a Telegram bot: it delivers
// notifications to chats and turns chat commands into game operations.
package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/atharvakonge/market-game/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the package uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers messages to the private chat of each account. Account
// ids are Telegram user ids, which double as private chat ids.
type Notifier struct {
	bot Sender
}

// NewNotifier returns a notifier sending through bot.
func NewNotifier(bot Sender) *Notifier {
	return &Notifier{bot: bot}
}

func (n *Notifier) Notify(_ context.Context, account models.AccountID, text string) error {
	_, err := n.bot.Send(tgbotapi.NewMessage(int64(account), text))
	return deliveryError(account, err)
}

// NotifyWithImage sends imageRef, a URL, as a photo captioned with text.
func (n *Notifier) NotifyWithImage(_ context.Context, account models.AccountID, text, imageRef string) error {
	photo := tgbotapi.NewPhoto(int64(account), tgbotapi.FileURL(imageRef))
	photo.Caption = text
	_, err := n.bot.Send(photo)
	return deliveryError(account, err)
}

// deliveryError classifies a send failure. Every failure is a per-recipient
// delivery failure; blocked bots and unknown chats are named as such.
func deliveryError(account models.AccountID, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 403:
			return fmt.Errorf("chat %d blocked the bot: %w", account, models.ErrDeliveryFailure)
		case 400:
			return fmt.Errorf("chat %d: %s: %w", account, apiErr.Message, models.ErrDeliveryFailure)
		}
	}
	return fmt.Errorf("send to chat %d: %w: %w", account, models.ErrDeliveryFailure, err)
}
