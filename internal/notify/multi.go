package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
)

// Multi sends each message through every notifier. Delivery succeeds when at
// least one of them accepted the message.
type Multi []engine.Notifier

var _ engine.Notifier = Multi(nil)

func (m Multi) Notify(ctx context.Context, account models.AccountID, text string) error {
	return m.each(func(n engine.Notifier) error { return n.Notify(ctx, account, text) })
}

func (m Multi) NotifyWithImage(ctx context.Context, account models.AccountID, text, imageRef string) error {
	return m.each(func(n engine.Notifier) error { return n.NotifyWithImage(ctx, account, text, imageRef) })
}

func (m Multi) each(send func(engine.Notifier) error) error {
	if len(m) == 0 {
		return fmt.Errorf("no notifier configured: %w", models.ErrDeliveryFailure)
	}
	var errs []error
	for _, n := range m {
		if err := send(n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) < len(m) {
		return nil
	}
	return errors.Join(errs...)
}
