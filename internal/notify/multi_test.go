package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/atharvakonge/market-game/internal/models"
	"github.com/stretchr/testify/assert"
)

type stubNotifier struct {
	fail bool
	sent []string
}

func (s *stubNotifier) Notify(_ context.Context, _ models.AccountID, text string) error {
	if s.fail {
		return fmt.Errorf("stub: %w", models.ErrDeliveryFailure)
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubNotifier) NotifyWithImage(ctx context.Context, account models.AccountID, text, _ string) error {
	return s.Notify(ctx, account, text)
}

func TestMulti(t *testing.T) {
	ok, broken := &stubNotifier{}, &stubNotifier{fail: true}

	assert.NoError(t, Multi{broken, ok}.Notify(context.Background(), 1, "a"))
	assert.Equal(t, []string{"a"}, ok.sent)

	other := &stubNotifier{}
	assert.NoError(t, Multi{ok, other}.NotifyWithImage(context.Background(), 1, "b", "img"))
	assert.Equal(t, []string{"a", "b"}, ok.sent)
	assert.Equal(t, []string{"b"}, other.sent)

	assert.ErrorIs(t, Multi{broken, broken}.Notify(context.Background(), 1, "c"), models.ErrDeliveryFailure)
	assert.ErrorIs(t, Multi{}.Notify(context.Background(), 1, "d"), models.ErrDeliveryFailure)
}
