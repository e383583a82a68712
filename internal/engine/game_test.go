package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	gold      models.ProductID = 1
	palladium models.ProductID = 4
	oil       models.ProductID = 5
	copper    models.ProductID = 6
)

type message struct {
	Account models.AccountID
	Text    string
	Image   string
}

// recordingNotifier captures messages and fails for the accounts in fail.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []message
	fail map[models.AccountID]bool
}

func (n *recordingNotifier) Notify(ctx context.Context, account models.AccountID, text string) error {
	return n.NotifyWithImage(ctx, account, text, "")
}

func (n *recordingNotifier) NotifyWithImage(_ context.Context, account models.AccountID, text, image string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[account] {
		return fmt.Errorf("account %d blocked the bot: %w", account, models.ErrDeliveryFailure)
	}
	n.sent = append(n.sent, message{Account: account, Text: text, Image: image})
	return nil
}

func (n *recordingNotifier) messages() []message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]message(nil), n.sent...)
}

var testEpoch = time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

// setupGame returns a game over a seeded memory store whose clock advances
// one second per call and whose invite codes are code-1, code-2, ...
func setupGame(t *testing.T) (*Game, db.Store, *recordingNotifier) {
	t.Helper()
	store := db.SetupTestStore(t)
	notifier := &recordingNotifier{fail: map[models.AccountID]bool{}}

	var (
		mu    sync.Mutex
		ticks int
		codes int
	)
	g := New(store, notifier, Options{
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			ticks++
			return testEpoch.Add(time.Duration(ticks) * time.Second)
		},
		InviteCode: func() string {
			mu.Lock()
			defer mu.Unlock()
			codes++
			return fmt.Sprintf("code-%d", codes)
		},
		InviteLinkBase: "https://t.me/TestBot?start=",
		WelcomeImage:   "welcome.png",
		ReferralImage:  "referral.png",
		Rand:           rand.New(rand.NewPCG(1, 2)),
	})
	return g, store, notifier
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// storeState is everything a failed operation must leave untouched.
type storeState struct {
	Accounts []*models.Account
	Products []*models.Product
	Trades   map[models.AccountID][]models.Transaction
}

func captureState(t *testing.T, store db.Store) storeState {
	t.Helper()
	ctx := context.Background()
	st := storeState{Trades: map[models.AccountID][]models.Transaction{}}
	require.NoError(t, store.View(ctx, func(tx db.Tx) error {
		var err error
		if st.Accounts, err = tx.Accounts(ctx); err != nil {
			return err
		}
		if st.Products, err = tx.Products(ctx); err != nil {
			return err
		}
		for _, a := range st.Accounts {
			if st.Trades[a.ID], err = tx.Transactions(ctx, a.ID, 1000); err != nil {
				return err
			}
		}
		return nil
	}))
	return st
}

func requireInvariants(t *testing.T, store db.Store) {
	t.Helper()
	for _, a := range captureState(t, store).Accounts {
		require.False(t, a.Balance.IsNegative(), "account %d balance %s", a.ID, a.Balance)
		for product, qty := range a.Portfolio {
			require.Positive(t, qty, "account %d product %d", a.ID, product)
		}
	}
	for _, p := range captureState(t, store).Products {
		require.GreaterOrEqual(t, p.Availability, 0, "product %d", p.ID)
	}
}
