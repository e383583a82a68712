package engine

import (
	"context"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
)

// Ledger applies balance and holding changes to accounts within one
// transaction. The non-negative balance and positive quantity rules live on
// models.Account; the Ledger persists the result only when they hold.
type Ledger struct {
	tx db.Tx
}

// NewLedger returns a ledger bound to tx.
func NewLedger(tx db.Tx) Ledger { return Ledger{tx: tx} }

// Apply loads account, runs fn against it and saves it if fn succeeds.
func (l Ledger) Apply(ctx context.Context, id models.AccountID, fn func(*models.Account) error) (*models.Account, error) {
	a, err := l.tx.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	if err := l.tx.UpdateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Debit fails with models.ErrInsufficientFunds if the balance is below amount.
func (l Ledger) Debit(ctx context.Context, id models.AccountID, amount decimal.Decimal) (*models.Account, error) {
	return l.Apply(ctx, id, func(a *models.Account) error { return a.Debit(amount) })
}

// Credit always succeeds for an existing account.
func (l Ledger) Credit(ctx context.Context, id models.AccountID, amount decimal.Decimal) (*models.Account, error) {
	return l.Apply(ctx, id, func(a *models.Account) error { return a.Credit(amount) })
}

// AdjustHolding fails with models.ErrInsufficientHoldings if the quantity
// would go negative and drops the entry when it reaches zero.
func (l Ledger) AdjustHolding(ctx context.Context, id models.AccountID, product models.ProductID, delta int) (*models.Account, error) {
	return l.Apply(ctx, id, func(a *models.Account) error { return a.AdjustHolding(product, delta) })
}
