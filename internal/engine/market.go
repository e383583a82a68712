package engine

import (
	"context"
	"fmt"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
)

// Quote is a product's current price and availability.
type Quote struct {
	Price        decimal.Decimal `json:"price"`
	Availability int             `json:"availability"`
}

// Cost returns price × quantity rounded to the minor unit.
func (q Quote) Cost(quantity int) decimal.Decimal {
	return models.RoundMoney(q.Price.Mul(decimal.NewFromInt(int64(quantity))))
}

// Market reads and mutates market rows within one transaction.
type Market struct {
	tx db.Tx
}

// NewMarket returns a market bound to tx.
func NewMarket(tx db.Tx) Market { return Market{tx: tx} }

// GetQuote fails with models.ErrProductNotFound for unknown products.
func (m Market) GetQuote(ctx context.Context, id models.ProductID) (Quote, error) {
	p, err := m.tx.Product(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Price: p.Price, Availability: p.Availability}, nil
}

// AdjustAvailability fails with models.ErrInsufficientAvailability if the
// availability would go negative.
func (m Market) AdjustAvailability(ctx context.Context, id models.ProductID, delta int) error {
	p, err := m.tx.Product(ctx, id)
	if err != nil {
		return err
	}
	if err := p.AdjustAvailability(delta); err != nil {
		return err
	}
	return m.tx.UpdateProduct(ctx, p)
}

// SetPrice replaces the price unconditionally and returns the previous one.
func (m Market) SetPrice(ctx context.Context, id models.ProductID, price decimal.Decimal) (*models.Product, decimal.Decimal, error) {
	p, err := m.tx.Product(ctx, id)
	if err != nil {
		return nil, decimal.Zero, err
	}
	old := p.Price
	p.SetPrice(price)
	if err := m.tx.UpdateProduct(ctx, p); err != nil {
		return nil, decimal.Zero, err
	}
	return p, old, nil
}

// PriceChange describes a committed price update.
type PriceChange struct {
	Product  models.Product  `json:"product"`
	OldPrice decimal.Decimal `json:"old_price"`
}

// Reprice computes a new price from the current one and stores it, holding
// the product's lock so no trade reads a price mid-update.
func (g *Game) Reprice(ctx context.Context, id models.ProductID, next func(decimal.Decimal) decimal.Decimal) (PriceChange, error) {
	unlock := g.locks.Lock(models.ProductKey(id))
	defer unlock()

	var change PriceChange
	err := g.store.Update(ctx, func(tx db.Tx) error {
		market := NewMarket(tx)
		q, err := market.GetQuote(ctx, id)
		if err != nil {
			return err
		}
		p, old, err := market.SetPrice(ctx, id, next(q.Price))
		if err != nil {
			return err
		}
		change = PriceChange{Product: *p, OldPrice: old}
		return nil
	})
	if err != nil {
		return PriceChange{}, fmt.Errorf("reprice product %d: %w", id, err)
	}
	return change, nil
}

// Products lists the market ordered by product id.
func (g *Game) Products(ctx context.Context) ([]*models.Product, error) {
	var out []*models.Product
	err := g.store.View(ctx, func(tx db.Tx) error {
		var err error
		out, err = tx.Products(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list market: %w", err)
	}
	return out, nil
}

// Quote returns the current quote of a product.
func (g *Game) Quote(ctx context.Context, id models.ProductID) (Quote, error) {
	var q Quote
	err := g.store.View(ctx, func(tx db.Tx) error {
		var err error
		q, err = NewMarket(tx).GetQuote(ctx, id)
		return err
	})
	if err != nil {
		return Quote{}, fmt.Errorf("quote product %d: %w", id, err)
	}
	return q, nil
}
