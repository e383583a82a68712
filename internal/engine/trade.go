package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
)

// HistoryLimit caps the number of records returned by History.
const HistoryLimit = 50

func validQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidArgument, quantity)
	}
	return nil
}

// Buy purchases quantity units of product at the price current when the
// transaction commits.
func (g *Game) Buy(ctx context.Context, account models.AccountID, product models.ProductID, quantity int) (*models.Transaction, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}

	// Lock this account and product only (not global!)
	unlock := g.locks.Lock(models.AccountKey(account), models.ProductKey(product))
	defer unlock()

	var rec *models.Transaction
	err := g.store.Update(ctx, func(tx db.Tx) error {
		market := NewMarket(tx)

		// 1. Quote is read inside the transaction, under the product lock
		quote, err := market.GetQuote(ctx, product)
		if err != nil {
			return err
		}
		if quantity > quote.Availability {
			return models.ErrInsufficientAvailability
		}
		cost := quote.Cost(quantity)

		// 2. Debit cash and add the holding
		if _, err := NewLedger(tx).Apply(ctx, account, func(a *models.Account) error {
			if err := a.Debit(cost); err != nil {
				return err
			}
			return a.AdjustHolding(product, quantity)
		}); err != nil {
			return err
		}

		// 3. Take the units off the market
		if err := market.AdjustAvailability(ctx, product, -quantity); err != nil {
			return err
		}

		// 4. Record trade
		rec = &models.Transaction{
			AccountID: account,
			Kind:      models.TradeBuy,
			ProductID: product,
			Quantity:  quantity,
			UnitPrice: quote.Price,
			CreatedAt: g.now(),
		}
		return tx.AppendTransaction(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("buy product %d: %w", product, err)
	}

	log.Printf("Account %d bought %d x product %d for %s", account, quantity, product, models.FormatMoney(rec.Total()))
	return rec, nil
}

// Sell returns quantity units of product to the market at the price current
// when the transaction commits.
func (g *Game) Sell(ctx context.Context, account models.AccountID, product models.ProductID, quantity int) (*models.Transaction, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}

	unlock := g.locks.Lock(models.AccountKey(account), models.ProductKey(product))
	defer unlock()

	var rec *models.Transaction
	err := g.store.Update(ctx, func(tx db.Tx) error {
		market := NewMarket(tx)

		quote, err := market.GetQuote(ctx, product)
		if err != nil {
			return err
		}
		proceeds := quote.Cost(quantity)

		// 1. Remove the holding and add proceeds
		if _, err := NewLedger(tx).Apply(ctx, account, func(a *models.Account) error {
			if a.Portfolio.Quantity(product) < quantity {
				return models.ErrInsufficientHoldings
			}
			if err := a.AdjustHolding(product, -quantity); err != nil {
				return err
			}
			return a.Credit(proceeds)
		}); err != nil {
			return err
		}

		// 2. Put the units back on the market
		if err := market.AdjustAvailability(ctx, product, quantity); err != nil {
			return err
		}

		// 3. Record trade
		rec = &models.Transaction{
			AccountID: account,
			Kind:      models.TradeSell,
			ProductID: product,
			Quantity:  quantity,
			UnitPrice: quote.Price,
			CreatedAt: g.now(),
		}
		return tx.AppendTransaction(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("sell product %d: %w", product, err)
	}

	log.Printf("Account %d sold %d x product %d for %s", account, quantity, product, models.FormatMoney(rec.Total()))
	return rec, nil
}

// History returns an account's most recent trades, newest first.
func (g *Game) History(ctx context.Context, account models.AccountID) ([]models.Transaction, error) {
	var out []models.Transaction
	err := g.store.View(ctx, func(tx db.Tx) error {
		if _, err := tx.Account(ctx, account); err != nil {
			return err
		}
		var err error
		out, err = tx.Transactions(ctx, account, HistoryLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	return out, nil
}
