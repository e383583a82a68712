package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountID is the external identity of a participant (a chat id).
type AccountID int64

// ProductID identifies a catalog product.
type ProductID int

// Account represents a participant's balance, holdings and identity record
type Account struct {
	ID         AccountID       `json:"id"`
	Username   string          `json:"username"`
	Balance    decimal.Decimal `json:"balance"`
	Portfolio  Portfolio       `json:"portfolio"`
	InviteCode string          `json:"invite_code"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	c.Portfolio = a.Portfolio.Clone()
	return &c
}

// Debit removes amount from the balance. The balance never goes negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative debit %s", ErrInvalidArgument, amount)
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = RoundMoney(a.Balance.Sub(amount))
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative credit %s", ErrInvalidArgument, amount)
	}
	a.Balance = RoundMoney(a.Balance.Add(amount))
	return nil
}

// AdjustHolding changes the quantity held of product by delta.
func (a *Account) AdjustHolding(product ProductID, delta int) error {
	if a.Portfolio == nil {
		a.Portfolio = Portfolio{}
	}
	return a.Portfolio.Adjust(product, delta)
}

// Portfolio maps products to strictly positive quantities. A missing key means zero.
type Portfolio map[ProductID]int

// Quantity returns how many units of product are held.
func (p Portfolio) Quantity(product ProductID) int {
	return p[product]
}

// Adjust applies delta to the holding of product, removing the entry when it
// reaches zero.
func (p Portfolio) Adjust(product ProductID, delta int) error {
	next := p[product] + delta
	switch {
	case next < 0:
		return ErrInsufficientHoldings
	case next == 0:
		delete(p, product)
	default:
		p[product] = next
	}
	return nil
}

// Clone returns a copy of the portfolio.
func (p Portfolio) Clone() Portfolio {
	c := make(Portfolio, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Product represents a market row
type Product struct {
	ID           ProductID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Availability int             `json:"availability"`
}

// AdjustAvailability changes the listed availability by delta.
func (p *Product) AdjustAvailability(delta int) error {
	if p.Availability+delta < 0 {
		return ErrInsufficientAvailability
	}
	p.Availability += delta
	return nil
}

// SetPrice replaces the current price, rounded to the minor unit. Prices stay
// at or above the smallest representable amount.
func (p *Product) SetPrice(price decimal.Decimal) {
	price = RoundMoney(price)
	if price.LessThan(MinPrice) {
		price = MinPrice
	}
	p.Price = price
}

// TradeKind is the direction of a trade.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// Transaction represents an append-only buy/sell audit record
type Transaction struct {
	ID        int64           `json:"id"`
	AccountID AccountID       `json:"account_id"`
	Kind      TradeKind       `json:"kind"`
	ProductID ProductID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// Total returns quantity × unit price.
func (t Transaction) Total() decimal.Decimal {
	return RoundMoney(t.UnitPrice.Mul(decimal.NewFromInt(int64(t.Quantity))))
}

// TradeRequest - what client sends to buy or sell products
type TradeRequest struct {
	AccountID AccountID `json:"account_id" binding:"required"`
	ProductID ProductID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"omitempty,min=1"`
}

// Holding is one line of a portfolio view.
type Holding struct {
	ProductID ProductID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Value     decimal.Decimal `json:"value"`
}

// PortfolioResponse - what we send back to client
type PortfolioResponse struct {
	Holdings   []Holding       `json:"holdings"`
	Balance    decimal.Decimal `json:"balance"`
	TotalValue decimal.Decimal `json:"total_value"`
}
