// Package events perturbs market prices in the background and broadcasts each
// change to every participant.
package events

import (
	"fmt"

	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
)

// Kind is a market event type.
type Kind int

const (
	Boom Kind = iota
	Crash
)

// Kinds lists every event kind, in the order they are drawn from.
var Kinds = []Kind{Boom, Crash}

var (
	boomFactor  = decimal.RequireFromString("1.20")
	crashFactor = decimal.RequireFromString("0.80")
)

func (k Kind) String() string {
	switch k {
	case Boom:
		return "boom"
	case Crash:
		return "crash"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Factor is the price multiplier of the event.
func (k Kind) Factor() decimal.Decimal {
	if k == Boom {
		return boomFactor
	}
	return crashFactor
}

// Text is the notice broadcast for an event on product.
func (k Kind) Text(product string) string {
	if k == Boom {
		return fmt.Sprintf("Sudden demand increase for %s! Prices are rising.", product)
	}
	return fmt.Sprintf("Demand drop for %s! Prices are falling.", product)
}

// Apply returns the price after the event, rounded to the minor unit.
func Apply(kind Kind, price decimal.Decimal) decimal.Decimal {
	return models.RoundMoney(price.Mul(kind.Factor()))
}
