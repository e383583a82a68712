package models

import "github.com/shopspring/decimal"

// MinorUnits is the number of decimal places kept for currency amounts.
const MinorUnits = 2

var (
	// StartingBalance is credited to every new account.
	StartingBalance = decimal.NewFromInt(1000)
	// ReferralBonus is paid once to an inviter when their code is used.
	ReferralBonus = decimal.NewFromInt(1000)
	// FoundingCost is debited from a founder when a company is created.
	FoundingCost = decimal.NewFromInt(100)
	// MinPrice is the lowest price a product can be listed at.
	MinPrice = decimal.New(1, -MinorUnits)
)

// RoundMoney rounds d half away from zero to the currency's minor unit.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnits)
}

// FormatMoney renders d with exactly two decimals, e.g. "930.00".
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MinorUnits)
}
