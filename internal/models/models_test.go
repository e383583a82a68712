package models

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccount_DebitCredit(t *testing.T) {
	a := &Account{ID: 1, Balance: money("100.00")}

	require.NoError(t, a.Debit(money("30.25")))
	assert.Equal(t, "69.75", FormatMoney(a.Balance))

	assert.ErrorIs(t, a.Debit(money("69.76")), ErrInsufficientFunds)
	assert.Equal(t, "69.75", FormatMoney(a.Balance))

	require.NoError(t, a.Debit(money("69.75")))
	assert.True(t, a.Balance.IsZero())

	require.NoError(t, a.Credit(money("1000")))
	assert.Equal(t, "1000.00", FormatMoney(a.Balance))

	assert.ErrorIs(t, a.Debit(money("-1")), ErrInvalidArgument)
	assert.ErrorIs(t, a.Credit(money("-1")), ErrInvalidArgument)
}

func TestPortfolio_Adjust(t *testing.T) {
	p := Portfolio{}

	require.NoError(t, p.Adjust(5, 3))
	assert.Equal(t, 3, p.Quantity(5))

	assert.ErrorIs(t, p.Adjust(5, -4), ErrInsufficientHoldings)
	assert.Equal(t, 3, p.Quantity(5))

	require.NoError(t, p.Adjust(5, -3))
	_, present := p[5]
	assert.False(t, present, "zero holdings are removed")
	assert.Equal(t, 0, p.Quantity(6))
}

func TestAccount_CloneIsDeep(t *testing.T) {
	a := &Account{ID: 1, Portfolio: Portfolio{5: 2}}
	c := a.Clone()

	require.NoError(t, c.AdjustHolding(5, 1))

	assert.Equal(t, 2, a.Portfolio.Quantity(5))
	assert.Equal(t, 3, c.Portfolio.Quantity(5))
}

func TestAccount_AdjustHoldingOnNilPortfolio(t *testing.T) {
	a := &Account{ID: 1}
	require.NoError(t, a.AdjustHolding(2, 4))
	assert.Equal(t, 4, a.Portfolio.Quantity(2))
}

func TestProduct_AvailabilityAndPrice(t *testing.T) {
	p := &Product{ID: 4, Name: "Palladium", Price: money("2300"), Availability: 300}

	assert.ErrorIs(t, p.AdjustAvailability(-301), ErrInsufficientAvailability)
	require.NoError(t, p.AdjustAvailability(-300))
	assert.Equal(t, 0, p.Availability)

	p.SetPrice(money("4.155"))
	assert.Equal(t, "4.16", FormatMoney(p.Price))

	p.SetPrice(money("0.001"))
	assert.Equal(t, "0.01", FormatMoney(p.Price))
}

func TestTransaction_Total(t *testing.T) {
	tx := Transaction{Quantity: 3, UnitPrice: money("4.15")}
	assert.Equal(t, "12.45", FormatMoney(tx.Total()))
}

func TestMembership_Transitions(t *testing.T) {
	m := Invite(1, 2, "CTO", time.Unix(0, 0))
	assert.Equal(t, StatusPending, m.Status)
	require.NoError(t, m.Decline())

	require.NoError(t, m.Accept())
	assert.Equal(t, StatusAccepted, m.Status)
	assert.ErrorIs(t, m.Accept(), ErrNoPendingInvitation)
	assert.ErrorIs(t, m.Decline(), ErrNoPendingInvitation)
}

func TestParseMembershipStatus(t *testing.T) {
	s, err := ParseMembershipStatus("accepted")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, s)

	_, err = ParseMembershipStatus("declined")
	assert.Error(t, err)
}

func TestNewCompany_Defaults(t *testing.T) {
	c := NewCompany("Acme", 7, time.Unix(0, 0))
	assert.Equal(t, "10000.00", FormatMoney(c.Value))
	assert.Equal(t, "0.10", FormatMoney(c.ProfitMargin))
	assert.Equal(t, 1, c.TeamSize)
}

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("buy for account 3: %w", ErrInsufficientFunds)

	assert.Equal(t, "Insufficient funds.", UserMessage(wrapped))
	assert.True(t, IsDomainError(wrapped))

	other := errors.New("disk full")
	assert.Equal(t, "Something went wrong. Please try again later.", UserMessage(other))
	assert.False(t, IsDomainError(other))
}

func TestLockManager_SerializesSameKey(t *testing.T) {
	lm := NewLockManager()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lm.Lock(AccountKey(1))
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestLockManager_OverlappingKeysDoNotDeadlock(t *testing.T) {
	lm := NewLockManager()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := lm.Lock(AccountKey(1), ProductKey(5))
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := lm.Lock(ProductKey(5), AccountKey(1), AccountKey(1))
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock acquisition deadlocked")
	}
}
