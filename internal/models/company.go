package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CompanyID identifies a company.
type CompanyID int64

var (
	// DefaultCompanyValue is the informational value of a new company.
	DefaultCompanyValue = decimal.NewFromInt(10000)
	// DefaultProfitMargin is the informational margin of a new company.
	DefaultProfitMargin = decimal.NewFromFloat(0.1)
)

// Company represents a company founded by one account
type Company struct {
	ID           CompanyID       `json:"id"`
	Name         string          `json:"name"`
	OwnerID      AccountID       `json:"owner_id"`
	Value        decimal.Decimal `json:"value"`
	ProfitMargin decimal.Decimal `json:"profit_margin"`
	TeamSize     int             `json:"team_size"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewCompany returns a company with the default informational figures.
func NewCompany(name string, owner AccountID, now time.Time) *Company {
	return &Company{
		Name:         name,
		OwnerID:      owner,
		Value:        DefaultCompanyValue,
		ProfitMargin: DefaultProfitMargin,
		TeamSize:     1,
		CreatedAt:    now,
	}
}

// MembershipStatus is the state of a membership row.
type MembershipStatus string

const (
	StatusPending  MembershipStatus = "pending"
	StatusAccepted MembershipStatus = "accepted"
)

// Valid reports whether s is a known status.
func (s MembershipStatus) Valid() bool {
	return s == StatusPending || s == StatusAccepted
}

// ParseMembershipStatus converts a stored status into a MembershipStatus.
func ParseMembershipStatus(s string) (MembershipStatus, error) {
	st := MembershipStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown membership status %q", s)
	}
	return st, nil
}

// Membership links an account to a company with a free-text role.
type Membership struct {
	CompanyID CompanyID        `json:"company_id"`
	AccountID AccountID        `json:"account_id"`
	Role      string           `json:"role"`
	Status    MembershipStatus `json:"status"`
	InvitedAt time.Time        `json:"invited_at"`
}

// Invite creates a pending membership. Re-inviting replaces any existing row.
func Invite(company CompanyID, account AccountID, role string, now time.Time) *Membership {
	return &Membership{
		CompanyID: company,
		AccountID: account,
		Role:      role,
		Status:    StatusPending,
		InvitedAt: now,
	}
}

// Accept moves a pending membership to accepted.
func (m *Membership) Accept() error {
	if m.Status != StatusPending {
		return ErrNoPendingInvitation
	}
	m.Status = StatusAccepted
	return nil
}

// Decline checks that a pending membership can be removed. Declined rows are
// deleted by the caller.
func (m *Membership) Decline() error {
	if m.Status != StatusPending {
		return ErrNoPendingInvitation
	}
	return nil
}

// Member is a membership joined with the member's display name.
type Member struct {
	Membership
	Username string `json:"username"`
}

// CompanyInfo is the owner's view of a company.
type CompanyInfo struct {
	Company Company  `json:"company"`
	Members []Member `json:"members"`
}
