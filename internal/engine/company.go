package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
)

// CreateCompany founds a company owned by founder and charges the founding
// cost in the same transaction.
func (g *Game) CreateCompany(ctx context.Context, founder models.AccountID, name string) (*models.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is required", models.ErrInvalidArgument)
	}

	unlock := g.locks.Lock(models.AccountKey(founder))
	defer unlock()

	var company *models.Company
	err := g.store.Update(ctx, func(tx db.Tx) error {
		if _, err := tx.CompanyByOwner(ctx, founder); err == nil {
			return models.ErrCompanyAlreadyOwned
		} else if !errors.Is(err, models.ErrNoCompanyOwned) {
			return err
		}

		if _, err := NewLedger(tx).Debit(ctx, founder, models.FoundingCost); err != nil {
			return err
		}

		company = models.NewCompany(name, founder, g.now())
		return tx.InsertCompany(ctx, company)
	})
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	log.Printf("Account %d founded company %d %q", founder, company.ID, company.Name)
	return company, nil
}

// InviteMember creates or overwrites a pending membership of the owner's
// company for the account named targetName and notifies that account.
func (g *Game) InviteMember(ctx context.Context, owner models.AccountID, targetName, role string) (*models.Membership, error) {
	targetName = strings.TrimSpace(targetName)
	role = strings.TrimSpace(role)
	if targetName == "" || role == "" {
		return nil, fmt.Errorf("%w: username and role are required", models.ErrInvalidArgument)
	}

	var (
		membership *models.Membership
		text       string
	)
	err := g.store.Update(ctx, func(tx db.Tx) error {
		company, err := tx.CompanyByOwner(ctx, owner)
		if err != nil {
			return err
		}
		inviter, err := tx.Account(ctx, owner)
		if err != nil {
			return err
		}
		target, err := tx.AccountByUsername(ctx, targetName)
		if err != nil {
			return err
		}
		if target.ID == owner {
			return fmt.Errorf("%w: cannot invite yourself", models.ErrInvalidArgument)
		}

		membership = models.Invite(company.ID, target.ID, role, g.now())
		if err := tx.PutMembership(ctx, membership); err != nil {
			return err
		}
		text = InvitationText(company.Name, inviter.Username, role)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invite member: %w", err)
	}

	g.deliver(ctx, membership.AccountID, text)
	return membership, nil
}

// InvitationText is the notice sent to an invited account.
func InvitationText(company, owner, role string) string {
	return fmt.Sprintf("You have been invited to join the company %s by %s as %s. "+
		"Use /accept to join the company or /decline to reject the invitation.", company, owner, role)
}

// Invitation is a resolved pending membership.
type Invitation struct {
	Membership  models.Membership `json:"membership"`
	CompanyName string            `json:"company_name"`
}

// AcceptInvitation accepts the account's earliest pending invitation.
func (g *Game) AcceptInvitation(ctx context.Context, account models.AccountID) (*Invitation, error) {
	inv, err := g.resolveInvitation(ctx, account, func(tx db.Tx, m *models.Membership) error {
		if err := m.Accept(); err != nil {
			return err
		}
		return tx.PutMembership(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	return inv, nil
}

// DeclineInvitation removes the account's earliest pending invitation.
func (g *Game) DeclineInvitation(ctx context.Context, account models.AccountID) (*Invitation, error) {
	inv, err := g.resolveInvitation(ctx, account, func(tx db.Tx, m *models.Membership) error {
		if err := m.Decline(); err != nil {
			return err
		}
		return tx.DeleteMembership(ctx, m.CompanyID, m.AccountID)
	})
	if err != nil {
		return nil, fmt.Errorf("decline invitation: %w", err)
	}
	return inv, nil
}

// resolveInvitation picks the pending membership with the earliest
// invitation time, lowest company id first on ties, and applies fn to it.
func (g *Game) resolveInvitation(ctx context.Context, account models.AccountID, fn func(db.Tx, *models.Membership) error) (*Invitation, error) {
	unlock := g.locks.Lock(models.AccountKey(account))
	defer unlock()

	var inv *Invitation
	err := g.store.Update(ctx, func(tx db.Tx) error {
		if _, err := tx.Account(ctx, account); err != nil {
			return err
		}
		pending, err := tx.PendingMemberships(ctx, account)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return models.ErrNoPendingInvitation
		}

		m := pending[0]
		company, err := tx.Company(ctx, m.CompanyID)
		if err != nil {
			return err
		}
		if err := fn(tx, &m); err != nil {
			return err
		}
		inv = &Invitation{Membership: m, CompanyName: company.Name}
		return nil
	})
	return inv, err
}

// ShowCompany returns the owner's company with its members.
func (g *Game) ShowCompany(ctx context.Context, owner models.AccountID) (*models.CompanyInfo, error) {
	var info *models.CompanyInfo
	err := g.store.View(ctx, func(tx db.Tx) error {
		company, err := tx.CompanyByOwner(ctx, owner)
		if err != nil {
			return err
		}
		memberships, err := tx.Memberships(ctx, company.ID)
		if err != nil {
			return err
		}
		info = &models.CompanyInfo{Company: *company, Members: make([]models.Member, 0, len(memberships))}
		for _, m := range memberships {
			a, err := tx.Account(ctx, m.AccountID)
			if err != nil {
				return err
			}
			info.Members = append(info.Members, models.Member{Membership: m, Username: a.Username})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("show company: %w", err)
	}
	return info, nil
}

// RenderCompany formats a company view for chat display.
func RenderCompany(info *models.CompanyInfo) string {
	var b strings.Builder
	c := info.Company
	fmt.Fprintf(&b, "Company Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Value: %s units\n", models.FormatMoney(c.Value))
	fmt.Fprintf(&b, "Profit Margin: %s%%\n", c.ProfitMargin.Shift(2).StringFixed(2))
	fmt.Fprintf(&b, "Team Size: %d\n\nCompany Members:\n", c.TeamSize)
	if len(info.Members) == 0 {
		b.WriteString("No members in the company.\n")
	}
	for _, m := range info.Members {
		fmt.Fprintf(&b, "Username: %s, Role: %s, Status: %s\n", m.Username, m.Role, m.Status)
	}
	return b.String()
}
