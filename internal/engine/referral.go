package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/samber/mo"
)

const maxCodeAttempts = 5

// Registration is the outcome of RegisterOrGreet.
type Registration struct {
	Account *models.Account `json:"account"`
	// Created is true only on the account's first-ever contact.
	Created bool `json:"created"`
	// Inviter is set when a referral bonus was paid.
	Inviter    mo.Option[models.AccountID] `json:"inviter"`
	InviteLink string                      `json:"invite_link"`
}

// InviteLink renders the shareable link for an invite code.
func (g *Game) InviteLink(code string) string {
	return g.linkBase + code
}

// RegisterOrGreet creates the account on first contact and otherwise returns
// it unchanged. A referral code presented at creation credits its owner with
// the referral bonus. Unknown codes and the account's own code are ignored.
func (g *Game) RegisterOrGreet(ctx context.Context, account models.AccountID, username string, referral mo.Option[string]) (*Registration, error) {
	inviter, err := g.lookupInviter(ctx, account, referral)
	if err != nil {
		return nil, fmt.Errorf("register account %d: %w", account, err)
	}

	keys := []string{models.AccountKey(account)}
	if id, ok := inviter.Get(); ok {
		keys = append(keys, models.AccountKey(id))
	}
	unlock := g.locks.Lock(keys...)
	defer unlock()

	reg := &Registration{}
	err = g.store.Update(ctx, func(tx db.Tx) error {
		existing, err := tx.Account(ctx, account)
		if err == nil {
			reg.Account = existing
			return nil
		}
		if !errors.Is(err, models.ErrAccountNotFound) {
			return err
		}

		name, err := g.chooseUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		code, err := g.uniqueInviteCode(ctx, tx)
		if err != nil {
			return err
		}

		a := &models.Account{
			ID:         account,
			Username:   name,
			Balance:    models.StartingBalance,
			Portfolio:  models.Portfolio{},
			InviteCode: code,
			CreatedAt:  g.now(),
		}
		if err := tx.InsertAccount(ctx, a); err != nil {
			return err
		}
		reg.Account = a
		reg.Created = true

		if id, ok := inviter.Get(); ok {
			if _, err := NewLedger(tx).Credit(ctx, id, models.ReferralBonus); err != nil {
				return err
			}
			reg.Inviter = mo.Some(id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register account %d: %w", account, err)
	}
	reg.InviteLink = g.InviteLink(reg.Account.InviteCode)

	if reg.Created {
		log.Printf("Registered account %d as %q", account, reg.Account.Username)
		g.deliverImage(ctx, account, "Your invite link: "+reg.InviteLink, g.welcomeImage)
		if id, ok := reg.Inviter.Get(); ok {
			g.deliver(ctx, id, ReferralText(reg.Account.Username))
		}
	}
	return reg, nil
}

// ReferralText is the notice sent to an inviter when their code is used.
func ReferralText(newcomer string) string {
	return fmt.Sprintf("User %s has joined the game using your invite link! You receive %s units.",
		newcomer, models.FormatMoney(models.ReferralBonus))
}

// SendInviteLink re-sends an account's invite link with the referral image.
func (g *Game) SendInviteLink(ctx context.Context, account models.AccountID) (string, error) {
	var code string
	err := g.store.View(ctx, func(tx db.Tx) error {
		a, err := tx.Account(ctx, account)
		if err != nil {
			return err
		}
		code = a.InviteCode
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("invite link of account %d: %w", account, err)
	}
	link := g.InviteLink(code)
	g.deliverImage(ctx, account, "Your invite link: "+link, g.referralImage)
	return link, nil
}

// lookupInviter resolves a referral code to the owning account. It returns
// None when the code is absent, unknown or owned by account itself.
func (g *Game) lookupInviter(ctx context.Context, account models.AccountID, referral mo.Option[string]) (mo.Option[models.AccountID], error) {
	code, ok := referral.Get()
	code = strings.TrimSpace(code)
	if !ok || code == "" {
		return mo.None[models.AccountID](), nil
	}
	var inviter mo.Option[models.AccountID]
	err := g.store.View(ctx, func(tx db.Tx) error {
		a, err := tx.AccountByInviteCode(ctx, code)
		switch {
		case errors.Is(err, models.ErrAccountNotFound):
			return nil
		case err != nil:
			return err
		}
		if a.ID != account {
			inviter = mo.Some(a.ID)
		}
		return nil
	})
	return inviter, err
}

func (g *Game) chooseUsername(ctx context.Context, tx db.Tx, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		ok, err := usernameFree(ctx, tx, requested)
		if err != nil {
			return "", err
		}
		if ok {
			return requested, nil
		}
	}
	return g.generateUsername(ctx, tx)
}

func (g *Game) uniqueInviteCode(ctx context.Context, tx db.Tx) (string, error) {
	for range maxCodeAttempts {
		code := g.inviteCode()
		_, err := tx.AccountByInviteCode(ctx, code)
		if errors.Is(err, models.ErrAccountNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no unique invite code after %d attempts", maxCodeAttempts)
}
