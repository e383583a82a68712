package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/samber/mo"
)

// ChangeUsername returns the current display name when newName is None and
// otherwise renames the account, failing with models.ErrUsernameTaken when
// another account already uses the name.
func (g *Game) ChangeUsername(ctx context.Context, account models.AccountID, newName mo.Option[string]) (string, error) {
	name, ok := newName.Get()
	if !ok {
		var current string
		err := g.store.View(ctx, func(tx db.Tx) error {
			a, err := tx.Account(ctx, account)
			if err != nil {
				return err
			}
			current = a.Username
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("username of account %d: %w", account, err)
		}
		return current, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: username must not be empty", models.ErrInvalidArgument)
	}

	unlock := g.locks.Lock(models.AccountKey(account))
	defer unlock()

	err := g.store.Update(ctx, func(tx db.Tx) error {
		a, err := tx.Account(ctx, account)
		if err != nil {
			return err
		}
		if a.Username == name {
			return nil
		}
		if free, err := usernameFree(ctx, tx, name); err != nil {
			return err
		} else if !free {
			return models.ErrUsernameTaken
		}
		a.Username = name
		return tx.UpdateAccount(ctx, a)
	})
	if err != nil {
		return "", fmt.Errorf("rename account %d: %w", account, err)
	}

	log.Printf("Account %d is now %q", account, name)
	return name, nil
}

// Account returns one account by id.
func (g *Game) Account(ctx context.Context, id models.AccountID) (*models.Account, error) {
	var a *models.Account
	err := g.store.View(ctx, func(tx db.Tx) error {
		var err error
		a, err = tx.Account(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", id, err)
	}
	return a, nil
}
