package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
)

var adjectives = []string{
	"Furious", "Brave", "Cunning", "Wise", "Swift", "Mighty", "Bold", "Fearless", "Valiant", "Noble",
	"Gallant", "Heroic", "Loyal", "Vigilant", "Resolute", "Tenacious", "Steadfast", "Courageous", "Daring", "Fierce",
	"Adventurous", "Ambitious", "Charming", "Determined", "Dynamic", "Energetic", "Enthusiastic", "Passionate", "Resourceful", "Vibrant",
}

var firstNames = []string{
	"Mark", "Anna", "John", "Alice", "Tom", "Laura", "James", "Linda", "Robert", "Mary",
	"Michael", "Patricia", "William", "Barbara", "David", "Susan", "Richard", "Margaret", "Joseph", "Lisa",
	"Charles", "Karen", "Christopher", "Betty", "Daniel", "Helen", "Paul", "Sandra", "Steven", "Donna",
}

var romanNumerals = []string{
	"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X",
	"XI", "XII", "XIII", "XIV", "XV", "XVI", "XVII", "XVIII", "XIX", "XX",
	"XXI", "XXII", "XXIII", "XXIV", "XXV", "XXVI", "XXVII", "XXVIII", "XXIX", "XXX",
}

const maxNameAttempts = 20

func usernameFree(ctx context.Context, tx db.Tx, name string) (bool, error) {
	_, err := tx.AccountByUsername(ctx, name)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, models.ErrAccountNotFound):
		return true, nil
	default:
		return false, err
	}
}

// generateUsername picks an unused "<Adjective> <Name>" display name, adding
// a Roman numeral suffix when the plain form is taken.
func (g *Game) generateUsername(ctx context.Context, tx db.Tx) (string, error) {
	for range maxNameAttempts {
		base := adjectives[g.intn(len(adjectives))] + " " + firstNames[g.intn(len(firstNames))]
		ok, err := usernameFree(ctx, tx, base)
		if err != nil {
			return "", err
		}
		if ok {
			return base, nil
		}
		for _, numeral := range romanNumerals {
			name := base + " " + numeral
			ok, err := usernameFree(ctx, tx, name)
			if err != nil {
				return "", err
			}
			if ok {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("no free username after %d attempts", maxNameAttempts)
}
