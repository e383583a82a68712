// Package engine implements the virtual economy: trades against the shared
// market, wealth and ranking, companies and invitations, and referrals.
//
// Every multi-row mutation runs inside a single db.Store Update. Operations
// touching an account or a product additionally hold that row's key in a
// shared models.LockManager, so trades on the same product serialize around
// the price and availability they read.
package engine

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/google/uuid"
)

// Notifier is the messaging port. Both methods may fail per recipient with an
// error wrapping models.ErrDeliveryFailure; callers treat that as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, account models.AccountID, text string) error
	NotifyWithImage(ctx context.Context, account models.AccountID, text, imageRef string) error
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, models.AccountID, string) error { return nil }

func (NopNotifier) NotifyWithImage(context.Context, models.AccountID, string, string) error {
	return nil
}

// Options tunes a Game. Zero values select production defaults.
type Options struct {
	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time
	// InviteCode returns a fresh invite code candidate.
	InviteCode func() string
	// InviteLinkBase is prefixed to invite codes, e.g. "https://t.me/Bot?start=".
	InviteLinkBase string
	WelcomeImage   string
	ReferralImage  string
	// Rand drives default username generation.
	Rand *rand.Rand
	// Locks is shared with other writers of the same store, such as the
	// event generator.
	Locks *models.LockManager
}

// Game is the command surface of the economy engine.
type Game struct {
	store    db.Store
	notifier Notifier
	locks    *models.LockManager

	now           func() time.Time
	inviteCode    func() string
	linkBase      string
	welcomeImage  string
	referralImage string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a game backed by store that talks to participants through
// notifier.
func New(store db.Store, notifier Notifier, opts Options) *Game {
	g := &Game{
		store:         store,
		notifier:      notifier,
		locks:         opts.Locks,
		now:           opts.Now,
		inviteCode:    opts.InviteCode,
		linkBase:      opts.InviteLinkBase,
		welcomeImage:  opts.WelcomeImage,
		referralImage: opts.ReferralImage,
		rng:           opts.Rand,
	}
	if g.notifier == nil {
		g.notifier = NopNotifier{}
	}
	if g.locks == nil {
		g.locks = models.NewLockManager()
	}
	if g.now == nil {
		g.now = func() time.Time { return time.Now().UTC() }
	}
	if g.inviteCode == nil {
		g.inviteCode = func() string { return uuid.NewString()[:8] }
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Store returns the backing store.
func (g *Game) Store() db.Store { return g.store }

// Locks returns the lock manager guarding accounts and products.
func (g *Game) Locks() *models.LockManager { return g.locks }

// Notifier returns the messaging port.
func (g *Game) Notifier() Notifier { return g.notifier }

func (g *Game) intn(n int) int {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.rng.IntN(n)
}

// deliver sends a message after a committed change. Delivery failures never
// undo the change.
func (g *Game) deliver(ctx context.Context, account models.AccountID, text string) {
	if err := g.notifier.Notify(ctx, account, text); err != nil {
		log.Printf("notify account %d: %v", account, err)
	}
}

func (g *Game) deliverImage(ctx context.Context, account models.AccountID, text, image string) {
	if image == "" {
		g.deliver(ctx, account, text)
		return
	}
	if err := g.notifier.NotifyWithImage(ctx, account, text, image); err != nil {
		log.Printf("notify account %d with image: %v", account, err)
	}
}
