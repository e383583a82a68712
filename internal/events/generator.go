package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
)

// Clock abstracts waiting so tests can drive the loop.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PriceSink receives every committed price change, e.g. a websocket feed.
type PriceSink interface {
	PublishPrice(change engine.PriceChange)
}

// Config configures a Generator.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	Clock       Clock
	Rand        *rand.Rand
	Sink        PriceSink
}

// Event is the outcome of one cycle.
type Event struct {
	Kind      Kind               `json:"kind"`
	Change    engine.PriceChange `json:"change"`
	Delivered int                `json:"delivered"`
	Failed    int                `json:"failed"`
}

// Generator periodically booms or crashes one product's price.
type Generator struct {
	game *engine.Game
	cfg  Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator validates cfg and fills in the real clock and a random seed.
func NewGenerator(game *engine.Game, cfg Config) (*Generator, error) {
	if cfg.MinInterval <= 0 || cfg.MaxInterval < cfg.MinInterval {
		return nil, fmt.Errorf("invalid event interval [%s, %s]", cfg.MinInterval, cfg.MaxInterval)
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{game: game, cfg: cfg, rng: rng}, nil
}

// Run fires an event after every interval until ctx is cancelled. A failed
// cycle is logged and the loop carries on.
func (g *Generator) Run(ctx context.Context) error {
	log.Printf("Event generator started, interval %s-%s", g.cfg.MinInterval, g.cfg.MaxInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Event generator stopped")
			return nil
		case <-g.cfg.Clock.After(g.nextInterval()):
		}

		if _, err := g.Fire(ctx); err != nil {
			log.Printf("Market event failed: %v", err)
		}
	}
}

func (g *Generator) nextInterval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	span := int64(g.cfg.MaxInterval - g.cfg.MinInterval)
	return g.cfg.MinInterval + time.Duration(g.rng.Int64N(span+1))
}

func (g *Generator) pick(products int) (Kind, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Kinds[g.rng.IntN(len(Kinds))], g.rng.IntN(products)
}

// Fire runs one cycle: it draws an event kind and a product, commits the new
// price, then notifies every account. The price update is not interrupted by
// cancellation of ctx, and delivery failures never undo it.
func (g *Generator) Fire(ctx context.Context) (Event, error) {
	products, err := g.game.Products(ctx)
	if err != nil {
		return Event{}, err
	}
	if len(products) == 0 {
		return Event{}, errors.New("market is empty")
	}
	kind, i := g.pick(len(products))

	change, err := g.game.Reprice(context.WithoutCancel(ctx), products[i].ID, func(old decimal.Decimal) decimal.Decimal {
		return Apply(kind, old)
	})
	if err != nil {
		return Event{}, err
	}
	if g.cfg.Sink != nil {
		g.cfg.Sink.PublishPrice(change)
	}

	ev := Event{Kind: kind, Change: change}
	ev.Delivered, ev.Failed, err = g.broadcast(ctx, kind.Text(change.Product.Name))
	log.Printf("Market %s on %s: %s -> %s (%d delivered, %d failed)",
		kind, change.Product.Name, models.FormatMoney(change.OldPrice), models.FormatMoney(change.Product.Price),
		ev.Delivered, ev.Failed)
	return ev, err
}

// broadcast attempts delivery to every known account. Per-recipient failures
// are counted and skipped.
func (g *Generator) broadcast(ctx context.Context, text string) (delivered, failed int, err error) {
	ids, err := g.game.Store().AccountIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list accounts: %w", err)
	}
	notifier := g.game.Notifier()
	for _, id := range ids {
		if err := notifier.Notify(ctx, id, text); err != nil {
			failed++
			continue
		}
		delivered++
	}
	return delivered, failed, nil
}
