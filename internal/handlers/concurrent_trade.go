package handlers

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
)

// ErrProcessorStopped is returned for trades submitted after Stop.
var ErrProcessorStopped = errors.New("trade processor stopped")

// TradeResult represents result of a trade operation
type TradeResult struct {
	Transaction *models.Transaction
	Err         error
}

// Success reports whether the trade executed.
func (r TradeResult) Success() bool { return r.Err == nil }

// TradeJob represents a trade to be processed
type TradeJob struct {
	ctx      context.Context
	Kind     models.TradeKind
	Request  models.TradeRequest
	ResultCh chan TradeResult // Channel to send result back
}

// TradeProcessor executes buy and sell requests on a fixed pool of workers.
// Serialization of trades on the same account or product happens inside the
// engine, so workers run independent trades in parallel.
type TradeProcessor struct {
	game       *engine.Game
	workers    int
	tradeQueue chan TradeJob
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	// mu guards stopped; SubmitTrade holds it shared while enqueueing.
	mu      sync.RWMutex
	stopped bool
}

// NewTradeProcessor creates a new trade processor with worker pool
func NewTradeProcessor(game *engine.Game, workers int) *TradeProcessor {
	if workers < 1 {
		workers = 1
	}
	return &TradeProcessor{
		game:       game,
		workers:    workers,
		tradeQueue: make(chan TradeJob, 100), // Buffer of 100 trades
		stopCh:     make(chan struct{}),
	}
}

// Start starts the worker pool
func (tp *TradeProcessor) Start() {
	for i := 0; i < tp.workers; i++ {
		tp.wg.Add(1)
		go tp.worker(i)
	}
	log.Printf("✅ Started %d trade workers", tp.workers)
}

// Stop gracefully stops all workers. Queued trades that no worker picked up
// fail with ErrProcessorStopped.
func (tp *TradeProcessor) Stop() {
	tp.stopOnce.Do(func() {
		tp.mu.Lock()
		tp.stopped = true
		tp.mu.Unlock()

		close(tp.stopCh)
		tp.wg.Wait()
		for {
			select {
			case job := <-tp.tradeQueue:
				job.ResultCh <- TradeResult{Err: ErrProcessorStopped}
			default:
				log.Println("Trade processor stopped")
				return
			}
		}
	})
}

// worker processes trades from the queue
func (tp *TradeProcessor) worker(id int) {
	defer tp.wg.Done()

	for {
		select {
		case <-tp.stopCh:
			return

		case job := <-tp.tradeQueue:
			log.Printf("Worker %d processing %s for account %d: product %d x%d",
				id, job.Kind, job.Request.AccountID, job.Request.ProductID, job.Request.Quantity)

			job.ResultCh <- tp.processTrade(job)
		}
	}
}

func (tp *TradeProcessor) processTrade(job TradeJob) TradeResult {
	req := job.Request
	var (
		rec *models.Transaction
		err error
	)
	switch job.Kind {
	case models.TradeBuy:
		rec, err = tp.game.Buy(job.ctx, req.AccountID, req.ProductID, req.Quantity)
	case models.TradeSell:
		rec, err = tp.game.Sell(job.ctx, req.AccountID, req.ProductID, req.Quantity)
	default:
		err = models.ErrInvalidArgument
	}
	return TradeResult{Transaction: rec, Err: err}
}

// SubmitTrade queues a trade and waits for its result. A missing quantity
// means one unit.
func (tp *TradeProcessor) SubmitTrade(ctx context.Context, kind models.TradeKind, req models.TradeRequest) TradeResult {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	// Buffered so a worker never blocks on a caller that gave up.
	resultCh := make(chan TradeResult, 1)

	if err := tp.enqueue(ctx, TradeJob{ctx: ctx, Kind: kind, Request: req, ResultCh: resultCh}); err != nil {
		return TradeResult{Err: err}
	}

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return TradeResult{Err: ctx.Err()}
	}
}

func (tp *TradeProcessor) enqueue(ctx context.Context, job TradeJob) error {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	if tp.stopped {
		return ErrProcessorStopped
	}
	select {
	case tp.tradeQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
