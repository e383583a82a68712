package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atharvakonge/market-game/internal/config"
	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/events"
	"github.com/atharvakonge/market-game/internal/handlers"
	"github.com/atharvakonge/market-game/internal/notify"
	"github.com/atharvakonge/market-game/internal/telegram"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const shutdownTimeout = 10 * time.Second

// openStore opens the configured backend. The schema is applied on open.
func openStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	var (
		store *db.SQLStore
		err   error
	)
	switch cfg.DBDriver {
	case config.DriverMemory:
		return db.NewMemoryStore(), nil
	case config.DriverPostgres:
		store, err = db.OpenPostgres(ctx, cfg.Postgres())
	default:
		store, err = db.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	if cfg.DBLogSQL {
		store.SetLogger(log.New(os.Stderr, "sql: ", log.LstdFlags))
	}
	log.Printf("Connected to %s store", cfg.DBDriver)
	return store, nil
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if n, err := db.Seed(ctx, store, db.Catalog); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	} else if n > 0 {
		log.Printf("Seeded %d products", n)
	}

	hub := notify.NewHub()
	defer hub.Close()

	notifiers := notify.Multi{hub}
	var bot *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("connect telegram bot: %w", err)
		}
		log.Printf("Authorized on Telegram account %s", bot.Self.UserName)
		notifiers = append(notifiers, telegram.NewNotifier(bot))
	} else {
		log.Println("TELEGRAM_TOKEN not set, running without the bot")
	}

	game := engine.New(store, notifiers, engine.Options{
		InviteLinkBase: cfg.InviteLinkBase(),
		WelcomeImage:   cfg.WelcomeImageURL,
		ReferralImage:  cfg.ReferralImageURL,
	})

	generator, err := events.NewGenerator(game, events.Config{
		MinInterval: cfg.EventMinInterval,
		MaxInterval: cfg.EventMaxInterval,
		Sink:        hub,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := generator.Run(ctx); err != nil {
			log.Println("Event generator failed:", err)
		}
	}()

	if bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.GetUpdatesChan(u)
		go telegram.NewDispatcher(bot, game).Run(ctx, updates)
		defer bot.StopReceivingUpdates()
	}

	// Initialize trade processor
	tradeProcessor := handlers.NewTradeProcessor(game, cfg.NumWorkers)
	tradeProcessor.Start()
	defer tradeProcessor.Stop()

	// Set Gin mode based on environment
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.NewHandler(game, tradeProcessor), hub)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Println("🚀 Server starting on http://localhost:" + cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
