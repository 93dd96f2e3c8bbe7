// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tripplanner/config"
	"tripplanner/internal/auth"
	"tripplanner/internal/db"
	"tripplanner/internal/gpt"
	"tripplanner/internal/itinerary"
	"tripplanner/internal/notify"
	"tripplanner/internal/payment"
	"tripplanner/internal/quota"
	"tripplanner/internal/server"
	"tripplanner/pkg/logger"
)

type store interface {
	auth.Store
	itinerary.Store
	quota.UsageCounter
	payment.Store
	server.Pinger
	Close()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatalw("Failed to load config", "error", err)
	}

	l := logger.New()
	if cfg.Log.Development {
		l = logger.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	defer l.Sync()
	l.Infow("Starting TripPlanner...")

	// Validate critical configuration
	if err := cfg.Validate(); err != nil {
		l.Fatalw("Invalid configuration", "error", err)
	}

	database := openStore(cfg, l)
	defer database.Close()

	// Generation providers are optional; without a key every request uses
	// the built-in fallback.
	var standard, pro itinerary.Provider
	var interests itinerary.InterestSuggester
	if cfg.LLM.APIKey != "" {
		standardClient := gpt.NewFromConfig(cfg.LLM, gpt.TierStandard, l)
		standard = standardClient
		pro = gpt.NewFromConfig(cfg.LLM, gpt.TierPro, l)
		interests = standardClient
	} else {
		l.Warnw("LLM API key is not configured, using fallback itineraries only")
	}

	dispatchers := notify.Multi{notify.NewLogDispatcher(l)}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramDispatcher(cfg.Telegram.Token, cfg.Telegram.AdminChatID, l)
		if err != nil {
			l.Errorw("Telegram notifications disabled", "error", err)
		} else {
			dispatchers = append(dispatchers, tg)
		}
	}

	var paymentOpts []payment.Option
	if cfg.StripeEnabled() {
		paymentOpts = append(paymentOpts, payment.WithCardGateway(payment.NewStripeClient(cfg.Stripe)))
		l.Infow("Stripe checkout enabled")
	}

	tracker := quota.NewTracker(database)
	router := server.NewRouter(server.Deps{
		Auth:        auth.NewService(database, auth.NewSessions(cfg.Session), cfg.Admin.Emails, l),
		Itineraries: itinerary.NewService(database, tracker, itinerary.NewGenerator(standard, pro, l), interests, l),
		Quota:       tracker,
		Payments:    payment.NewService(database, dispatchers, cfg.Payment, l, paymentOpts...),
		Store:       database,
		CORS:        cfg.CORS,
		Logger:      l,
	})

	httpServer := server.NewServer(cfg.Server, router, l)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Infow("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}

	l.Infow("Server stopped")
}

// openStore connects to Postgres with retry and applies the schema, or
// returns the in-memory store when configured.
func openStore(cfg *config.Config, l *logger.Logger) store {
	if cfg.Storage.Driver == "memory" {
		l.Warnw("Using in-memory storage, data is lost on restart")
		return db.NewMemoryDB()
	}

	var (
		database *db.PostgresDB
		err      error
	)
	for i := 0; i < cfg.DB.ConnRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Errorw("Failed to connect to database, retrying...", "attempt", i+1, "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatalw("Failed to connect to database after multiple attempts", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		l.Fatalw("Failed to apply schema", "error", err)
	}
	return database
}
