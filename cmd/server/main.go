package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/recon"
	"github.com/rl1809/storefront/internal/webhook"
)

func main() {
	configPath := flag.String("config", os.Getenv("STOREFRONT_CONFIG"), "path to config file")
	pretty := flag.Bool("pretty", false, "human-readable log output")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		repos interface {
			port.UserRepository
			port.ProductRepository
			port.OrderRepository
			port.CardRepository
		}
		db *sql.DB
	)
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		db, err = sql.Open("mysql", cfg.Storage.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open mysql")
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping mysql")
		}
		log.Info().Msg("connected to mysql")
		repos = storage.NewMySQLAdapter(db)
	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage; data is not persisted")
		repos = storage.NewMemoryStore()
	}

	// Webhook transmission dedup. Redis when configured, otherwise in-process.
	var dedup port.DedupStore
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		log.Info().Msg("connected to redis")
		dedup = storage.NewRedisDedup(rdb, cfg.Webhook.DedupTTL)
	} else if ms, ok := repos.(*storage.MemoryStore); ok {
		dedup = ms
	}

	// Services
	authService := service.NewAuthService(repos, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	productService := service.NewProductService(repos)
	orderService := service.NewOrderService(repos, repos)
	cardService := service.NewCardService(repos)

	var reconciler port.Reconciler
	if cfg.Recon.APIKey != "" {
		reconciler = recon.NewAnthropicClient(cfg.Recon.APIKey, cfg.Recon.BaseURL, cfg.Recon.Model, cfg.Recon.Timeout)
		log.Info().Str("model", cfg.Recon.Model).Msg("llm reconciliation enabled")
	}
	processor := webhook.NewProcessor(cardService, reconciler, cfg.Recon.Timeout)

	router := handler.NewRouter(handler.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Product: handler.NewProductHandler(productService),
		Order:   handler.NewOrderHandler(orderService),
		Card:    handler.NewCardHandler(cardService),
		Webhook: handler.NewWebhookHandler(processor, dedup, cfg.Webhook),
	}, authService, cfg.Auth)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	log.Info().Msg("HTTP server stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Info().Msg("connections closed")
}
