package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/pixloo/pixgate/handler"
	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/conn"
	"github.com/pixloo/pixgate/infra/events"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/infra/middle"
	"github.com/pixloo/pixgate/infra/opensearch"
	"github.com/pixloo/pixgate/infra/response"
	"github.com/pixloo/pixgate/provider"
	"github.com/pixloo/pixgate/router"
	"github.com/pixloo/pixgate/settlement"
)

// seedFields lists every config key any adapter understands; SeedFromEnv
// picks up the ones present as <PROVIDER>_<FIELD> env vars.
var seedFields = []string{"appId", "apiKey", "token", "clientId", "clientSecret", "webhookSecret", "baseUri"}

var openSearchLogger *opensearch.Logger

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	// init conf
	_ = config.App()

	cfg := config.GetAppConfig()
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	// A typed nil must not reach the sink interface.
	if openSearchLogger != nil {
		logger.InitGlobalLogger(openSearchLogger)
	} else {
		logger.InitGlobalLogger(nil)
	}
}

func main() {
	cfg := config.GetAppConfig()
	settings := config.LoadPlatformSettings()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres ledger
	pool, err := conn.ConnectDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Database connection failed", err)
	}
	defer pool.Close()

	if err := conn.RunMigrations(pool); err != nil {
		logger.Fatal("Migrations failed", err)
	}

	// Gateway credential store (SQLite)
	gwStore, err := config.NewGatewayStore(cfg.GatewayStorePath)
	if err != nil {
		logger.Fatal("Gateway store unavailable", err)
	}
	defer gwStore.Close()

	gwStore.SeedFromEnv(provider.PriorityOrder, seedFields)

	// Provider registration
	gateway := provider.NewGatewayService()
	entries, err := gwStore.LoadAll()
	if err != nil {
		logger.Fatal("Gateway configs unreadable", err)
	}
	for _, entry := range entries {
		if err := gateway.AddProvider(entry.Provider, entry.Config, entry.Enabled); err != nil {
			logger.Warn("Provider not registered: " + err.Error())
			continue
		}
		logger.Info("Registered PIX provider", logger.LogContext{Provider: entry.Provider})
	}
	if len(gateway.ProviderNames()) == 0 {
		logger.Warn("No PIX providers configured")
	}

	// Admin notifications
	var notifier events.Publisher = events.NoopPublisher{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer kp.Close()
		notifier = kp
	}

	// Free rounds service
	var rounds settlement.RoundsService = settlement.NoopRounds{}
	if url := config.GetEnv("ROUNDS_SERVICE_URL", ""); url != "" {
		rounds = settlement.NewHTTPRounds(url, config.GetEnv("ROUNDS_SERVICE_TOKEN", ""))
	}

	// Settlement
	store := settlement.NewPostgresStore(pool)
	engine := settlement.NewEngine(store, settings, rounds, notifier)
	payouts := settlement.NewPayoutService(store, config.GetEnv("TRANSFER_COMMENT", "Wallet withdrawal"))

	validate := validator.New()
	var eventLogger handler.EventLogger
	if openSearchLogger != nil {
		eventLogger = openSearchLogger
	}

	handlers := router.Handlers{
		Deposit:  handler.NewDepositHandler(gateway, store, settings, validate, eventLogger),
		Withdraw: handler.NewWithdrawHandler(gateway, payouts, validate),
		Webhook:  handler.NewWebhookHandler(gateway, engine, eventLogger),
		Health:   handler.NewHealthHandler(pool, gateway),
	}

	// Chi Define Routes
	r := chi.NewRouter()
	r.Use(middle.PanicRecovery)
	r.Use(middle.RequestLogging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Routes(r, handlers)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API is running on " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
}
