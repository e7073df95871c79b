package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	cfg "github.com/AruzhanShinbayeva/crypto-exchange-backend/config"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/handlers"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases"
	repository "github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases/repository"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/pkg/database"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: config.Log.Level,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting application with configuration",
		"environment", config.App.Environment,
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port)

	migrationsPath := resolveMigrationsPath(config.DB.MigrationsPath)

	// Connect to Database
	pg, err := database.New(config.DB.DatabaseURL,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.Serializable),
	)
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
		return
	}
	defer pg.Close()

	// Run database migrations
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}
	logger.Info("Database migrations completed successfully")

	// Create repositories
	usersRepository := repository.NewUsersRepository(logger, pg)
	walletsRepository := repository.NewWalletsRepository(logger, pg)
	ordersRepository := repository.NewOrdersRepository(logger, pg)
	tradesRepository := repository.NewTradesRepository(logger, pg)

	// Create websocket manager first: it is the event publisher the order
	// and exchange services broadcast through.
	websocketManager := handlers.NewWebSocketManager(logger)

	// Create usecases
	walletService := usecases.NewWalletService(logger, walletsRepository, usersRepository, pg.Transactor)
	orderService := usecases.NewOrderService(logger, ordersRepository, walletsRepository, usersRepository, pg.Transactor, websocketManager)
	exchangeService := usecases.NewExchangeService(logger, ordersRepository, walletsRepository, tradesRepository, walletService, pg.Transactor, websocketManager)

	accountService, err := usecases.NewAccountService(logger, config.Registry.AddressSeed, config.Registry.MnemonicEntropy, usersRepository, walletsRepository, pg.Transactor)
	if err != nil {
		logger.Error("Failed to create account service", "error", err)
		log.Fatal(err)
	}

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, accountService, orderService, walletService, exchangeService)
	wsHandler := handlers.NewWebSocketHandler(logger, websocketManager)

	// Create router
	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.Logging(logger))

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Wrap router in CORS middleware
	handler := c.Handler(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Give 5 seconds to complete current requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

// resolveMigrationsPath looks for the migrations directory relative to the
// working directory, falling back one level up.
func resolveMigrationsPath(configured string) string {
	workDir, err := os.Getwd()
	if err != nil {
		return configured
	}
	if _, err = os.Stat(filepath.Join(workDir, "migrations")); !os.IsNotExist(err) {
		return filepath.Join(workDir, "migrations")
	}
	if _, err = os.Stat(filepath.Join(workDir, "..", "migrations")); !os.IsNotExist(err) {
		return filepath.Join(workDir, "..", "migrations")
	}
	return configured
}
