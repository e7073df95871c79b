package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	cfg "github.com/AruzhanShinbayeva/crypto-exchange-backend/config"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases"
	repository "github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases/repository"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/pkg/database"
)

// noopPublisher discards order events, there is nobody listening during
// seeding.
type noopPublisher struct{}

func (noopPublisher) Publish(usecases.OrderEvent) {}

// Seed the database with test data.
func main() {
	ctx := context.Background()

	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pg, err := database.New(config.DB.DatabaseURL,
		database.Isolation(pgx.Serializable),
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	usersRepository := repository.NewUsersRepository(logger, pg)
	walletsRepository := repository.NewWalletsRepository(logger, pg)
	ordersRepository := repository.NewOrdersRepository(logger, pg)
	tradesRepository := repository.NewTradesRepository(logger, pg)

	walletService := usecases.NewWalletService(logger, walletsRepository, usersRepository, pg.Transactor)
	orderService := usecases.NewOrderService(logger, ordersRepository, walletsRepository, usersRepository, pg.Transactor, noopPublisher{})
	exchangeService := usecases.NewExchangeService(logger, ordersRepository, walletsRepository, tradesRepository, walletService, pg.Transactor, noopPublisher{})

	accountService, err := usecases.NewAccountService(logger, config.Registry.AddressSeed, config.Registry.MnemonicEntropy, usersRepository, walletsRepository, pg.Transactor)
	if err != nil {
		log.Fatalf("Failed to create account service: %v", err)
	}

	// Check whether the database has already been seeded.
	trades, err := exchangeService.ListUserTrades(ctx, 1)
	if err != nil {
		log.Fatalf("Failed to check trades: %v", err)
	}
	if len(trades) > 0 {
		fmt.Printf("Database already has %d trades. No need to seed.\n", len(trades))
		os.Exit(0)
	}

	// Two test users, each funded with the registration seed balances.
	for _, userID := range []int64{1, 2} {
		_, err = accountService.CreateAccount(ctx, userID, "seed-password")
		if err != nil && !errors.Is(err, entities.ErrUserExists) {
			log.Fatalf("Failed to create user %d: %v", userID, err)
		}
	}

	// User 1 sells BTC for ETH, user 2 sells ETH for BTC.
	sellOrder, err := orderService.CreateOrder(ctx, 1, "BTC", "ETH", decimal.NewFromInt(10), decimal.RequireFromString("0.05"))
	if err != nil {
		log.Fatalf("Failed to create sell order: %v", err)
	}

	_, err = orderService.CreateOrder(ctx, 2, "ETH", "BTC", decimal.NewFromInt(5), decimal.NewFromInt(20))
	if err != nil {
		log.Fatalf("Failed to create counter order: %v", err)
	}

	// Partially fill the first order so the trade history is not empty.
	result, err := exchangeService.FillOrder(ctx, sellOrder.ID, 2, decimal.NewFromInt(4))
	if err != nil {
		log.Fatalf("Failed to fill order: %v", err)
	}

	fmt.Printf("Successfully seeded the database: bought %s BTC for %s ETH\n",
		result.AmountReceived.String(), result.AmountPaid.String())
}
