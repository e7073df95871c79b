package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/shopspring/decimal"
)

// Transactor scopes a function to one database transaction. Satisfied by
// *transactor/pgx.Transactor; nested calls join the outer transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error
}

type WalletsRepository interface {
	FindWallet(ctx context.Context, userID int64, currency string) (*entities.Wallet, error)
	FindWalletForUpdate(ctx context.Context, userID int64, currency string) (*entities.Wallet, error)
	FindWalletsForUser(ctx context.Context, userID int64) ([]entities.Wallet, error)
	UpdateBalance(ctx context.Context, walletID int64, balance decimal.Decimal) error
}

type UsersProvider interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// TransferLeg is one balance movement inside an atomic transfer set.
// Positive Delta credits the wallet, negative debits it.
type TransferLeg struct {
	UserID   int64
	Currency string
	Delta    decimal.Decimal
}

// WalletService is the wallet ledger. Every mutation runs inside a
// transaction that locks the affected wallet rows and re-validates
// sufficiency against the committed state, so value is never created,
// destroyed or duplicated by concurrent requests.
type WalletService struct {
	logger     *slog.Logger
	repo       WalletsRepository
	users      UsersProvider
	transactor Transactor
}

func NewWalletService(logger *slog.Logger, repo WalletsRepository, users UsersProvider, transactor Transactor) *WalletService {
	return &WalletService{logger: logger, repo: repo, users: users, transactor: transactor}
}

// GetBalance returns the balance of the user's wallet for the currency.
func (s *WalletService) GetBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error) {
	wallet, err := s.repo.FindWallet(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// ListWallets returns all wallets of the user keyed by currency.
func (s *WalletService) ListWallets(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, entities.ErrUserNotFound
	}

	wallets, err := s.repo.FindWalletsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal, len(wallets))
	for _, wallet := range wallets {
		balances[wallet.Currency] = wallet.Balance
	}
	return balances, nil
}

// Debit reduces the wallet balance by amount.
func (s *WalletService) Debit(ctx context.Context, userID int64, currency string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return entities.ErrNegativeAmount
	}
	return s.TransferSet(ctx, []TransferLeg{{UserID: userID, Currency: currency, Delta: amount.Neg()}})
}

// Credit increases the wallet balance by amount.
func (s *WalletService) Credit(ctx context.Context, userID int64, currency string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return entities.ErrNegativeAmount
	}
	return s.TransferSet(ctx, []TransferLeg{{UserID: userID, Currency: currency, Delta: amount}})
}

// TransferSet applies every leg or none. Legs touching the same wallet are
// combined first; the affected rows are locked in a deterministic order and
// each resulting balance is validated before any write. A leg that would
// drive a balance negative rejects the whole set with ErrInsufficientFunds.
func (s *WalletService) TransferSet(ctx context.Context, legs []TransferLeg) error {
	if len(legs) == 0 {
		return nil
	}

	type walletKey struct {
		userID   int64
		currency string
	}

	deltas := make(map[walletKey]decimal.Decimal, len(legs))
	for _, leg := range legs {
		key := walletKey{userID: leg.UserID, currency: leg.Currency}
		deltas[key] = deltas[key].Add(leg.Delta)
	}

	// Lock order is fixed across requests to avoid deadlocks.
	keys := make([]walletKey, 0, len(deltas))
	for key := range deltas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].currency < keys[j].currency
	})

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		updates := make(map[int64]decimal.Decimal, len(keys))

		for _, key := range keys {
			wallet, err := s.repo.FindWalletForUpdate(ctx, key.userID, key.currency)
			if err != nil {
				return err
			}

			balance := wallet.Balance.Add(deltas[key])
			if balance.IsNegative() {
				return fmt.Errorf("%w: %s wallet of user %d holds %s, needs %s",
					entities.ErrInsufficientFunds, key.currency, key.userID,
					wallet.Balance.String(), deltas[key].Neg().String())
			}
			updates[wallet.ID] = balance
		}

		for walletID, balance := range updates {
			if err := s.repo.UpdateBalance(ctx, walletID, balance); err != nil {
				return err
			}
		}
		return nil
	})
	if isSerializationError(err) {
		return entities.ErrTransactionConflict
	}
	return err
}
