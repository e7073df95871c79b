package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/pkg/database"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletsRepository is the storage side of the wallet ledger. Balance
// mutations go through FindWalletForUpdate + UpdateBalance inside a
// transaction; no caller is allowed a read-modify-write outside one.
type WalletsRepository struct {
	logger     *slog.Logger
	db         tx.DBGetter
	transactor *tx.Transactor
}

func NewWalletsRepository(logger *slog.Logger, pg *database.Postgres) *WalletsRepository {
	return &WalletsRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
	}
}

const walletColumns = "id, user_id, currency, balance, created_at"

func (r *WalletsRepository) scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var wallet entities.Wallet
	err := row.Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Currency,
		&wallet.Balance,
		&wallet.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet: %w", err)
	}

	return &wallet, nil
}

// FindWallet retrieves the wallet for (user, currency).
func (r *WalletsRepository) FindWallet(ctx context.Context, userID int64, currency string) (*entities.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND currency = $2`, walletColumns)
	return r.scanWallet(r.db(ctx).QueryRow(ctx, query, userID, currency))
}

// FindWalletForUpdate retrieves the wallet and takes a row lock for the
// duration of the surrounding transaction.
func (r *WalletsRepository) FindWalletForUpdate(ctx context.Context, userID int64, currency string) (*entities.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`, walletColumns)
	return r.scanWallet(r.db(ctx).QueryRow(ctx, query, userID, currency))
}

// FindWalletsForUser retrieves all wallets of a user ordered by currency.
func (r *WalletsRepository) FindWalletsForUser(ctx context.Context, userID int64) ([]entities.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 ORDER BY currency`, walletColumns)

	rows, err := r.db(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets by user id: %w", err)
	}
	defer rows.Close()

	wallets, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[entities.Wallet])
	if err != nil {
		r.logger.Error("failed to collect wallets rows", "error", err)
		return nil, fmt.Errorf("failed to collect user wallets rows: %w", err)
	}

	return wallets, nil
}

// UpdateBalance writes a new balance for the wallet. The caller must hold
// the row lock and must have validated the balance is non-negative.
func (r *WalletsRepository) UpdateBalance(ctx context.Context, walletID int64, balance decimal.Decimal) error {
	tag, err := r.db(ctx).Exec(ctx, "UPDATE wallets SET balance = $1 WHERE id = $2", balance, walletID)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrWalletNotFound
	}
	return nil
}
