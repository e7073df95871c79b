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

// UsersRepository handles account rows and their seeded wallets.
type UsersRepository struct {
	logger     *slog.Logger
	db         tx.DBGetter
	transactor *tx.Transactor
}

func NewUsersRepository(logger *slog.Logger, pg *database.Postgres) *UsersRepository {
	return &UsersRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
	}
}

// InsertUser creates the user row and one wallet per currency, each seeded
// with seedBalance, in a single transaction.
func (r *UsersRepository) InsertUser(ctx context.Context, user *entities.User, currencies []string, seedBalance decimal.Decimal) error {
	return r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		exists, err := r.UserExists(ctx, user.ID)
		if err != nil {
			return err
		}
		if exists {
			return entities.ErrUserExists
		}

		err = r.db(ctx).QueryRow(ctx,
			`INSERT INTO users (id, address, password_hash, mnemonic_hash)
             VALUES ($1, $2, $3, $4)
             RETURNING created_at`,
			user.ID, user.Address, user.PasswordHash, user.MnemonicHash).Scan(&user.CreatedAt)
		if err != nil {
			// A concurrent registration of the same id can slip past the
			// exists check and lose on the primary key instead.
			if isUniqueViolation(err) {
				return entities.ErrUserExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		for _, currency := range currencies {
			_, err = r.db(ctx).Exec(ctx,
				"INSERT INTO wallets (user_id, currency, balance) VALUES ($1, $2, $3)",
				user.ID, currency, seedBalance)
			if err != nil {
				return fmt.Errorf("failed to seed %s wallet: %w", currency, err)
			}
		}

		r.logger.Info("User registered", "user_id", user.ID, "address", user.Address)
		return nil
	})
}

// FindUserByID retrieves a user by id.
func (r *UsersRepository) FindUserByID(ctx context.Context, userID int64) (*entities.User, error) {
	query := `SELECT id, address, password_hash, mnemonic_hash, created_at
              FROM users
              WHERE id = $1`

	var user entities.User
	err := r.db(ctx).QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Address,
		&user.PasswordHash,
		&user.MnemonicHash,
		&user.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}

	return &user, nil
}

// UserExists checks if a user with the given id is registered.
func (r *UsersRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if user exists: %w", err)
	}
	return exists, nil
}

// UpdatePasswordHash replaces the stored password hash for a user.
func (r *UsersRepository) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.db(ctx).Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrUserNotFound
	}

	r.logger.Info("Password updated", "user_id", userID)
	return nil
}
