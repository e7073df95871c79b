package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/pkg/database"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
)

// TradesRepository is the settlement journal: one row per executed fill.
type TradesRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewTradesRepository(logger *slog.Logger, pg *database.Postgres) *TradesRepository {
	return &TradesRepository{logger: logger, db: pg.DBGetter}
}

// InsertTrade records an executed fill. Called inside the settlement
// transaction so the journal commits together with the wallet legs.
func (r *TradesRepository) InsertTrade(ctx context.Context, trade *entities.Trade) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO trades (order_id, seller_id, buyer_id, from_currency, to_currency, amount, amount_paid)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id, executed_at`,
		trade.OrderID, trade.SellerID, trade.BuyerID,
		trade.FromCurrency, trade.ToCurrency, trade.Amount, trade.AmountPaid).
		Scan(&trade.ID, &trade.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// FindTradesForUser returns the fills a user took part in, on either side.
func (r *TradesRepository) FindTradesForUser(ctx context.Context, userID int64) ([]entities.Trade, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, order_id, seller_id, buyer_id, from_currency, to_currency, amount, amount_paid, executed_at
           FROM trades
          WHERE seller_id = $1 OR buyer_id = $1
          ORDER BY id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user trades: %w", err)
	}
	defer rows.Close()

	trades, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[entities.Trade])
	if err != nil {
		r.logger.Error("failed to collect trades rows", "error", err)
		return nil, fmt.Errorf("failed to collect trades rows: %w", err)
	}

	return trades, nil
}
