package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/pkg/database"
	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrdersRepository is the storage side of the order book. A row exists only
// while the order is resting; fully filled or cancelled orders are deleted.
type OrdersRepository struct {
	logger     *slog.Logger
	db         tx.DBGetter
	transactor *tx.Transactor
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{logger: logger, db: pg.DBGetter, transactor: pg.Transactor}
}

const orderColumns = "id, user_id, from_currency, to_currency, amount_remaining, exchange_rate, amount_to_receive, status, created_at"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *OrdersRepository) scanOrder(row pgx.Row) (*entities.Order, error) {
	var order entities.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.FromCurrency,
		&order.ToCurrency,
		&order.AmountRemaining,
		&order.ExchangeRate,
		&order.AmountToReceive,
		&order.Status,
		&order.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return &order, nil
}

// InsertOrder creates a resting order and returns it with its assigned id.
func (r *OrdersRepository) InsertOrder(ctx context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error) {
	query := fmt.Sprintf(`INSERT INTO orders (user_id, from_currency, to_currency, amount_remaining, exchange_rate, amount_to_receive, status)
         VALUES ($1, $2, $3, $4, $5, $6, '%s')
         RETURNING %s`, entities.OrderStatusPending, orderColumns)

	order, err := r.scanOrder(r.db(ctx).QueryRow(ctx, query,
		userID, fromCurrency, toCurrency, amount, rate, amount.Mul(rate)))
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	r.logger.Info("Order created", "order_id", order.ID, "user_id", userID,
		"pair", fromCurrency+"/"+toCurrency, "amount", amount.String(), "rate", rate.String())
	return order, nil
}

// FindOrderByID retrieves an order by id.
func (r *OrdersRepository) FindOrderByID(ctx context.Context, orderID int64) (*entities.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1", orderColumns)
	return r.scanOrder(r.db(ctx).QueryRow(ctx, query, orderID))
}

// FindOrderByIDForUpdate retrieves an order and locks its row for the
// duration of the surrounding transaction.
func (r *OrdersRepository) FindOrderByIDForUpdate(ctx context.Context, orderID int64) (*entities.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1 FOR UPDATE", orderColumns)
	return r.scanOrder(r.db(ctx).QueryRow(ctx, query, orderID))
}

// FindMatchingOrders returns resting orders selling buyCurrency for
// sellCurrency, excluding the requester's own orders. No ordering is
// imposed on the result.
func (r *OrdersRepository) FindMatchingOrders(ctx context.Context, excludeUserID int64, sellCurrency, buyCurrency string) ([]entities.Order, error) {
	query, args, err := psql.
		Select(orderColumns).
		From("orders").
		Where(sq.Eq{
			"from_currency": buyCurrency,
			"to_currency":   sellCurrency,
			"status":        entities.OrderStatusPending,
		}).
		Where(sq.NotEq{"user_id": excludeUserID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build matching orders query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matching orders: %w", err)
	}
	defer rows.Close()

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect matching orders rows", "error", err)
		return nil, fmt.Errorf("failed to collect matching orders rows: %w", err)
	}

	return orders, nil
}

// FindOrdersForUser returns all resting orders placed by a user.
func (r *OrdersRepository) FindOrdersForUser(ctx context.Context, userID int64) ([]entities.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE user_id = $1 ORDER BY id", orderColumns)

	rows, err := r.db(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect user orders rows", "error", err)
		return nil, fmt.Errorf("failed to collect user orders rows: %w", err)
	}

	return orders, nil
}

// DeleteOrder removes an order from the active book.
func (r *OrdersRepository) DeleteOrder(ctx context.Context, orderID int64) error {
	tag, err := r.db(ctx).Exec(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrOrderNotFound
	}

	r.logger.Info("Order removed from book", "order_id", orderID)
	return nil
}

// ReduceRemaining subtracts amount from the order's remaining quantity and
// keeps amount_to_receive consistent with it. When the remainder lands at
// exactly zero the row is deleted: the order is filled and leaves the book.
// The caller must hold the order row lock and have bounded amount to the
// current remainder.
func (r *OrdersRepository) ReduceRemaining(ctx context.Context, orderID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := r.db(ctx).QueryRow(ctx,
		`UPDATE orders
            SET amount_remaining  = amount_remaining - $2,
                amount_to_receive = (amount_remaining - $2) * exchange_rate
          WHERE id = $1
          RETURNING amount_remaining`,
		orderID, amount).Scan(&remaining)

	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, entities.ErrOrderNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to reduce order remainder: %w", err)
	}

	if remaining.IsZero() {
		if err = r.DeleteOrder(ctx, orderID); err != nil {
			return decimal.Zero, err
		}
		r.logger.Info("Order fully filled", "order_id", orderID)
	}

	return remaining, nil
}
