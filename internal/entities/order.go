package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending = "pending"
	OrderStatusFilled  = "filled"
)

// Order is a standing offer to sell AmountRemaining units of FromCurrency
// for ToCurrency at a fixed ExchangeRate (ToCurrency units per FromCurrency
// unit). AmountToReceive is always AmountRemaining * ExchangeRate; it is
// recomputed on every partial fill. An order whose remaining amount reaches
// exactly zero is filled and leaves the active book.
type Order struct {
	ID              int64           `db:"id" json:"order_id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	FromCurrency    string          `db:"from_currency" json:"from_currency"`
	ToCurrency      string          `db:"to_currency" json:"to_currency"`
	AmountRemaining decimal.Decimal `db:"amount_remaining" json:"amount_remaining"`
	ExchangeRate    decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	AmountToReceive decimal.Decimal `db:"amount_to_receive" json:"amount_to_receive"`
	Status          string          `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
