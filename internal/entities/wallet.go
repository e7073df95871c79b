package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a user's balance of a single currency. One wallet per
// (user, currency) pair; the balance is never allowed below zero.
type Wallet struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Currency  string          `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
