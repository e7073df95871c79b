package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the settlement journal row written for every successful fill.
// Amount is in the order's from-currency, AmountPaid in its to-currency.
type Trade struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	SellerID     int64           `db:"seller_id" json:"seller_id"`
	BuyerID      int64           `db:"buyer_id" json:"buyer_id"`
	FromCurrency string          `db:"from_currency" json:"from_currency"`
	ToCurrency   string          `db:"to_currency" json:"to_currency"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	AmountPaid   decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	ExecutedAt   time.Time       `db:"executed_at" json:"executed_at"`
}
