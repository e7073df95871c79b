package handlers

import (
	"fmt"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/shopspring/decimal"
)

const (
	minPasswordLength = 8
	minMnemonicLength = 12
)

// Request and response shapes for every operation. Requests are validated
// here, before the services ever see them.

type CreateAccountRequest struct {
	UserID   int64  `json:"user_id"`
	Password string `json:"password"`
}

func (r *CreateAccountRequest) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

type CreateAccountResponse struct {
	Msg            string   `json:"msg"`
	UserAddress    string   `json:"user_address"`
	MnemonicPhrase []string `json:"mnemonic_phrase"`
}

type PasswordRecoveryRequest struct {
	UserID         int64  `json:"user_id"`
	MnemonicPhrase string `json:"mnemonic_phrase"`
	NewPassword    string `json:"new_password"`
}

func (r *PasswordRecoveryRequest) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if len(r.MnemonicPhrase) < minMnemonicLength {
		return fmt.Errorf("mnemonic_phrase must be at least %d characters", minMnemonicLength)
	}
	if len(r.NewPassword) < minPasswordLength {
		return fmt.Errorf("new_password must be at least %d characters", minPasswordLength)
	}
	return nil
}

type WalletInfo struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type UserInfoResponse struct {
	UserAddress string       `json:"user_address"`
	Wallets     []WalletInfo `json:"wallets"`
}

type CreateOrderRequest struct {
	UserID       int64           `json:"user_id"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Value        decimal.Decimal `json:"value"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

func (r *CreateOrderRequest) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if r.FromCurrency == "" || r.ToCurrency == "" {
		return fmt.Errorf("from_currency and to_currency are required")
	}
	if !r.Value.IsPositive() {
		return fmt.Errorf("value must be positive")
	}
	if !r.ExchangeRate.IsPositive() {
		return fmt.Errorf("exchange_rate must be positive")
	}
	return nil
}

type OrderInfoResponse struct {
	OrderID         int64           `json:"order_id"`
	FromCurrency    string          `json:"from_currency"`
	ToCurrency      string          `json:"to_currency"`
	AmountSold      decimal.Decimal `json:"amount_sold"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	AmountToReceive decimal.Decimal `json:"amount_to_receive"`
	Status          string          `json:"status"`
}

func orderInfoFromEntity(order *entities.Order) OrderInfoResponse {
	return OrderInfoResponse{
		OrderID:         order.ID,
		FromCurrency:    order.FromCurrency,
		ToCurrency:      order.ToCurrency,
		AmountSold:      order.AmountRemaining,
		ExchangeRate:    order.ExchangeRate,
		AmountToReceive: order.AmountToReceive,
		Status:          order.Status,
	}
}

type BuyOrderRequest struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	AmountToBuy decimal.Decimal `json:"amount_to_buy"`
}

func (r *BuyOrderRequest) Validate() error {
	if r.OrderID <= 0 {
		return fmt.Errorf("order_id must be positive")
	}
	if r.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if !r.AmountToBuy.IsPositive() {
		return fmt.Errorf("amount_to_buy must be positive")
	}
	return nil
}

type BuyOrderResponse struct {
	Msg             string          `json:"msg"`
	AmountToReceive decimal.Decimal `json:"amount_to_receive"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
}

type BalanceResponse struct {
	UserID   int64           `json:"user_id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}
