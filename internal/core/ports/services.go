package ports

import (
	"context"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases"
	"github.com/shopspring/decimal"
)

// Service contracts consumed by the HTTP layer.

type AccountService interface {
	CreateAccount(ctx context.Context, userID int64, password string) (*usecases.CreatedAccount, error)
	RecoverPassword(ctx context.Context, userID int64, mnemonic, newPassword string) error
	UserExists(ctx context.Context, userID int64) (bool, error)
	GetUserInfo(ctx context.Context, userID int64) (*usecases.UserInfo, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error)
	ListMatchingOrders(ctx context.Context, requesterID int64, sellCurrency, buyCurrency string) ([]entities.Order, error)
	ListUserOrders(ctx context.Context, userID int64) ([]entities.Order, error)
	CancelOrder(ctx context.Context, orderID, requesterID int64) error
}

type WalletService interface {
	GetBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error)
}

type ExchangeService interface {
	FillOrder(ctx context.Context, orderID, buyerID int64, amountToBuy decimal.Decimal) (*usecases.FillResult, error)
	ListUserTrades(ctx context.Context, userID int64) ([]entities.Trade, error)
}
