package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.openly.dev/pointy"
)

type TradesRepository interface {
	InsertTrade(ctx context.Context, trade *entities.Trade) error
	FindTradesForUser(ctx context.Context, userID int64) ([]entities.Trade, error)
}

// FillResult reports the realized settlement of a fill: the buyer received
// AmountReceived units of the order's from-currency and paid AmountPaid
// units of its to-currency.
type FillResult struct {
	AmountReceived decimal.Decimal
	AmountPaid     decimal.Decimal
}

// ExchangeService is the matching engine. A fill settles across four wallet
// legs and one order mutation; all of it commits as a single transaction or
// none of it does.
type ExchangeService struct {
	logger     *slog.Logger
	orders     OrdersRepository
	wallets    WalletsRepository
	trades     TradesRepository
	ledger     *WalletService
	transactor Transactor
	events     EventPublisher
}

func NewExchangeService(
	logger *slog.Logger,
	orders OrdersRepository,
	wallets WalletsRepository,
	trades TradesRepository,
	ledger *WalletService,
	transactor Transactor,
	events EventPublisher,
) *ExchangeService {
	return &ExchangeService{
		logger:     logger,
		orders:     orders,
		wallets:    wallets,
		trades:     trades,
		ledger:     ledger,
		transactor: transactor,
		events:     events,
	}
}

// FillOrder executes a (possibly partial) fill of a resting order by a
// buyer.
//
// Inside one transaction it locks the order row, resolves and locks the
// four wallets involved (buyer and seller, each on both currencies of the
// pair), re-validates quantity and balances against the committed state,
// applies the four-leg transfer through the ledger, reduces the order's
// remaining quantity (evicting it at zero) and journals the trade. A
// validation failure or a commit-time conflict leaves every balance and the
// order exactly as before the call.
func (s *ExchangeService) FillOrder(ctx context.Context, orderID, buyerID int64, amountToBuy decimal.Decimal) (*FillResult, error) {
	if !amountToBuy.IsPositive() {
		return nil, entities.ErrNegativeAmount
	}

	var result *FillResult
	var filledEvent *OrderEvent

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		// The order references currencies, not wallet rows: resolve the
		// four wallets at settlement time. The buyer pays in the order's
		// to-currency and receives its from-currency; the seller mirrors.
		// Rows are locked in the same (user id, currency) order TransferSet
		// uses so cross fills cannot deadlock each other.
		type walletKey struct {
			userID   int64
			currency string
		}
		keys := []walletKey{
			{userID: buyerID, currency: order.ToCurrency},
			{userID: buyerID, currency: order.FromCurrency},
			{userID: order.UserID, currency: order.ToCurrency},
			{userID: order.UserID, currency: order.FromCurrency},
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].userID != keys[j].userID {
				return keys[i].userID < keys[j].userID
			}
			return keys[i].currency < keys[j].currency
		})
		locked := make(map[walletKey]*entities.Wallet, len(keys))
		for _, key := range keys {
			wallet, err := s.findWallet(ctx, key.userID, key.currency)
			if err != nil {
				return err
			}
			locked[key] = wallet
		}
		buyerPaying := locked[walletKey{userID: buyerID, currency: order.ToCurrency}]
		sellerSelling := locked[walletKey{userID: order.UserID, currency: order.FromCurrency}]

		amountToPay := amountToBuy.Mul(order.ExchangeRate)

		if order.AmountRemaining.LessThan(amountToBuy) || sellerSelling.Balance.LessThan(amountToBuy) {
			return fmt.Errorf("%w: requested %s %s, order has %s and seller holds %s",
				entities.ErrInsufficientOrderQuantity,
				amountToBuy.String(), order.FromCurrency,
				order.AmountRemaining.String(), sellerSelling.Balance.String())
		}

		if buyerPaying.Balance.LessThan(amountToPay) {
			return fmt.Errorf("%w: need %s %s, wallet holds %s",
				entities.ErrInsufficientBuyerFunds,
				amountToPay.String(), order.ToCurrency, buyerPaying.Balance.String())
		}

		legs := []TransferLeg{
			{UserID: buyerID, Currency: order.ToCurrency, Delta: amountToPay.Neg()},
			{UserID: buyerID, Currency: order.FromCurrency, Delta: amountToBuy},
			{UserID: order.UserID, Currency: order.ToCurrency, Delta: amountToPay},
			{UserID: order.UserID, Currency: order.FromCurrency, Delta: amountToBuy.Neg()},
		}
		if err = s.ledger.TransferSet(ctx, legs); err != nil {
			return err
		}

		remaining, err := s.orders.ReduceRemaining(ctx, orderID, amountToBuy)
		if err != nil {
			return err
		}

		trade := &entities.Trade{
			OrderID:      orderID,
			SellerID:     order.UserID,
			BuyerID:      buyerID,
			FromCurrency: order.FromCurrency,
			ToCurrency:   order.ToCurrency,
			Amount:       amountToBuy,
			AmountPaid:   amountToPay,
		}
		if err = s.trades.InsertTrade(ctx, trade); err != nil {
			return err
		}

		result = &FillResult{AmountReceived: amountToBuy, AmountPaid: amountToPay}

		event := OrderEvent{Type: OrderEventFilled, OrderID: orderID}
		if remaining.IsPositive() {
			event.AmountRemaining = pointy.String(remaining.String())
		}
		filledEvent = &event

		s.logger.Info("Order filled",
			"order_id", orderID, "buyer_id", buyerID, "seller_id", order.UserID,
			"amount", amountToBuy.String(), "paid", amountToPay.String(),
			"remaining", remaining.String())
		return nil
	})
	if err != nil {
		if isSerializationError(err) {
			return nil, entities.ErrTransactionConflict
		}
		return nil, err
	}

	if s.events != nil && filledEvent != nil {
		s.events.Publish(*filledEvent)
	}
	return result, nil
}

// ListUserTrades returns the settlement journal entries a user took part in.
func (s *ExchangeService) ListUserTrades(ctx context.Context, userID int64) ([]entities.Trade, error) {
	return s.trades.FindTradesForUser(ctx, userID)
}

func (s *ExchangeService) findWallet(ctx context.Context, userID int64, currency string) (*entities.Wallet, error) {
	wallet, err := s.wallets.FindWalletForUpdate(ctx, userID, currency)
	if err != nil {
		if errors.Is(err, entities.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: user %d has no %s wallet", entities.ErrWalletNotFound, userID, currency)
		}
		return nil, err
	}
	return wallet, nil
}

// isSerializationError reports whether the transaction lost a commit-time
// race (serialization failure or deadlock). Surfaced to the caller as
// ErrTransactionConflict; never retried here.
func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
