package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/shared"
	"github.com/shopspring/decimal"
)

type OrdersRepository interface {
	InsertOrder(ctx context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error)
	FindOrderByID(ctx context.Context, orderID int64) (*entities.Order, error)
	FindOrderByIDForUpdate(ctx context.Context, orderID int64) (*entities.Order, error)
	FindMatchingOrders(ctx context.Context, excludeUserID int64, sellCurrency, buyCurrency string) ([]entities.Order, error)
	FindOrdersForUser(ctx context.Context, userID int64) ([]entities.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	ReduceRemaining(ctx context.Context, orderID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// OrderService owns the order book: creation, discovery and cancellation.
//
// Creation checks that the seller's from-currency wallet covers the offered
// amount but does not lock the funds: the modeled system has no escrow, so
// a later fill re-validates the seller balance and cancellation has nothing
// to refund. A seller who spends the funds after posting simply cannot be
// filled.
type OrderService struct {
	logger     *slog.Logger
	repo       OrdersRepository
	wallets    WalletsRepository
	users      UsersProvider
	transactor Transactor
	events     EventPublisher
}

func NewOrderService(logger *slog.Logger, repo OrdersRepository, wallets WalletsRepository, users UsersProvider, transactor Transactor, events EventPublisher) *OrderService {
	return &OrderService{
		logger:     logger,
		repo:       repo,
		wallets:    wallets,
		users:      users,
		transactor: transactor,
		events:     events,
	}
}

func (s *OrderService) publish(event OrderEvent) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

// CreateOrder places a resting sell order for the given pair.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error) {
	if !amount.IsPositive() || !rate.IsPositive() {
		return nil, entities.ErrNegativeAmount
	}
	if !shared.IsSupportedCurrency(fromCurrency) || !shared.IsSupportedCurrency(toCurrency) {
		return nil, entities.ErrUnsupportedCurrency
	}

	var order *entities.Order
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.users.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return entities.ErrUserNotFound
		}

		fromWallet, err := s.wallets.FindWallet(ctx, userID, fromCurrency)
		if err != nil {
			return fmt.Errorf("%s wallet: %w", fromCurrency, err)
		}
		if fromWallet.Balance.LessThan(amount) {
			return fmt.Errorf("%w: %s wallet holds %s, offering %s",
				entities.ErrInsufficientFunds, fromCurrency, fromWallet.Balance.String(), amount.String())
		}

		// The receiving wallet must exist up front; wallets are never
		// created lazily at settlement time.
		if _, err = s.wallets.FindWallet(ctx, userID, toCurrency); err != nil {
			return fmt.Errorf("%s wallet: %w", toCurrency, err)
		}

		order, err = s.repo.InsertOrder(ctx, userID, fromCurrency, toCurrency, amount, rate)
		return err
	})
	if err != nil {
		if isSerializationError(err) {
			return nil, entities.ErrTransactionConflict
		}
		return nil, err
	}

	s.publish(OrderEvent{Type: OrderEventCreated, OrderID: order.ID, Order: order})
	return order, nil
}

// GetOrder resolves a single order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*entities.Order, error) {
	return s.repo.FindOrderByID(ctx, orderID)
}

// ListMatchingOrders returns resting orders a prospective buyer can fill:
// orders selling buyCurrency for sellCurrency, excluding the requester's
// own. The result order is unspecified.
func (s *OrderService) ListMatchingOrders(ctx context.Context, requesterID int64, sellCurrency, buyCurrency string) ([]entities.Order, error) {
	return s.repo.FindMatchingOrders(ctx, requesterID, sellCurrency, buyCurrency)
}

// ListUserOrders returns the resting orders placed by a user.
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]entities.Order, error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, entities.ErrUserNotFound
	}
	return s.repo.FindOrdersForUser(ctx, userID)
}

// CancelOrder removes a resting order. Only the seller may cancel; no
// wallet is touched since nothing was escrowed. Cancelling an order that
// was already filled (or never existed) reports ErrOrderNotFound.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, requesterID int64) error {
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.FindOrderByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != requesterID {
			return entities.ErrForbidden
		}
		return s.repo.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		if isSerializationError(err) {
			return entities.ErrTransactionConflict
		}
		return err
	}

	s.logger.Info("Order cancelled", "order_id", orderID, "user_id", requesterID)
	s.publish(OrderEvent{Type: OrderEventCancelled, OrderID: orderID})
	return nil
}
