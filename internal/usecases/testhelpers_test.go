package usecases

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for the Postgres repositories. It
// implements UsersRepository, WalletsRepository, OrdersRepository and
// TradesRepository against plain maps so service logic can be exercised
// without a database.
type fakeStore struct {
	users   map[int64]*entities.User
	wallets map[int64]*entities.Wallet
	orders  map[int64]*entities.Order
	trades  []entities.Trade

	nextWalletID int64
	nextOrderID  int64
	nextTradeID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*entities.User),
		wallets: make(map[int64]*entities.Wallet),
		orders:  make(map[int64]*entities.Order),
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	clone := &fakeStore{
		users:        make(map[int64]*entities.User, len(s.users)),
		wallets:      make(map[int64]*entities.Wallet, len(s.wallets)),
		orders:       make(map[int64]*entities.Order, len(s.orders)),
		trades:       make([]entities.Trade, len(s.trades)),
		nextWalletID: s.nextWalletID,
		nextOrderID:  s.nextOrderID,
		nextTradeID:  s.nextTradeID,
	}
	for id, user := range s.users {
		u := *user
		clone.users[id] = &u
	}
	for id, wallet := range s.wallets {
		w := *wallet
		clone.wallets[id] = &w
	}
	for id, order := range s.orders {
		o := *order
		clone.orders[id] = &o
	}
	copy(clone.trades, s.trades)
	return clone
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.users = snap.users
	s.wallets = snap.wallets
	s.orders = snap.orders
	s.trades = snap.trades
	s.nextWalletID = snap.nextWalletID
	s.nextOrderID = snap.nextOrderID
	s.nextTradeID = snap.nextTradeID
}

// UsersRepository

func (s *fakeStore) InsertUser(_ context.Context, user *entities.User, currencies []string, seedBalance decimal.Decimal) error {
	if _, ok := s.users[user.ID]; ok {
		return entities.ErrUserExists
	}
	u := *user
	u.CreatedAt = time.Now()
	s.users[user.ID] = &u

	for _, currency := range currencies {
		s.nextWalletID++
		s.wallets[s.nextWalletID] = &entities.Wallet{
			ID:       s.nextWalletID,
			UserID:   user.ID,
			Currency: currency,
			Balance:  seedBalance,
		}
	}
	return nil
}

func (s *fakeStore) FindUserByID(_ context.Context, userID int64) (*entities.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *fakeStore) UserExists(_ context.Context, userID int64) (bool, error) {
	_, ok := s.users[userID]
	return ok, nil
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, userID int64, passwordHash string) error {
	user, ok := s.users[userID]
	if !ok {
		return entities.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// WalletsRepository

func (s *fakeStore) FindWallet(_ context.Context, userID int64, currency string) (*entities.Wallet, error) {
	for _, wallet := range s.wallets {
		if wallet.UserID == userID && wallet.Currency == currency {
			w := *wallet
			return &w, nil
		}
	}
	return nil, entities.ErrWalletNotFound
}

func (s *fakeStore) FindWalletForUpdate(ctx context.Context, userID int64, currency string) (*entities.Wallet, error) {
	return s.FindWallet(ctx, userID, currency)
}

func (s *fakeStore) FindWalletsForUser(_ context.Context, userID int64) ([]entities.Wallet, error) {
	var wallets []entities.Wallet
	for _, wallet := range s.wallets {
		if wallet.UserID == userID {
			wallets = append(wallets, *wallet)
		}
	}
	return wallets, nil
}

func (s *fakeStore) UpdateBalance(_ context.Context, walletID int64, balance decimal.Decimal) error {
	wallet, ok := s.wallets[walletID]
	if !ok {
		return entities.ErrWalletNotFound
	}
	wallet.Balance = balance
	return nil
}

// OrdersRepository

func (s *fakeStore) InsertOrder(_ context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error) {
	s.nextOrderID++
	order := &entities.Order{
		ID:              s.nextOrderID,
		UserID:          userID,
		FromCurrency:    fromCurrency,
		ToCurrency:      toCurrency,
		AmountRemaining: amount,
		ExchangeRate:    rate,
		AmountToReceive: amount.Mul(rate),
		Status:          entities.OrderStatusPending,
		CreatedAt:       time.Now(),
	}
	s.orders[order.ID] = order
	o := *order
	return &o, nil
}

func (s *fakeStore) FindOrderByID(_ context.Context, orderID int64) (*entities.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, entities.ErrOrderNotFound
	}
	o := *order
	return &o, nil
}

func (s *fakeStore) FindOrderByIDForUpdate(ctx context.Context, orderID int64) (*entities.Order, error) {
	return s.FindOrderByID(ctx, orderID)
}

func (s *fakeStore) FindMatchingOrders(_ context.Context, excludeUserID int64, sellCurrency, buyCurrency string) ([]entities.Order, error) {
	var orders []entities.Order
	for _, order := range s.orders {
		if order.UserID == excludeUserID {
			continue
		}
		if order.FromCurrency == buyCurrency && order.ToCurrency == sellCurrency && order.Status == entities.OrderStatusPending {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (s *fakeStore) FindOrdersForUser(_ context.Context, userID int64) ([]entities.Order, error) {
	var orders []entities.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (s *fakeStore) DeleteOrder(_ context.Context, orderID int64) error {
	if _, ok := s.orders[orderID]; !ok {
		return entities.ErrOrderNotFound
	}
	delete(s.orders, orderID)
	return nil
}

func (s *fakeStore) ReduceRemaining(_ context.Context, orderID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return decimal.Zero, entities.ErrOrderNotFound
	}
	order.AmountRemaining = order.AmountRemaining.Sub(amount)
	order.AmountToReceive = order.AmountRemaining.Mul(order.ExchangeRate)
	remaining := order.AmountRemaining
	if remaining.IsZero() {
		delete(s.orders, orderID)
	}
	return remaining, nil
}

// TradesRepository

func (s *fakeStore) InsertTrade(_ context.Context, trade *entities.Trade) error {
	s.nextTradeID++
	trade.ID = s.nextTradeID
	trade.ExecutedAt = time.Now()
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *fakeStore) FindTradesForUser(_ context.Context, userID int64) ([]entities.Trade, error) {
	var trades []entities.Trade
	for _, trade := range s.trades {
		if trade.SellerID == userID || trade.BuyerID == userID {
			trades = append(trades, trade)
		}
	}
	return trades, nil
}

// fakeTransactor mirrors the all-or-nothing semantics of a database
// transaction: it snapshots the store before the function runs and restores
// the snapshot if the function fails. Nested calls join the outer scope.
type fakeTransactor struct {
	store *fakeStore
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := txFunc(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// eventRecorder captures published order events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (r *eventRecorder) Publish(event OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.events...)
}

// testEnv wires the full service stack over one fake store.
type testEnv struct {
	store    *fakeStore
	events   *eventRecorder
	wallets  *WalletService
	orders   *OrderService
	exchange *ExchangeService
	accounts *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	logger := slog.Default()
	store := newFakeStore()
	transactor := &fakeTransactor{store: store}
	events := &eventRecorder{}

	wallets := NewWalletService(logger, store, store, transactor)
	orders := NewOrderService(logger, store, store, store, transactor, events)
	exchange := NewExchangeService(logger, store, store, store, wallets, transactor, events)

	accounts, err := NewAccountService(logger, "test seed phrase", 128, store, store, transactor)
	if err != nil {
		t.Fatalf("failed to create account service: %v", err)
	}

	return &testEnv{
		store:    store,
		events:   events,
		wallets:  wallets,
		orders:   orders,
		exchange: exchange,
		accounts: accounts,
	}
}

// registerUser creates an account with the default seeded wallets.
func (e *testEnv) registerUser(t *testing.T, userID int64) {
	t.Helper()
	_, err := e.accounts.CreateAccount(context.Background(), userID, "correct horse battery")
	if err != nil {
		t.Fatalf("failed to register user %d: %v", userID, err)
	}
}

// setBalance overwrites a wallet balance directly in the store.
func (e *testEnv) setBalance(t *testing.T, userID int64, currency string, balance decimal.Decimal) {
	t.Helper()
	for _, wallet := range e.store.wallets {
		if wallet.UserID == userID && wallet.Currency == currency {
			wallet.Balance = balance
			return
		}
	}
	t.Fatalf("no %s wallet for user %d", currency, userID)
}

// totalSupply sums every wallet balance of one currency, for conservation
// checks.
func (e *testEnv) totalSupply(currency string) decimal.Decimal {
	total := decimal.Zero
	for _, wallet := range e.store.wallets {
		if wallet.Currency == currency {
			total = total.Add(wallet.Balance)
		}
	}
	return total
}
