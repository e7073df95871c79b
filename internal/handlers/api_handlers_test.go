package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// stubServices implements every service interface with overridable funcs so
// each test controls exactly one behavior.
type stubServices struct {
	createAccount   func(ctx context.Context, userID int64, password string) (*usecases.CreatedAccount, error)
	recoverPassword func(ctx context.Context, userID int64, mnemonic, newPassword string) error
	userExists      func(ctx context.Context, userID int64) (bool, error)
	getUserInfo     func(ctx context.Context, userID int64) (*usecases.UserInfo, error)

	createOrder        func(ctx context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error)
	listMatchingOrders func(ctx context.Context, requesterID int64, sellCurrency, buyCurrency string) ([]entities.Order, error)
	listUserOrders     func(ctx context.Context, userID int64) ([]entities.Order, error)
	cancelOrder        func(ctx context.Context, orderID, requesterID int64) error

	getBalance func(ctx context.Context, userID int64, currency string) (decimal.Decimal, error)

	fillOrder      func(ctx context.Context, orderID, buyerID int64, amountToBuy decimal.Decimal) (*usecases.FillResult, error)
	listUserTrades func(ctx context.Context, userID int64) ([]entities.Trade, error)
}

func (s *stubServices) CreateAccount(ctx context.Context, userID int64, password string) (*usecases.CreatedAccount, error) {
	return s.createAccount(ctx, userID, password)
}

func (s *stubServices) RecoverPassword(ctx context.Context, userID int64, mnemonic, newPassword string) error {
	return s.recoverPassword(ctx, userID, mnemonic, newPassword)
}

func (s *stubServices) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.userExists(ctx, userID)
}

func (s *stubServices) GetUserInfo(ctx context.Context, userID int64) (*usecases.UserInfo, error) {
	return s.getUserInfo(ctx, userID)
}

func (s *stubServices) CreateOrder(ctx context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error) {
	return s.createOrder(ctx, userID, fromCurrency, toCurrency, amount, rate)
}

func (s *stubServices) ListMatchingOrders(ctx context.Context, requesterID int64, sellCurrency, buyCurrency string) ([]entities.Order, error) {
	return s.listMatchingOrders(ctx, requesterID, sellCurrency, buyCurrency)
}

func (s *stubServices) ListUserOrders(ctx context.Context, userID int64) ([]entities.Order, error) {
	return s.listUserOrders(ctx, userID)
}

func (s *stubServices) CancelOrder(ctx context.Context, orderID, requesterID int64) error {
	return s.cancelOrder(ctx, orderID, requesterID)
}

func (s *stubServices) GetBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error) {
	return s.getBalance(ctx, userID, currency)
}

func (s *stubServices) FillOrder(ctx context.Context, orderID, buyerID int64, amountToBuy decimal.Decimal) (*usecases.FillResult, error) {
	return s.fillOrder(ctx, orderID, buyerID, amountToBuy)
}

func (s *stubServices) ListUserTrades(ctx context.Context, userID int64) ([]entities.Trade, error) {
	return s.listUserTrades(ctx, userID)
}

func newTestRouter(stub *stubServices) *mux.Router {
	handler := NewHTTPHandler(slog.Default(), stub, stub, stub, stub)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAccountHandler(t *testing.T) {
	stub := &stubServices{
		createAccount: func(_ context.Context, userID int64, _ string) (*usecases.CreatedAccount, error) {
			require.Equal(t, int64(7), userID)
			return &usecases.CreatedAccount{
				Address:        "0xabc",
				MnemonicPhrase: []string{"one", "two", "three"},
			}, nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodPost, "/user/createAccount",
		`{"user_id":7,"password":"long enough password"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateAccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "0xabc", resp.UserAddress)
	require.Equal(t, []string{"one", "two", "three"}, resp.MnemonicPhrase)
}

func TestCreateAccountHandlerValidation(t *testing.T) {
	router := newTestRouter(&stubServices{})

	t.Run("bad json", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/user/createAccount", "{not json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/user/createAccount",
			`{"user_id":7,"password":"tiny"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing user id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, "/user/createAccount",
			`{"password":"long enough password"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateAccountHandlerDuplicate(t *testing.T) {
	stub := &stubServices{
		createAccount: func(context.Context, int64, string) (*usecases.CreatedAccount, error) {
			return nil, entities.ErrUserExists
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodPost, "/user/createAccount",
		`{"user_id":7,"password":"long enough password"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"user not found", entities.ErrUserNotFound, http.StatusNotFound},
		{"order not found", entities.ErrOrderNotFound, http.StatusNotFound},
		{"wallet not found", entities.ErrWalletNotFound, http.StatusNotFound},
		{"forbidden", entities.ErrForbidden, http.StatusForbidden},
		{"insufficient funds", entities.ErrInsufficientFunds, http.StatusBadRequest},
		{"insufficient quantity", entities.ErrInsufficientOrderQuantity, http.StatusBadRequest},
		{"insufficient buyer funds", entities.ErrInsufficientBuyerFunds, http.StatusBadRequest},
		{"conflict", entities.ErrTransactionConflict, http.StatusConflict},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stub := &stubServices{
				fillOrder: func(context.Context, int64, int64, decimal.Decimal) (*usecases.FillResult, error) {
					return nil, test.err
				},
			}
			router := newTestRouter(stub)

			rec := doRequest(t, router, http.MethodPost, "/orders/buy",
				`{"order_id":1,"user_id":2,"amount_to_buy":"5"}`)
			require.Equal(t, test.want, rec.Code)
		})
	}
}

func TestBuyOrderHandler(t *testing.T) {
	stub := &stubServices{
		fillOrder: func(_ context.Context, orderID, buyerID int64, amountToBuy decimal.Decimal) (*usecases.FillResult, error) {
			require.Equal(t, int64(3), orderID)
			require.Equal(t, int64(2), buyerID)
			require.True(t, amountToBuy.Equal(decimal.NewFromInt(50)))
			return &usecases.FillResult{
				AmountReceived: decimal.NewFromInt(50),
				AmountPaid:     decimal.RequireFromString("2.5"),
			}, nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodPost, "/orders/buy",
		`{"order_id":3,"user_id":2,"amount_to_buy":"50"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BuyOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.AmountToReceive.Equal(decimal.NewFromInt(50)))
	require.True(t, resp.AmountPaid.Equal(decimal.RequireFromString("2.5")))
}

func TestCreateOrderHandler(t *testing.T) {
	stub := &stubServices{
		createOrder: func(_ context.Context, userID int64, fromCurrency, toCurrency string, amount, rate decimal.Decimal) (*entities.Order, error) {
			return &entities.Order{
				ID:              11,
				UserID:          userID,
				FromCurrency:    fromCurrency,
				ToCurrency:      toCurrency,
				AmountRemaining: amount,
				ExchangeRate:    rate,
				AmountToReceive: amount.Mul(rate),
				Status:          entities.OrderStatusPending,
			}, nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodPost, "/order/create",
		`{"user_id":1,"from_currency":"BTC","to_currency":"ETH","value":"100","exchange_rate":"0.05"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp OrderInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(11), resp.OrderID)
	require.True(t, resp.AmountSold.Equal(decimal.NewFromInt(100)))
	require.True(t, resp.AmountToReceive.Equal(decimal.NewFromInt(5)))
	require.Equal(t, entities.OrderStatusPending, resp.Status)
}

func TestListMatchingOrdersHandler(t *testing.T) {
	stub := &stubServices{
		listMatchingOrders: func(_ context.Context, requesterID int64, sellCurrency, buyCurrency string) ([]entities.Order, error) {
			require.Equal(t, int64(3), requesterID)
			require.Equal(t, "ETH", sellCurrency)
			require.Equal(t, "BTC", buyCurrency)
			return []entities.Order{{ID: 1}, {ID: 2}}, nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodGet,
		"/orders/list?user_id=3&currency_to_sell=ETH&currency_to_buy=BTC", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []OrderInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	t.Run("missing currencies", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/orders/list?user_id=3", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteOrderHandler(t *testing.T) {
	stub := &stubServices{
		cancelOrder: func(_ context.Context, orderID, requesterID int64) error {
			require.Equal(t, int64(5), orderID)
			require.Equal(t, int64(1), requesterID)
			return nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodDelete, "/order/delete?order_id=5&user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("foreign order", func(t *testing.T) {
		stub.cancelOrder = func(context.Context, int64, int64) error {
			return entities.ErrForbidden
		}
		rec := doRequest(t, router, http.MethodDelete, "/order/delete?order_id=5&user_id=2", "")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodDelete, "/order/delete", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetWalletBalanceHandler(t *testing.T) {
	stub := &stubServices{
		getBalance: func(_ context.Context, userID int64, currency string) (decimal.Decimal, error) {
			require.Equal(t, int64(1), userID)
			require.Equal(t, "BTC", currency)
			return decimal.NewFromInt(42), nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodGet, "/wallet/balance?user_id=1&currency=BTC", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Balance.Equal(decimal.NewFromInt(42)))

	t.Run("missing currency", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/wallet/balance?user_id=1", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetUserInfoHandler(t *testing.T) {
	stub := &stubServices{
		getUserInfo: func(_ context.Context, userID int64) (*usecases.UserInfo, error) {
			return &usecases.UserInfo{
				Address: "0xabc",
				Wallets: []entities.Wallet{
					{Currency: "BTC", Balance: decimal.NewFromInt(50)},
				},
			}, nil
		},
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodGet, "/user/info?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "0xabc", resp.UserAddress)
	require.Len(t, resp.Wallets, 1)
	require.Equal(t, "BTC", resp.Wallets[0].Currency)
}

func TestCheckUserExistsHandler(t *testing.T) {
	stub := &stubServices{
		userExists: func(context.Context, int64) (bool, error) { return true, nil },
	}
	router := newTestRouter(stub)

	rec := doRequest(t, router, http.MethodGet, "/user/exist?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp["exists"])
}
