package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/core/ports"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	logger          *slog.Logger
	accountService  ports.AccountService
	orderService    ports.OrderService
	walletService   ports.WalletService
	exchangeService ports.ExchangeService
}

func NewHTTPHandler(logger *slog.Logger, accountService ports.AccountService, orderService ports.OrderService, walletService ports.WalletService, exchangeService ports.ExchangeService) *HTTPHandler {
	return &HTTPHandler{
		logger:          logger,
		accountService:  accountService,
		orderService:    orderService,
		walletService:   walletService,
		exchangeService: exchangeService,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Accounts
	router.HandleFunc("/user/createAccount", h.CreateAccount).Methods("POST")
	router.HandleFunc("/user/recoverPassword", h.RecoverPassword).Methods("POST")
	router.HandleFunc("/user/info", h.GetUserInfo).Methods("GET")
	router.HandleFunc("/user/exist", h.CheckUserExists).Methods("GET")

	// Orders
	router.HandleFunc("/order/create", h.CreateOrder).Methods("POST")
	router.HandleFunc("/order/delete", h.DeleteOrder).Methods("DELETE")
	router.HandleFunc("/orders/list", h.ListMatchingOrders).Methods("GET")
	router.HandleFunc("/orders/buy", h.BuyOrder).Methods("POST")
	router.HandleFunc("/user/orders", h.GetUserOrders).Methods("GET")

	// Wallets, trades
	router.HandleFunc("/wallet/balance", h.GetWalletBalance).Methods("GET")
	router.HandleFunc("/user/trades", h.GetUserTrades).Methods("GET")
}

// writeError maps domain errors onto HTTP statuses.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entities.ErrUserNotFound),
		errors.Is(err, entities.ErrOrderNotFound),
		errors.Is(err, entities.ErrWalletNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, entities.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, entities.ErrUserExists),
		errors.Is(err, entities.ErrInsufficientFunds),
		errors.Is(err, entities.ErrInsufficientOrderQuantity),
		errors.Is(err, entities.ErrInsufficientBuyerFunds),
		errors.Is(err, entities.ErrNegativeAmount),
		errors.Is(err, entities.ErrUnsupportedCurrency),
		errors.Is(err, entities.ErrInvalidMnemonic):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrTransactionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func queryInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
}

func (h *HTTPHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), req.UserID, req.Password)
	if err != nil {
		h.logger.Error("Failed to create account", "error", err, "user_id", req.UserID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, CreateAccountResponse{
		Msg:            "Account created successfully",
		UserAddress:    account.Address,
		MnemonicPhrase: account.MnemonicPhrase,
	})
}

func (h *HTTPHandler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.accountService.RecoverPassword(r.Context(), req.UserID, req.MnemonicPhrase, req.NewPassword)
	if err != nil {
		h.logger.Error("Failed to recover password", "error", err, "user_id", req.UserID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"msg": "Password updated successfully"})
}

func (h *HTTPHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}

	info, err := h.accountService.GetUserInfo(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get user info", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	wallets := make([]WalletInfo, 0, len(info.Wallets))
	for _, wallet := range info.Wallets {
		wallets = append(wallets, WalletInfo{Currency: wallet.Currency, Value: wallet.Balance})
	}

	h.writeJSON(w, http.StatusOK, UserInfoResponse{UserAddress: info.Address, Wallets: wallets})
}

func (h *HTTPHandler) CheckUserExists(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}

	exists, err := h.accountService.UserExists(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to check user existence", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), req.UserID, req.FromCurrency, req.ToCurrency, req.Value, req.ExchangeRate)
	if err != nil {
		h.logger.Error("Failed to create order", "error", err, "user_id", req.UserID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, orderInfoFromEntity(order))
}

func (h *HTTPHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}

	orders, err := h.orderService.ListUserOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user orders", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	response := make([]OrderInfoResponse, 0, len(orders))
	for i := range orders {
		response = append(response, orderInfoFromEntity(&orders[i]))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) ListMatchingOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}
	sellCurrency := r.URL.Query().Get("currency_to_sell")
	buyCurrency := r.URL.Query().Get("currency_to_buy")
	if sellCurrency == "" || buyCurrency == "" {
		http.Error(w, "missing required parameters: currency_to_sell and currency_to_buy", http.StatusBadRequest)
		return
	}

	orders, err := h.orderService.ListMatchingOrders(r.Context(), userID, sellCurrency, buyCurrency)
	if err != nil {
		h.logger.Error("Failed to list matching orders", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	response := make([]OrderInfoResponse, 0, len(orders))
	for i := range orders {
		response = append(response, orderInfoFromEntity(&orders[i]))
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) BuyOrder(w http.ResponseWriter, r *http.Request) {
	var req BuyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.exchangeService.FillOrder(r.Context(), req.OrderID, req.UserID, req.AmountToBuy)
	if err != nil {
		h.logger.Error("Failed to fill order", "error", err, "order_id", req.OrderID, "buyer_id", req.UserID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, BuyOrderResponse{
		Msg:             "Order successfully purchased",
		AmountToReceive: result.AmountReceived,
		AmountPaid:      result.AmountPaid,
	})
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := queryInt64(r, "order_id")
	if err != nil {
		http.Error(w, "invalid or missing order_id", http.StatusBadRequest)
		return
	}
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}

	if err = h.orderService.CancelOrder(r.Context(), orderID, userID); err != nil {
		h.logger.Error("Failed to delete order", "error", err, "order_id", orderID, "user_id", userID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"msg": "Order deleted successfully"})
}

func (h *HTTPHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		http.Error(w, "missing required parameter: currency", http.StatusBadRequest)
		return
	}

	balance, err := h.walletService.GetBalance(r.Context(), userID, currency)
	if err != nil {
		h.logger.Error("Failed to get balance", "error", err, "user_id", userID, "currency", currency)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Currency: currency, Balance: balance})
}

func (h *HTTPHandler) GetUserTrades(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		http.Error(w, "invalid or missing user_id", http.StatusBadRequest)
		return
	}

	trades, err := h.exchangeService.ListUserTrades(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user trades", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, trades)
}
