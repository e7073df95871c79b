package entities

import "errors"

// Domain errors shared by repositories, usecases and handlers. Business-rule
// violations are surfaced to the caller and never retried internally.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserExists     = errors.New("user with this ID already exists")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrOrderNotFound  = errors.New("order not found")

	// ErrForbidden is returned when the requester is not the order's seller.
	ErrForbidden = errors.New("not authorized to modify this order")

	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrInsufficientOrderQuantity = errors.New("not enough quantity available for purchase")
	ErrInsufficientBuyerFunds    = errors.New("insufficient funds in buyer wallet")

	ErrNegativeAmount      = errors.New("amount must be positive")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidMnemonic     = errors.New("invalid mnemonic phrase")

	// ErrTransactionConflict reports a commit-time serialization failure.
	// Retrying is the caller's decision.
	ErrTransactionConflict = errors.New("transaction conflict, please retry")
)
