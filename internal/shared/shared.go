package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Currencies every account gets a wallet for at registration time. Wallets
// are never created lazily after that.
var supportedCurrencies = map[string]struct{}{
	"BTC": {},
	"ETH": {},
	"LTC": {},
}

// SeedBalance is credited to each wallet when an account is created.
var SeedBalance = decimal.NewFromInt(50)

// SupportedCurrencies returns the currency codes in a stable order.
func SupportedCurrencies() []string {
	currencies := maps.Keys(supportedCurrencies)
	slices.Sort(currencies)
	return currencies
}

// IsSupportedCurrency reports whether the given code is tradeable here.
func IsSupportedCurrency(currency string) bool {
	_, ok := supportedCurrencies[currency]
	return ok
}
