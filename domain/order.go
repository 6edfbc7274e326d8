package domain

import (
	"errors"
	"fmt"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

var (
	ErrMissingTokenID = errors.New("order token id must not be empty")
	ErrMissingPrice   = errors.New("limit order requires a price")
	ErrInvalidSize    = errors.New("order size must be positive")
)

// OrderRequest describes an order before it is built and signed.
//
// Size semantics differ by order kind: for market BUY orders it is the
// quote-currency amount to spend, for market SELL and all limit orders it
// is the base-asset quantity. Price is required for limit orders and
// ignored for market orders; the exchange resolves a market order's
// execution price from its book.
type OrderRequest struct {
	TokenID       string
	Size          float64
	Price         float64
	Side          OrderSide
	IsMarketOrder bool
	NegRisk       bool
}

// Validate checks the request before any network call is made.
func (r *OrderRequest) Validate() error {
	if r.TokenID == "" {
		return ErrMissingTokenID
	}
	if r.Size <= 0 {
		return ErrInvalidSize
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("unknown order side: %q", r.Side)
	}
	if !r.IsMarketOrder && r.Price <= 0 {
		return ErrMissingPrice
	}
	return nil
}
