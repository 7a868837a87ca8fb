// Package pricing resolves cryptocurrency symbols to current USD prices.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when a price cannot be resolved: network
// failure, unknown symbol, or a non-positive quote. Callers must treat it as
// aborting the enclosing trade or valuation.
var ErrPriceUnavailable = errors.New("price unavailable")

// Oracle resolves a symbol to a positive USD price.
type Oracle interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
