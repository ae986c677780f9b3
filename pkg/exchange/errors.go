package exchange

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCredentialsMissing indicates a trading method was invoked without
	// signing credentials configured. Raised before any network call.
	ErrCredentialsMissing = errors.New("exchange: api credentials missing")

	// ErrSymbolUnknown indicates a symbol that cannot be resolved in either
	// direction. Never retried by this layer.
	ErrSymbolUnknown = errors.New("exchange: symbol unknown")

	// ErrTradingNotAllowed indicates the contract exists but is flagged not
	// tradeable via API.
	ErrTradingNotAllowed = errors.New("exchange: trading not allowed for contract")

	// ErrLeverageRange indicates leverage outside the contract's bounds.
	ErrLeverageRange = errors.New("exchange: leverage out of range")

	// ErrQuantityInvalid indicates quantity normalization failed against
	// instrument constraints.
	ErrQuantityInvalid = errors.New("exchange: invalid quantity")

	// ErrPriceInvalid indicates price normalization failed against
	// instrument constraints.
	ErrPriceInvalid = errors.New("exchange: invalid price")

	// ErrContractMetadata indicates the instrument metadata is missing a
	// field required for normalization (step or tick size).
	ErrContractMetadata = errors.New("exchange: contract metadata incomplete")

	// ErrOrderNotFound indicates an order id that could not be resolved
	// from the local index nor from the exchange's order lists.
	ErrOrderNotFound = errors.New("exchange: order not found")
)

// QuantityError carries the rejected quantity alongside the reason. It
// unwraps to ErrQuantityInvalid.
type QuantityError struct {
	Symbol string
	Qty    decimal.Decimal
	Reason string
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("exchange: invalid quantity %s for %s: %s", e.Qty, e.Symbol, e.Reason)
}

func (e *QuantityError) Unwrap() error { return ErrQuantityInvalid }

// PriceError carries the rejected price alongside the reason. It unwraps to
// ErrPriceInvalid.
type PriceError struct {
	Symbol string
	Price  decimal.Decimal
	Reason string
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("exchange: invalid price %s for %s: %s", e.Price, e.Symbol, e.Reason)
}

func (e *PriceError) Unwrap() error { return ErrPriceInvalid }
