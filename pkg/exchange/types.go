package exchange

// Core trading domain types shared across exchange implementations.
// These structures stay exchange-agnostic so the execution engine never
// has to understand venue-specific payloads.

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents order direction.
type Side string

const (
	// SideBuy executes a buy.
	SideBuy Side = "buy"
	// SideSell executes a sell.
	SideSell Side = "sell"
)

// Opposite returns the reverse direction, used when synthesizing
// reduce-only exit orders for an entry.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType captures the execution style of an order request.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// MarginMode defines futures margin configuration.
type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

// OrderStatus enumerates the order lifecycle as observed by this layer.
// The state machine is reconstructed on demand from exchange reads and is
// never persisted here.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusResting   OrderStatus = "resting"
	OrderStatusPartial   OrderStatus = "partially_filled"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusUnknown   OrderStatus = "unknown"
)

// Rounding selects how the normalizer aligns quantities and prices to the
// instrument grid. RoundDown is the default: it never requests more size or
// price aggressiveness than the caller asked for.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
	RoundNearest
)

// ContractInfo is an immutable snapshot of instrument metadata. The
// contract cache replaces these wholesale on every refresh; callers must
// not mutate them.
type ContractInfo struct {
	Symbol         string // Canonical symbol, e.g. "BTCUSDT".
	ExchangeSymbol string // Venue-native symbol, e.g. "BTC_USDT".
	BaseAsset      string
	QuoteAsset     string
	APIAllowed     bool // Whether API trading is enabled for the instrument.

	PriceScale int
	VolScale   int

	TickSize decimal.Decimal // Minimum price increment.
	StepSize decimal.Decimal // Minimum quantity increment.
	MinVol   decimal.Decimal
	MaxVol   decimal.Decimal

	MinLeverage int
	MaxLeverage int

	ContractSize decimal.Decimal
	MakerFeeRate decimal.Decimal
	TakerFeeRate decimal.Decimal

	UpdatedAt time.Time
}

// Tradeable reports whether orders may be routed to the instrument.
func (c *ContractInfo) Tradeable() bool {
	return c != nil && c.APIAllowed
}

// AccountState summarizes a trading account at a point in time. It is never
// cached by this layer.
type AccountState struct {
	Currency        string
	Equity          decimal.Decimal
	AvailableMargin decimal.Decimal
	MarginMode      MarginMode
}

// FuturesPosition captures live position details, derived from exchange
// state on each call.
type FuturesPosition struct {
	Symbol        string // Canonical symbol.
	Side          Side   // Long positions report SideBuy, shorts SideSell.
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal // Zero when the venue does not report it.
	UnrealizedPnL decimal.Decimal // Zero when the venue does not report it.
	Leverage      int
	MarginMode    MarginMode
}

// PlaceOrderRequest is the unified payload for order placement. Zero-valued
// optional decimals mean "not set".
type PlaceOrderRequest struct {
	Symbol     string // Canonical symbol.
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal // Required for limit orders.
	TakeProfit decimal.Decimal // Optional trigger price.
	StopLoss   decimal.Decimal // Optional trigger price.
	ReduceOnly bool
	MarginMode MarginMode
	Rounding   Rounding
}

// PlaceOrderResult reports the venue-assigned order identity. When bracket
// synthesis partially fails the entry OrderID is still returned together
// with the error so callers can manage the unprotected position.
type PlaceOrderResult struct {
	OrderID        string
	ExchangeSymbol string
	TakeProfitID   string // Set when a take-profit trigger order was placed.
	StopLossID     string // Set when a stop-loss trigger order was placed.
}

// ModifyOrderRequest identifies a resting order and the updated parameters.
// Zero-valued fields keep the original value.
type ModifyOrderRequest struct {
	OrderID  string
	Quantity decimal.Decimal
	Price    decimal.Decimal // New limit price, or new trigger price for trigger orders.
}

// Ticker is a top-of-book snapshot published to ticker subscribers.
type Ticker struct {
	Symbol    string
	Last      float64
	Bid       float64
	Ask       float64
	Volume24h float64
	Timestamp int64 // Milliseconds.
}

// Mid returns the bid/ask midpoint, falling back to the last trade price
// when one side of the book is missing.
func (t Ticker) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// DepthLevel is one price level of an order book.
type DepthLevel struct {
	Price float64
	Qty   float64
}

// Depth is an order book snapshot published to depth subscribers.
type Depth struct {
	Symbol    string
	Bids      []DepthLevel // Best bid first.
	Asks      []DepthLevel // Best ask first.
	Timestamp int64
}

// Trade is a public trade published to trade subscribers.
type Trade struct {
	Symbol    string
	Price     float64
	Qty       float64
	Side      Side
	Timestamp int64
}

// Fill describes a match executed against one of the account's orders.
type Fill struct {
	TradeID   string
	OrderID   string
	Symbol    string // Canonical symbol.
	Side      Side
	Price     decimal.Decimal
	Qty       decimal.Decimal
	Fee       decimal.Decimal
	Timestamp int64
}

// OrderUpdate conveys order lifecycle information observed during polling.
type OrderUpdate struct {
	OrderID   string
	Symbol    string // Canonical symbol.
	Status    OrderStatus
	Side      Side
	Price     decimal.Decimal
	Qty       decimal.Decimal
	FilledQty decimal.Decimal
	Timestamp int64
}
