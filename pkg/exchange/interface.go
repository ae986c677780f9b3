package exchange

import "context"

// FuturesExchange exposes perpetual-futures trading in an exchange-agnostic
// fashion. Implementations translate these calls into venue-native REST or
// websocket traffic; callers never see venue quirks such as missing market
// orders or missing bracket support.
type FuturesExchange interface {
	// Account and position reads. Always current, never cached.
	GetAccountState(ctx context.Context) (*AccountState, error)
	GetPositions(ctx context.Context) ([]FuturesPosition, error)

	// Symbol resolution. GetContractInfo and ToCanonicalSymbol report
	// unknown symbols with a nil/false result rather than an error;
	// ToExchangeSymbol fails with ErrSymbolUnknown when unresolvable.
	GetContractInfo(ctx context.Context, symbol string) (*ContractInfo, error)
	ToCanonicalSymbol(symbol string) (string, bool)
	ToExchangeSymbol(ctx context.Context, symbol string) (string, error)

	// Trading.
	SetLeverage(ctx context.Context, symbol string, leverage int, mode MarginMode) error
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	ModifyOrder(ctx context.Context, req ModifyOrderRequest) (*PlaceOrderResult, error)

	// Market data subscriptions. Subscribing lazily starts the market-data
	// poller; events arrive on the registered callbacks.
	SubscribeTicker(symbol string)
	SubscribeDepth(symbol string)
	SubscribeTrades(symbol string)

	// Callback registration. Each call returns an unsubscribe handle.
	// Registering any private callback lazily starts the private-data
	// poller.
	OnTicker(fn func(Ticker)) (unsubscribe func())
	OnDepth(fn func(Depth)) (unsubscribe func())
	OnTrades(fn func(Trade)) (unsubscribe func())
	OnFill(fn func(Fill)) (unsubscribe func())
	OnOrderUpdate(fn func(OrderUpdate)) (unsubscribe func())
	OnPositionUpdate(fn func([]FuturesPosition)) (unsubscribe func())

	// Close stops all pollers and background refreshes and clears every
	// registry. Idempotent.
	Close() error
}
