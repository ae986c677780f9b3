package mexc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"perpflow/pkg/exchange"
)

const (
	defaultHistoryWindow = 50
	defaultFillDedupCap  = 500
	defaultOrderIndexCap = 4096

	// First private poll looks this far back for fills.
	initialFillLookback = time.Minute
	// Per-tick request budget.
	pollTimeout = 8 * time.Second
)

// Order index entry kinds. The venue needs to know whether an id refers to
// a plain or a trigger order (and the symbol, for triggers) to cancel it.
const (
	kindLimit   = "limit"
	kindTrigger = "trigger"
)

// Options tunes an Adapter. Zero values fall back to defaults.
type Options struct {
	Name                string
	SlippageBps         int
	MarketPollInterval  time.Duration
	PrivatePollInterval time.Duration
	ContractTTL         time.Duration
	HistoryWindow       int
	FillDedupCap        int
	OrderIndexCap       int
}

// Adapter implements exchange.FuturesExchange over the venue's REST API.
// The venue pushes nothing: real-time semantics are emulated with two
// interval pollers (market data and private data) plus the contract
// cache's own background refresh. The venue also lacks native market
// orders, bracket orders and order modification; all three are synthesized
// here (see PlaceOrder and ModifyOrder).
type Adapter struct {
	name          string
	slippageBps   int
	historyWindow int

	market   MarketAPI
	account  AccountAPI
	position PositionAPI
	trade    TradeAPI

	contracts *exchange.ContractCache

	orderIndex *boundedIndex
	fillsSeen  *boundedSet

	tickerSubs *symbolSet
	depthSubs  *symbolSet
	tradeSubs  *symbolSet

	tickerCbs   *callbackRegistry[exchange.Ticker]
	depthCbs    *callbackRegistry[exchange.Depth]
	tradeCbs    *callbackRegistry[exchange.Trade]
	fillCbs     *callbackRegistry[exchange.Fill]
	orderCbs    *callbackRegistry[exchange.OrderUpdate]
	positionCbs *callbackRegistry[[]exchange.FuturesPosition]

	marketPoller  *poller
	privatePoller *poller

	stateMu      sync.Mutex
	closed       bool
	lastFillPoll int64
}

func init() {
	exchange.RegisterExchange("mexc", func(name string, cfg *exchange.ExchangeConfig) (exchange.FuturesExchange, error) {
		return New(name, cfg)
	})
}

// New constructs an adapter backed by a real REST client and starts the
// contract cache's background refresh.
func New(name string, cfg *exchange.ExchangeConfig) (*Adapter, error) {
	if cfg == nil {
		cfg = &exchange.ExchangeConfig{}
	}
	opts := []ClientOption{}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.Testnet {
		opts = append(opts, WithTestnet())
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	client := NewClient(cfg.APIKey, cfg.APISecret, opts...)
	adapter := NewAdapter(Options{
		Name:                name,
		SlippageBps:         cfg.SlippageBps,
		MarketPollInterval:  cfg.MarketPollInterval,
		PrivatePollInterval: cfg.PrivatePollInterval,
		ContractTTL:         cfg.ContractTTL,
	}, client, client, client, client)
	adapter.contracts.StartBackgroundRefresh()
	return adapter, nil
}

// NewAdapter wires an adapter from explicit sub-clients. Tests inject fakes
// here; production wiring goes through New.
func NewAdapter(opts Options, market MarketAPI, account AccountAPI, position PositionAPI, trade TradeAPI) *Adapter {
	if opts.SlippageBps <= 0 {
		opts.SlippageBps = exchange.DefaultSlippageBps
	}
	if opts.MarketPollInterval <= 0 {
		opts.MarketPollInterval = exchange.DefaultMarketPollInterval
	}
	if opts.PrivatePollInterval <= 0 {
		opts.PrivatePollInterval = exchange.DefaultPrivatePollInterval
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}

	a := &Adapter{
		name:          opts.Name,
		slippageBps:   opts.SlippageBps,
		historyWindow: opts.HistoryWindow,
		market:        market,
		account:       account,
		position:      position,
		trade:         trade,
		contracts:     exchange.NewContractCache(NewContractLoader(market), opts.ContractTTL),
		orderIndex:    newBoundedIndex(pick(opts.OrderIndexCap, defaultOrderIndexCap)),
		fillsSeen:     newBoundedSet(pick(opts.FillDedupCap, defaultFillDedupCap)),
		tickerSubs:    newSymbolSet(),
		depthSubs:     newSymbolSet(),
		tradeSubs:     newSymbolSet(),
		tickerCbs:     newCallbackRegistry[exchange.Ticker](),
		depthCbs:      newCallbackRegistry[exchange.Depth](),
		tradeCbs:      newCallbackRegistry[exchange.Trade](),
		fillCbs:       newCallbackRegistry[exchange.Fill](),
		orderCbs:      newCallbackRegistry[exchange.OrderUpdate](),
		positionCbs:   newCallbackRegistry[[]exchange.FuturesPosition](),
	}
	a.marketPoller = newPoller(opts.MarketPollInterval, a.marketTick)
	a.privatePoller = newPoller(opts.PrivatePollInterval, a.privateTick)
	return a
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Warmup blocks on the first contract load so symbol resolution works
// before the first trading call.
func (a *Adapter) Warmup(ctx context.Context) error {
	return a.contracts.Warmup(ctx)
}

// Contracts exposes the cache, mainly for wiring and tests.
func (a *Adapter) Contracts() *exchange.ContractCache {
	return a.contracts
}

// GetAccountState reads the current account snapshot. Never cached.
func (a *Adapter) GetAccountState(ctx context.Context) (*exchange.AccountState, error) {
	assets, err := a.account.Assets(ctx)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("mexc: account assets response empty")
	}
	chosen := assets[0]
	for _, asset := range assets {
		if strings.EqualFold(asset.Currency, "USDT") {
			chosen = asset
			break
		}
	}
	return &exchange.AccountState{
		Currency:        strings.ToUpper(chosen.Currency),
		Equity:          parseDecimal(chosen.Equity),
		AvailableMargin: parseDecimal(chosen.AvailableBalance),
		MarginMode:      exchange.MarginCross,
	}, nil
}

// GetPositions reads live positions. Never cached.
func (a *Adapter) GetPositions(ctx context.Context) ([]exchange.FuturesPosition, error) {
	rows, err := a.position.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	positions := make([]exchange.FuturesPosition, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, a.mapPosition(row))
	}
	return positions, nil
}

// GetContractInfo resolves instrument metadata by canonical or venue
// symbol. Unknown symbols yield (nil, nil).
func (a *Adapter) GetContractInfo(ctx context.Context, symbol string) (*exchange.ContractInfo, error) {
	info, err := a.contracts.GetByCanonical(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}
	return a.contracts.GetByExchange(ctx, symbol)
}

// ToCanonicalSymbol maps a venue symbol back to the canonical form. A
// symbol that is already canonical passes through unchanged.
func (a *Adapter) ToCanonicalSymbol(symbol string) (string, bool) {
	reg := a.contracts.Registry()
	if canonical, ok := reg.ToCanonicalSymbol(symbol); ok {
		return canonical, true
	}
	if _, ok := reg.ToExchangeSymbol(symbol); ok {
		return strings.ToUpper(strings.TrimSpace(symbol)), true
	}
	return "", false
}

// ToExchangeSymbol maps a canonical symbol to the venue form. It triggers a
// non-blocking staleness check first and falls back to the derived
// BASE_QUOTE form before failing with ErrSymbolUnknown.
func (a *Adapter) ToExchangeSymbol(ctx context.Context, symbol string) (string, error) {
	a.contracts.RefreshIfStale()

	info, err := a.GetContractInfo(ctx, symbol)
	if err == nil && info != nil {
		return info.ExchangeSymbol, nil
	}
	if derived := deriveExchangeSymbol(symbol); derived != "" {
		return derived, nil
	}
	return "", fmt.Errorf("mexc: resolve symbol %q: %w", symbol, exchange.ErrSymbolUnknown)
}

// SetLeverage validates leverage against contract metadata before any
// network call, then sets margin mode and leverage in that order: the
// venue couples the two and rejects leverage changes under a mismatched
// margin mode.
func (a *Adapter) SetLeverage(ctx context.Context, symbol string, leverage int, mode exchange.MarginMode) error {
	info, err := a.resolveTradeable(ctx, symbol)
	if err != nil {
		return err
	}
	if leverage < info.MinLeverage || leverage > info.MaxLeverage {
		return fmt.Errorf("mexc: leverage %d outside [%d, %d] for %s: %w",
			leverage, info.MinLeverage, info.MaxLeverage, info.Symbol, exchange.ErrLeverageRange)
	}
	openType := openTypeFromMode(mode)
	if err := a.trade.ChangeMarginMode(ctx, info.ExchangeSymbol, openType); err != nil {
		return err
	}
	return a.trade.ChangeLeverage(ctx, info.ExchangeSymbol, leverage, openType)
}

// PlaceOrder routes an order to the venue.
//
// Market orders are emulated with an immediate-or-cancel limit priced off
// the ticker mid plus the configured slippage allowance (buy rounds the
// price up, sell rounds it down). Take-profit and stop-loss prices are
// synthesized as separate reduce-only trigger orders placed after the
// entry. The sequence is best-effort, not atomic: when a trigger placement
// fails the entry order is not rolled back; the result still carries the
// entry order id and the error reports which leg failed, so the caller can
// handle the unprotected position.
func (a *Adapter) PlaceOrder(ctx context.Context, req exchange.PlaceOrderRequest) (*exchange.PlaceOrderResult, error) {
	info, err := a.resolveTradeable(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	norm, err := exchange.NormalizeOrder(info, req.Type, req.Quantity, req.Price, req.Rounding)
	if err != nil {
		return nil, err
	}

	price := norm.Price
	orderType := orderTypeLimit
	if req.Type == exchange.OrderTypeMarket {
		price, err = a.marketableLimitPrice(ctx, info, req.Side)
		if err != nil {
			return nil, err
		}
		orderType = orderTypeIOC
	}

	orderID, err := a.trade.SubmitOrder(ctx, SubmitOrderRequest{
		Symbol:      info.ExchangeSymbol,
		Price:       price.String(),
		Vol:         norm.Qty.String(),
		Side:        sideCode(req.Side, req.ReduceOnly),
		Type:        orderType,
		OpenType:    openTypeFromMode(req.MarginMode),
		ExternalOid: newExternalOid(),
	})
	if err != nil {
		return nil, err
	}
	a.orderIndex.Put(orderID, indexEntry(kindLimit, info.ExchangeSymbol))

	result := &exchange.PlaceOrderResult{OrderID: orderID, ExchangeSymbol: info.ExchangeSymbol}
	if req.TakeProfit.Sign() > 0 {
		tpID, err := a.placeTrigger(ctx, info, req.Side, norm.Qty, req.TakeProfit, req.MarginMode, true)
		if err != nil {
			return result, fmt.Errorf("mexc: entry order %s accepted but take-profit leg failed: %w", orderID, err)
		}
		result.TakeProfitID = tpID
	}
	if req.StopLoss.Sign() > 0 {
		slID, err := a.placeTrigger(ctx, info, req.Side, norm.Qty, req.StopLoss, req.MarginMode, false)
		if err != nil {
			return result, fmt.Errorf("mexc: entry order %s accepted but stop-loss leg failed: %w", orderID, err)
		}
		result.StopLossID = slID
	}
	return result, nil
}

// CancelOrder cancels by order id. The symbol and order kind come from the
// local index; after an adapter restart the index is empty, so the venue's
// pending lists are scanned as a fallback before giving up.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	if entry, ok := a.orderIndex.Get(orderID); ok {
		kind, symbol := splitIndexEntry(entry)
		if kind == kindTrigger {
			return a.trade.CancelTrigger(ctx, symbol, orderID)
		}
		return a.trade.CancelOrders(ctx, []string{orderID})
	}

	orders, err := a.trade.OpenOrders(ctx)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if order.OrderID.String() == orderID {
			a.orderIndex.Put(orderID, indexEntry(kindLimit, order.Symbol))
			return a.trade.CancelOrders(ctx, []string{orderID})
		}
	}
	triggers, err := a.trade.OpenTriggerOrders(ctx)
	if err != nil {
		return err
	}
	for _, trigger := range triggers {
		if trigger.ID.String() == orderID {
			a.orderIndex.Put(orderID, indexEntry(kindTrigger, trigger.Symbol))
			return a.trade.CancelTrigger(ctx, trigger.Symbol, orderID)
		}
	}
	return fmt.Errorf("mexc: cancel order %s: %w", orderID, exchange.ErrOrderNotFound)
}

// ModifyOrder emulates in-place modification on a venue without atomic
// modify: it re-reads the order's detail (open orders first, then open
// trigger orders, then a bounded recent-history window), cancels the
// original and re-creates it with the merged parameters. A failure after
// the cancel but before the re-create leaves no resting order; the error
// reports that state instead of pretending atomicity.
func (a *Adapter) ModifyOrder(ctx context.Context, req exchange.ModifyOrderRequest) (*exchange.PlaceOrderResult, error) {
	orders, err := a.trade.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	if order := findOrder(orders, req.OrderID); order != nil {
		return a.recreatePlainOrder(ctx, order, req)
	}

	triggers, err := a.trade.OpenTriggerOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range triggers {
		if triggers[i].ID.String() == req.OrderID {
			return a.recreateTriggerOrder(ctx, &triggers[i], req)
		}
	}

	history, err := a.trade.HistoryOrders(ctx, a.historyWindow)
	if err != nil {
		return nil, err
	}
	if order := findOrder(history, req.OrderID); order != nil {
		if order.State != orderStateUninformed && order.State != orderStateUncompleted {
			return nil, fmt.Errorf("mexc: modify order %s: order is no longer open (state %d)", req.OrderID, order.State)
		}
		return a.recreatePlainOrder(ctx, order, req)
	}
	return nil, fmt.Errorf("mexc: modify order %s: %w", req.OrderID, exchange.ErrOrderNotFound)
}

func (a *Adapter) recreatePlainOrder(ctx context.Context, order *OrderData, req exchange.ModifyOrderRequest) (*exchange.PlaceOrderResult, error) {
	info, err := a.contracts.GetByExchange(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("mexc: modify order %s: %w", req.OrderID, exchange.ErrSymbolUnknown)
	}

	qty := req.Quantity
	if qty.IsZero() {
		qty = parseDecimal(order.Vol)
	}
	price := req.Price
	if price.IsZero() {
		price = parseDecimal(order.Price)
	}

	if err := a.trade.CancelOrders(ctx, []string{req.OrderID}); err != nil {
		return nil, err
	}
	result, err := a.PlaceOrder(ctx, exchange.PlaceOrderRequest{
		Symbol:     info.Symbol,
		Side:       sideFromCode(order.Side),
		Type:       exchange.OrderTypeLimit,
		Quantity:   qty,
		Price:      price,
		ReduceOnly: isCloseCode(order.Side),
		MarginMode: modeFromOpenType(order.OpenType),
	})
	if err != nil {
		return nil, fmt.Errorf("mexc: order %s cancelled but re-create failed: %w", req.OrderID, err)
	}
	return result, nil
}

func (a *Adapter) recreateTriggerOrder(ctx context.Context, trigger *TriggerOrderData, req exchange.ModifyOrderRequest) (*exchange.PlaceOrderResult, error) {
	info, err := a.contracts.GetByExchange(ctx, trigger.Symbol)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("mexc: modify order %s: %w", req.OrderID, exchange.ErrSymbolUnknown)
	}

	qty := req.Quantity
	if qty.IsZero() {
		qty = parseDecimal(trigger.Vol)
	}
	// Caller-supplied sizes go through the same grid alignment as order
	// placement, before anything is cancelled.
	qty, err = exchange.RoundQtyToStep(info, qty, exchange.RoundDown)
	if err != nil {
		return nil, err
	}
	triggerPrice := req.Price
	if triggerPrice.IsZero() {
		triggerPrice = parseDecimal(trigger.TriggerPrice)
	}
	// Re-derive the trigger semantics (tp vs sl) from the original order's
	// exit side and trigger direction.
	entrySide := entrySideFromExitCode(trigger.Side)
	isTakeProfit := deriveIsTakeProfit(trigger.Side, trigger.TriggerType)

	if err := a.trade.CancelTrigger(ctx, trigger.Symbol, req.OrderID); err != nil {
		return nil, err
	}
	newID, err := a.placeTrigger(ctx, info, entrySide, qty, triggerPrice, modeFromOpenType(trigger.OpenType), isTakeProfit)
	if err != nil {
		return nil, fmt.Errorf("mexc: trigger order %s cancelled but re-create failed: %w", req.OrderID, err)
	}
	return &exchange.PlaceOrderResult{OrderID: newID, ExchangeSymbol: trigger.Symbol}, nil
}

// placeTrigger submits one reduce-only trigger order protecting an entry on
// entrySide.
func (a *Adapter) placeTrigger(ctx context.Context, info *exchange.ContractInfo, entrySide exchange.Side, qty, triggerPrice decimal.Decimal, mode exchange.MarginMode, isTakeProfit bool) (string, error) {
	alignedPrice, err := exchange.RoundPriceToTick(info, triggerPrice, exchange.RoundDown)
	if err != nil {
		return "", err
	}
	id, err := a.trade.PlaceTrigger(ctx, TriggerOrderRequest{
		Symbol:       info.ExchangeSymbol,
		Vol:          qty.String(),
		Side:         exitCode(entrySide),
		OpenType:     openTypeFromMode(mode),
		TriggerPrice: alignedPrice.String(),
		TriggerType:  triggerTypeFor(entrySide, isTakeProfit),
		ExecuteCycle: 2,
		OrderType:    orderTypeTriggerMarket,
		Trend:        1,
		ExternalOid:  newExternalOid(),
	})
	if err != nil {
		return "", err
	}
	a.orderIndex.Put(id, indexEntry(kindTrigger, info.ExchangeSymbol))
	return id, nil
}

// marketableLimitPrice computes an aggressive limit price for market-order
// emulation: the ticker mid shifted by the slippage allowance toward the
// taker side, then tick-aligned away from the caller (buy up, sell down) so
// the order stays marketable.
func (a *Adapter) marketableLimitPrice(ctx context.Context, info *exchange.ContractInfo, side exchange.Side) (decimal.Decimal, error) {
	ticker, err := a.market.Ticker(ctx, info.ExchangeSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	mid := midPrice(ticker)
	if mid.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("mexc: missing reference price for %s", info.ExchangeSymbol)
	}
	slippage := decimal.New(int64(a.slippageBps), -4) // bps → fraction
	var raw decimal.Decimal
	var rounding exchange.Rounding
	if side == exchange.SideBuy {
		raw = mid.Mul(decimal.New(1, 0).Add(slippage))
		rounding = exchange.RoundUp
	} else {
		raw = mid.Mul(decimal.New(1, 0).Sub(slippage))
		rounding = exchange.RoundDown
	}
	return exchange.RoundPriceToTick(info, raw, rounding)
}

func (a *Adapter) resolveTradeable(ctx context.Context, symbol string) (*exchange.ContractInfo, error) {
	info, err := a.GetContractInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("mexc: contract %q: %w", symbol, exchange.ErrSymbolUnknown)
	}
	if !info.Tradeable() {
		return nil, fmt.Errorf("mexc: contract %s: %w", info.Symbol, exchange.ErrTradingNotAllowed)
	}
	return info, nil
}

func findOrder(orders []OrderData, orderID string) *OrderData {
	for i := range orders {
		if orders[i].OrderID.String() == orderID {
			return &orders[i]
		}
	}
	return nil
}

func newExternalOid() string {
	return "pf-" + uuid.NewString()
}

func indexEntry(kind, symbol string) string {
	return kind + "|" + symbol
}

func splitIndexEntry(entry string) (kind, symbol string) {
	if idx := strings.IndexByte(entry, '|'); idx >= 0 {
		return entry[:idx], entry[idx+1:]
	}
	return kindLimit, entry
}

// deriveExchangeSymbol guesses the venue form of a canonical symbol by
// splitting off a known quote asset, e.g. BTCUSDT → BTC_USDT. Used only as
// a last resort when the contract set does not cover the symbol.
func deriveExchangeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "_") {
		return s
	}
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "_" + quote
		}
	}
	return ""
}
