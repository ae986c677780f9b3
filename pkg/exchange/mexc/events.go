package mexc

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"perpflow/pkg/exchange"
)

// Subscriptions and callback plumbing. The venue offers no push transport
// here, so subscribing means adding the symbol to a poll set; the market
// poller starts lazily with the first subscription and the private poller
// with the first private callback.

// SubscribeTicker adds symbol to the ticker poll set.
func (a *Adapter) SubscribeTicker(symbol string) {
	a.tickerSubs.Add(a.pollSymbol(symbol))
	a.ensureMarketPoller()
}

// SubscribeDepth adds symbol to the order book poll set.
func (a *Adapter) SubscribeDepth(symbol string) {
	a.depthSubs.Add(a.pollSymbol(symbol))
	a.ensureMarketPoller()
}

// SubscribeTrades adds symbol to the public trades poll set.
func (a *Adapter) SubscribeTrades(symbol string) {
	a.tradeSubs.Add(a.pollSymbol(symbol))
	a.ensureMarketPoller()
}

// OnTicker registers a ticker callback and returns its unsubscribe func.
func (a *Adapter) OnTicker(cb func(exchange.Ticker)) func() {
	remove := a.tickerCbs.Add(cb)
	a.ensureMarketPoller()
	return remove
}

// OnDepth registers a depth callback and returns its unsubscribe func.
func (a *Adapter) OnDepth(cb func(exchange.Depth)) func() {
	remove := a.depthCbs.Add(cb)
	a.ensureMarketPoller()
	return remove
}

// OnTrades registers a public-trade callback and returns its unsubscribe func.
func (a *Adapter) OnTrades(cb func(exchange.Trade)) func() {
	remove := a.tradeCbs.Add(cb)
	a.ensureMarketPoller()
	return remove
}

// OnFill registers a fill callback and returns its unsubscribe func.
func (a *Adapter) OnFill(cb func(exchange.Fill)) func() {
	remove := a.fillCbs.Add(cb)
	a.ensurePrivatePoller()
	return remove
}

// OnOrderUpdate registers an order lifecycle callback and returns its
// unsubscribe func.
func (a *Adapter) OnOrderUpdate(cb func(exchange.OrderUpdate)) func() {
	remove := a.orderCbs.Add(cb)
	a.ensurePrivatePoller()
	return remove
}

// OnPositionUpdate registers a position snapshot callback and returns its
// unsubscribe func.
func (a *Adapter) OnPositionUpdate(cb func([]exchange.FuturesPosition)) func() {
	remove := a.positionCbs.Add(cb)
	a.ensurePrivatePoller()
	return remove
}

// Close stops the pollers and the contract refresher and drops all
// subscriptions, callbacks and local order state. Safe to call repeatedly.
func (a *Adapter) Close() error {
	a.stateMu.Lock()
	if a.closed {
		a.stateMu.Unlock()
		return nil
	}
	a.closed = true
	a.stateMu.Unlock()

	a.marketPoller.Stop()
	a.privatePoller.Stop()
	a.contracts.StopBackgroundRefresh()

	a.tickerSubs.Clear()
	a.depthSubs.Clear()
	a.tradeSubs.Clear()
	a.tickerCbs.Clear()
	a.depthCbs.Clear()
	a.tradeCbs.Clear()
	a.fillCbs.Clear()
	a.orderCbs.Clear()
	a.positionCbs.Clear()
	a.orderIndex.Clear()
	a.fillsSeen.Clear()
	return nil
}

func (a *Adapter) ensureMarketPoller() {
	a.stateMu.Lock()
	closed := a.closed
	a.stateMu.Unlock()
	if !closed {
		a.marketPoller.Start()
	}
}

func (a *Adapter) ensurePrivatePoller() {
	a.stateMu.Lock()
	closed := a.closed
	a.stateMu.Unlock()
	if !closed {
		a.privatePoller.Start()
	}
}

// pollSymbol resolves the venue form for a subscription without blocking on
// the network: loaded contract set first, then the derived form, then the
// raw input.
func (a *Adapter) pollSymbol(symbol string) string {
	reg := a.contracts.Registry()
	if ex, ok := reg.ToExchangeSymbol(symbol); ok {
		return ex
	}
	if derived := deriveExchangeSymbol(symbol); derived != "" {
		return derived
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (a *Adapter) canonicalOr(exchangeSymbol string) string {
	if canonical, ok := a.contracts.Registry().ToCanonicalSymbol(exchangeSymbol); ok {
		return canonical
	}
	return exchangeSymbol
}

// marketTick runs one round of public-data polling. Each symbol is polled
// and dispatched independently; one failing symbol never blocks the rest.
func (a *Adapter) marketTick() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	if a.tickerCbs.Len() > 0 {
		for _, symbol := range a.tickerSubs.List() {
			data, err := a.market.Ticker(ctx, symbol)
			if err != nil {
				logx.Errorf("mexc %s: ticker poll %s: %v", a.name, symbol, err)
				continue
			}
			a.tickerCbs.Dispatch(a.mapTicker(symbol, data))
		}
	}
	if a.depthCbs.Len() > 0 {
		for _, symbol := range a.depthSubs.List() {
			data, err := a.market.Depth(ctx, symbol, 20)
			if err != nil {
				logx.Errorf("mexc %s: depth poll %s: %v", a.name, symbol, err)
				continue
			}
			a.depthCbs.Dispatch(a.mapDepth(symbol, data))
		}
	}
	if a.tradeCbs.Len() > 0 {
		for _, symbol := range a.tradeSubs.List() {
			deals, err := a.market.Deals(ctx, symbol, 50)
			if err != nil {
				logx.Errorf("mexc %s: deals poll %s: %v", a.name, symbol, err)
				continue
			}
			// The venue returns newest first; dispatch oldest first.
			for i := len(deals) - 1; i >= 0; i-- {
				a.tradeCbs.Dispatch(a.mapTrade(symbol, deals[i]))
			}
		}
	}
}

// privateTick runs one round of private-data polling: recent fills (with
// de-duplication), open order snapshots and position snapshots. The three
// sections fail independently.
func (a *Adapter) privateTick() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	if a.fillCbs.Len() > 0 {
		a.pollFills(ctx)
	}
	if a.orderCbs.Len() > 0 {
		orders, err := a.trade.OpenOrders(ctx)
		if err != nil {
			logx.Errorf("mexc %s: open orders poll: %v", a.name, err)
		} else {
			for _, order := range orders {
				a.orderCbs.Dispatch(a.mapOrderUpdate(order))
			}
		}
	}
	if a.positionCbs.Len() > 0 {
		rows, err := a.position.OpenPositions(ctx)
		if err != nil {
			logx.Errorf("mexc %s: positions poll: %v", a.name, err)
		} else {
			positions := make([]exchange.FuturesPosition, 0, len(rows))
			for _, row := range rows {
				positions = append(positions, a.mapPosition(row))
			}
			a.positionCbs.Dispatch(positions)
		}
	}
}

func (a *Adapter) pollFills(ctx context.Context) {
	now := time.Now().UnixMilli()
	a.stateMu.Lock()
	since := a.lastFillPoll
	a.stateMu.Unlock()
	if since == 0 {
		since = now - initialFillLookback.Milliseconds()
	}

	deals, err := a.trade.OrderDeals(ctx, since, now)
	if err != nil {
		logx.Errorf("mexc %s: fills poll: %v", a.name, err)
		return
	}
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Timestamp < deals[j].Timestamp
	})
	for _, deal := range deals {
		key := fillKey(deal.ID.String(), deal.OrderID.String(), deal.Timestamp)
		if a.fillsSeen.Seen(key) {
			continue
		}
		a.fillCbs.Dispatch(a.mapFill(deal))
	}

	// Keep a one-interval overlap with the next window; the dedup set
	// absorbs the repeats.
	a.stateMu.Lock()
	a.lastFillPoll = now - a.privatePoller.interval.Milliseconds()
	a.stateMu.Unlock()
}

func (a *Adapter) mapTicker(symbol string, data *TickerData) exchange.Ticker {
	return exchange.Ticker{
		Symbol:    a.canonicalOr(symbol),
		Last:      data.LastPrice,
		Bid:       data.Bid1,
		Ask:       data.Ask1,
		Volume24h: data.Volume24,
		Timestamp: data.Timestamp,
	}
}

func (a *Adapter) mapDepth(symbol string, data *DepthData) exchange.Depth {
	return exchange.Depth{
		Symbol:    a.canonicalOr(symbol),
		Bids:      mapLevels(data.Bids),
		Asks:      mapLevels(data.Asks),
		Timestamp: data.Timestamp,
	}
}

func mapLevels(rows [][]float64) []exchange.DepthLevel {
	levels := make([]exchange.DepthLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		levels = append(levels, exchange.DepthLevel{Price: row[0], Qty: row[1]})
	}
	return levels
}

func (a *Adapter) mapTrade(symbol string, deal DealData) exchange.Trade {
	side := exchange.SideBuy
	if deal.Type == 2 {
		side = exchange.SideSell
	}
	return exchange.Trade{
		Symbol:    a.canonicalOr(symbol),
		Price:     deal.Price,
		Qty:       deal.Vol,
		Side:      side,
		Timestamp: deal.Timestamp,
	}
}

func (a *Adapter) mapFill(deal OrderDealData) exchange.Fill {
	return exchange.Fill{
		TradeID:   deal.ID.String(),
		OrderID:   deal.OrderID.String(),
		Symbol:    a.canonicalOr(deal.Symbol),
		Side:      sideFromCode(deal.Side),
		Price:     parseDecimal(deal.Price),
		Qty:       parseDecimal(deal.Vol),
		Fee:       parseDecimal(deal.Fee),
		Timestamp: deal.Timestamp,
	}
}

func (a *Adapter) mapOrderUpdate(order OrderData) exchange.OrderUpdate {
	return exchange.OrderUpdate{
		OrderID:   order.OrderID.String(),
		Symbol:    a.canonicalOr(order.Symbol),
		Status:    orderStatusFromState(order.State, parseDecimal(order.DealVol)),
		Side:      sideFromCode(order.Side),
		Price:     parseDecimal(order.Price),
		Qty:       parseDecimal(order.Vol),
		FilledQty: parseDecimal(order.DealVol),
		Timestamp: order.UpdateTime,
	}
}

func (a *Adapter) mapPosition(row PositionData) exchange.FuturesPosition {
	side := exchange.SideBuy
	if row.PositionType == 2 {
		side = exchange.SideSell
	}
	return exchange.FuturesPosition{
		Symbol:        a.canonicalOr(row.Symbol),
		Side:          side,
		Size:          parseDecimal(row.HoldVol),
		EntryPrice:    parseDecimal(row.OpenAvgPrice),
		MarkPrice:     parseDecimal(row.MarkPrice),
		UnrealizedPnL: parseDecimal(row.Unrealized),
		Leverage:      row.Leverage,
		MarginMode:    modeFromOpenType(row.OpenType),
	}
}

func midPrice(data *TickerData) decimal.Decimal {
	if data.Bid1 > 0 && data.Ask1 > 0 {
		return decimal.NewFromFloat(data.Bid1).
			Add(decimal.NewFromFloat(data.Ask1)).
			Div(decimal.New(2, 0))
	}
	return decimal.NewFromFloat(data.LastPrice)
}

// sideCode maps direction plus position effect to the venue's side code.
func sideCode(side exchange.Side, reduceOnly bool) int {
	switch {
	case side == exchange.SideBuy && !reduceOnly:
		return sideOpenLong
	case side == exchange.SideBuy && reduceOnly:
		return sideCloseShort
	case side == exchange.SideSell && !reduceOnly:
		return sideOpenShort
	default:
		return sideCloseLong
	}
}

// exitCode is the reduce-only side code closing a position entered on
// entrySide.
func exitCode(entrySide exchange.Side) int {
	if entrySide == exchange.SideBuy {
		return sideCloseLong
	}
	return sideCloseShort
}

func entrySideFromExitCode(code int) exchange.Side {
	if code == sideCloseLong {
		return exchange.SideBuy
	}
	return exchange.SideSell
}

func sideFromCode(code int) exchange.Side {
	switch code {
	case sideOpenLong, sideCloseShort:
		return exchange.SideBuy
	default:
		return exchange.SideSell
	}
}

func isCloseCode(code int) bool {
	return code == sideCloseShort || code == sideCloseLong
}

// triggerTypeFor picks the trigger direction: a long's take-profit fires
// when the price rises to the level and its stop-loss when it falls, and
// the reverse for shorts.
func triggerTypeFor(entrySide exchange.Side, isTakeProfit bool) int {
	if entrySide == exchange.SideBuy {
		if isTakeProfit {
			return triggerGTE
		}
		return triggerLTE
	}
	if isTakeProfit {
		return triggerLTE
	}
	return triggerGTE
}

// deriveIsTakeProfit inverts triggerTypeFor given the stored exit side and
// trigger direction of an existing trigger order.
func deriveIsTakeProfit(exitSide, triggerType int) bool {
	if exitSide == sideCloseLong {
		return triggerType == triggerGTE
	}
	return triggerType == triggerLTE
}

func openTypeFromMode(mode exchange.MarginMode) int {
	if mode == exchange.MarginIsolated {
		return openTypeIsolated
	}
	return openTypeCross
}

func modeFromOpenType(openType int) exchange.MarginMode {
	if openType == openTypeIsolated {
		return exchange.MarginIsolated
	}
	return exchange.MarginCross
}

func orderStatusFromState(state int, filled decimal.Decimal) exchange.OrderStatus {
	switch state {
	case orderStateUninformed:
		return exchange.OrderStatusSubmitted
	case orderStateUncompleted:
		if filled.Sign() > 0 {
			return exchange.OrderStatusPartial
		}
		return exchange.OrderStatusResting
	case orderStateCompleted:
		return exchange.OrderStatusFilled
	case orderStateCancelled:
		return exchange.OrderStatusCancelled
	case orderStateInvalid:
		return exchange.OrderStatusRejected
	default:
		return exchange.OrderStatusUnknown
	}
}
