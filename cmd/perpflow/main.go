package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"perpflow/internal/cli"
	"perpflow/internal/config"
	"perpflow/pkg/exchange"

	// Import for side-effects: registers the mexc exchange builder.
	_ "perpflow/pkg/exchange/mexc"
)

const (
	accountInterval = time.Minute     // Account/position snapshot interval
	apiTimeout      = 5 * time.Second // Timeout for individual API calls
)

var (
	configFile = flag.String("f", "etc/perpflow.yaml", "the config file")
	symbolList = flag.String("symbols", "BTCUSDT,ETHUSDT,SOLUSDT", "comma separated canonical symbols to watch")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting perpflow monitor...")

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("[main] Warning: Failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test"}
	}
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	exchangeCfg := appCfg.Exchange.Value
	if exchangeCfg == nil {
		exchangeCfg = config.MustLoadExchange()
	}
	exchanges, err := exchangeCfg.BuildExchanges()
	if err != nil {
		log.Fatalf("[main] Failed to build exchanges: %v", err)
	}
	venueName := exchangeCfg.Default
	if venueName == "" {
		for name := range exchanges {
			venueName = name
			break
		}
	}
	venue, ok := exchanges[venueName]
	if !ok {
		log.Fatalf("[main] No usable exchange configured")
	}
	log.Printf("[main] Using exchange: %s", venueName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbols := splitSymbols(*symbolList)
	subscribeAll(ctx, venue, symbols)

	unsubTicker := venue.OnTicker(func(t exchange.Ticker) {
		log.Printf("[ticker] %s last=%.4f bid=%.4f ask=%.4f", t.Symbol, t.Last, t.Bid, t.Ask)
	})
	defer unsubTicker()
	unsubFill := venue.OnFill(func(f exchange.Fill) {
		log.Printf("[fill] %s %s %s @ %s (order %s)", f.Symbol, f.Side, f.Qty, f.Price, f.OrderID)
	})
	defer unsubFill()

	go accountLoop(ctx, venue)

	<-ctx.Done()
	log.Println("[main] Shutting down...")
	for name, ex := range exchanges {
		if err := ex.Close(); err != nil {
			log.Printf("[main] close %s: %v", name, err)
		}
	}
	log.Println("[main] Bye")
}

// subscribeAll resolves each symbol (blocking on the first contract load)
// and adds it to the market-data poll set.
func subscribeAll(ctx context.Context, venue exchange.FuturesExchange, symbols []string) {
	for _, symbol := range symbols {
		callCtx, cancel := context.WithTimeout(ctx, apiTimeout)
		exchangeSymbol, err := venue.ToExchangeSymbol(callCtx, symbol)
		cancel()
		if err != nil {
			log.Printf("[main] skip %s: %v", symbol, err)
			continue
		}
		venue.SubscribeTicker(symbol)
		log.Printf("[main] watching %s (%s)", symbol, exchangeSymbol)
	}
}

// accountLoop periodically logs the account snapshot and open positions.
// Errors are logged and the loop keeps going; missing credentials just
// downgrade the monitor to public data.
func accountLoop(ctx context.Context, venue exchange.FuturesExchange) {
	ticker := time.NewTicker(accountInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, apiTimeout)
			state, err := venue.GetAccountState(callCtx)
			if err != nil {
				log.Printf("[account] state: %v", err)
			} else {
				log.Printf("[account] %s equity=%s available=%s", state.Currency, state.Equity, state.AvailableMargin)
			}
			positions, err := venue.GetPositions(callCtx)
			cancel()
			if err != nil {
				log.Printf("[account] positions: %v", err)
				continue
			}
			for _, pos := range positions {
				log.Printf("[position] %s %s size=%s entry=%s lev=%dx", pos.Symbol, pos.Side, pos.Size, pos.EntryPrice, pos.Leverage)
			}
		}
	}
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
