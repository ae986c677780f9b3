package mexc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"perpflow/pkg/exchange"
)

// NewContractLoader adapts the contract-detail endpoint into the shape the
// contract cache consumes.
func NewContractLoader(market MarketAPI) exchange.ContractLoader {
	return func(ctx context.Context) ([]exchange.ContractInfo, error) {
		details, err := market.ContractDetails(ctx)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		contracts := make([]exchange.ContractInfo, 0, len(details))
		for _, detail := range details {
			info := mapContractDetail(detail, now)
			if info.Symbol == "" {
				continue
			}
			contracts = append(contracts, info)
		}
		return contracts, nil
	}
}

// mapContractDetail converts one venue row into the canonical model. Field
// names drift across API revisions, so each derived value has an explicit
// fallback order rather than implicit any-typed probing.
func mapContractDetail(detail ContractDetail, now time.Time) exchange.ContractInfo {
	exchangeSymbol := strings.ToUpper(strings.TrimSpace(detail.Symbol))
	if exchangeSymbol == "" {
		return exchange.ContractInfo{}
	}

	// Base asset: baseCoin, else baseCoinName, else the symbol prefix.
	base := firstNonEmpty(detail.BaseCoin, detail.BaseCoinName)
	quote := firstNonEmpty(detail.QuoteCoin, detail.QuoteCoinName)
	if base == "" || quote == "" {
		if idx := strings.Index(exchangeSymbol, "_"); idx > 0 {
			if base == "" {
				base = exchangeSymbol[:idx]
			}
			if quote == "" {
				quote = exchangeSymbol[idx+1:]
			}
		}
	}
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))

	// Tick size: priceUnit, else derived from priceScale.
	tick := parseDecimal(detail.PriceUnit)
	if tick.Sign() <= 0 && detail.PriceScale > 0 {
		tick = scaleIncrement(detail.PriceScale)
	}
	// Step size: volUnit, else derived from volScale.
	step := parseDecimal(detail.VolUnit)
	if step.Sign() <= 0 {
		step = scaleIncrement(detail.VolScale)
	}

	return exchange.ContractInfo{
		Symbol:         base + quote,
		ExchangeSymbol: exchangeSymbol,
		BaseAsset:      base,
		QuoteAsset:     quote,
		APIAllowed:     detail.APIAllowed && detail.State == 0,
		PriceScale:     detail.PriceScale,
		VolScale:       detail.VolScale,
		TickSize:       tick,
		StepSize:       step,
		MinVol:         parseDecimal(detail.MinVol),
		MaxVol:         parseDecimal(detail.MaxVol),
		MinLeverage:    detail.MinLeverage,
		MaxLeverage:    detail.MaxLeverage,
		ContractSize:   parseDecimal(detail.ContractSize),
		MakerFeeRate:   parseDecimal(detail.MakerFeeRate),
		TakerFeeRate:   parseDecimal(detail.TakerFeeRate),
		UpdatedAt:      now,
	}
}

func parseDecimal(n json.Number) decimal.Decimal {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// scaleIncrement returns 10^-scale, e.g. scale 2 → 0.01. A zero or
// negative scale yields an increment of 1.
func scaleIncrement(scale int) decimal.Decimal {
	if scale <= 0 {
		return decimal.New(1, 0)
	}
	return decimal.New(1, int32(-scale))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
