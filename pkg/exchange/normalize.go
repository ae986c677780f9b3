package exchange

import "github.com/shopspring/decimal"

// NormalizedOrder holds the quantity and, for limit orders, the price after
// alignment to the instrument grid.
type NormalizedOrder struct {
	Qty   decimal.Decimal
	Price decimal.Decimal // Zero for market orders.
}

// NormalizeOrder rounds and validates an order's quantity and price against
// the instrument's step, tick and volume constraints.
//
// Market orders skip price handling entirely; limit orders require a price
// input. Failures are typed: *QuantityError and *PriceError wrap the
// ErrQuantityInvalid / ErrPriceInvalid sentinels, while missing metadata
// surfaces ErrContractMetadata before any rounding is attempted.
func NormalizeOrder(info *ContractInfo, typ OrderType, qty, price decimal.Decimal, mode Rounding) (NormalizedOrder, error) {
	if info == nil {
		return NormalizedOrder{}, ErrContractMetadata
	}
	normQty, err := RoundQtyToStep(info, qty, mode)
	if err != nil {
		return NormalizedOrder{}, err
	}
	if typ == OrderTypeMarket {
		return NormalizedOrder{Qty: normQty}, nil
	}

	if price.IsZero() {
		return NormalizedOrder{}, &PriceError{Symbol: info.Symbol, Price: price, Reason: "limit order requires a price"}
	}
	normPrice, err := RoundPriceToTick(info, price, mode)
	if err != nil {
		return NormalizedOrder{}, err
	}
	return NormalizedOrder{Qty: normQty, Price: normPrice}, nil
}

// RoundQtyToStep aligns qty to the contract's step size per the rounding
// mode, then clamps the result to [MinVol, MaxVol]. The returned value is
// always inside the volume bounds; a quantity that rounds to zero fails.
func RoundQtyToStep(info *ContractInfo, qty decimal.Decimal, mode Rounding) (decimal.Decimal, error) {
	if info.StepSize.Sign() <= 0 {
		return decimal.Zero, ErrContractMetadata
	}
	if qty.Sign() <= 0 {
		return decimal.Zero, &QuantityError{Symbol: info.Symbol, Qty: qty, Reason: "quantity must be positive"}
	}

	rounded := alignToIncrement(qty, info.StepSize, mode)
	if info.MinVol.Sign() > 0 && rounded.LessThan(info.MinVol) {
		rounded = info.MinVol
	}
	if info.MaxVol.Sign() > 0 && rounded.GreaterThan(info.MaxVol) {
		rounded = info.MaxVol
	}
	if rounded.Sign() <= 0 {
		return decimal.Zero, &QuantityError{Symbol: info.Symbol, Qty: qty, Reason: "quantity rounds to zero"}
	}
	if !rounded.Mod(info.StepSize).IsZero() {
		return decimal.Zero, &QuantityError{Symbol: info.Symbol, Qty: rounded, Reason: "quantity not aligned to step size"}
	}
	return rounded, nil
}

// RoundPriceToTick aligns price to the contract's tick size per the
// rounding mode.
func RoundPriceToTick(info *ContractInfo, price decimal.Decimal, mode Rounding) (decimal.Decimal, error) {
	if info.TickSize.Sign() <= 0 {
		return decimal.Zero, ErrContractMetadata
	}
	if price.Sign() <= 0 {
		return decimal.Zero, &PriceError{Symbol: info.Symbol, Price: price, Reason: "price must be positive"}
	}
	rounded := alignToIncrement(price, info.TickSize, mode)
	if rounded.Sign() <= 0 {
		return decimal.Zero, &PriceError{Symbol: info.Symbol, Price: price, Reason: "price rounds to zero"}
	}
	return rounded, nil
}

func alignToIncrement(value, increment decimal.Decimal, mode Rounding) decimal.Decimal {
	units := value.Div(increment)
	switch mode {
	case RoundUp:
		units = units.Ceil()
	case RoundNearest:
		units = units.Round(0)
	default:
		units = units.Floor()
	}
	return units.Mul(increment)
}
