package exchange

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testContract() *ContractInfo {
	return &ContractInfo{
		Symbol:         "BTCUSDT",
		ExchangeSymbol: "BTC_USDT",
		APIAllowed:     true,
		TickSize:       dec("0.01"),
		StepSize:       dec("0.001"),
		MinVol:         dec("0.001"),
		MaxVol:         dec("100"),
		MinLeverage:    1,
		MaxLeverage:    125,
	}
}

func TestRoundQtyToStep(t *testing.T) {
	info := testContract()

	tests := []struct {
		name string
		qty  string
		mode Rounding
		want string
	}{
		{"already aligned", "0.015", RoundDown, "0.015"},
		{"rounds down", "0.0156", RoundDown, "0.015"},
		{"rounds up", "0.0151", RoundUp, "0.016"},
		{"nearest down", "0.0154", RoundNearest, "0.015"},
		{"nearest up", "0.0156", RoundNearest, "0.016"},
		{"below min clamps to min", "0.0004", RoundUp, "0.001"},
		{"above max clamps to max", "250", RoundDown, "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoundQtyToStep(info, dec(tt.qty), tt.mode)
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestRoundQtyToStep_Errors(t *testing.T) {
	info := testContract()

	_, err := RoundQtyToStep(info, dec("0"), RoundDown)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuantityInvalid)

	_, err = RoundQtyToStep(info, dec("-1"), RoundDown)
	assert.ErrorIs(t, err, ErrQuantityInvalid)

	// Rounds to zero in down mode with no min clamp.
	free := testContract()
	free.MinVol = decimal.Zero
	_, err = RoundQtyToStep(free, dec("0.0004"), RoundDown)
	require.Error(t, err)
	var qerr *QuantityError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "BTCUSDT", qerr.Symbol)

	// Missing step size is a configuration error, not a quantity error.
	broken := testContract()
	broken.StepSize = decimal.Zero
	_, err = RoundQtyToStep(broken, dec("1"), RoundDown)
	assert.ErrorIs(t, err, ErrContractMetadata)
}

func TestRoundQtyToStep_Idempotent(t *testing.T) {
	info := testContract()
	first, err := RoundQtyToStep(info, dec("0.0156"), RoundDown)
	require.NoError(t, err)
	second, err := RoundQtyToStep(info, first, RoundDown)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestRoundPriceToTick(t *testing.T) {
	info := testContract()

	got, err := RoundPriceToTick(info, dec("100.017"), RoundDown)
	require.NoError(t, err)
	assert.True(t, dec("100.01").Equal(got), "got %s", got)

	got, err = RoundPriceToTick(info, dec("100.017"), RoundUp)
	require.NoError(t, err)
	assert.True(t, dec("100.02").Equal(got))

	got, err = RoundPriceToTick(info, dec("100.015"), RoundNearest)
	require.NoError(t, err)
	assert.True(t, got.Mod(info.TickSize).IsZero(), "price %s must be tick aligned", got)

	_, err = RoundPriceToTick(info, dec("0"), RoundDown)
	assert.ErrorIs(t, err, ErrPriceInvalid)

	broken := testContract()
	broken.TickSize = decimal.Zero
	_, err = RoundPriceToTick(broken, dec("100"), RoundDown)
	assert.ErrorIs(t, err, ErrContractMetadata)
}

func TestNormalizeOrder_Market(t *testing.T) {
	info := testContract()

	norm, err := NormalizeOrder(info, OrderTypeMarket, dec("0.0156"), decimal.Zero, RoundDown)
	require.NoError(t, err)
	assert.True(t, dec("0.015").Equal(norm.Qty))
	assert.True(t, norm.Price.IsZero(), "market orders carry no price")
}

func TestNormalizeOrder_Limit(t *testing.T) {
	info := testContract()

	norm, err := NormalizeOrder(info, OrderTypeLimit, dec("0.015"), dec("100.017"), RoundDown)
	require.NoError(t, err)
	assert.True(t, dec("0.015").Equal(norm.Qty))
	assert.True(t, dec("100.01").Equal(norm.Price))

	// Limit orders require a price input.
	_, err = NormalizeOrder(info, OrderTypeLimit, dec("0.015"), decimal.Zero, RoundDown)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPriceInvalid)

	_, err = NormalizeOrder(nil, OrderTypeLimit, dec("0.015"), dec("100"), RoundDown)
	assert.ErrorIs(t, err, ErrContractMetadata)
}
