package mexc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolSetKeepsInsertionOrder(t *testing.T) {
	set := newSymbolSet()
	set.Add("BTC_USDT")
	set.Add("ETH_USDT")
	set.Add("BTC_USDT") // duplicate, ignored
	set.Add("SOL_USDT")

	assert.Equal(t, []string{"BTC_USDT", "ETH_USDT", "SOL_USDT"}, set.List())
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains("ETH_USDT"))
	assert.False(t, set.Contains("XRP_USDT"))

	set.Clear()
	assert.Equal(t, 0, set.Len())
}

func TestCallbackRegistryDispatchOrderAndUnsubscribe(t *testing.T) {
	reg := newCallbackRegistry[int]()
	var got []string
	removeA := reg.Add(func(int) { got = append(got, "a") })
	removeB := reg.Add(func(int) { got = append(got, "b") })
	reg.Add(func(int) { got = append(got, "c") })

	reg.Dispatch(1)
	assert.Equal(t, []string{"a", "b", "c"}, got, "dispatch follows registration order")

	removeA()
	removeA() // double unsubscribe is harmless
	got = nil
	reg.Dispatch(2)
	assert.Equal(t, []string{"b", "c"}, got)

	removeB()
	assert.Equal(t, 1, reg.Len())
	reg.Clear()
	assert.Equal(t, 0, reg.Len())
}
