package exchange

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls     atomic.Int32
	mu        sync.Mutex
	contracts []ContractInfo
	err       error
	block     chan struct{} // When set, Load waits until the channel closes.
}

func (l *countingLoader) Load(ctx context.Context) ([]ContractInfo, error) {
	l.calls.Add(1)
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]ContractInfo, len(l.contracts))
	copy(out, l.contracts)
	return out, nil
}

func (l *countingLoader) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func newTestLoader() *countingLoader {
	return &countingLoader{contracts: []ContractInfo{*testContract(), {
		Symbol:         "ETHUSDT",
		ExchangeSymbol: "ETH_USDT",
		BaseAsset:      "ETH",
		QuoteAsset:     "USDT",
		APIAllowed:     true,
		TickSize:       dec("0.01"),
		StepSize:       dec("0.01"),
		MinVol:         dec("0.01"),
		MaxVol:         dec("10000"),
	}}}
}

func TestContractCache_Warmup(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, time.Minute)

	require.NoError(t, cache.Warmup(context.Background()))
	assert.Equal(t, int32(1), loader.calls.Load(), "warmup loads exactly once")
	assert.True(t, cache.Loaded())

	info, err := cache.GetByCanonical(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "BTC_USDT", info.ExchangeSymbol)
	assert.Equal(t, int32(1), loader.calls.Load(), "fresh lookup must not reload")

	info, err = cache.GetByExchange(context.Background(), "eth_usdt")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "ETHUSDT", info.Symbol)
}

func TestContractCache_WarmupFailurePropagates(t *testing.T) {
	loader := newTestLoader()
	loader.setErr(errors.New("venue down"))
	cache := NewContractCache(loader.Load, time.Minute)

	err := cache.Warmup(context.Background())
	require.Error(t, err)
	assert.False(t, cache.Loaded())
}

func TestContractCache_ColdLookupBlocksOnce(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, time.Minute)

	info, err := cache.GetByCanonical(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestContractCache_StaleLookupServesPreviousAndRevalidates(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	require.NoError(t, cache.Warmup(context.Background()))
	now = now.Add(2 * time.Minute) // Past TTL.
	assert.True(t, cache.Stale())

	// Stale read returns immediately with the previous snapshot.
	info, err := cache.GetByCanonical(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, info)

	// Exactly one additional load happens in the background, not one per
	// lookup.
	_, _ = cache.GetByCanonical(context.Background(), "ETHUSDT")
	assert.Eventually(t, func() bool {
		return loader.calls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestContractCache_ConcurrentRefreshCoalesced(t *testing.T) {
	loader := newTestLoader()
	loader.block = make(chan struct{})
	cache := NewContractCache(loader.Load, time.Minute)

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = cache.GetByCanonical(context.Background(), "BTCUSDT")
		}()
	}
	// Give the goroutines time to pile onto the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(loader.block)
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load(), "concurrent cold lookups share one load")
}

func TestContractCache_RefreshForceAndSkip(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, time.Minute)

	require.NoError(t, cache.Warmup(context.Background()))
	require.NoError(t, cache.Refresh(context.Background(), false))
	assert.Equal(t, int32(1), loader.calls.Load(), "fresh refresh(false) is a no-op")

	require.NoError(t, cache.Refresh(context.Background(), true))
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestContractCache_FailedRefreshRetainsSnapshot(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, time.Minute)
	require.NoError(t, cache.Warmup(context.Background()))

	loader.setErr(errors.New("throttled"))
	err := cache.Refresh(context.Background(), true)
	require.Error(t, err)

	// The previous snapshot is still served.
	info, lookupErr := cache.GetByCanonical(context.Background(), "BTCUSDT")
	require.NoError(t, lookupErr)
	assert.NotNil(t, info)
}

func TestContractCache_RegistryRebuiltOnRefresh(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, time.Minute)
	require.NoError(t, cache.Warmup(context.Background()))
	assert.Equal(t, 2, cache.Registry().Len())

	loader.mu.Lock()
	loader.contracts = loader.contracts[:1]
	loader.mu.Unlock()
	require.NoError(t, cache.Refresh(context.Background(), true))
	assert.Equal(t, 1, cache.Registry().Len(), "registry tracks the latest load")

	_, ok := cache.Registry().ToExchangeSymbol("ETHUSDT")
	assert.False(t, ok)
}

func TestContractCache_BackgroundRefreshLifecycle(t *testing.T) {
	loader := newTestLoader()
	cache := NewContractCache(loader.Load, 20*time.Millisecond)
	require.NoError(t, cache.Warmup(context.Background()))

	cache.StartBackgroundRefresh()
	cache.StartBackgroundRefresh() // Idempotent.
	assert.Eventually(t, func() bool {
		return loader.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cache.StopBackgroundRefresh()
	cache.StopBackgroundRefresh() // Idempotent.
	settled := loader.calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, loader.calls.Load(), settled+1, "no further refreshes after stop")
}
