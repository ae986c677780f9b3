package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
	"github.com/zeromicro/go-zero/core/threading"
)

const defaultContractTTL = 5 * time.Minute

// ContractLoader fetches the full instrument set from the venue. The cache
// treats it as a black box returning exchange-native metadata already
// mapped into ContractInfo.
type ContractLoader func(ctx context.Context) ([]ContractInfo, error)

// contractSnapshot is an immutable view built on each successful load and
// swapped in wholesale, so readers never observe a partially-updated cache.
type contractSnapshot struct {
	byCanonical map[string]*ContractInfo
	byExchange  map[string]*ContractInfo
	registry    *SymbolRegistry
	loadedAt    time.Time
}

// ContractCache is a TTL-backed cache of instrument metadata with a symbol
// registry derived from the cached set.
//
// Lookup semantics are stale-read-while-revalidate: once a load has
// succeeded, lookups return the current snapshot immediately and trigger an
// async refresh when it has gone stale. A cold lookup (no snapshot yet)
// performs one blocking load. Concurrent refreshes are coalesced into a
// single in-flight load.
type ContractCache struct {
	loader ContractLoader
	ttl    time.Duration
	flight syncx.SingleFlight
	clock  func() time.Time

	mu   sync.RWMutex
	snap *contractSnapshot

	refreshMu   sync.Mutex
	stopRefresh chan struct{}
}

// NewContractCache constructs a cache around the loader. A non-positive ttl
// falls back to the default.
func NewContractCache(loader ContractLoader, ttl time.Duration) *ContractCache {
	if ttl <= 0 {
		ttl = defaultContractTTL
	}
	return &ContractCache{
		loader: loader,
		ttl:    ttl,
		flight: syncx.NewSingleFlight(),
		clock:  time.Now,
	}
}

// Warmup performs one blocking load. A failure propagates since there is no
// prior snapshot to fall back to.
func (c *ContractCache) Warmup(ctx context.Context) error {
	return c.load(ctx)
}

// GetByCanonical returns the cached contract for a canonical symbol, or
// nil when the symbol is unknown to the loaded set. A cold cache blocks on
// one load; a stale cache serves the previous snapshot and revalidates in
// the background.
func (c *ContractCache) GetByCanonical(ctx context.Context, symbol string) (*ContractInfo, error) {
	snap, err := c.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.byCanonical[normalizeSymbol(symbol)], nil
}

// GetByExchange returns the cached contract for a venue-native symbol, with
// the same freshness semantics as GetByCanonical.
func (c *ContractCache) GetByExchange(ctx context.Context, symbol string) (*ContractInfo, error) {
	snap, err := c.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.byExchange[normalizeSymbol(symbol)], nil
}

// Registry returns the symbol registry built from the latest successful
// load. An unloaded cache yields an empty registry.
func (c *ContractCache) Registry() *SymbolRegistry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return NewSymbolRegistry(nil)
	}
	return c.snap.registry
}

// Refresh reloads the contract set. When force is false a fresh snapshot
// short-circuits the call. Concurrent callers share one in-flight load.
func (c *ContractCache) Refresh(ctx context.Context, force bool) error {
	if !force {
		c.mu.RLock()
		fresh := c.snap != nil && !c.staleLocked()
		c.mu.RUnlock()
		if fresh {
			return nil
		}
	}
	return c.load(ctx)
}

// RefreshIfStale triggers a non-blocking revalidation when the snapshot has
// gone stale. A cold cache is left untouched; the next lookup will load.
func (c *ContractCache) RefreshIfStale() {
	c.mu.RLock()
	needs := c.snap != nil && c.staleLocked()
	c.mu.RUnlock()
	if needs {
		c.asyncRefresh()
	}
}

// Loaded reports whether at least one load has succeeded.
func (c *ContractCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap != nil
}

// Stale reports whether the snapshot is missing or older than the TTL.
func (c *ContractCache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap == nil || c.staleLocked()
}

// StartBackgroundRefresh begins an interval timer that revalidates the
// snapshot every TTL period. Safe to call repeatedly.
func (c *ContractCache) StartBackgroundRefresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.stopRefresh != nil {
		return
	}
	stop := make(chan struct{})
	c.stopRefresh = stop
	threading.GoSafe(func() {
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// A failed refresh keeps the previous snapshot: availability
				// is preferred over freshness.
				if err := c.Refresh(context.Background(), false); err != nil {
					logx.Errorf("contract cache: background refresh failed: %v", err)
				}
			}
		}
	})
}

// StopBackgroundRefresh halts the interval timer. Safe to call repeatedly.
func (c *ContractCache) StopBackgroundRefresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.stopRefresh == nil {
		return
	}
	close(c.stopRefresh)
	c.stopRefresh = nil
}

func (c *ContractCache) currentSnapshot(ctx context.Context) (*contractSnapshot, error) {
	c.mu.RLock()
	snap := c.snap
	stale := snap != nil && c.staleLocked()
	c.mu.RUnlock()

	if snap == nil {
		if err := c.load(ctx); err != nil {
			return nil, err
		}
		c.mu.RLock()
		snap = c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	if stale {
		c.asyncRefresh()
	}
	return snap, nil
}

func (c *ContractCache) asyncRefresh() {
	threading.GoSafe(func() {
		if err := c.load(context.Background()); err != nil {
			logx.Errorf("contract cache: async refresh failed: %v", err)
		}
	})
}

func (c *ContractCache) load(ctx context.Context) error {
	_, err := c.flight.Do("contracts", func() (any, error) {
		contracts, err := c.loader(ctx)
		if err != nil {
			return nil, err
		}
		c.install(contracts)
		return nil, nil
	})
	return err
}

func (c *ContractCache) install(contracts []ContractInfo) {
	snap := &contractSnapshot{
		byCanonical: make(map[string]*ContractInfo, len(contracts)),
		byExchange:  make(map[string]*ContractInfo, len(contracts)),
		loadedAt:    c.clock(),
	}
	rows := make([]SymbolRow, 0, len(contracts))
	for i := range contracts {
		info := contracts[i]
		if info.Symbol == "" {
			continue
		}
		snap.byCanonical[normalizeSymbol(info.Symbol)] = &info
		if info.ExchangeSymbol != "" {
			snap.byExchange[normalizeSymbol(info.ExchangeSymbol)] = &info
		}
		rows = append(rows, SymbolRow{
			Canonical:  info.Symbol,
			Exchange:   info.ExchangeSymbol,
			BaseAsset:  info.BaseAsset,
			QuoteAsset: info.QuoteAsset,
		})
	}
	snap.registry = NewSymbolRegistry(rows)

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

// staleLocked requires at least a read lock and a non-nil snapshot.
func (c *ContractCache) staleLocked() bool {
	return c.clock().Sub(c.snap.loadedAt) > c.ttl
}
