// internal/clmm/cache.go
package clmm

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

const (
	// AddressCacheTTL bounds how long a discovered pool address (or a
	// confirmed "no pool" outcome) is trusted.
	AddressCacheTTL = 5 * time.Minute

	// SnapshotCacheTTL bounds how long a pool-state snapshot may serve
	// instant local quotes.
	SnapshotCacheTTL = 30 * time.Second
)

type addressEntry struct {
	address   solana.PublicKey
	found     bool
	expiresAt time.Time
}

// AddressCache maps a (base mint, quote mint) pair to its best pool address.
// Entries past expiry are treated as absent; entries are immutable once
// written and simply replaced on re-fetch.
type AddressCache struct {
	mu      sync.RWMutex
	entries map[string]addressEntry
	ttl     time.Duration
}

func NewAddressCache(ttl time.Duration) *AddressCache {
	if ttl <= 0 {
		ttl = AddressCacheTTL
	}
	return &AddressCache{
		entries: make(map[string]addressEntry),
		ttl:     ttl,
	}
}

func pairKey(base, quote solana.PublicKey) string {
	return base.String() + "-" + quote.String()
}

// Get returns the cached pool address for the pair. ok is false on a miss or
// an expired entry; found is false when the cached outcome was "no pool".
func (c *AddressCache) Get(base, quote solana.PublicKey) (addr solana.PublicKey, found, ok bool) {
	c.mu.RLock()
	e, exists := c.entries[pairKey(base, quote)]
	c.mu.RUnlock()
	if !exists || time.Now().After(e.expiresAt) {
		return solana.PublicKey{}, false, false
	}
	return e.address, e.found, true
}

// Put stores a discovery outcome, including the explicit "no pool" case.
func (c *AddressCache) Put(base, quote solana.PublicKey, addr solana.PublicKey, found bool) {
	c.mu.Lock()
	c.entries[pairKey(base, quote)] = addressEntry{
		address:   addr,
		found:     found,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate drops every cached entry. Used on explicit reset only; TTL
// expiry is the normal invalidation mechanism.
func (c *AddressCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]addressEntry)
	c.mu.Unlock()
}

// Snapshot is a copy of the quoting-relevant pool state, held briefly so the
// engine can answer a quote without a network round-trip.
type Snapshot struct {
	PoolAddress  solana.PublicKey
	BaseMint     solana.PublicKey
	QuoteMint    solana.PublicKey
	Liquidity    uint128.Uint128
	SqrtPriceX64 uint128.Uint128
	TickCurrent  int32
	TickSpacing  uint16
	FetchedAt    time.Time
}

// SnapshotCache keys pool-state snapshots by the traded token's mint, quoted
// against the network's native asset.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]*Snapshot
	ttl     time.Duration
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = SnapshotCacheTTL
	}
	return &SnapshotCache{
		entries: make(map[string]*Snapshot),
		ttl:     ttl,
	}
}

// Get returns the snapshot for the token mint, or nil when absent or stale.
// A stale snapshot must never be used for quoting.
func (c *SnapshotCache) Get(tokenMint solana.PublicKey) *Snapshot {
	c.mu.RLock()
	s := c.entries[tokenMint.String()]
	c.mu.RUnlock()
	if s == nil || time.Since(s.FetchedAt) > c.ttl {
		return nil
	}
	return s
}

// Put stores a fresh snapshot, superseding any previous one.
func (c *SnapshotCache) Put(tokenMint solana.PublicKey, s *Snapshot) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.entries[tokenMint.String()] = s
	c.mu.Unlock()
}
