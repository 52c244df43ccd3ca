// internal/clmm/cache_test.go
package clmm

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"lukechampine.com/uint128"
)

func TestAddressCache_HitMissAndNoPoolOutcome(t *testing.T) {
	cache := NewAddressCache(time.Minute)
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	quote := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	pool := solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")

	_, _, ok := cache.Get(base, quote)
	assert.False(t, ok)

	cache.Put(base, quote, pool, true)
	addr, found, ok := cache.Get(base, quote)
	assert.True(t, ok)
	assert.True(t, found)
	assert.Equal(t, pool, addr)

	// The explicit "no pool" outcome is a hit with found=false.
	cache.Put(quote, base, solana.PublicKey{}, false)
	_, found, ok = cache.Get(quote, base)
	assert.True(t, ok)
	assert.False(t, found)
}

func TestAddressCache_ExpiredEntryIsAMiss(t *testing.T) {
	cache := NewAddressCache(10 * time.Millisecond)
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	quote := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	cache.Put(base, quote, base, true)
	time.Sleep(25 * time.Millisecond)

	_, _, ok := cache.Get(base, quote)
	assert.False(t, ok)
}

func TestAddressCache_Invalidate(t *testing.T) {
	cache := NewAddressCache(time.Minute)
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	quote := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	cache.Put(base, quote, base, true)
	cache.Invalidate()

	_, _, ok := cache.Get(base, quote)
	assert.False(t, ok)
}

func TestSnapshotCache_TTL(t *testing.T) {
	cache := NewSnapshotCache(10 * time.Millisecond)
	token := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	cache.Put(token, &Snapshot{
		Liquidity:    uint128.From64(1),
		SqrtPriceX64: uint128.From64(1).Lsh(64),
		FetchedAt:    time.Now(),
	})
	assert.NotNil(t, cache.Get(token))

	time.Sleep(25 * time.Millisecond)
	assert.Nil(t, cache.Get(token), "a stale snapshot must read as absent")
}

func TestSnapshotCache_ReplacementIsImmutable(t *testing.T) {
	cache := NewSnapshotCache(time.Minute)
	token := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	first := &Snapshot{Liquidity: uint128.From64(1), FetchedAt: time.Now()}
	cache.Put(token, first)
	second := &Snapshot{Liquidity: uint128.From64(2), FetchedAt: time.Now()}
	cache.Put(token, second)

	got := cache.Get(token)
	assert.Equal(t, uint64(2), got.Liquidity.Lo)
	// The first entry was replaced, not mutated.
	assert.Equal(t, uint64(1), first.Liquidity.Lo)
}
