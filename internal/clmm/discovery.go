// internal/clmm/discovery.go
package clmm

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
)

// AccountScanner is the slice of the chain connection pool discovery needs.
type AccountScanner interface {
	GetProgramAccounts(ctx context.Context, programID solana.PublicKey, dataSize uint64, memcmp map[uint64][]byte) ([]chain.ProgramAccount, error)
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
}

// Discovery finds the best-liquidity pool for a token pair and maintains the
// short-TTL address and state-snapshot caches in front of the network.
type Discovery struct {
	client    AccountScanner
	logger    *zap.Logger
	addresses *AddressCache
	snapshots *SnapshotCache
}

func NewDiscovery(client AccountScanner, logger *zap.Logger) *Discovery {
	return &Discovery{
		client:    client,
		logger:    logger.Named("pool-discovery"),
		addresses: NewAddressCache(AddressCacheTTL),
		snapshots: NewSnapshotCache(SnapshotCacheTTL),
	}
}

// Snapshots exposes the snapshot cache for synchronous local quoting.
func (d *Discovery) Snapshots() *SnapshotCache {
	return d.snapshots
}

// FindPool locates the pool holding both mints with the greatest liquidity.
// The address cache is consulted before any network call; a cached "no pool"
// outcome short-circuits to ErrPoolNotFound until it expires.
func (d *Discovery) FindPool(ctx context.Context, tokenMint, quoteMint solana.PublicKey) (*PoolState, error) {
	if addr, found, ok := d.addresses.Get(tokenMint, quoteMint); ok {
		if !found {
			return nil, ErrPoolNotFound
		}
		return d.FetchState(ctx, addr)
	}

	best, err := d.scan(ctx, tokenMint, quoteMint)
	if err != nil {
		return nil, err
	}
	if best == nil {
		d.addresses.Put(tokenMint, quoteMint, solana.PublicKey{}, false)
		return nil, ErrPoolNotFound
	}

	d.addresses.Put(tokenMint, quoteMint, best.Address, true)
	d.storeSnapshot(tokenMint, best)
	return best, nil
}

// scan queries program accounts with the token at the base-mint offset and at
// the quote-mint offset in parallel, then keeps the highest-liquidity
// candidate whose mint pair matches. Ties go to the first seen.
func (d *Discovery) scan(ctx context.Context, tokenMint, quoteMint solana.PublicKey) (*PoolState, error) {
	searchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		best *PoolState
	)
	consider := func(accs []chain.ProgramAccount) {
		for _, acc := range accs {
			state, err := DecodePoolState(acc.Pubkey, acc.Data)
			if err != nil {
				continue
			}
			if !pairMatches(state, tokenMint, quoteMint) {
				continue
			}
			mu.Lock()
			if best == nil || state.Liquidity.Cmp(best.Liquidity) > 0 {
				best = state
			}
			mu.Unlock()
		}
	}

	g, gctx := errgroup.WithContext(searchCtx)
	g.Go(func() error {
		accs, err := d.client.GetProgramAccounts(gctx, ProgramID, PoolAccountSize, map[uint64][]byte{
			offsetBaseMint: tokenMint.Bytes(),
		})
		if err != nil {
			return err
		}
		consider(accs)
		return nil
	})
	g.Go(func() error {
		accs, err := d.client.GetProgramAccounts(gctx, ProgramID, PoolAccountSize, map[uint64][]byte{
			offsetQuoteMint: tokenMint.Bytes(),
		})
		if err != nil {
			return err
		}
		consider(accs)
		return nil
	})
	if err := g.Wait(); err != nil {
		d.logger.Warn("pool scan failed",
			zap.String("token_mint", tokenMint.String()),
			zap.String("quote_mint", quoteMint.String()),
			zap.Error(err))
		return nil, err
	}

	if best != nil {
		d.logger.Debug("pool discovered",
			zap.String("pool", best.Address.String()),
			zap.String("liquidity", best.Liquidity.String()))
	}
	return best, nil
}

func pairMatches(state *PoolState, tokenMint, quoteMint solana.PublicKey) bool {
	return (state.BaseMint.Equals(tokenMint) && state.QuoteMint.Equals(quoteMint)) ||
		(state.BaseMint.Equals(quoteMint) && state.QuoteMint.Equals(tokenMint))
}

// FetchState reads and decodes a pool account by address, refreshing the
// snapshot cache on success.
func (d *Discovery) FetchState(ctx context.Context, poolAddress solana.PublicKey) (*PoolState, error) {
	data, err := d.client.GetAccountData(ctx, poolAddress)
	if err != nil {
		if chain.IsAccountNotFoundError(err) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	state, err := DecodePoolState(poolAddress, data)
	if err != nil {
		return nil, err
	}
	tokenMint := state.BaseMint
	if tokenMint.Equals(WSOLMint) {
		tokenMint = state.QuoteMint
	}
	d.storeSnapshot(tokenMint, state)
	return state, nil
}

func (d *Discovery) storeSnapshot(tokenMint solana.PublicKey, state *PoolState) {
	d.snapshots.Put(tokenMint, &Snapshot{
		PoolAddress:  state.Address,
		BaseMint:     state.BaseMint,
		QuoteMint:    state.QuoteMint,
		Liquidity:    state.Liquidity,
		SqrtPriceX64: state.SqrtPriceX64,
		TickCurrent:  state.TickCurrent,
		TickSpacing:  state.TickSpacing,
		FetchedAt:    time.Now(),
	})
}
