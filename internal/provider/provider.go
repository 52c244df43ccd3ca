// internal/provider/provider.go
package provider

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// BuildParams describes one swap to assemble.
type BuildParams struct {
	Owner       solana.PublicKey
	TokenMint   solana.PublicKey
	Network     string
	Direction   types.Direction
	AmountIn    uint64
	SlippageBps uint16
	// PriorityFeeAccounts narrows the fee estimate to accounts the swap
	// will write. Empty means a network-wide estimate.
	PriorityFeeAccounts []solana.PublicKey
}

// BuiltSwap is an unsigned, ready-to-sign transaction together with the
// routing metadata a caller needs to execute and audit it.
type BuiltSwap struct {
	Transaction *solana.Transaction
	Blockhash   chain.BlockhashContext
	Provider    string

	ExpectedOut    uint64
	MinAmountOut   uint64
	PriceImpactPct decimal.Decimal

	// SimulatedSlippageBps is the route-level slippage estimate some
	// aggregators return alongside the order.
	SimulatedSlippageBps *uint16

	// RequestID ties the transaction to an aggregator order; when set the
	// signed transaction must be submitted back through the aggregator.
	RequestID string

	// TickArrayCount is the number of tick arrays a local AMM swap crosses,
	// zero for aggregator routes.
	TickArrayCount int
}

// SwapProvider builds swap transactions for one execution venue.
type SwapProvider interface {
	Name() string
	// IsAvailable reports whether this venue can currently serve the token
	// on the given network.
	IsAvailable(ctx context.Context, tokenMint solana.PublicKey, network string) bool
	BuildSwapTransaction(ctx context.Context, params BuildParams) (*BuiltSwap, error)
}

// NoProviderError reports that no venue can serve a token.
type NoProviderError struct {
	TokenMint string
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no swap provider available for token %s", e.TokenMint)
}

// Resolver picks a venue for a token from an ordered provider list.
type Resolver struct {
	providers []SwapProvider
	logger    *zap.Logger
}

func NewResolver(logger *zap.Logger, providers ...SwapProvider) *Resolver {
	return &Resolver{
		providers: providers,
		logger:    logger.Named("provider-resolver"),
	}
}

// Resolve returns the first available provider in registration order. A
// non-empty preferred name is tried before the rest; an unavailable or
// unknown preference falls back to the normal order.
func (r *Resolver) Resolve(ctx context.Context, tokenMint solana.PublicKey, network, preferred string) (SwapProvider, error) {
	if preferred != "" {
		for _, p := range r.providers {
			if p.Name() != preferred {
				continue
			}
			if p.IsAvailable(ctx, tokenMint, network) {
				return p, nil
			}
			r.logger.Debug("preferred provider unavailable",
				zap.String("provider", preferred),
				zap.String("token_mint", tokenMint.String()))
			break
		}
	}

	for _, p := range r.providers {
		if p.IsAvailable(ctx, tokenMint, network) {
			r.logger.Debug("provider resolved",
				zap.String("provider", p.Name()),
				zap.String("token_mint", tokenMint.String()))
			return p, nil
		}
	}
	return nil, &NoProviderError{TokenMint: tokenMint.String()}
}
