// internal/quote/engine.go
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/aggregator"
	"github.com/rovshanmuradov/swap-engine/internal/clmm"
	"github.com/rovshanmuradov/swap-engine/internal/provider"
	"github.com/rovshanmuradov/swap-engine/internal/types"
	"github.com/rovshanmuradov/swap-engine/internal/workers"
)

// Params describes one quote request. AmountIn is the input amount in atomic
// units given as an unsigned integer string; amount math never touches
// floating point.
type Params struct {
	TokenMint   solana.PublicKey
	Network     string
	Direction   types.Direction
	AmountIn    string
	SlippageBps uint16
}

// Result is a priced swap. AmountOut and MinAmountOut are atomic units of
// the output asset.
type Result struct {
	Provider       string
	AmountOut      cosmath.Int
	MinAmountOut   cosmath.Int
	PriceImpactPct decimal.Decimal

	// SimulatedSlippageBps is set only on aggregator quotes that declare it.
	SimulatedSlippageBps *uint16

	// FromCache marks a quote computed from the local snapshot cache with no
	// network round-trip.
	FromCache bool
}

// zeroResult is the canonical quote for a non-positive input: all zeros, no
// provider consulted.
func zeroResult() *Result {
	return &Result{
		AmountOut:      cosmath.ZeroInt(),
		MinAmountOut:   cosmath.ZeroInt(),
		PriceImpactPct: decimal.Zero,
	}
}

// switchMarginBps is how far the aggregator's output must exceed the local
// pool's before a provider-switch suggestion fires.
const switchMarginBps = 50

// SwitchSuggestion is the one-shot notification that the aggregator prices
// a token materially better than the active local pool.
type SwitchSuggestion struct {
	TokenMint    solana.PublicKey
	From, To     string
	LocalOut     cosmath.Int
	AggregateOut cosmath.Int
}

// Engine prices swaps. Local quotes come from the snapshot cache without a
// network round-trip; full quotes resolve a provider and may consult the
// aggregation service.
type Engine struct {
	resolver  *provider.Resolver
	discovery *clmm.Discovery
	agg       *aggregator.Client
	pool      *workers.Pool
	logger    *zap.Logger

	// onSwitch receives at most one suggestion per token.
	onSwitch  func(SwitchSuggestion)
	suggestMu sync.Mutex
	suggested map[string]bool
}

func NewEngine(
	resolver *provider.Resolver,
	discovery *clmm.Discovery,
	agg *aggregator.Client,
	pool *workers.Pool,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		resolver:  resolver,
		discovery: discovery,
		agg:       agg,
		pool:      pool,
		logger:    logger.Named("quote-engine"),
		suggested: make(map[string]bool),
	}
}

// OnSwitchSuggestion registers the provider-switch observer. Must be called
// before the engine serves quotes.
func (e *Engine) OnSwitchSuggestion(fn func(SwitchSuggestion)) {
	e.onSwitch = fn
}

// GetLocalSwapQuote prices the swap from the snapshot cache alone. It
// returns (nil, false) when no fresh snapshot exists; it never touches the
// network.
func (e *Engine) GetLocalSwapQuote(params Params) (*Result, bool) {
	amountIn, err := types.ParseAtomicAmount(params.AmountIn)
	if err != nil {
		return nil, false
	}
	if !amountIn.IsPositive() {
		return zeroResult(), true
	}

	snap := e.discovery.Snapshots().Get(params.TokenMint)
	if snap == nil {
		return nil, false
	}

	dir := clmm.OrientDirection(snap.BaseMint, params.TokenMint, params.Direction)
	out := clmm.AmountOutFromState(snap.SqrtPriceX64, snap.Liquidity, amountIn, dir)
	spot := clmm.SqrtPriceToPrice(snap.SqrtPriceX64)

	return &Result{
		Provider:       provider.AMMName,
		AmountOut:      out,
		MinAmountOut:   types.ApplySlippageFloor(out, params.SlippageBps),
		PriceImpactPct: clmm.PriceImpactPct(spot, amountIn, out, dir),
		FromCache:      true,
	}, true
}

// GetLocalSwapQuoteAsync runs the same cache-only computation on the worker
// pool so the caller never blocks on wide-integer arithmetic. The result
// value is a *Result; a missing snapshot yields a nil value with no error.
func (e *Engine) GetLocalSwapQuoteAsync(ctx context.Context, params Params) (<-chan workers.Result, uint64) {
	return e.pool.Submit(ctx, func() (interface{}, error) {
		res, ok := e.GetLocalSwapQuote(params)
		if !ok {
			return (*Result)(nil), nil
		}
		return res, nil
	})
}

// GetSwapQuote produces a full quote, resolving a venue for the token. A
// non-positive input amount returns the canonical zero quote without
// touching any provider. When the local pool serves the quote, an
// aggregator comparison runs in the background and may emit a one-shot
// switch suggestion.
func (e *Engine) GetSwapQuote(ctx context.Context, params Params, preferred string) (*Result, error) {
	if !params.Direction.Valid() {
		return nil, fmt.Errorf("unknown trade direction %q", params.Direction)
	}
	amountIn, err := types.ParseAtomicAmount(params.AmountIn)
	if err != nil {
		return nil, err
	}
	if !amountIn.IsPositive() {
		return zeroResult(), nil
	}

	prov, err := e.resolver.Resolve(ctx, params.TokenMint, params.Network, preferred)
	if err != nil {
		return nil, err
	}

	switch prov.Name() {
	case provider.AMMName:
		res, err := e.quoteFromPool(ctx, params, amountIn)
		if err != nil {
			return nil, err
		}
		e.compareWithAggregator(params, res.AmountOut)
		return res, nil
	default:
		return e.quoteFromAggregator(ctx, params)
	}
}

func (e *Engine) quoteFromPool(ctx context.Context, params Params, amountIn cosmath.Int) (*Result, error) {
	pool, err := e.discovery.FindPool(ctx, params.TokenMint, clmm.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("find pool for %s: %w", params.TokenMint, err)
	}

	dir := clmm.OrientDirection(pool.BaseMint, params.TokenMint, params.Direction)
	out := clmm.AmountOutFromState(pool.SqrtPriceX64, pool.Liquidity, amountIn, dir)
	spot := clmm.SqrtPriceToPrice(pool.SqrtPriceX64)

	return &Result{
		Provider:       provider.AMMName,
		AmountOut:      out,
		MinAmountOut:   types.ApplySlippageFloor(out, params.SlippageBps),
		PriceImpactPct: clmm.PriceImpactPct(spot, amountIn, out, dir),
	}, nil
}

func (e *Engine) quoteFromAggregator(ctx context.Context, params Params) (*Result, error) {
	inputMint, outputMint := clmm.WSOLMint, params.TokenMint
	if params.Direction == types.DirectionSell {
		inputMint, outputMint = params.TokenMint, clmm.WSOLMint
	}
	slippage := params.SlippageBps
	order, err := e.agg.GetOrder(ctx, aggregator.OrderRequest{
		InputMint:   inputMint.String(),
		OutputMint:  outputMint.String(),
		Amount:      params.AmountIn,
		SlippageBps: &slippage,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregator quote: %w", err)
	}

	out, err := types.ParseAtomicAmount(order.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("aggregator out amount: %w", err)
	}
	minOut, err := types.ParseAtomicAmount(order.OtherAmountThreshold)
	if err != nil {
		minOut = types.ApplySlippageFloor(out, params.SlippageBps)
	}
	impact, err := decimal.NewFromString(order.PriceImpactPct)
	if err != nil {
		impact = decimal.Zero
	}

	return &Result{
		Provider:             provider.AggregatorName,
		AmountOut:            out,
		MinAmountOut:         minOut,
		PriceImpactPct:       impact.Abs(),
		SimulatedSlippageBps: order.SimulatedSlippageBps,
	}, nil
}

// compareWithAggregator races no one: it runs in the background purely for
// comparison and never alters the active quote.
func (e *Engine) compareWithAggregator(params Params, localOut cosmath.Int) {
	if e.agg == nil || e.onSwitch == nil || !localOut.IsPositive() {
		return
	}
	key := params.TokenMint.String()
	e.suggestMu.Lock()
	done := e.suggested[key]
	e.suggestMu.Unlock()
	if done {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		aggRes, err := e.quoteFromAggregator(ctx, params)
		if err != nil {
			e.logger.Debug("aggregator comparison failed", zap.String("token_mint", key), zap.Error(err))
			return
		}

		// Fire only when the aggregator beats the pool by the margin.
		threshold := localOut.
			MulRaw(types.BasisPointDenominator + switchMarginBps).
			QuoRaw(types.BasisPointDenominator)
		if aggRes.AmountOut.LTE(threshold) {
			return
		}

		e.suggestMu.Lock()
		already := e.suggested[key]
		e.suggested[key] = true
		e.suggestMu.Unlock()
		if already {
			return
		}

		e.logger.Info("aggregator prices better than local pool",
			zap.String("token_mint", key),
			zap.String("local_out", localOut.String()),
			zap.String("aggregator_out", aggRes.AmountOut.String()))
		e.onSwitch(SwitchSuggestion{
			TokenMint:    params.TokenMint,
			From:         provider.AMMName,
			To:           provider.AggregatorName,
			LocalOut:     localOut,
			AggregateOut: aggRes.AmountOut,
		})
	}()
}
