// internal/provider/amm.go
package provider

import (
	"context"
	"errors"
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
	"github.com/rovshanmuradov/swap-engine/internal/clmm"
	"github.com/rovshanmuradov/swap-engine/internal/fees"
	"github.com/rovshanmuradov/swap-engine/internal/types"
	"github.com/rovshanmuradov/swap-engine/internal/wallet"
)

// BlockhashSource is the slice of the chain connection the AMM provider
// needs for transaction assembly.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (chain.BlockhashContext, error)
}

// AMMName identifies the local concentrated-liquidity venue.
const AMMName = "clmm"

// AMMProvider builds swaps directly against on-chain concentrated-liquidity
// pools, with no intermediary service.
type AMMProvider struct {
	discovery *clmm.Discovery
	blockhash BlockhashSource
	estimator *fees.Estimator
	wallet    *wallet.Wallet
	network   string
	logger    *zap.Logger
}

func NewAMMProvider(
	discovery *clmm.Discovery,
	blockhash BlockhashSource,
	estimator *fees.Estimator,
	w *wallet.Wallet,
	network string,
	logger *zap.Logger,
) *AMMProvider {
	return &AMMProvider{
		discovery: discovery,
		blockhash: blockhash,
		estimator: estimator,
		wallet:    w,
		network:   network,
		logger:    logger.Named("amm-provider"),
	}
}

func (p *AMMProvider) Name() string { return AMMName }

// IsAvailable reports whether a swap-enabled pool pairs the token with the
// native asset on this provider's network. Discovery results are cached, so
// repeated probes are cheap.
func (p *AMMProvider) IsAvailable(ctx context.Context, tokenMint solana.PublicKey, network string) bool {
	if network != p.network {
		return false
	}
	pool, err := p.discovery.FindPool(ctx, tokenMint, clmm.WSOLMint)
	if err != nil {
		if !errors.Is(err, clmm.ErrPoolNotFound) {
			p.logger.Debug("pool availability probe failed",
				zap.String("token_mint", tokenMint.String()), zap.Error(err))
		}
		return false
	}
	return pool.SwapEnabled()
}

// BuildSwapTransaction assembles a full unsigned swap transaction: compute
// budget, idempotent output-ATA creation, and the pool swap itself.
func (p *AMMProvider) BuildSwapTransaction(ctx context.Context, params BuildParams) (*BuiltSwap, error) {
	if !params.Direction.Valid() {
		return nil, fmt.Errorf("unknown trade direction %q", params.Direction)
	}
	if params.AmountIn == 0 {
		return nil, fmt.Errorf("zero input amount")
	}

	pool, err := p.discovery.FindPool(ctx, params.TokenMint, clmm.WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("find pool for %s: %w", params.TokenMint, err)
	}

	// The pool may hold the token on either side. Normalize the user-facing
	// direction (buy/sell the token) into the pool's base/quote orientation.
	poolDir := clmm.OrientDirection(pool.BaseMint, params.TokenMint, params.Direction)

	inputMint, outputMint := clmm.WSOLMint, params.TokenMint
	if params.Direction == types.DirectionSell {
		inputMint, outputMint = params.TokenMint, clmm.WSOLMint
	}
	inputATA, err := p.wallet.GetATA(inputMint)
	if err != nil {
		return nil, err
	}
	outputATA, err := p.wallet.GetATA(outputMint)
	if err != nil {
		return nil, err
	}

	amountIn := cosmath.NewIntFromUint64(params.AmountIn)
	expectedOut := clmm.AmountOutFromState(pool.SqrtPriceX64, pool.Liquidity, amountIn, poolDir)
	minOut := types.ApplySlippageFloor(expectedOut, params.SlippageBps)

	swapInst, tickArrayCount, err := clmm.BuildSwapInstruction(pool, clmm.SwapAccounts{
		Payer:         params.Owner,
		UserInputATA:  inputATA,
		UserOutputATA: outputATA,
	}, params.AmountIn, minOut.Uint64(), poolDir)
	if err != nil {
		return nil, fmt.Errorf("build swap instruction: %w", err)
	}

	feeAccounts := params.PriorityFeeAccounts
	if len(feeAccounts) == 0 {
		feeAccounts = []solana.PublicKey{pool.Address}
	}
	priorityFee := p.estimator.PriorityFee(ctx, feeAccounts)
	unitLimit := fees.ComputeUnitLimit(tickArrayCount)

	ataInst, err := p.wallet.CreateATAIdempotentInstruction(params.Owner, params.Owner, outputMint)
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(unitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(priorityFee).Build(),
		ataInst,
		swapInst,
	}

	bh, err := p.blockhash.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, bh.Blockhash, solana.TransactionPayer(params.Owner))
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}

	spot := clmm.SqrtPriceToPrice(pool.SqrtPriceX64)
	impact := clmm.PriceImpactPct(spot, amountIn, expectedOut, poolDir)

	p.logger.Debug("amm swap built",
		zap.String("pool", pool.Address.String()),
		zap.String("direction", string(params.Direction)),
		zap.Uint64("amount_in", params.AmountIn),
		zap.String("expected_out", expectedOut.String()),
		zap.Uint64("priority_fee", priorityFee),
		zap.Int("tick_arrays", tickArrayCount))

	return &BuiltSwap{
		Transaction:    tx,
		Blockhash:      bh,
		Provider:       AMMName,
		ExpectedOut:    expectedOut.Uint64(),
		MinAmountOut:   minOut.Uint64(),
		PriceImpactPct: impact,
		TickArrayCount: tickArrayCount,
	}, nil
}
