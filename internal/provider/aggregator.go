// internal/provider/aggregator.go
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/aggregator"
	"github.com/rovshanmuradov/swap-engine/internal/clmm"
	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// AggregatorName identifies the external routing-service venue.
const AggregatorName = "aggregator"

// AggregatorProvider routes swaps through an external aggregation service
// that returns pre-built transactions.
type AggregatorProvider struct {
	client    *aggregator.Client
	blockhash BlockhashSource
	network   string
	logger    *zap.Logger
}

func NewAggregatorProvider(client *aggregator.Client, blockhash BlockhashSource, network string, logger *zap.Logger) *AggregatorProvider {
	return &AggregatorProvider{
		client:    client,
		blockhash: blockhash,
		network:   network,
		logger:    logger.Named("aggregator-provider"),
	}
}

func (p *AggregatorProvider) Name() string { return AggregatorName }

// IsAvailable reports whether the aggregator is configured for the network.
// The service routes across many venues, so it serves as the catch-all
// fallback; a token it truly cannot route fails at order time with a clear
// error.
func (p *AggregatorProvider) IsAvailable(_ context.Context, _ solana.PublicKey, network string) bool {
	return p.client != nil && network == p.network
}

// BuildSwapTransaction requests a routed order and decodes the returned
// unsigned transaction. The order's RequestID is carried on the result so
// the signed transaction is submitted back through the same service.
func (p *AggregatorProvider) BuildSwapTransaction(ctx context.Context, params BuildParams) (*BuiltSwap, error) {
	if !params.Direction.Valid() {
		return nil, fmt.Errorf("unknown trade direction %q", params.Direction)
	}
	if params.AmountIn == 0 {
		return nil, fmt.Errorf("zero input amount")
	}

	inputMint, outputMint := clmm.WSOLMint, params.TokenMint
	if params.Direction == types.DirectionSell {
		inputMint, outputMint = params.TokenMint, clmm.WSOLMint
	}

	slippage := params.SlippageBps
	order, err := p.client.GetOrder(ctx, aggregator.OrderRequest{
		InputMint:   inputMint.String(),
		OutputMint:  outputMint.String(),
		Amount:      strconv.FormatUint(params.AmountIn, 10),
		Taker:       params.Owner.String(),
		SlippageBps: &slippage,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregator order: %w", err)
	}
	if order.Transaction == "" {
		return nil, fmt.Errorf("aggregator order %s carried no transaction", order.RequestID)
	}

	txBytes, err := base64.StdEncoding.DecodeString(order.Transaction)
	if err != nil {
		return nil, fmt.Errorf("decode order transaction: %w", err)
	}
	tx, err := solana.TransactionFromBytes(txBytes)
	if err != nil {
		return nil, fmt.Errorf("parse order transaction: %w", err)
	}

	// The aggregator picked its own recent blockhash; fetch the expiry
	// height for the confirmation loop.
	bh, err := p.blockhash.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	bh.Blockhash = tx.Message.RecentBlockhash

	expectedOut := parseAtomicField(order.OutAmount)
	minOut := parseAtomicField(order.OtherAmountThreshold)
	impact, _ := decimal.NewFromString(order.PriceImpactPct)

	p.logger.Debug("aggregator swap built",
		zap.String("request_id", order.RequestID),
		zap.String("direction", string(params.Direction)),
		zap.Uint64("amount_in", params.AmountIn),
		zap.Uint64("expected_out", expectedOut))

	return &BuiltSwap{
		Transaction:          tx,
		Blockhash:            bh,
		Provider:             AggregatorName,
		ExpectedOut:          expectedOut,
		MinAmountOut:         minOut,
		PriceImpactPct:       impact.Abs(),
		SimulatedSlippageBps: order.SimulatedSlippageBps,
		RequestID:            order.RequestID,
	}, nil
}

func parseAtomicField(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
