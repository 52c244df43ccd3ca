// internal/fees/estimator.go
package fees

import (
	"context"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
)

const (
	// feePercentile is the rank taken from the ascending recent-fee samples.
	feePercentile = 0.70

	// DefaultComputeUnitLimit applies when no tick-count estimate exists.
	DefaultComputeUnitLimit = 400_000

	// Tick-count-derived compute estimate for the AMM path.
	computeUnitBase         = 250_000
	computeUnitPerTickArray = 60_000

	// MaxComputeUnitLimit is the network's hard per-transaction ceiling.
	MaxComputeUnitLimit = 1_400_000
)

// FeeReader is the slice of the chain connection the estimator needs.
type FeeReader interface {
	RecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]chain.FeeSample, error)
}

// Estimator derives a priority fee from recent network samples. It never
// fails: any read problem degrades to the configured minimum.
type Estimator struct {
	client FeeReader
	logger *zap.Logger

	minMicroLamports uint64
	maxMicroLamports uint64
}

func NewEstimator(client FeeReader, logger *zap.Logger, minMicroLamports, maxMicroLamports uint64) *Estimator {
	if maxMicroLamports < minMicroLamports {
		maxMicroLamports = minMicroLamports
	}
	return &Estimator{
		client:           client,
		logger:           logger.Named("fee-estimator"),
		minMicroLamports: minMicroLamports,
		maxMicroLamports: maxMicroLamports,
	}
}

// PriorityFee reads recent per-slot fee samples for the given writable
// accounts, takes the 70th-percentile value, and clamps it to the configured
// bounds.
func (e *Estimator) PriorityFee(ctx context.Context, accounts []solana.PublicKey) uint64 {
	samples, err := e.client.RecentPrioritizationFees(ctx, accounts)
	if err != nil {
		e.logger.Debug("prioritization fee read failed, using minimum", zap.Error(err))
		return e.minMicroLamports
	}

	fees := make([]uint64, 0, len(samples))
	for _, s := range samples {
		fees = append(fees, s.PrioritizationFee)
	}
	if len(fees) == 0 {
		return e.minMicroLamports
	}

	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })
	idx := int(float64(len(fees)-1) * feePercentile)
	fee := fees[idx]

	if fee < e.minMicroLamports {
		fee = e.minMicroLamports
	}
	if fee > e.maxMicroLamports {
		fee = e.maxMicroLamports
	}
	return fee
}

// ComputeUnitLimit returns the compute budget for a swap crossing the given
// number of tick arrays. Zero or negative counts fall back to the default.
func ComputeUnitLimit(tickArrayCount int) uint32 {
	if tickArrayCount <= 0 {
		return DefaultComputeUnitLimit
	}
	limit := computeUnitBase
	if tickArrayCount > 1 {
		limit += (tickArrayCount - 1) * computeUnitPerTickArray
	}
	if limit > MaxComputeUnitLimit {
		limit = MaxComputeUnitLimit
	}
	return uint32(limit)
}
