// internal/fees/estimator_test.go
package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
)

type fakeFeeReader struct {
	samples []chain.FeeSample
	err     error
}

func (f *fakeFeeReader) RecentPrioritizationFees(context.Context, []solana.PublicKey) ([]chain.FeeSample, error) {
	return f.samples, f.err
}

func samplesOf(fees ...uint64) []chain.FeeSample {
	out := make([]chain.FeeSample, len(fees))
	for i, f := range fees {
		out[i] = chain.FeeSample{Slot: uint64(i), PrioritizationFee: f}
	}
	return out
}

func TestPriorityFee_Percentile(t *testing.T) {
	// Eleven samples: index floor(10*0.70)=7 of the sorted list.
	reader := &fakeFeeReader{samples: samplesOf(90, 10, 30, 50, 70, 20, 40, 60, 80, 0, 100)}
	e := NewEstimator(reader, zaptest.NewLogger(t), 0, 1_000_000)

	assert.Equal(t, uint64(70), e.PriorityFee(context.Background(), nil))
}

func TestPriorityFee_ClampsToBounds(t *testing.T) {
	reader := &fakeFeeReader{samples: samplesOf(5, 5, 5, 5)}
	e := NewEstimator(reader, zaptest.NewLogger(t), 100, 1_000)
	assert.Equal(t, uint64(100), e.PriorityFee(context.Background(), nil))

	reader.samples = samplesOf(50_000, 60_000, 70_000, 80_000)
	assert.Equal(t, uint64(1_000), e.PriorityFee(context.Background(), nil))
}

func TestPriorityFee_DegradesToMinimum(t *testing.T) {
	e := NewEstimator(&fakeFeeReader{err: errors.New("rpc down")}, zaptest.NewLogger(t), 777, 10_000)
	assert.Equal(t, uint64(777), e.PriorityFee(context.Background(), nil))

	e = NewEstimator(&fakeFeeReader{}, zaptest.NewLogger(t), 777, 10_000)
	assert.Equal(t, uint64(777), e.PriorityFee(context.Background(), nil),
		"an empty sample set falls back to the minimum")
}

func TestNewEstimator_SwappedBounds(t *testing.T) {
	e := NewEstimator(&fakeFeeReader{samples: samplesOf(500)}, zaptest.NewLogger(t), 1_000, 10)
	// Max below min collapses to min.
	assert.Equal(t, uint64(1_000), e.PriorityFee(context.Background(), nil))
}

func TestComputeUnitLimit(t *testing.T) {
	assert.Equal(t, uint32(DefaultComputeUnitLimit), ComputeUnitLimit(0))
	assert.Equal(t, uint32(DefaultComputeUnitLimit), ComputeUnitLimit(-1))
	assert.Equal(t, uint32(250_000), ComputeUnitLimit(1))
	assert.Equal(t, uint32(310_000), ComputeUnitLimit(2))
	assert.Equal(t, uint32(MaxComputeUnitLimit), ComputeUnitLimit(1_000),
		"the network ceiling caps the estimate")
}
