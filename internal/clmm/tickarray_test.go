// internal/clmm/tickarray_test.go
package clmm

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/swap-engine/internal/types"
)

func TestTickArrayStartIndex(t *testing.T) {
	tests := []struct {
		name    string
		tick    int32
		spacing uint16
		want    int32
	}{
		{"zero tick", 0, 10, 0},
		{"inside first array", 599, 10, 0},
		{"exact boundary", 600, 10, 600},
		{"negative floors down", -1, 10, -600},
		{"negative boundary", -600, 10, -600},
		{"negative below boundary", -601, 10, -1200},
		{"wide spacing", 70_000, 60, 68_400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TickArrayStartIndex(tt.tick, tt.spacing))
		})
	}
}

func TestTickArrayStartIndex_Idempotent(t *testing.T) {
	for _, tick := range []int32{-443_636, -77_77, -1, 0, 1, 599, 600, 123_456, 443_636} {
		for _, spacing := range []uint16{1, 10, 60} {
			start := TickArrayStartIndex(tick, spacing)
			assert.Equal(t, start, TickArrayStartIndex(start, spacing),
				"tick %d spacing %d", tick, spacing)
		}
	}
}

func TestDeriveTickArrayAddress_Deterministic(t *testing.T) {
	pool := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	a, err := DeriveTickArrayAddress(pool, -600)
	require.NoError(t, err)
	b, err := DeriveTickArrayAddress(pool, -600)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveTickArrayAddress(pool, 600)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSwapTickArrays_DefaultCountAndOrder(t *testing.T) {
	pool := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	down, err := SwapTickArrays(pool, 100, 10, types.DirectionSell, nil)
	require.NoError(t, err)
	assert.Len(t, down, 3)

	up, err := SwapTickArrays(pool, 100, 10, types.DirectionBuy, nil)
	require.NoError(t, err)
	assert.Len(t, up, 3)

	// First array is shared, the walk direction differs after it.
	assert.Equal(t, down[0], up[0])
	assert.NotEqual(t, down[1], up[1])

	wantDown, err := DeriveTickArrayAddress(pool, -600)
	require.NoError(t, err)
	assert.Equal(t, wantDown, down[1])

	wantUp, err := DeriveTickArrayAddress(pool, 600)
	require.NoError(t, err)
	assert.Equal(t, wantUp, up[1])
}

func TestSwapTickArrays_EndTickExpandsSpan(t *testing.T) {
	pool := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	endTick := int32(3_000) // five arrays away at spacing 10
	addrs, err := SwapTickArrays(pool, 0, 10, types.DirectionBuy, &endTick)
	require.NoError(t, err)
	assert.Len(t, addrs, 6)

	// An end tick behind the walk keeps the default span.
	behind := int32(-3_000)
	addrs, err = SwapTickArrays(pool, 0, 10, types.DirectionBuy, &behind)
	require.NoError(t, err)
	assert.Len(t, addrs, 3)
}
