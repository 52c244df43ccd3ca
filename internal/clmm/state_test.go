// internal/clmm/state_test.go
package clmm

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/swap-engine/internal/types"
)

type poolBufOpts struct {
	status    uint8
	liquidity uint64
}

func buildPoolBuffer(t *testing.T, baseMint, quoteMint solana.PublicKey, opts poolBufOpts) []byte {
	t.Helper()
	data := make([]byte, PoolAccountSize)

	copy(data[offsetBaseMint:], baseMint.Bytes())
	copy(data[offsetQuoteMint:], quoteMint.Bytes())
	data[offsetMintDecimals] = 9
	data[offsetMintDecimals+1] = 6
	binary.LittleEndian.PutUint16(data[offsetTickSpacing:], 10)

	liq := uint128.From64(opts.liquidity)
	liq.PutBytes(data[offsetLiquidity : offsetLiquidity+16])
	sqrt := uint128.From64(1).Lsh(64)
	sqrt.PutBytes(data[offsetSqrtPrice : offsetSqrtPrice+16])

	tick := int32(-42)
	binary.LittleEndian.PutUint32(data[offsetTickCurrent:], uint32(tick))
	data[offsetStatus] = opts.status
	return data
}

func TestDecodePoolState(t *testing.T) {
	address := solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	quote := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	data := buildPoolBuffer(t, base, quote, poolBufOpts{liquidity: 5_000_000})
	state, err := DecodePoolState(address, data)
	require.NoError(t, err)

	assert.Equal(t, address, state.Address)
	assert.Equal(t, base, state.BaseMint)
	assert.Equal(t, quote, state.QuoteMint)
	assert.Equal(t, uint8(9), state.BaseDecimals)
	assert.Equal(t, uint8(6), state.QuoteDecimal)
	assert.Equal(t, uint16(10), state.TickSpacing)
	assert.Equal(t, uint64(5_000_000), state.Liquidity.Lo)
	assert.Equal(t, int32(-42), state.TickCurrent)
	assert.True(t, state.SwapEnabled())
}

func TestDecodePoolState_WrongSize(t *testing.T) {
	_, err := DecodePoolState(solana.PublicKey{}, make([]byte, 100))
	assert.ErrorIs(t, err, ErrBadAccountSize)
}

func TestDecodePoolState_SwapDisabled(t *testing.T) {
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	quote := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	data := buildPoolBuffer(t, base, quote, poolBufOpts{liquidity: 1, status: 1 << 4})
	_, err := DecodePoolState(solana.PublicKey{}, data)
	assert.ErrorIs(t, err, ErrPoolInactive)
}

func TestDecodePoolState_EmptyPool(t *testing.T) {
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	quote := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	data := buildPoolBuffer(t, base, quote, poolBufOpts{liquidity: 0})
	_, err := DecodePoolState(solana.PublicKey{}, data)
	assert.ErrorIs(t, err, ErrPoolEmpty)
}

func TestOrientDirection(t *testing.T) {
	base := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	token := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	// Token on the quote side: selling the token feeds the quote vault.
	assert.Equal(t, types.DirectionBuy, OrientDirection(base, token, types.DirectionSell))
	assert.Equal(t, types.DirectionSell, OrientDirection(base, token, types.DirectionBuy))

	// Token on the base side maps directly.
	assert.Equal(t, types.DirectionSell, OrientDirection(token, token, types.DirectionSell))
	assert.Equal(t, types.DirectionBuy, OrientDirection(token, token, types.DirectionBuy))
}
