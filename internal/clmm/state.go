// internal/clmm/state.go
package clmm

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// PoolState is the decoded on-chain state of a concentrated-liquidity pool,
// restricted to the fields swap quoting and execution depend on.
type PoolState struct {
	Address      solana.PublicKey
	AmmConfig    solana.PublicKey
	BaseMint     solana.PublicKey
	QuoteMint    solana.PublicKey
	BaseVault    solana.PublicKey
	QuoteVault   solana.PublicKey
	Observation  solana.PublicKey
	BaseDecimals uint8
	QuoteDecimal uint8
	TickSpacing  uint16
	Liquidity    uint128.Uint128
	SqrtPriceX64 uint128.Uint128
	TickCurrent  int32
	Status       uint8
}

// SwapEnabled reports whether the pool's status flags permit swapping.
// Bit 4 set disables swap.
func (p *PoolState) SwapEnabled() bool {
	return (p.Status>>4)&1 == 0
}

// OrientDirection maps a token-relative trade direction onto the pool's
// base/quote axis, where sell means base-token input. The token may sit on
// either side of the pool.
func OrientDirection(baseMint, tokenMint solana.PublicKey, dir types.Direction) types.Direction {
	tokenIsBase := baseMint.Equals(tokenMint)
	inputIsToken := dir == types.DirectionSell
	if inputIsToken == tokenIsBase {
		return types.DirectionSell
	}
	return types.DirectionBuy
}

// DecodePoolState parses a raw pool account buffer at fixed little-endian
// offsets. The buffer must be exactly PoolAccountSize bytes. Pools that are
// inactive or empty are rejected here: no later computation is valid on them.
func DecodePoolState(address solana.PublicKey, data []byte) (*PoolState, error) {
	if len(data) != PoolAccountSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadAccountSize, len(data), PoolAccountSize)
	}

	p := &PoolState{
		Address:      address,
		AmmConfig:    solana.PublicKeyFromBytes(data[offsetAmmConfig : offsetAmmConfig+32]),
		BaseMint:     solana.PublicKeyFromBytes(data[offsetBaseMint : offsetBaseMint+32]),
		QuoteMint:    solana.PublicKeyFromBytes(data[offsetQuoteMint : offsetQuoteMint+32]),
		BaseVault:    solana.PublicKeyFromBytes(data[offsetBaseVault : offsetBaseVault+32]),
		QuoteVault:   solana.PublicKeyFromBytes(data[offsetQuoteVault : offsetQuoteVault+32]),
		Observation:  solana.PublicKeyFromBytes(data[offsetObservation : offsetObservation+32]),
		BaseDecimals: data[offsetMintDecimals],
		QuoteDecimal: data[offsetMintDecimals+1],
		TickSpacing:  binary.LittleEndian.Uint16(data[offsetTickSpacing : offsetTickSpacing+2]),
		Liquidity:    uint128.FromBytes(data[offsetLiquidity : offsetLiquidity+16]),
		SqrtPriceX64: uint128.FromBytes(data[offsetSqrtPrice : offsetSqrtPrice+16]),
		TickCurrent:  int32(binary.LittleEndian.Uint32(data[offsetTickCurrent : offsetTickCurrent+4])),
		Status:       data[offsetStatus],
	}

	if !p.SwapEnabled() {
		return nil, fmt.Errorf("%w: status 0x%02x", ErrPoolInactive, p.Status)
	}
	if p.Liquidity.IsZero() {
		return nil, ErrPoolEmpty
	}
	return p, nil
}
