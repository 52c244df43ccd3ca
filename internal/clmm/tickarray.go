// internal/clmm/tickarray.go
package clmm

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// defaultSwapTickArrays is how many consecutive tick arrays a swap is assumed
// to cross when no explicit end tick is known.
const defaultSwapTickArrays = 3

// TickArrayStartIndex returns the start index of the tick array containing
// tick, flooring toward negative infinity.
func TickArrayStartIndex(tick int32, tickSpacing uint16) int32 {
	span := int32(tickSpacing) * TickArraySize
	start := tick / span
	if tick < 0 && tick%span != 0 {
		start--
	}
	return start * span
}

// DeriveTickArrayAddress derives the deterministic address of the tick-array
// account at startIndex, seeded by the pool identity and the big-endian
// signed start index.
func DeriveTickArrayAddress(pool solana.PublicKey, startIndex int32) (solana.PublicKey, error) {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(startIndex))
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(tickArraySeed), pool.Bytes(), idx[:]},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive tick array address for start %d: %w", startIndex, err)
	}
	return addr, nil
}

// SwapTickArrays returns the ordered tick-array addresses a swap starting at
// currentTick will touch, walking in the direction prices move: down for a
// sell of the base token, up for a buy. By default three consecutive arrays
// are returned; when endTick is supplied and spans more than three arrays,
// the full ordered list covering that range is returned. At least one array
// is always returned.
func SwapTickArrays(
	pool solana.PublicKey,
	currentTick int32,
	tickSpacing uint16,
	direction types.Direction,
	endTick *int32,
) ([]solana.PublicKey, error) {
	span := int32(tickSpacing) * TickArraySize
	start := TickArrayStartIndex(currentTick, tickSpacing)

	step := span
	if direction == types.DirectionSell {
		step = -span
	}

	count := defaultSwapTickArrays
	if endTick != nil {
		endStart := TickArrayStartIndex(*endTick, tickSpacing)
		diff := endStart - start
		if step < 0 {
			diff = -diff
		}
		if diff > 0 {
			if n := int(diff/span) + 1; n > count {
				count = n
			}
		}
	}

	addrs := make([]solana.PublicKey, 0, count)
	for i := 0; i < count; i++ {
		idx := start + int32(i)*step
		addr, err := DeriveTickArrayAddress(pool, idx)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
