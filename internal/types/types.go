// internal/types/types.go
package types

import (
	"fmt"

	"cosmossdk.io/math"
)

// Direction defines which way a swap moves value relative to the native asset.
type Direction string

const (
	// DirectionBuy spends the native asset (SOL) to receive the token.
	DirectionBuy Direction = "buy"
	// DirectionSell spends the token to receive the native asset.
	DirectionSell Direction = "sell"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// BasisPointDenominator is the bps scale: 1 bps = 0.01%.
const BasisPointDenominator = 10_000

// LamportsPerSOL is the atomic unit scale of the native asset.
const LamportsPerSOL = 1_000_000_000

// ParseAtomicAmount parses an atomic-unit amount given as an unsigned integer
// string. Negative or malformed input yields an error; amount math never goes
// through floating point.
func ParseAtomicAmount(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid atomic amount %q", s)
	}
	return v, nil
}

// ApplySlippageFloor scales amount down by slippageBps and floors the result.
// slippageBps at or above the full denominator yields zero.
func ApplySlippageFloor(amount math.Int, slippageBps uint16) math.Int {
	if slippageBps >= BasisPointDenominator {
		return math.ZeroInt()
	}
	if slippageBps == 0 {
		return amount
	}
	return amount.
		MulRaw(int64(BasisPointDenominator - slippageBps)).
		QuoRaw(BasisPointDenominator)
}
