// internal/clmm/math.go
package clmm

import (
	"math/big"

	cosmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// priceDecimalPrecision is the minimum number of significant digits carried
// through price arithmetic. Division at lower precision shows measurable bias
// at extreme tick ranges.
const priceDecimalPrecision = 40

func init() {
	if decimal.DivisionPrecision < priceDecimalPrecision {
		decimal.DivisionPrecision = priceDecimalPrecision
	}
}

var (
	q64  = new(big.Int).Lsh(big.NewInt(1), 64)
	q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	decQ128 = decimal.NewFromBigInt(q128, 0)
)

// SqrtPriceToPrice squares a Q64.64 square-root price into the linear atomic
// price ratio (quote units per base unit). The square is computed exactly on
// big integers; only the final division runs at decimal precision.
func SqrtPriceToPrice(sqrtPriceX64 uint128.Uint128) decimal.Decimal {
	sq := new(big.Int).Mul(sqrtPriceX64.Big(), sqrtPriceX64.Big())
	return decimal.NewFromBigInt(sq, 0).Div(decQ128)
}

// MinimumAmountOut computes floor(amountIn * price * (1 - slippageBps/10000)).
// A slippage of 10000 bps or more yields zero.
func MinimumAmountOut(amountIn cosmath.Int, price decimal.Decimal, slippageBps uint16) cosmath.Int {
	if amountIn.IsNil() || !amountIn.IsPositive() || !price.IsPositive() {
		return cosmath.ZeroInt()
	}
	if slippageBps >= types.BasisPointDenominator {
		return cosmath.ZeroInt()
	}
	out := price.Mul(decimal.NewFromBigInt(amountIn.BigInt(), 0))
	if slippageBps > 0 {
		factor := decimal.NewFromInt(int64(types.BasisPointDenominator - slippageBps)).
			Div(decimal.NewFromInt(types.BasisPointDenominator))
		out = out.Mul(factor)
	}
	return cosmath.NewIntFromBigInt(out.Floor().BigInt())
}

// AmountOutFromState computes the exact output of a constant-liquidity swap
// within a single tick range: the post-swap square-root price is solved from
// the input amount, and the output follows from the price delta and the
// liquidity. Direction sell spends the base token (price moves down), buy
// spends the quote/native asset (price moves up).
//
// Zero is returned when liquidity, price, or the input amount is zero, and
// whenever solving the new price would move it non-monotonically.
func AmountOutFromState(
	sqrtPriceX64 uint128.Uint128,
	liquidity uint128.Uint128,
	amountIn cosmath.Int,
	direction types.Direction,
) cosmath.Int {
	if liquidity.IsZero() || sqrtPriceX64.IsZero() {
		return cosmath.ZeroInt()
	}
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return cosmath.ZeroInt()
	}

	l := liquidity.Big()
	s := sqrtPriceX64.Big()
	a := amountIn.BigInt()

	switch direction {
	case types.DirectionSell:
		// base in: sqrt' = L*s*Q / (L*Q + a*s), price decreases.
		num := new(big.Int).Mul(l, s)
		num.Mul(num, q64)
		den := new(big.Int).Mul(l, q64)
		den.Add(den, new(big.Int).Mul(a, s))
		next := num.Div(num, den)
		if next.Sign() <= 0 || next.Cmp(s) >= 0 {
			return cosmath.ZeroInt()
		}
		// quote out = L*(s - s')/Q
		out := new(big.Int).Sub(s, next)
		out.Mul(out, l)
		out.Div(out, q64)
		return cosmath.NewIntFromBigInt(out)

	case types.DirectionBuy:
		// quote in: sqrt' = s + a*Q/L, price increases.
		delta := new(big.Int).Mul(a, q64)
		delta.Div(delta, l)
		next := new(big.Int).Add(s, delta)
		if next.Cmp(s) <= 0 {
			return cosmath.ZeroInt()
		}
		// base out = L*(s' - s)*Q / (s*s')
		out := new(big.Int).Sub(next, s)
		out.Mul(out, l)
		out.Mul(out, q64)
		den := new(big.Int).Mul(s, next)
		out.Div(out, den)
		return cosmath.NewIntFromBigInt(out)

	default:
		return cosmath.ZeroInt()
	}
}

// PriceImpactPct is the percentage difference between the trade's effective
// price and the pool's pre-trade spot price, caused by the trade's own size.
func PriceImpactPct(spotPrice decimal.Decimal, amountIn, amountOut cosmath.Int, direction types.Direction) decimal.Decimal {
	if !spotPrice.IsPositive() || !amountIn.IsPositive() || !amountOut.IsPositive() {
		return decimal.Zero
	}
	in := decimal.NewFromBigInt(amountIn.BigInt(), 0)
	out := decimal.NewFromBigInt(amountOut.BigInt(), 0)

	// Effective price expressed as quote units per base unit.
	var effective decimal.Decimal
	if direction == types.DirectionBuy {
		effective = in.Div(out)
	} else {
		effective = out.Div(in)
	}
	return effective.Sub(spotPrice).Abs().Div(spotPrice).Mul(decimal.NewFromInt(100))
}
