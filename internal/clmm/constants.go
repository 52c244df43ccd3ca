// internal/clmm/constants.go
package clmm

import (
	"math/big"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

// Program IDs
var (
	// ProgramID is the concentrated-liquidity AMM program.
	ProgramID = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")

	// WSOLMint is the wrapped native asset, the quote side of every pool the
	// engine discovers.
	WSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// Tick configuration of the target protocol.
const (
	// TickArraySize is the number of ticks stored per tick-array account.
	TickArraySize = 60

	MaxTick = 443636
	MinTick = -443636

	// tickArraySeed prefixes tick-array PDA derivations.
	tickArraySeed = "tick_array"
)

// PoolAccountSize is the exact byte length of a pool account. Buffers of any
// other size are rejected at decode time.
const PoolAccountSize = 1544

// Fixed byte offsets inside the pool account, used both by the decoder and by
// the discovery memcmp filters.
const (
	offsetAmmConfig    = 9   // 8 discriminator + 1 bump
	offsetBaseMint     = 73  // ammConfig + owner
	offsetQuoteMint    = 105 //
	offsetBaseVault    = 137
	offsetQuoteVault   = 169
	offsetObservation  = 201
	offsetMintDecimals = 233
	offsetTickSpacing  = 235
	offsetLiquidity    = 237
	offsetSqrtPrice    = 253
	offsetTickCurrent  = 269
	offsetStatus       = 389
)

// Price bounds in Q64.64.
var (
	MinSqrtPriceX64    = cosmath.NewIntFromBigInt(big.NewInt(4295048016))
	MaxSqrtPriceX64, _ = cosmath.NewIntFromString("79226673521066979257578248091")
)

// swapDiscriminator is the anchor instruction discriminator for swap.
var swapDiscriminator = []byte{43, 4, 237, 11, 26, 201, 30, 98}

// Auxiliary program IDs referenced by the swap instruction account list.
var (
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	MemoProgramID      = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)
