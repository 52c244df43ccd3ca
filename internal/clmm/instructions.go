// internal/clmm/instructions.go
package clmm

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// SwapInstruction is the borsh-encoded swap call against the AMM program.
type SwapInstruction struct {
	bin.BaseVariant
	Amount                  uint64
	OtherAmountThreshold    uint64
	SqrtPriceLimitX64       uint128.Uint128
	IsBaseInput             bool
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *SwapInstruction) ProgramID() solana.PublicKey {
	return ProgramID
}

func (inst *SwapInstruction) Accounts() []*solana.AccountMeta {
	return inst.AccountMetaSlice
}

// Data serializes the instruction payload: discriminator, amounts, price
// limit and the base-input flag, all little-endian borsh.
func (inst *SwapInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.Write(swapDiscriminator); err != nil {
		return nil, fmt.Errorf("write discriminator: %w", err)
	}
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(inst.Amount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode amount: %w", err)
	}
	if err := enc.WriteUint64(inst.OtherAmountThreshold, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode amount threshold: %w", err)
	}
	if err := enc.WriteUint64(inst.SqrtPriceLimitX64.Lo, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode sqrt price limit lo: %w", err)
	}
	if err := enc.WriteUint64(inst.SqrtPriceLimitX64.Hi, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode sqrt price limit hi: %w", err)
	}
	if err := enc.WriteBool(inst.IsBaseInput); err != nil {
		return nil, fmt.Errorf("encode is base input: %w", err)
	}
	return buf.Bytes(), nil
}

// SwapAccounts carries the user-side accounts for BuildSwapInstruction.
type SwapAccounts struct {
	Payer         solana.PublicKey
	UserInputATA  solana.PublicKey
	UserOutputATA solana.PublicKey
}

// BuildSwapInstruction assembles the swap instruction for the given pool
// state and direction. Tick arrays the swap will cross are appended as
// remaining accounts in crossing order.
func BuildSwapInstruction(
	pool *PoolState,
	accounts SwapAccounts,
	amountIn uint64,
	minAmountOut uint64,
	direction types.Direction,
) (solana.Instruction, int, error) {
	// Direction sell spends the base token; buy spends the quote side.
	isBaseInput := direction == types.DirectionSell

	inputVault, outputVault := pool.BaseVault, pool.QuoteVault
	inputMint, outputMint := pool.BaseMint, pool.QuoteMint
	if !isBaseInput {
		inputVault, outputVault = pool.QuoteVault, pool.BaseVault
		inputMint, outputMint = pool.QuoteMint, pool.BaseMint
	}

	tickArrays, err := SwapTickArrays(pool.Address, pool.TickCurrent, pool.TickSpacing, direction, nil)
	if err != nil {
		return nil, 0, err
	}

	inst := &SwapInstruction{
		Amount:               amountIn,
		OtherAmountThreshold: minAmountOut,
		SqrtPriceLimitX64:    uint128.Zero,
		IsBaseInput:          isBaseInput,
		AccountMetaSlice:     make(solana.AccountMetaSlice, 0, 13+len(tickArrays)),
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}

	inst.AccountMetaSlice = append(inst.AccountMetaSlice,
		solana.NewAccountMeta(accounts.Payer, false, true),
		solana.NewAccountMeta(pool.AmmConfig, false, false),
		solana.NewAccountMeta(pool.Address, true, false),
		solana.NewAccountMeta(accounts.UserInputATA, true, false),
		solana.NewAccountMeta(accounts.UserOutputATA, true, false),
		solana.NewAccountMeta(inputVault, true, false),
		solana.NewAccountMeta(outputVault, true, false),
		solana.NewAccountMeta(pool.Observation, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(Token2022ProgramID, false, false),
		solana.NewAccountMeta(MemoProgramID, false, false),
		solana.NewAccountMeta(inputMint, false, false),
		solana.NewAccountMeta(outputMint, false, false),
	)
	for _, ta := range tickArrays {
		inst.AccountMetaSlice = append(inst.AccountMetaSlice, solana.NewAccountMeta(ta, true, false))
	}

	return inst, len(tickArrays), nil
}
