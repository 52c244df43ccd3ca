// internal/chain/types.go
package chain

import (
	"github.com/gagliardetto/solana-go"
)

// BlockhashContext is a recent blockhash plus the last block height at which
// a transaction referencing it remains valid. Confirmation waits use the
// height as their implicit timeout boundary.
type BlockhashContext struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// AccountSnapshot is the post-simulation state of one account.
type AccountSnapshot struct {
	Lamports uint64
	Data     []byte
}

// SimulationResult carries the outcome of simulating a signed transaction.
// Accounts follows the order of the addresses passed to Simulate; entries for
// accounts the node did not return are nil.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	Accounts      []*AccountSnapshot
	UnitsConsumed uint64
}

// Failed reports whether on-chain execution of the simulated transaction
// errored.
func (r *SimulationResult) Failed() bool {
	return r != nil && r.Err != nil
}

// ProgramAccount is one account returned by a program-accounts query.
type ProgramAccount struct {
	Pubkey solana.PublicKey
	Data   []byte
}

// FeeSample is one recent per-slot prioritization fee observation.
type FeeSample struct {
	Slot              uint64
	PrioritizationFee uint64
}
