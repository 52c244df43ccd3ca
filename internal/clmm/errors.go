// internal/clmm/errors.go
package clmm

import "errors"

var (
	// ErrPoolNotFound means no pool account exists for the requested pair.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolInactive means the pool account exists but its status flags
	// disable swapping. Structurally invalid for every computation.
	ErrPoolInactive = errors.New("pool is inactive")

	// ErrPoolEmpty means the pool carries zero liquidity.
	ErrPoolEmpty = errors.New("pool has no liquidity")

	// ErrBadAccountSize means the account buffer is not a pool account.
	ErrBadAccountSize = errors.New("unexpected pool account size")
)
