// internal/guard/guard.go
package guard

import (
	"context"
	"encoding/binary"
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
	"github.com/rovshanmuradov/swap-engine/internal/types"
)

// Token account layout: the u64 amount sits at a fixed offset.
const (
	tokenAmountOffset = 64
	tokenAmountSize   = 8
)

// Config holds the guard's tolerance policy. The values are policy
// parameters, not protocol constants; tune them per deployment.
type Config struct {
	// FeeToleranceLamports is the native-asset amount a trade may lose to
	// fees before being flagged.
	FeeToleranceLamports uint64
	// ExtraSlippageBps widens the acceptable band beyond the trade's own
	// slippage tolerance.
	ExtraSlippageBps uint16
}

// DefaultConfig returns the tolerances used when none are configured.
func DefaultConfig() Config {
	return Config{
		FeeToleranceLamports: 15_000_000, // 0.015 SOL
		ExtraSlippageBps:     100,
	}
}

// PhishingError reports an unexpected fund outflow detected between
// simulation and submission. Trades failing the check must never broadcast.
type PhishingError struct {
	Reason string
}

func (e *PhishingError) Error() string {
	return "phishing check failed: " + e.Reason
}

// Balances is a point-in-time capture of the native-asset lamports and the
// trade token's atomic amount.
type Balances struct {
	Lamports    uint64
	TokenAmount uint64
}

// BalanceReader is the slice of the chain connection the guard needs.
type BalanceReader interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Guard captures pre-trade balances and checks simulated post-balances for
// directional anomalies before a transaction is ever broadcast.
type Guard struct {
	client BalanceReader
	logger *zap.Logger
	cfg    Config
}

func New(client BalanceReader, logger *zap.Logger, cfg Config) *Guard {
	return &Guard{
		client: client,
		logger: logger.Named("phishing-guard"),
		cfg:    cfg,
	}
}

// CapturePre reads the owner's lamports and token-account amount before
// signing.
func (g *Guard) CapturePre(ctx context.Context, owner, tokenAccount solana.PublicKey) (*Balances, error) {
	lamports, err := g.client.GetBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("read pre-trade balance: %w", err)
	}
	tokenAmount, err := g.client.GetTokenBalance(ctx, tokenAccount)
	if err != nil {
		return nil, fmt.Errorf("read pre-trade token balance: %w", err)
	}
	return &Balances{Lamports: lamports, TokenAmount: tokenAmount}, nil
}

// ParsePost derives post-trade balances from the simulation snapshots of the
// owner account and the token account. A nil token snapshot reads as zero
// (the ATA does not exist yet).
func ParsePost(owner, token *chain.AccountSnapshot) (*Balances, error) {
	if owner == nil {
		return nil, fmt.Errorf("simulation returned no owner account state")
	}
	post := &Balances{Lamports: owner.Lamports}
	if token != nil && len(token.Data) >= tokenAmountOffset+tokenAmountSize {
		post.TokenAmount = binary.LittleEndian.Uint64(token.Data[tokenAmountOffset : tokenAmountOffset+tokenAmountSize])
	}
	return post, nil
}

// CheckParams describes one trade for the directional rules.
type CheckParams struct {
	Direction   types.Direction
	AmountIn    uint64
	SlippageBps uint16
	// MinExpectedOut, when set, enforces a floor on the received amount.
	MinExpectedOut *uint64
}

// Check applies the directional rules to the pre/post balance pair and
// returns a *PhishingError describing the first violation found.
func (g *Guard) Check(pre, post *Balances, p CheckParams) error {
	switch p.Direction {
	case types.DirectionBuy:
		return g.checkBuy(pre, post, p)
	case types.DirectionSell:
		return g.checkSell(pre, post, p)
	default:
		return fmt.Errorf("unknown trade direction %q", p.Direction)
	}
}

func (g *Guard) checkBuy(pre, post *Balances, p CheckParams) error {
	if post.Lamports < pre.Lamports {
		decrease := pre.Lamports - post.Lamports
		if decrease > p.AmountIn+g.cfg.FeeToleranceLamports {
			return &PhishingError{Reason: fmt.Sprintf(
				"native balance would drop by %d lamports, more than the %d spent plus %d fee tolerance",
				decrease, p.AmountIn, g.cfg.FeeToleranceLamports)}
		}
	}
	if post.TokenAmount < pre.TokenAmount {
		return &PhishingError{Reason: fmt.Sprintf(
			"token balance would drop from %d to %d on a buy",
			pre.TokenAmount, post.TokenAmount)}
	}
	if p.MinExpectedOut != nil {
		floor := scaleDown(*p.MinExpectedOut, p.SlippageBps, g.cfg.ExtraSlippageBps)
		got := post.TokenAmount - pre.TokenAmount
		if got < floor {
			return &PhishingError{Reason: fmt.Sprintf(
				"token increase %d below expected floor %d", got, floor)}
		}
	}
	return nil
}

func (g *Guard) checkSell(pre, post *Balances, p CheckParams) error {
	if post.Lamports < pre.Lamports {
		decrease := pre.Lamports - post.Lamports
		if decrease > g.cfg.FeeToleranceLamports {
			return &PhishingError{Reason: fmt.Sprintf(
				"native balance would drop by %d lamports on a sell, beyond the %d fee tolerance",
				decrease, g.cfg.FeeToleranceLamports)}
		}
	}
	if post.TokenAmount < pre.TokenAmount {
		decrease := pre.TokenAmount - post.TokenAmount
		allowed := p.AmountIn + scalePart(p.AmountIn, g.cfg.ExtraSlippageBps)
		if decrease > allowed {
			return &PhishingError{Reason: fmt.Sprintf(
				"token balance would drop by %d, more than the %d sold plus tolerance",
				decrease, allowed)}
		}
	}
	if p.MinExpectedOut != nil {
		floor := scaleDown(*p.MinExpectedOut, 0, g.cfg.ExtraSlippageBps)
		var got uint64
		if post.Lamports > pre.Lamports {
			got = post.Lamports - pre.Lamports
		}
		if got < floor {
			return &PhishingError{Reason: fmt.Sprintf(
				"native increase %d below expected floor %d", got, floor)}
		}
	}
	return nil
}

// scaleDown computes floor(v * (denominator - a - b) / denominator) without
// overflow or precision loss.
func scaleDown(v uint64, a, b uint16) uint64 {
	total := int64(a) + int64(b)
	if total >= types.BasisPointDenominator {
		return 0
	}
	return cosmath.NewIntFromUint64(v).
		MulRaw(types.BasisPointDenominator - total).
		QuoRaw(types.BasisPointDenominator).
		Uint64()
}

// scalePart computes floor(v * bps / denominator).
func scalePart(v uint64, bps uint16) uint64 {
	return cosmath.NewIntFromUint64(v).
		MulRaw(int64(bps)).
		QuoRaw(types.BasisPointDenominator).
		Uint64()
}
