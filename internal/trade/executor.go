// internal/trade/executor.go
package trade

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/aggregator"
	"github.com/rovshanmuradov/swap-engine/internal/chain"
	"github.com/rovshanmuradov/swap-engine/internal/guard"
	"github.com/rovshanmuradov/swap-engine/internal/provider"
	"github.com/rovshanmuradov/swap-engine/internal/retrypolicy"
	"github.com/rovshanmuradov/swap-engine/internal/types"
	"github.com/rovshanmuradov/swap-engine/internal/wallet"
)

// ChainClient is the slice of the chain connection the executor needs.
type ChainClient interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	Simulate(ctx context.Context, tx *solana.Transaction, accounts []solana.PublicKey) (*chain.SimulationResult, error)
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature, bh chain.BlockhashContext) error
}

// ProviderResolver picks the venue that builds the swap.
type ProviderResolver interface {
	Resolve(ctx context.Context, tokenMint solana.PublicKey, network, preferred string) (provider.SwapProvider, error)
}

// BundleRelay submits transaction bundles to a block-production relay.
type BundleRelay interface {
	TipAccounts(ctx context.Context) ([]string, error)
	SendBundle(ctx context.Context, signedTxsBase64 []string) (string, error)
}

// OrderSubmitter hands a signed aggregator-built transaction back to the
// aggregation service for submission.
type OrderSubmitter interface {
	Execute(ctx context.Context, req aggregator.ExecuteRequest) (*aggregator.ExecuteResponse, error)
}

// Config carries the executor's environment-level toggles.
type Config struct {
	Network            string
	DefaultSlippageBps uint16

	// NativeReserveLamports is held back on buys to cover fees and any tip.
	NativeReserveLamports uint64

	RelayEnabled bool
	TipLamports  uint64

	// DryRun skips real submission while still exercising build, simulate,
	// and the phishing check. DryRunSucceed picks the synthetic outcome.
	DryRun        bool
	DryRunSucceed bool

	Retry retrypolicy.Options
}

// Options describes one trade. For sells, SellPercent (a decimal string,
// "100" for the full balance) takes precedence over AmountIn; either way
// the amount is clamped to the live balance. A nil SlippageBps falls back to
// the configured default; an explicit zero requests a zero-slippage trade.
type Options struct {
	TokenMint   solana.PublicKey
	Direction   types.Direction
	AmountIn    string
	SellPercent string
	SlippageBps *uint16
	Preferred   string

	OnBeforeSend func()
	OnAfterSend  func(txid string)
	OnSuccess    func(txid string)
}

// Executor drives a trade end to end: amount resolution, build, sign,
// simulate, phishing check, submit, confirm. It is the single place that
// decides retry versus terminal and that converts raw slippage signals into
// the fixed user-facing message.
type Executor struct {
	chain    ChainClient
	resolver ProviderResolver
	wallet   *wallet.Wallet
	guard    *guard.Guard
	relay    BundleRelay
	orders   OrderSubmitter
	logger   *zap.Logger
	cfg      Config
	state    *StateMachine
}

func NewExecutor(
	chainClient ChainClient,
	resolver ProviderResolver,
	w *wallet.Wallet,
	g *guard.Guard,
	bundleRelay BundleRelay,
	orders OrderSubmitter,
	cfg Config,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		chain:    chainClient,
		resolver: resolver,
		wallet:   w,
		guard:    g,
		relay:    bundleRelay,
		orders:   orders,
		logger:   logger.Named("trade-executor"),
		cfg:      cfg,
		state:    NewStateMachine(logger),
	}
}

// State exposes the lifecycle machine for observers.
func (e *Executor) State() *StateMachine { return e.state }

// PrepareTrade resolves the trade amount and builds the unsigned
// transaction, for confirm-before-sign flows. No state transitions occur.
func (e *Executor) PrepareTrade(ctx context.Context, opts Options) (*provider.BuiltSwap, error) {
	amount, err := e.resolveAmount(ctx, opts)
	if err != nil {
		return nil, err
	}
	_, built, err := e.buildSwap(ctx, opts, amount)
	return built, err
}

// ExecuteTrade runs the full trade lifecycle and returns the confirmed
// transaction id.
func (e *Executor) ExecuteTrade(ctx context.Context, opts Options) (txid string, err error) {
	// A new trade discards the previous one's Success display early.
	if e.state.Phase() == PhaseSuccess {
		_ = e.state.Transition(PhaseIdle)
	}
	if err := e.state.Transition(PhaseAwaitingSignature); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			e.state.Fail()
		}
	}()

	amount, err := e.resolveAmount(ctx, opts)
	if err != nil {
		return "", err
	}

	prov, built, err := e.buildSwap(ctx, opts, amount)
	if err != nil {
		return "", err
	}
	if err := e.wallet.SignTransaction(built.Transaction); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	tokenATA, err := e.wallet.GetATA(opts.TokenMint)
	if err != nil {
		return "", err
	}
	if err := e.simulateAndGuard(ctx, built, opts, amount, tokenATA); err != nil {
		return "", err
	}

	if e.cfg.DryRun {
		return e.finishDryRun(opts)
	}

	if err := e.state.Transition(PhaseSending); err != nil {
		return "", err
	}
	if opts.OnBeforeSend != nil {
		opts.OnBeforeSend()
	}

	sig, err := e.submit(ctx, prov, built, opts, amount)
	if err != nil {
		return "", err
	}
	txid = sig.String()

	if err := e.state.Transition(PhaseConfirming); err != nil {
		return "", err
	}
	if opts.OnAfterSend != nil {
		opts.OnAfterSend(txid)
	}

	if err := e.chain.Confirm(ctx, sig, built.Blockhash); err != nil {
		if isSlippageMessage(err.Error()) {
			return "", &SlippageExceededError{Cause: err}
		}
		return "", &TransactionFailedError{Signature: txid, Reason: "confirmation failed", Cause: err}
	}

	if err := e.state.Transition(PhaseSuccess); err != nil {
		return "", err
	}
	e.logger.Info("trade confirmed",
		zap.String("txid", txid),
		zap.String("direction", string(opts.Direction)),
		zap.Uint64("amount_in", amount),
		zap.String("provider", built.Provider))
	if opts.OnSuccess != nil {
		opts.OnSuccess(txid)
	}
	return txid, nil
}

// resolveAmount turns the requested amount into a spendable atomic amount.
// Sells re-read the live token balance and clamp to it; buys keep a native
// reserve for fees and the relay tip.
func (e *Executor) resolveAmount(ctx context.Context, opts Options) (uint64, error) {
	if !opts.Direction.Valid() {
		return 0, fmt.Errorf("unknown trade direction %q", opts.Direction)
	}

	switch opts.Direction {
	case types.DirectionSell:
		ata, err := e.wallet.GetATA(opts.TokenMint)
		if err != nil {
			return 0, err
		}
		balance, err := e.chain.GetTokenBalance(ctx, ata)
		if err != nil {
			return 0, fmt.Errorf("read token balance: %w", err)
		}

		var amount uint64
		if opts.SellPercent != "" {
			pct, err := decimal.NewFromString(opts.SellPercent)
			if err != nil || pct.IsNegative() {
				return 0, fmt.Errorf("invalid sell percent %q", opts.SellPercent)
			}
			amount = uint64(decimal.NewFromUint64(balance).
				Mul(pct).
				Div(decimal.NewFromInt(100)).
				Floor().
				BigInt().Uint64())
		} else {
			v, err := types.ParseAtomicAmount(opts.AmountIn)
			if err != nil {
				return 0, err
			}
			if !v.IsUint64() {
				return 0, &InsufficientBalanceError{Asset: opts.TokenMint.String(), Available: balance}
			}
			amount = v.Uint64()
		}
		if amount > balance {
			amount = balance
		}
		if amount == 0 {
			return 0, &InsufficientBalanceError{Asset: opts.TokenMint.String(), Requested: amount, Available: balance}
		}
		return amount, nil

	default: // buy
		v, err := types.ParseAtomicAmount(opts.AmountIn)
		if err != nil {
			return 0, err
		}
		if !v.IsPositive() || !v.IsUint64() {
			return 0, fmt.Errorf("invalid buy amount %q", opts.AmountIn)
		}
		amount := v.Uint64()

		native, err := e.chain.GetBalance(ctx, e.wallet.PublicKey)
		if err != nil {
			return 0, fmt.Errorf("read native balance: %w", err)
		}
		reserve := e.cfg.NativeReserveLamports
		if e.cfg.RelayEnabled {
			reserve += e.cfg.TipLamports
		}
		// Compared this way round so a near-max amount cannot wrap past the
		// balance.
		if native < reserve || amount > native-reserve {
			requested := amount
			if requested > math.MaxUint64-reserve {
				requested = math.MaxUint64
			} else {
				requested += reserve
			}
			return 0, &InsufficientBalanceError{Asset: "SOL", Requested: requested, Available: native}
		}
		return amount, nil
	}
}

// slippageFor resolves the trade's slippage tolerance: an explicit value
// wins, including zero; only an unset value takes the configured default.
func (e *Executor) slippageFor(opts Options) uint16 {
	if opts.SlippageBps != nil {
		return *opts.SlippageBps
	}
	return e.cfg.DefaultSlippageBps
}

func (e *Executor) buildSwap(ctx context.Context, opts Options, amount uint64) (provider.SwapProvider, *provider.BuiltSwap, error) {
	slippage := e.slippageFor(opts)

	prov, err := e.resolver.Resolve(ctx, opts.TokenMint, e.cfg.Network, opts.Preferred)
	if err != nil {
		return nil, nil, err
	}

	built, err := prov.BuildSwapTransaction(ctx, provider.BuildParams{
		Owner:       e.wallet.PublicKey,
		TokenMint:   opts.TokenMint,
		Network:     e.cfg.Network,
		Direction:   opts.Direction,
		AmountIn:    amount,
		SlippageBps: slippage,
	})
	if err != nil {
		return nil, nil, err
	}
	return prov, built, nil
}

// simulateAndGuard simulates the signed transaction with the owner and
// token accounts attached, classifies failures, and runs the phishing check
// on the simulated post-balances. This runs strictly after signing and
// strictly before any submission.
func (e *Executor) simulateAndGuard(ctx context.Context, built *provider.BuiltSwap, opts Options, amount uint64, tokenATA solana.PublicKey) error {
	pre, err := e.guard.CapturePre(ctx, e.wallet.PublicKey, tokenATA)
	if err != nil {
		return err
	}

	sim, err := e.chain.Simulate(ctx, built.Transaction, []solana.PublicKey{e.wallet.PublicKey, tokenATA})
	if err != nil {
		return fmt.Errorf("simulate transaction: %w", err)
	}
	if sim.Failed() {
		return classifySimulation(sim.Err, sim.Logs)
	}

	var ownerSnap, tokenSnap *chain.AccountSnapshot
	if len(sim.Accounts) > 0 {
		ownerSnap = sim.Accounts[0]
	}
	if len(sim.Accounts) > 1 {
		tokenSnap = sim.Accounts[1]
	}
	post, err := guard.ParsePost(ownerSnap, tokenSnap)
	if err != nil {
		return err
	}

	params := guard.CheckParams{
		Direction:   opts.Direction,
		AmountIn:    amount,
		SlippageBps: e.slippageFor(opts),
	}
	if built.MinAmountOut > 0 {
		minOut := built.MinAmountOut
		params.MinExpectedOut = &minOut
	}
	return e.guard.Check(pre, post, params)
}

// submit dispatches the signed transaction along the configured path:
// aggregator-managed submission, relay bundle, or direct send with
// fresh-blockhash rebuilds on retryable failures.
func (e *Executor) submit(ctx context.Context, prov provider.SwapProvider, built *provider.BuiltSwap, opts Options, amount uint64) (solana.Signature, error) {
	switch {
	case built.RequestID != "":
		return e.submitViaAggregator(ctx, built)
	case e.cfg.RelayEnabled && e.relay != nil:
		return e.submitBundle(ctx, built)
	default:
		return e.submitDirect(ctx, prov, built, opts, amount)
	}
}

func (e *Executor) submitViaAggregator(ctx context.Context, built *provider.BuiltSwap) (solana.Signature, error) {
	if e.orders == nil {
		return solana.Signature{}, fmt.Errorf("aggregator order %s requires an order submitter", built.RequestID)
	}
	b64, err := txBase64(built.Transaction)
	if err != nil {
		return solana.Signature{}, err
	}
	res, err := e.orders.Execute(ctx, aggregator.ExecuteRequest{
		SignedTransaction: b64,
		RequestID:         built.RequestID,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("aggregator execute: %w", err)
	}
	if !strings.EqualFold(res.Status, "success") {
		cause := fmt.Errorf("aggregator status %s (code %d): %s", res.Status, res.Code, res.Error)
		if isSlippageMessage(res.Error) {
			return solana.Signature{}, &SlippageExceededError{Cause: cause}
		}
		return solana.Signature{}, &TransactionFailedError{Signature: res.Signature, Reason: "aggregator execution failed", Cause: cause}
	}
	sig, err := solana.SignatureFromBase58(res.Signature)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("malformed aggregator signature %q: %w", res.Signature, err)
	}
	return sig, nil
}

// submitBundle pairs the swap with a signed tip transfer and submits both
// atomically. The trade id is the swap's own first signature.
func (e *Executor) submitBundle(ctx context.Context, built *provider.BuiltSwap) (solana.Signature, error) {
	tipAccounts, err := e.relay.TipAccounts(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch tip accounts: %w", err)
	}
	tipDest, err := solana.PublicKeyFromBase58(tipAccounts[int(time.Now().UnixNano())%len(tipAccounts)])
	if err != nil {
		return solana.Signature{}, fmt.Errorf("malformed tip account: %w", err)
	}

	tipIx := system.NewTransferInstruction(e.cfg.TipLamports, e.wallet.PublicKey, tipDest).Build()
	tipTx, err := solana.NewTransaction(
		[]solana.Instruction{tipIx},
		built.Blockhash.Blockhash,
		solana.TransactionPayer(e.wallet.PublicKey),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("assemble tip transaction: %w", err)
	}
	if err := e.wallet.SignTransaction(tipTx); err != nil {
		return solana.Signature{}, fmt.Errorf("sign tip transaction: %w", err)
	}

	swapB64, err := txBase64(built.Transaction)
	if err != nil {
		return solana.Signature{}, err
	}
	tipB64, err := txBase64(tipTx)
	if err != nil {
		return solana.Signature{}, err
	}

	bundleID, err := e.relay.SendBundle(ctx, []string{swapB64, tipB64})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send bundle: %w", err)
	}
	e.logger.Debug("bundle submitted",
		zap.String("bundle_id", bundleID),
		zap.Uint64("tip_lamports", e.cfg.TipLamports))

	if len(built.Transaction.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("bundle %s: swap transaction carries no signature", bundleID)
	}
	return built.Transaction.Signatures[0], nil
}

// submitDirect sends the transaction itself. Retryable failures rebuild the
// swap with a fresh blockhash and priority fee before the next attempt;
// slippage failures convert to the fixed message without retrying.
func (e *Executor) submitDirect(ctx context.Context, prov provider.SwapProvider, built *provider.BuiltSwap, opts Options, amount uint64) (solana.Signature, error) {
	slippage := e.slippageFor(opts)

	rebuild := false
	retryOpts := e.cfg.Retry
	retryOpts.OnRetry = func(attempt int, err error) {
		e.logger.Warn("resending transaction",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if e.cfg.Retry.OnRetry != nil {
			e.cfg.Retry.OnRetry(attempt, err)
		}
	}

	sig, err := retrypolicy.Run(ctx, func() (solana.Signature, error) {
		if rebuild {
			fresh, err := prov.BuildSwapTransaction(ctx, provider.BuildParams{
				Owner:       e.wallet.PublicKey,
				TokenMint:   opts.TokenMint,
				Network:     e.cfg.Network,
				Direction:   opts.Direction,
				AmountIn:    amount,
				SlippageBps: slippage,
			})
			if err != nil {
				return solana.Signature{}, err
			}
			if err := e.wallet.SignTransaction(fresh.Transaction); err != nil {
				return solana.Signature{}, err
			}
			*built = *fresh
		}
		rebuild = true
		return e.chain.Send(ctx, built.Transaction)
	}, retryOpts)
	if err != nil {
		if isSlippageMessage(err.Error()) {
			return solana.Signature{}, &SlippageExceededError{Cause: err}
		}
		return solana.Signature{}, err
	}
	return sig, nil
}

// finishDryRun walks the remaining phases without broadcasting anything.
func (e *Executor) finishDryRun(opts Options) (string, error) {
	if !e.cfg.DryRunSucceed {
		return "", &TransactionFailedError{Reason: "dry run configured to fail"}
	}
	if err := e.state.Transition(PhaseSending); err != nil {
		return "", err
	}
	txid := "dry-run-" + uuid.NewString()
	if opts.OnBeforeSend != nil {
		opts.OnBeforeSend()
	}
	if err := e.state.Transition(PhaseConfirming); err != nil {
		return "", err
	}
	if opts.OnAfterSend != nil {
		opts.OnAfterSend(txid)
	}
	if err := e.state.Transition(PhaseSuccess); err != nil {
		return "", err
	}
	e.logger.Info("dry-run trade completed", zap.String("txid", txid))
	if opts.OnSuccess != nil {
		opts.OnSuccess(txid)
	}
	return txid, nil
}

func txBase64(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
