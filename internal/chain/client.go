// internal/chain/client.go
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client is a thin adapter over the solana-go RPC client exposing exactly the
// capability set the swap engine consumes.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

var (
	ErrAccountNotFound = errors.New("account not found")
)

// IsAccountNotFoundError reports whether err describes a missing account.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// NewClient creates a new client for the given RPC endpoint.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("chain-client"),
	}
}

// GetAccountData fetches the raw bytes of one account. A missing account is
// reported as ErrAccountNotFound rather than a nil slice.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if IsAccountNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
		}
		c.logger.Debug("GetAccountInfo error", zap.String("pubkey", pubkey.String()), zap.Error(err))
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return res.Value.Data.GetBinary(), nil
}

// GetMultipleAccountData fetches raw bytes for several accounts in one
// request. Entries for missing accounts are nil.
func (c *Client) GetMultipleAccountData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}
	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error", zap.Error(err))
		return nil, err
	}
	data := make([][]byte, len(pubkeys))
	for i, info := range res.Value {
		if info != nil {
			data[i] = info.Data.GetBinary()
		}
	}
	return data, nil
}

// GetProgramAccounts queries accounts owned by programID filtered by exact
// data size and a set of byte-offset matches.
func (c *Client) GetProgramAccounts(
	ctx context.Context,
	programID solana.PublicKey,
	dataSize uint64,
	memcmp map[uint64][]byte,
) ([]ProgramAccount, error) {
	opts := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{DataSize: dataSize},
		},
	}
	for offset, bytes := range memcmp {
		opts.Filters = append(opts.Filters, rpc.RPCFilter{
			Memcmp: &rpc.RPCFilterMemcmp{Offset: offset, Bytes: bytes},
		})
	}

	res, err := c.rpc.GetProgramAccountsWithOpts(ctx, programID, opts)
	if err != nil {
		c.logger.Debug("GetProgramAccounts error", zap.String("program", programID.String()), zap.Error(err))
		return nil, err
	}
	out := make([]ProgramAccount, 0, len(res))
	for _, acc := range res {
		if acc == nil || acc.Account == nil {
			continue
		}
		out = append(out, ProgramAccount{
			Pubkey: acc.Pubkey,
			Data:   acc.Account.Data.GetBinary(),
		})
	}
	return out, nil
}

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Debug("GetBalance error", zap.String("pubkey", pubkey.String()), zap.Error(err))
		return 0, err
	}
	return res.Value, nil
}

// GetTokenBalance returns the atomic token amount held by a token account.
// A missing account reads as zero: the ATA simply has not been created yet.
func (c *Client) GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return 0, nil
		}
		c.logger.Debug("GetTokenAccountBalance error", zap.String("account", account.String()), zap.Error(err))
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, nil
	}
	var amount uint64
	if _, err := fmt.Sscanf(res.Value.Amount, "%d", &amount); err != nil {
		return 0, fmt.Errorf("malformed token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

// LatestBlockhash fetches a recent blockhash together with its expiry height.
func (c *Client) LatestBlockhash(ctx context.Context) (BlockhashContext, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return BlockhashContext{}, err
	}
	return BlockhashContext{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// RecentPrioritizationFees returns recent per-slot fee samples for the given
// writable accounts.
func (c *Client) RecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]FeeSample, error) {
	res, err := c.rpc.GetRecentPrioritizationFees(ctx, accounts)
	if err != nil {
		c.logger.Debug("GetRecentPrioritizationFees error", zap.Error(err))
		return nil, err
	}
	out := make([]FeeSample, 0, len(res))
	for _, s := range res {
		out = append(out, FeeSample{Slot: s.Slot, PrioritizationFee: s.PrioritizationFee})
	}
	return out, nil
}

// Simulate runs a signed transaction through simulation, requesting the
// post-state of the given accounts in the response.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction, accounts []solana.PublicKey) (*SimulationResult, error) {
	opts := &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentConfirmed,
	}
	if len(accounts) > 0 {
		opts.Accounts = &rpc.SimulateTransactionAccountsOpts{
			Encoding:  solana.EncodingBase64,
			Addresses: accounts,
		}
	}
	res, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, errors.New("empty simulation response")
	}

	sim := &SimulationResult{
		Err:  res.Value.Err,
		Logs: res.Value.Logs,
	}
	if res.Value.UnitsConsumed != nil {
		sim.UnitsConsumed = *res.Value.UnitsConsumed
	}
	if len(res.Value.Accounts) > 0 {
		sim.Accounts = make([]*AccountSnapshot, len(res.Value.Accounts))
		for i, acc := range res.Value.Accounts {
			if acc == nil {
				continue
			}
			sim.Accounts[i] = &AccountSnapshot{
				Lamports: acc.Lamports,
				Data:     acc.Data.GetBinary(),
			}
		}
	}
	return sim, nil
}

// Send submits a signed transaction. Preflight is skipped: the engine has
// already simulated and balance-checked the transaction itself.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// BlockHeight returns the current confirmed block height.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	return c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
}

// Confirm polls the signature status until the transaction confirms, the
// blockhash expires, or the context is cancelled. An on-chain execution error
// on a landed transaction is returned as-is for the caller to classify.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, bh BlockhashContext) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
			continue
		}
		if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		height, err := c.BlockHeight(ctx)
		if err != nil {
			continue
		}
		if height > bh.LastValidBlockHeight {
			return fmt.Errorf("transaction %s not confirmed: blockhash expired at height %d", sig, bh.LastValidBlockHeight)
		}
	}
}
