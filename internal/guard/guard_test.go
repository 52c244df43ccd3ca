// internal/guard/guard_test.go
package guard

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/swap-engine/internal/chain"
	"github.com/rovshanmuradov/swap-engine/internal/types"
)

type fakeBalanceReader struct {
	lamports uint64
	token    uint64
}

func (f *fakeBalanceReader) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.lamports, nil
}

func (f *fakeBalanceReader) GetTokenBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.token, nil
}

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	return New(&fakeBalanceReader{}, zaptest.NewLogger(t), DefaultConfig())
}

func tokenSnapshot(amount uint64) *chain.AccountSnapshot {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[64:], amount)
	return &chain.AccountSnapshot{Data: data}
}

func TestCapturePre(t *testing.T) {
	g := New(&fakeBalanceReader{lamports: 5_000, token: 42}, zaptest.NewLogger(t), DefaultConfig())
	pre, err := g.CapturePre(context.Background(), solana.PublicKey{}, solana.PublicKey{})
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), pre.Lamports)
	assert.Equal(t, uint64(42), pre.TokenAmount)
}

func TestParsePost(t *testing.T) {
	post, err := ParsePost(&chain.AccountSnapshot{Lamports: 900}, tokenSnapshot(77))
	require.NoError(t, err)
	assert.Equal(t, uint64(900), post.Lamports)
	assert.Equal(t, uint64(77), post.TokenAmount)

	// A missing token account reads as zero: the ATA is not created yet.
	post, err = ParsePost(&chain.AccountSnapshot{Lamports: 900}, nil)
	require.NoError(t, err)
	assert.Zero(t, post.TokenAmount)

	_, err = ParsePost(nil, nil)
	assert.Error(t, err)
}

func TestCheck_BuyTokenDecreaseIsAlwaysFlagged(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 10_000_000_000, TokenAmount: 500}
	// SOL delta is perfectly normal; the token drain alone must trip.
	post := &Balances{Lamports: 9_900_000_000, TokenAmount: 499}

	err := g.Check(pre, post, CheckParams{Direction: types.DirectionBuy, AmountIn: 100_000_000})
	var phishing *PhishingError
	require.ErrorAs(t, err, &phishing)
	assert.Contains(t, phishing.Reason, "token balance")
}

func TestCheck_BuyOverspendFlagged(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 10_000_000_000}
	// Spent far more native than amountIn + tolerance.
	post := &Balances{Lamports: 9_000_000_000, TokenAmount: 1_000}

	err := g.Check(pre, post, CheckParams{Direction: types.DirectionBuy, AmountIn: 100_000_000})
	var phishing *PhishingError
	require.ErrorAs(t, err, &phishing)
}

func TestCheck_BuyWithinToleranceOK(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 10_000_000_000}
	post := &Balances{Lamports: 10_000_000_000 - 100_000_000 - 5_000_000, TokenAmount: 1_000}

	err := g.Check(pre, post, CheckParams{Direction: types.DirectionBuy, AmountIn: 100_000_000})
	assert.NoError(t, err)
}

func TestCheck_BuyMinExpectedOutFloor(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 10_000_000_000}
	post := &Balances{Lamports: 9_900_000_000, TokenAmount: 500}

	minOut := uint64(1_000)
	err := g.Check(pre, post, CheckParams{
		Direction:      types.DirectionBuy,
		AmountIn:       100_000_000,
		SlippageBps:    100,
		MinExpectedOut: &minOut,
	})
	var phishing *PhishingError
	require.ErrorAs(t, err, &phishing)
	assert.Contains(t, phishing.Reason, "below expected floor")

	// Receiving the floor amount passes: 1000 * (10000-100-100)/10000 = 980.
	post.TokenAmount = 980
	assert.NoError(t, g.Check(pre, post, CheckParams{
		Direction:      types.DirectionBuy,
		AmountIn:       100_000_000,
		SlippageBps:    100,
		MinExpectedOut: &minOut,
	}))
}

func TestCheck_SellNativeDecreaseBeyondToleranceIsAlwaysFlagged(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 10_000_000_000, TokenAmount: 1_000}
	// Token delta is plausible for the sale; the native drain alone must trip.
	post := &Balances{Lamports: 10_000_000_000 - 50_000_000, TokenAmount: 500}

	err := g.Check(pre, post, CheckParams{Direction: types.DirectionSell, AmountIn: 500})
	var phishing *PhishingError
	require.ErrorAs(t, err, &phishing)
	assert.Contains(t, phishing.Reason, "native balance")
}

func TestCheck_SellTokenOverdrainFlagged(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 1_000_000_000, TokenAmount: 10_000}
	// Sold 500 but 2000 left the account.
	post := &Balances{Lamports: 1_500_000_000, TokenAmount: 8_000}

	err := g.Check(pre, post, CheckParams{Direction: types.DirectionSell, AmountIn: 500})
	var phishing *PhishingError
	require.ErrorAs(t, err, &phishing)
}

func TestCheck_SellHappyPath(t *testing.T) {
	g := newTestGuard(t)
	pre := &Balances{Lamports: 1_000_000_000, TokenAmount: 10_000}
	post := &Balances{Lamports: 1_200_000_000, TokenAmount: 9_500}

	minOut := uint64(190_000_000)
	assert.NoError(t, g.Check(pre, post, CheckParams{
		Direction:      types.DirectionSell,
		AmountIn:       500,
		MinExpectedOut: &minOut,
	}))
}

func TestCheck_UnknownDirection(t *testing.T) {
	g := newTestGuard(t)
	err := g.Check(&Balances{}, &Balances{}, CheckParams{Direction: "sideways"})
	assert.Error(t, err)
	var phishing *PhishingError
	assert.False(t, errors.As(err, &phishing), "a malformed direction is not a phishing verdict")
}
