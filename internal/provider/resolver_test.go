// internal/provider/resolver_test.go
package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeProvider struct {
	name      string
	available bool
	built     *BuiltSwap
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) IsAvailable(context.Context, solana.PublicKey, string) bool {
	return f.available
}

func (f *fakeProvider) BuildSwapTransaction(context.Context, BuildParams) (*BuiltSwap, error) {
	if f.built == nil {
		return nil, errors.New("not buildable")
	}
	return f.built, nil
}

func testToken() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
}

func TestResolve_SkipsUnavailable(t *testing.T) {
	a := &fakeProvider{name: "a", available: false}
	b := &fakeProvider{name: "b", available: true}
	r := NewResolver(zaptest.NewLogger(t), a, b)

	got, err := r.Resolve(context.Background(), testToken(), "mainnet", "")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name())
}

func TestResolve_PreferredWinsOverOrder(t *testing.T) {
	first := &fakeProvider{name: "first", available: true}
	second := &fakeProvider{name: "second", available: true}
	r := NewResolver(zaptest.NewLogger(t), first, second)

	got, err := r.Resolve(context.Background(), testToken(), "mainnet", "second")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name())
}

func TestResolve_UnavailablePreferredFallsBack(t *testing.T) {
	first := &fakeProvider{name: "first", available: true}
	second := &fakeProvider{name: "second", available: false}
	r := NewResolver(zaptest.NewLogger(t), first, second)

	got, err := r.Resolve(context.Background(), testToken(), "mainnet", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name())
}

func TestResolve_UnknownPreferredFallsBack(t *testing.T) {
	only := &fakeProvider{name: "only", available: true}
	r := NewResolver(zaptest.NewLogger(t), only)

	got, err := r.Resolve(context.Background(), testToken(), "mainnet", "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "only", got.Name())
}

func TestResolve_NoneAvailableNamesToken(t *testing.T) {
	r := NewResolver(zaptest.NewLogger(t),
		&fakeProvider{name: "a"},
		&fakeProvider{name: "b"})

	_, err := r.Resolve(context.Background(), testToken(), "mainnet", "")
	var noProv *NoProviderError
	require.ErrorAs(t, err, &noProv)
	assert.Equal(t, testToken().String(), noProv.TokenMint)
	assert.Contains(t, err.Error(), testToken().String())
}

func TestAggregatorProvider_NetworkGate(t *testing.T) {
	p := NewAggregatorProvider(nil, nil, "mainnet", zaptest.NewLogger(t))
	assert.False(t, p.IsAvailable(context.Background(), testToken(), "mainnet"),
		"an unconfigured client is never available")
}
