// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `{
		"rpc_list": ["https://api.mainnet-beta.solana.com"],
		"private_key": "key"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultNetwork, cfg.Network)
	assert.Equal(t, uint16(DefaultSlippageBps), cfg.SlippageBps)
	assert.Equal(t, uint64(DefaultPriorityFeeMin), cfg.PriorityFeeMin)
	assert.Equal(t, uint64(DefaultPriorityFeeMax), cfg.PriorityFeeMax)
	assert.Equal(t, uint64(DefaultFeeTolerance), cfg.FeeToleranceLamports)
	assert.Equal(t, uint64(DefaultNativeReserve), cfg.NativeReserveLamports)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.True(t, cfg.DryRunSucceed)
}

func TestLoadConfig_MissingRPCList(t *testing.T) {
	path := writeConfig(t, `{"private_key": "key"}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_list")
}

func TestLoadConfig_MissingPrivateKey(t *testing.T) {
	path := writeConfig(t, `{"rpc_list": ["https://node.example"]}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private key")
}

func TestLoadConfig_EnvOverridesPrivateKey(t *testing.T) {
	t.Setenv("SWAP_PRIVATE_KEY", "env-key")
	path := writeConfig(t, `{
		"rpc_list": ["https://node.example"],
		"private_key": "file-key"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.PrivateKey)
}

func TestLoadConfig_AggregatorRequiresHTTPS(t *testing.T) {
	path := writeConfig(t, `{
		"rpc_list": ["https://node.example"],
		"private_key": "key",
		"aggregator_url": "http://insecure.example"
	}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestLoadConfig_RelayRequiresURLAndTip(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{
		"rpc_list": ["https://node.example"],
		"private_key": "key",
		"relay_enabled": true
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay_url")

	_, err = LoadConfig(writeConfig(t, `{
		"rpc_list": ["https://node.example"],
		"private_key": "key",
		"relay_enabled": true,
		"relay_url": "https://relay.example",
		"tip_lamports": 0
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tip_lamports")
}

func TestLoadConfig_SlippageBounds(t *testing.T) {
	path := writeConfig(t, `{
		"rpc_list": ["https://node.example"],
		"private_key": "key",
		"slippage_bps": 10000
	}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage_bps")
}
