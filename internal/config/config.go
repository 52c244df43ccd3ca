// internal/config/config.go
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList []string `mapstructure:"rpc_list"`
	Network string   `mapstructure:"network"`

	// PrivateKey is the base58-encoded signer key. Prefer the
	// SWAP_PRIVATE_KEY environment variable over the config file.
	PrivateKey string `mapstructure:"private_key"`

	AggregatorURL    string `mapstructure:"aggregator_url"`
	AggregatorAPIKey string `mapstructure:"aggregator_api_key"`

	RelayURL     string `mapstructure:"relay_url"`
	RelayEnabled bool   `mapstructure:"relay_enabled"`
	TipLamports  uint64 `mapstructure:"tip_lamports"`

	SlippageBps uint16 `mapstructure:"slippage_bps"`

	PriorityFeeMin uint64 `mapstructure:"priority_fee_min"`
	PriorityFeeMax uint64 `mapstructure:"priority_fee_max"`

	// Phishing-guard policy.
	FeeToleranceLamports uint64 `mapstructure:"fee_tolerance_lamports"`
	ExtraSlippageBps     uint16 `mapstructure:"extra_slippage_bps"`

	// NativeReserveLamports is withheld from buys for fees and tips.
	NativeReserveLamports uint64 `mapstructure:"native_reserve_lamports"`

	Workers int `mapstructure:"workers"`
	Retries int `mapstructure:"retries"`

	DryRun        bool `mapstructure:"dry_run"`
	DryRunSucceed bool `mapstructure:"dry_run_succeed"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
}

const (
	DefaultNetwork        = "mainnet"
	DefaultSlippageBps    = 100
	DefaultPriorityFeeMin = 1_000
	DefaultPriorityFeeMax = 2_000_000
	DefaultTipLamports    = 1_000_000
	DefaultFeeTolerance   = 15_000_000
	DefaultExtraSlippage  = 100
	DefaultNativeReserve  = 10_000_000
	DefaultWorkers        = 4
	DefaultRetries        = 3
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"network":                 DefaultNetwork,
		"slippage_bps":            DefaultSlippageBps,
		"priority_fee_min":        DefaultPriorityFeeMin,
		"priority_fee_max":        DefaultPriorityFeeMax,
		"tip_lamports":            DefaultTipLamports,
		"fee_tolerance_lamports":  DefaultFeeTolerance,
		"extra_slippage_bps":      DefaultExtraSlippage,
		"native_reserve_lamports": DefaultNativeReserve,
		"workers":                 DefaultWorkers,
		"retries":                 DefaultRetries,
		"dry_run_succeed":         true,
		"log_file":                "swap-engine.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentOverrides(&cfg)

	return &cfg, validateConfig(&cfg)
}

// loadEnvironmentOverrides applies the secrets that must not live in a
// config file.
func loadEnvironmentOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("SWAP")
	v.AutomaticEnv()

	if key := v.GetString("PRIVATE_KEY"); key != "" {
		cfg.PrivateKey = key
	}
	if key := v.GetString("AGGREGATOR_API_KEY"); key != "" {
		cfg.AggregatorAPIKey = key
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.PrivateKey == "" {
		return errors.New("missing private key (set SWAP_PRIVATE_KEY or private_key)")
	}
	if cfg.Network == "" {
		return errors.New("missing network id")
	}
	if cfg.AggregatorURL != "" {
		if err := validateURLWithCache(cfg.AggregatorURL, "https"); err != nil {
			return errors.New("aggregator URL must use HTTPS")
		}
	}
	if cfg.RelayEnabled {
		if cfg.RelayURL == "" {
			return errors.New("relay_enabled requires relay_url")
		}
		if err := validateURLWithCache(cfg.RelayURL, "http"); err != nil {
			return errors.New("invalid relay URL protocol")
		}
		if cfg.TipLamports == 0 {
			return errors.New("relay_enabled requires a non-zero tip_lamports")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.SlippageBps >= 10_000 {
		return errors.New("slippage_bps must be below 10000")
	}
	if cfg.PriorityFeeMax < cfg.PriorityFeeMin {
		return errors.New("priority_fee_max below priority_fee_min")
	}
	if cfg.Workers < 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}
