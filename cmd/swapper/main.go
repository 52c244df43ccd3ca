// cmd/swapper/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-engine/internal/aggregator"
	"github.com/rovshanmuradov/swap-engine/internal/chain"
	"github.com/rovshanmuradov/swap-engine/internal/clmm"
	"github.com/rovshanmuradov/swap-engine/internal/config"
	"github.com/rovshanmuradov/swap-engine/internal/fees"
	"github.com/rovshanmuradov/swap-engine/internal/guard"
	"github.com/rovshanmuradov/swap-engine/internal/logger"
	"github.com/rovshanmuradov/swap-engine/internal/provider"
	"github.com/rovshanmuradov/swap-engine/internal/quote"
	"github.com/rovshanmuradov/swap-engine/internal/relay"
	"github.com/rovshanmuradov/swap-engine/internal/retrypolicy"
	"github.com/rovshanmuradov/swap-engine/internal/trade"
	"github.com/rovshanmuradov/swap-engine/internal/types"
	"github.com/rovshanmuradov/swap-engine/internal/wallet"
	"github.com/rovshanmuradov/swap-engine/internal/workers"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.json", "path to config file")
		tokenArg   = flag.String("token", "", "token mint to trade")
		dirArg     = flag.String("direction", "buy", "buy or sell")
		amountArg  = flag.String("amount", "", "input amount in atomic units")
		pctArg     = flag.String("sell-percent", "", "percent of token balance to sell")
		quoteOnly  = flag.Bool("quote", false, "print a quote without trading")
		preferred  = flag.String("provider", "", "preferred provider name")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      7,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, cfg, log, runArgs{
		token:     *tokenArg,
		direction: *dirArg,
		amount:    *amountArg,
		percent:   *pctArg,
		quoteOnly: *quoteOnly,
		preferred: *preferred,
	}); err != nil {
		log.Error("swapper failed", zap.String("detail", trade.FormatErrorChain(err, 4)))
		os.Exit(1)
	}
}

type runArgs struct {
	token     string
	direction string
	amount    string
	percent   string
	quoteOnly bool
	preferred string
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, args runArgs) error {
	tokenMint, err := solana.PublicKeyFromBase58(args.token)
	if err != nil {
		return fmt.Errorf("invalid token mint %q: %w", args.token, err)
	}
	direction := types.Direction(args.direction)
	if !direction.Valid() {
		return fmt.Errorf("direction must be buy or sell, got %q", args.direction)
	}

	w, err := wallet.New(cfg.PrivateKey)
	if err != nil {
		return err
	}
	log.Info("wallet loaded", zap.String("address", w.String()))

	chainClient := chain.NewClient(cfg.RPCList[0], log.Logger)
	discovery := clmm.NewDiscovery(chainClient, log.Logger)
	estimator := fees.NewEstimator(chainClient, log.Logger, cfg.PriorityFeeMin, cfg.PriorityFeeMax)

	var aggClient *aggregator.Client
	if cfg.AggregatorURL != "" || cfg.AggregatorAPIKey != "" {
		aggClient = aggregator.NewClient(cfg.AggregatorURL, cfg.AggregatorAPIKey)
	}

	ammProv := provider.NewAMMProvider(discovery, chainClient, estimator, w, cfg.Network, log.Logger)
	providers := []provider.SwapProvider{ammProv}
	if aggClient != nil {
		providers = append(providers,
			provider.NewAggregatorProvider(aggClient, chainClient, cfg.Network, log.Logger))
	}
	resolver := provider.NewResolver(log.Logger, providers...)

	pool := workers.NewPool(cfg.Workers, log.Logger)
	defer pool.Close()

	engine := quote.NewEngine(resolver, discovery, aggClient, pool, log.Logger)
	engine.OnSwitchSuggestion(func(s quote.SwitchSuggestion) {
		log.Info("better route available",
			zap.String("token", s.TokenMint.String()),
			zap.String("from", s.From),
			zap.String("to", s.To),
			zap.String("local_out", s.LocalOut.String()),
			zap.String("aggregator_out", s.AggregateOut.String()))
	})

	if args.quoteOnly {
		res, err := engine.GetSwapQuote(ctx, quote.Params{
			TokenMint:   tokenMint,
			Network:     cfg.Network,
			Direction:   direction,
			AmountIn:    args.amount,
			SlippageBps: cfg.SlippageBps,
		}, args.preferred)
		if err != nil {
			return err
		}
		log.Info("quote",
			zap.String("provider", res.Provider),
			zap.String("amount_out", res.AmountOut.String()),
			zap.String("min_amount_out", res.MinAmountOut.String()),
			zap.String("price_impact_pct", res.PriceImpactPct.String()))
		return nil
	}

	g := guard.New(chainClient, log.Logger, guard.Config{
		FeeToleranceLamports: cfg.FeeToleranceLamports,
		ExtraSlippageBps:     cfg.ExtraSlippageBps,
	})

	var bundleRelay trade.BundleRelay
	if cfg.RelayEnabled {
		bundleRelay = relay.NewClient(cfg.RelayURL)
	}
	var orders trade.OrderSubmitter
	if aggClient != nil {
		orders = aggClient
	}

	retryOpts := retrypolicy.DefaultOptions()
	retryOpts.MaxRetries = cfg.Retries

	executor := trade.NewExecutor(chainClient, resolver, w, g, bundleRelay, orders, trade.Config{
		Network:               cfg.Network,
		DefaultSlippageBps:    cfg.SlippageBps,
		NativeReserveLamports: cfg.NativeReserveLamports,
		RelayEnabled:          cfg.RelayEnabled,
		TipLamports:           cfg.TipLamports,
		DryRun:                cfg.DryRun,
		DryRunSucceed:         cfg.DryRunSucceed,
		Retry:                 retryOpts,
	}, log.Logger)

	opLog := log.WithOperation("execute-trade")
	txid, err := executor.ExecuteTrade(ctx, trade.Options{
		TokenMint:   tokenMint,
		Direction:   direction,
		AmountIn:    args.amount,
		SellPercent: args.percent,
		Preferred:   args.preferred,
		OnAfterSend: func(txid string) {
			opLog.Info("transaction submitted", zap.String("txid", txid))
		},
	})
	if err != nil {
		return err
	}
	opLog.Info("trade complete", zap.String("txid", txid))
	return nil
}
