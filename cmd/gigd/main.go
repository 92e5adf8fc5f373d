package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"gigchain/config"
	"gigchain/core"
	"gigchain/core/genesis"
	"gigchain/integrations/indexer"
	"gigchain/integrations/webhooks"
	"gigchain/native/dispute"
	"gigchain/observability/logging"
	telemetry "gigchain/observability/otel"
	"gigchain/rpc"
	"gigchain/storage"
)

const (
	serviceName    = "gigd"
	genesisPathEnv = "GIG_GENESIS"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "export" {
		os.Exit(runExport(os.Args[2:], os.Stdout, os.Stderr))
	}

	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides GIG_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	cfg.ApplyEnv(os.LookupEnv)

	logger, logCloser := logging.SetupWithOptions(loggingOptions(cfg))
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *genesisFlag, logger); err != nil {
		logger.Error("gigd terminated", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("gigd stopped")
}

func run(ctx context.Context, cfg *config.Config, genesisFlag string, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	var spec *genesis.GenesisSpec
	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv); path != "" {
		if spec, err = genesis.LoadGenesisSpec(path); err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		if spec.NetworkName == "" {
			spec.NetworkName = cfg.NetworkName
		}
	} else {
		spec = &genesis.GenesisSpec{NetworkName: cfg.NetworkName}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	settings, err := settingsFromConfig(cfg, logger)
	if err != nil {
		db.Close()
		return err
	}
	node, err := core.NewNode(db, settings, spec)
	if err != nil {
		db.Close()
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()

	server, err := rpc.NewServer(node, rpc.ServerConfig{
		JWTSecret:      cfg.RPC.JWTSecret,
		JWTIssuer:      cfg.RPC.JWTIssuer,
		RateLimit:      cfg.RPC.RateLimit,
		Burst:          cfg.RPC.Burst,
		AllowedOrigins: append([]string{}, cfg.RPC.AllowedOrigins...),
		ReadTimeout:    time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("init rpc server: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Start(groupCtx, cfg.RPCAddress)
	})

	if strings.TrimSpace(cfg.Indexer.Driver) != "" {
		gdb, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
		if err != nil {
			return err
		}
		ix, err := indexer.New(gdb, node, logger)
		if err != nil {
			return err
		}
		group.Go(func() error { return ix.Run(groupCtx) })
		logger.Info("indexer enabled",
			slog.String("driver", cfg.Indexer.Driver),
			slog.String("dsn", logging.MaskDSN(cfg.Indexer.DSN)))
	}

	if strings.TrimSpace(cfg.Webhook.URL) != "" {
		opts := []webhooks.Option{webhooks.WithLogger(logger), webhooks.WithEventTypes(cfg.Webhook.EventTypes...)}
		if cfg.Webhook.MaxAttempts > 0 {
			opts = append(opts, webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, 0, 0))
		}
		dispatcher, err := webhooks.NewDispatcher(cfg.Webhook.URL, []byte(cfg.Webhook.Secret), opts...)
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		sub := node.Subscribe()
		group.Go(func() error { return dispatcher.Forward(groupCtx, sub) })
		logger.Info("webhook forwarding enabled", slog.String("url", logging.MaskDSN(cfg.Webhook.URL)))
	}

	logger.Info("gigd running",
		slog.String("network", spec.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("version", version))
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath prefers the CLI flag, then GIG_GENESIS, then the config
// file. An empty result starts the node with an empty genesis.
func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}

func settingsFromConfig(cfg *config.Config, logger *slog.Logger) (core.Settings, error) {
	arbiters, err := cfg.ArbiterAddresses()
	if err != nil {
		return core.Settings{}, err
	}
	settings := core.DefaultSettings()
	settings.ReputationReward = uint256.NewInt(cfg.Policy.ReputationReward)
	settings.ReputationTransferable = cfg.Policy.ReputationTransferable
	settings.DisputePolicy = dispute.Policy{
		MinFee:          uint256.NewInt(cfg.Policy.DisputeFee),
		MaxReasonLength: cfg.Policy.MaxReasonLength,
		FeePolicy:       dispute.FeePolicy(cfg.Policy.FeePolicy),
	}
	settings.Arbiters = arbiters
	settings.Paused = append([]string{}, cfg.Policy.Paused...)
	settings.Logger = logger
	return settings, nil
}

func loggingOptions(cfg *config.Config) logging.Options {
	opts := logging.Options{Service: serviceName, Env: cfg.Env, Level: cfg.Logging.Level}
	if path := strings.TrimSpace(cfg.Logging.File); path != "" {
		opts.File = &logging.FileOptions{
			Path:       path,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	return opts
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
	}
}
