// Command stampindexerd is the process boundary spec.md §6 describes as
// external to the core: it loads operational configuration, opens the
// persistent stores, wires the core packages through internal/orchestrator,
// and exposes the four subcommands spec.md §6 names. None of the
// consensus logic lives here — this file only sequences calls into
// internal/* and translates their errors into the exit codes spec.md §6
// fixes (0 success, 1 configuration error, 2 lock-acquisition failure, 3
// database integrity failure). Grounded on the teacher's cmd-less layout
// generalized with orbas1-Synnergy's cmd/synnergy/main.go cobra root
// command shape, the only pack repo with a CLI entrypoint to imitate.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/btcstamps/stampindexer/internal/balances"
	"github.com/btcstamps/stampindexer/internal/bitcoin"
	"github.com/btcstamps/stampindexer/internal/blobstore"
	"github.com/btcstamps/stampindexer/internal/config"
	"github.com/btcstamps/stampindexer/internal/metrics"
	"github.com/btcstamps/stampindexer/internal/oracle"
	"github.com/btcstamps/stampindexer/internal/orchestrator"
	"github.com/btcstamps/stampindexer/internal/upstream"
)

const (
	exitOK               = 0
	exitConfigError      = 1
	exitLockError        = 2
	exitConsistencyError = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	root := &cobra.Command{
		Use:   "stampindexerd",
		Short: "consensus indexer for the stamp protocol",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(serverCmd(&configPath))
	root.AddCommand(reparseCmd(&configPath))
	root.AddCommand(kickstartCmd(&configPath))
	root.AddCommand(debugConfigCmd(&configPath))

	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return exitOK
}

// exitCodeFor maps a returned error to spec.md §6's fixed exit codes.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *config.ConfigError:
		return exitConfigError
	case *balances.LockError:
		return exitLockError
	case *balances.ConsistencyError:
		return exitConsistencyError
	default:
		return exitConfigError
	}
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

// buildEngine wires every core package into a single orchestrator.Engine
// against the given config, the way spec.md §2's control flow requires:
// one persistent BalanceStore, one blob store, one logger, shared across
// every block the caller subsequently processes.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*orchestrator.Engine, *balances.Store, error) {
	store, err := balances.NewStore(filepath.Join(cfg.DataDir, "balances.db"), logger)
	if err != nil {
		return nil, nil, err
	}

	var blobs blobstore.Store
	if cfg.ArtifactDir == "" {
		blobs = blobstore.NullStore{}
	} else {
		fs, err := blobstore.NewFileStore(cfg.ArtifactDir, cfg.ArtifactBaseURL)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		blobs = fs
	}

	engine := orchestrator.NewEngine(store, blobs, logger)
	return engine, store, nil
}

func serverCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "run the live indexer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath)
		},
	}
}

func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger()
	defer logger.Sync()

	engine, store, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	core := bitcoin.NewRPCClient(cfg.BitcoinRPCURL, cfg.BitcoinRPCUser, cfg.BitcoinRPCPassword)
	metadata := upstream.NewClient(cfg.UpstreamMetadataURL, cfg.UpstreamRatePerSec, cfg.UpstreamBurst)

	var oracleClient *oracle.Client
	policy := oracle.ReportOnly
	if cfg.OracleURL != "" {
		oracleClient = oracle.NewClient(cfg.OracleURL)
		if cfg.StrictValidation {
			policy = oracle.Fatal
		}
	}

	follower := orchestrator.NewFollower(core, metadata, engine, oracleClient, policy, cfg.PollInterval, cfg.MaxInFlightFetch, logger)

	lastProcessed, err := store.LastProcessedHeight()
	if err != nil {
		return err
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsListenAddr, mux); err != nil {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("indexer starting", zap.Int64("resume_from", lastProcessed+1))
	if err := follower.Run(ctx, lastProcessed); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("indexer stopped cleanly")
	return nil
}

func reparseCmd(configPath *string) *cobra.Command {
	var block int64
	cmd := &cobra.Command{
		Use:   "reparse",
		Short: "re-derive consensus state for a single block without touching the artifact store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReparse(*configPath, block)
		},
	}
	cmd.Flags().Int64Var(&block, "block", 0, "block height to reparse")
	return cmd
}

// runReparse re-runs ProcessBlock for one already-known height, with the
// blob store forced to blobstore.NullStore{} — spec.md §6 requires that
// re-deriving consensus state never touch the artifact directory.
func runReparse(configPath string, block int64) error {
	if block <= 0 {
		return &config.ConfigError{Path: configPath, Reason: "--block must be a positive height"}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger()
	defer logger.Sync()

	store, err := balances.NewStore(filepath.Join(cfg.DataDir, "balances.db"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := orchestrator.NewEngine(store, blobstore.NullStore{}, logger)

	core := bitcoin.NewRPCClient(cfg.BitcoinRPCURL, cfg.BitcoinRPCUser, cfg.BitcoinRPCPassword)
	metadata := upstream.NewClient(cfg.UpstreamMetadataURL, cfg.UpstreamRatePerSec, cfg.UpstreamBurst)

	ctx := context.Background()
	hash, err := core.GetBlockHash(ctx, block)
	if err != nil {
		return err
	}
	blk, err := core.GetBlock(ctx, hash)
	if err != nil {
		return err
	}
	candidates, err := upstream.GetTransactionsWithRetry(ctx, metadata, block)
	if err != nil {
		return err
	}

	result, err := engine.ProcessBlock(block, blk.Time, candidates)
	if err != nil {
		return err
	}

	logger.Info("reparse complete",
		zap.Int64("height", block),
		zap.String("ledger_hash", result.LedgerHash),
		zap.String("block_messages_hash", result.BlockMessagesHash))
	return nil
}

func kickstartCmd(configPath *string) *cobra.Command {
	var bitcoindDir string
	cmd := &cobra.Command{
		Use:   "kickstart",
		Short: "bulk-load from a local bitcoind data directory instead of RPC polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKickstart(*configPath, bitcoindDir)
		},
	}
	cmd.Flags().StringVar(&bitcoindDir, "bitcoind-dir", "", "path to a local bitcoind data directory")
	cmd.MarkFlagRequired("bitcoind-dir")
	return cmd
}

// runKickstart validates preconditions for the bulk-load path. The actual
// blk*.dat scan belongs to the follower/RPC-client collaborators spec.md
// §1 scopes out of the core; what belongs here is config/lock validation
// so a misconfigured kickstart fails fast with the right exit code before
// any scanning begins.
func runKickstart(configPath, bitcoindDir string) error {
	if bitcoindDir == "" {
		return &config.ConfigError{Path: configPath, Reason: "--bitcoind-dir is required"}
	}
	if _, err := os.Stat(bitcoindDir); err != nil {
		return &config.ConfigError{Path: configPath, Reason: fmt.Sprintf("bitcoind-dir: %v", err)}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger()
	defer logger.Sync()

	store, err := balances.NewStore(filepath.Join(cfg.DataDir, "balances.db"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	lastProcessed, err := store.LastProcessedHeight()
	if err != nil {
		return err
	}
	logger.Info("kickstart ready", zap.String("bitcoind_dir", bitcoindDir), zap.Int64("resume_from", lastProcessed+1))
	return nil
}

func debugConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "debug-config",
		Short: "load and print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", *cfg)
			return nil
		},
	}
}
