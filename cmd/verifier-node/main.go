package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/yourusername/btcverifier/internal/config"
	"github.com/yourusername/btcverifier/internal/grpc"
	"github.com/yourusername/btcverifier/internal/logging"
	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/p2p"
	"github.com/yourusername/btcverifier/internal/storage"
	"github.com/yourusername/btcverifier/internal/verifier"
)

type flags struct {
	configPath string
	verbose    bool
	fresh      bool
	validate   bool

	dataDir        string
	grpcAddr       string
	p2pAddr        string
	peers          []string
	chainID        uint64
	blockInterval  time.Duration
	difficultyBits uint32
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to YAML config (default: $VERIFIER_CONFIG)")
	flag.BoolVar(&f.verbose, "verbose", false, "Verbose logs")
	flag.BoolVar(&f.fresh, "fresh", false, "Start with a fresh chain")
	flag.BoolVar(&f.validate, "validate", false, "Check the stored chain before serving")

	flag.StringVar(&f.dataDir, "db", "", "Path to chain database")
	flag.StringVar(&f.grpcAddr, "grpc", "", "gRPC listen address")
	flag.StringVar(&f.p2pAddr, "listen", "", "P2P listen multiaddr (\"none\" disables gossip)")
	flag.StringSliceVarP(&f.peers, "connect", "c", nil, "Peer multiaddr to connect to (repeatable)")
	flag.Uint64Var(&f.chainID, "chain-id", 0, "Chain id transactions must be signed for")
	flag.DurationVar(&f.blockInterval, "block-interval", 0, "Time between sealed blocks")
	flag.Uint32Var(&f.difficultyBits, "difficulty", 0, "Leading zero bits required of block hashes")

	flag.Parse()

	return f
}

// apply overrides config values with flags given on the command line
func (f flags) apply(cfg *config.Config) {
	if flag.CommandLine.Changed("db") {
		cfg.Node.DataDir = f.dataDir
	}
	if flag.CommandLine.Changed("grpc") {
		cfg.Node.GRPCAddr = f.grpcAddr
	}
	if flag.CommandLine.Changed("listen") {
		cfg.Node.P2PAddr = f.p2pAddr
		if f.p2pAddr == "none" {
			cfg.Node.P2PAddr = ""
		}
	}
	if flag.CommandLine.Changed("connect") {
		cfg.Node.Peers = append(cfg.Node.Peers, f.peers...)
	}
	if flag.CommandLine.Changed("chain-id") {
		cfg.Node.ChainID = f.chainID
	}
	if flag.CommandLine.Changed("block-interval") {
		cfg.Node.BlockInterval = f.blockInterval
	}
	if flag.CommandLine.Changed("difficulty") {
		cfg.Node.DifficultyBits = f.difficultyBits
	}
}

func main() {
	f := parseFlags()
	logger := logging.New(f.verbose)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, f, logger); err != nil {
		logger.Fatal().Err(err).Msg("node failed")
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, logger zerolog.Logger) error {
	if f.fresh {
		logger.Info().Str("path", cfg.Node.DataDir).Msg("starting with fresh chain")
		if err := os.RemoveAll(cfg.Node.DataDir); err != nil {
			return fmt.Errorf("failed to remove chain database: %w", err)
		}
	}

	store, err := storage.NewStorage(cfg.Node.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := node.New(store, append(cfg.NodeOptions(), node.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	info := n.Info()
	logger.Info().
		Uint64("chain_id", info.ChainID).
		Uint64("height", info.Height).
		Str("contract", info.ContractAddress).
		Strs("methods", verifier.New().Methods()).
		Msg("node initialized")

	if f.validate {
		if err := n.ValidateChain(); err != nil {
			return err
		}
		receipts, err := store.CountReceipts()
		if err != nil {
			return err
		}
		logger.Info().Int("receipts", receipts).Msg("chain is valid")
	}

	if cfg.Node.P2PAddr != "" {
		network, err := p2p.NewNetwork(ctx, n, cfg.Node.P2PAddr, logger)
		if err != nil {
			return err
		}
		defer network.Stop()

		network.Start()

		for _, peer := range cfg.Node.Peers {
			if err := network.ConnectToPeer(peer); err != nil {
				logger.Warn().Err(err).Str("peer", peer).Msg("failed to connect to peer")
			}
		}
		if len(cfg.Node.Peers) > 0 {
			logger.Info().
				Int("count", network.GetPeerCount()).
				Strs("peers", network.GetPeers()).
				Msg("connected peers")
		}
	}

	server := grpc.NewServer(n, logger)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.Node.GRPCAddr)
	}()

	sealCtx, stopSealing := context.WithCancel(ctx)
	defer stopSealing()

	sealErr := make(chan error, 1)
	go func() {
		sealErr <- n.Run(sealCtx)
	}()

	select {
	case err = <-serveErr:
		err = fmt.Errorf("gRPC server stopped: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutting down gracefully")
	}

	stopSealing()
	server.Stop()

	if runErr := <-sealErr; runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	return err
}
