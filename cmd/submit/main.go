package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/yourusername/btcverifier/internal/client"
	"github.com/yourusername/btcverifier/internal/config"
	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/logging"
	"github.com/yourusername/btcverifier/internal/verifier"
)

// Bitcoin main chain genesis header
const genesisHeader = "0100000000000000000000000000000000000000000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c"

type action struct {
	configPath string
	headerHex  string
	view       bool
	verbose    bool

	rpcURL   string
	key      string
	gasLimit uint64
	timeout  time.Duration
}

func parseFlags() action {
	var act action

	flag.StringVar(&act.configPath, "config", "", "Path to YAML config (default: $VERIFIER_CONFIG)")
	flag.StringVar(&act.headerHex, "header", genesisHeader, "Hex-encoded block header to hash")
	flag.BoolVar(&act.view, "view", false, "Only call hashBtcHeader, do not send a transaction")
	flag.BoolVar(&act.verbose, "verbose", false, "Verbose logs")

	flag.StringVar(&act.rpcURL, "rpc", "", "Node endpoint (default: $VERIFIER_RPC_URL or $ARB_URL)")
	flag.StringVar(&act.key, "key", "", "Hex private key (default: $PRIVATE_KEY)")
	flag.Uint64Var(&act.gasLimit, "gas", 0, "Gas limit")
	flag.DurationVar(&act.timeout, "timeout", 0, "Give up waiting for inclusion after this long")

	flag.Parse()

	return act
}

func (act action) apply(cfg *config.Config) {
	if act.rpcURL != "" {
		cfg.Client.RPCURL = act.rpcURL
	}
	if act.key != "" {
		cfg.Client.PrivateKey = act.key
	}
	if act.gasLimit != 0 {
		cfg.Client.GasLimit = act.gasLimit
	}
	if act.timeout != 0 {
		cfg.Client.Timeout = act.timeout
	}
}

func main() {
	act := parseFlags()
	logger := logging.New(act.verbose)

	cfg, err := config.Load(act.configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	act.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Client.Timeout)
	defer cancelTimeout()

	if err := run(ctx, act, cfg.Client, logger); err != nil {
		if verifier.IsRevert(err) {
			fmt.Println("Call reverted: input is not valid hex")
			os.Exit(1)
		}
		logger.Fatal().Err(err).Msg("submission failed")
	}
}

func run(ctx context.Context, act action, cfg config.ClientConfig, logger zerolog.Logger) error {
	c, err := client.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.ChainInfo(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Connected to %s (chain %d, height %s)\n", cfg.RPCURL, info.ChainID, humanize.Comma(int64(info.Height)))
	fmt.Printf("Contract: %s\n", info.ContractAddress)
	fmt.Printf("Input: %s\n", act.headerHex)

	if act.view {
		digest, err := c.HashBtcHeader(ctx, act.headerHex)
		if err != nil {
			return err
		}
		fmt.Printf("Output: %s\n", digest)
		return nil
	}

	if cfg.PrivateKey == "" {
		return errors.New("PRIVATE_KEY must be set (or use --key)")
	}

	wallet, err := crypto.WalletFromHex(cfg.PrivateKey)
	if err != nil {
		return err
	}
	logger.Debug().Str("from", wallet.GetAddress()).Uint64("gas_limit", cfg.GasLimit).Msg("signing transaction")

	fmt.Println("Broadcasting transaction for hashBtcHeader...")

	call, err := c.Send(ctx, wallet, verifier.MethodHashBtcHeader, act.headerHex, cfg.GasLimit)
	if err != nil {
		return err
	}

	receipt, err := c.WaitForReceipt(ctx, call.IDHex(), client.DefaultPollInterval)
	if err != nil {
		return fmt.Errorf("transaction %s was not included: %w", call.IDHex(), err)
	}

	fmt.Println("Transaction successfully broadcasted and included!")
	fmt.Printf("Transaction Hash: %s\n", crypto.EncodeHex(receipt.TxID))
	fmt.Printf("Block: %s\n", humanize.Comma(int64(receipt.BlockHeight)))
	fmt.Printf("Gas Used: %s\n", humanize.Comma(int64(receipt.GasUsed)))

	if !receipt.Succeeded() {
		fmt.Println("Status: reverted")
		return nil
	}
	fmt.Printf("Output: %s\n", receipt.Output)

	return nil
}
