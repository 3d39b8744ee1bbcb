package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/yourusername/btcverifier/internal/client"
	"github.com/yourusername/btcverifier/internal/config"
	"github.com/yourusername/btcverifier/internal/gateway"
	"github.com/yourusername/btcverifier/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default: $VERIFIER_CONFIG)")
	listen := flag.String("listen", "", "HTTP listen address")
	rpcURL := flag.String("rpc", "", "Node endpoint (default: $VERIFIER_RPC_URL or $ARB_URL)")
	verbose := flag.Bool("verbose", false, "Verbose logs")
	flag.Parse()

	logger := logging.New(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if *listen != "" {
		cfg.Gateway.Listen = *listen
	}
	if *rpcURL != "" {
		cfg.Client.RPCURL = *rpcURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, cfg.Client.RPCURL)
	dialCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to node")
	}
	defer c.Close()
	logger.Info().Str("address", cfg.Client.RPCURL).Msg("connected to gRPC server")

	server := &http.Server{
		Addr:              cfg.Gateway.Listen,
		Handler:           gateway.New(c, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("address", cfg.Gateway.Listen).Msg("starting web server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
