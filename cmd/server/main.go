package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solsage/service/config"
	"github.com/brojonat/solsage/service/history"
	"github.com/brojonat/solsage/service/metrics"
	natspkg "github.com/brojonat/solsage/service/nats"
	"github.com/brojonat/solsage/service/server"
	"github.com/brojonat/solsage/service/solana"
	"github.com/brojonat/solsage/service/token"
	"github.com/brojonat/solsage/service/view"
	"github.com/brojonat/solsage/service/wallet"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.SolanaNetwork,
		"log_level", cfg.LogLevel,
	)

	var metricsCollector *metrics.Metrics
	if cfg.MetricsEnabled {
		metricsCollector = metrics.NewMetrics(nil) // nil uses default registry
	}

	// Pick one RPC endpoint for the lifetime of the process
	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := newSolanaClient(solana.NewRPCClient(endpoint), endpoint, cfg, metricsCollector, logger)
	logger.Info("initialized solana RPC client",
		"endpoint", solana.EndpointLabel(endpoint),
		"confirm_attempts", cfg.ConfirmMaxAttempts(),
	)

	provider, err := newProvider(cfg)
	if err != nil {
		logger.Error("failed to load wallet", "error", err)
		os.Exit(1)
	}
	session := wallet.NewManager(provider, solanaClient, metricsCollector, logger)

	// Operation events are optional; without NATS views still work, they just
	// aren't streamed.
	var observer view.Observer
	var stream *server.OperationStream
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		observer = natspkg.Observer(publisher, func() string {
			if address, ok := session.Address(); ok {
				return address.String()
			}
			return ""
		}, logger)

		stream, err = server.NewOperationStream(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE operation stream", "error", err)
			os.Exit(1)
		}
	}

	httpServer := server.New(cfg, server.Deps{
		Session:    session,
		Builder:    token.NewBuilder(solanaClient, session, metricsCollector, logger),
		History:    history.NewViewer(solanaClient, cfg.HistoryLimit, cfg.ExplorerCluster(), metricsCollector, logger),
		Controller: view.NewController(observer, logger),
	}, stream, metricsCollector, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout; broadcast operations get the
		// confirmation window to finish
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ConfirmTimeout+10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// newSolanaClient wraps rpcClient with the configured confirmation policy.
// Metrics carry only the endpoint host: keyed providers put API keys in the
// path or query, and /metrics is unauthenticated.
func newSolanaClient(rpcClient solana.RPCClient, endpoint string, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *solana.Client {
	policy := solana.ConfirmPolicy{
		Interval:    cfg.ConfirmPollInterval,
		MaxAttempts: cfg.ConfirmMaxAttempts(),
	}
	return solana.NewClient(rpcClient, solana.EndpointLabel(endpoint), policy, m, logger)
}

// newProvider builds the wallet provider. A base58 private key in the
// environment takes precedence over the keypair file.
func newProvider(cfg *config.Config) (wallet.Provider, error) {
	if cfg.WalletPrivateKey != "" {
		provider, err := wallet.NewStaticProviderFromBase58(cfg.WalletPrivateKey)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	return wallet.NewKeypairProvider(cfg.WalletKeypairPath), nil
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
