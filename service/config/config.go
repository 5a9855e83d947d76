package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	MetricsEnabled bool

	// Browser origins other than the server's own that may call the API.
	// Empty means same-origin only.
	AllowedOrigins []string

	// Solana configuration
	SolanaNetwork string
	SolanaRPCURLs []string

	// Wallet configuration
	WalletKeypairPath string
	WalletPrivateKey  string

	// NATS configuration (optional, empty disables operation streaming)
	NATSURL string

	// Confirmation polling
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// History view
	HistoryLimit int
}

// Supported networks and their public RPC endpoints.
var defaultRPCURLs = map[string]string{
	"mainnet": rpc.MainNetBeta_RPC,
	"devnet":  rpc.DevNet_RPC,
	"testnet": rpc.TestNet_RPC,
}

const (
	// DefaultServerAddr binds to loopback only.
	DefaultServerAddr = "127.0.0.1:8080"

	// MaxHistoryLimit bounds how many signatures the history view may request.
	MaxHistoryLimit = 25
)

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	// the server signs with the wallet key, so it listens on loopback unless told otherwise
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", DefaultServerAddr)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	metricsEnabled, err := parseBool("METRICS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MetricsEnabled = metricsEnabled

	// Solana configuration
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "devnet")
	defaultURL, ok := defaultRPCURLs[cfg.SolanaNetwork]
	if !ok {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be one of mainnet, devnet, testnet (got %q)", cfg.SolanaNetwork))
	}
	cfg.SolanaRPCURLs = splitList(getEnvOrDefault("SOLANA_RPC_URL", defaultURL))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// Wallet configuration
	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")
	cfg.WalletKeypairPath = getEnvOrDefault("WALLET_KEYPAIR_PATH", defaultKeypairPath())

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Confirmation polling
	timeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = timeout
	}

	interval, err := parseDuration("CONFIRM_POLL_INTERVAL", "1s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = interval
	}

	// History view
	limit, err := parseInt("HISTORY_LIMIT", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HistoryLimit = limit
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	for _, origin := range c.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			errs = append(errs, err)
		}
	}

	if _, ok := defaultRPCURLs[c.SolanaNetwork]; !ok {
		errs = append(errs, fmt.Errorf("SolanaNetwork must be one of mainnet, devnet, testnet"))
	}

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.WalletKeypairPath == "" && c.WalletPrivateKey == "" {
		errs = append(errs, fmt.Errorf("WalletKeypairPath or WalletPrivateKey is required"))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}

	if c.ConfirmTimeout < c.ConfirmPollInterval {
		errs = append(errs, fmt.Errorf("ConfirmTimeout (%v) cannot be less than ConfirmPollInterval (%v)",
			c.ConfirmTimeout, c.ConfirmPollInterval))
	}

	if c.HistoryLimit < 1 || c.HistoryLimit > MaxHistoryLimit {
		errs = append(errs, fmt.Errorf("HistoryLimit must be between 1 and %d", MaxHistoryLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ConfirmMaxAttempts is the number of status polls that fit in ConfirmTimeout.
func (c *Config) ConfirmMaxAttempts() int {
	if c.ConfirmPollInterval <= 0 {
		return 1
	}
	attempts := int((c.ConfirmTimeout + c.ConfirmPollInterval - 1) / c.ConfirmPollInterval)
	if attempts < 1 {
		return 1
	}
	return attempts
}

// ExplorerCluster is the cluster query value used for explorer links.
// Mainnet links carry no cluster parameter.
func (c *Config) ExplorerCluster() string {
	if c.SolanaNetwork == "mainnet" {
		return ""
	}
	return c.SolanaNetwork
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validateOrigin accepts only scheme://host[:port], the form browsers send
// in the Origin header.
func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return fmt.Errorf("ALLOWED_ORIGINS: invalid origin %q (want scheme://host[:port])", origin)
	}
	return nil
}

// defaultKeypairPath is where the Solana CLI keeps its default keypair.
func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}
