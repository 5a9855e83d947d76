package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solsage/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// sendMaxRetries is handed to the RPC node; we never rebroadcast ourselves.
const sendMaxRetries uint = 5

// Client provides the Solana operations the token and history services need.
// It wraps the RPC client with logging, metrics, and confirmation polling.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "devnet", rpc host)
	policy   ConfirmPolicy
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, policy ConfirmPolicy, m *metrics.Metrics, logger *slog.Logger) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		policy:   policy,
	}
}

// observe records the outcome of one RPC call.
func (c *Client) observe(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// Balance returns the lamport balance of an account at confirmed commitment.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	c.observe("GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", account, err)
	}
	return out.Value, nil
}

// RentExemption returns the minimum lamports for an account of dataSize bytes.
func (c *Client) RentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, dataSize, rpc.CommitmentConfirmed)
	c.observe("GetMinimumBalanceForRentExemption", start, err)
	if err != nil {
		return 0, fmt.Errorf("get rent exemption for %d bytes: %w", dataSize, err)
	}
	return lamports, nil
}

// LatestBlockhash returns the blockhash new transactions should reference
// and the last block height at which it is still valid.
func (c *Client) LatestBlockhash(ctx context.Context) (*rpc.LatestBlockhashResult, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	c.observe("GetLatestBlockhash", start, err)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, errors.New("get latest blockhash: empty response")
	}
	return out.Value, nil
}

// Send broadcasts a fully signed transaction with preflight checks enabled.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	maxRetries := sendMaxRetries
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &maxRetries,
	})
	c.observe("SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction sent",
		"signature", sig.String(),
		"instructions", len(tx.Message.Instructions),
	)
	return sig, nil
}

// AwaitConfirmation polls the signature status until it settles or the policy
// is exhausted. lastValidBlockHeight of zero disables the expiry check.
// Poll errors are logged and count as an attempt. Only context cancellation
// returns an error.
func (c *Client) AwaitConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (Confirmation, error) {
	conf := Confirmation{Signature: sig, Outcome: OutcomeTimedOut}

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		conf.Attempts = attempt

		settled, err := c.pollOnce(ctx, sig, lastValidBlockHeight, &conf)
		if err != nil {
			conf.Err = err.Error()
			c.logger.WarnContext(ctx, "confirmation poll failed",
				"signature", sig.String(),
				"attempt", attempt,
				"error", err,
			)
		}
		if settled {
			break
		}

		if attempt == c.policy.MaxAttempts {
			break
		}
		timer := time.NewTimer(c.policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return conf, fmt.Errorf("awaiting confirmation of %s: %w", sig, ctx.Err())
		case <-timer.C:
		}
	}

	if c.metrics != nil {
		c.metrics.RecordConfirmation(string(conf.Outcome), conf.Attempts)
	}
	c.logger.InfoContext(ctx, "confirmation settled",
		"signature", sig.String(),
		"outcome", conf.Outcome,
		"attempts", conf.Attempts,
	)
	return conf, nil
}

// pollOnce checks the status once and reports whether a terminal outcome was reached.
func (c *Client) pollOnce(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64, conf *Confirmation) (bool, error) {
	start := time.Now()
	statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.observe("GetSignatureStatuses", start, err)
	if err != nil {
		return false, fmt.Errorf("get signature status: %w", err)
	}

	if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
		status := statuses.Value[0]
		conf.Slot = status.Slot
		if status.Err != nil {
			conf.Outcome = OutcomeOnChainError
			conf.Err = fmt.Sprintf("%v", status.Err)
			return true, nil
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			conf.Outcome = OutcomeConfirmed
			conf.Err = ""
			return true, nil
		}
	}

	if lastValidBlockHeight == 0 {
		return false, nil
	}
	start = time.Now()
	height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	c.observe("GetBlockHeight", start, err)
	if err != nil {
		return false, fmt.Errorf("get block height: %w", err)
	}
	if height > lastValidBlockHeight {
		conf.Outcome = OutcomeExpired
		return true, nil
	}
	return false, nil
}

// AccountData returns the raw data of an account at confirmed commitment.
// A missing account returns ErrNotFound.
func (c *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	c.observe("GetAccountInfo", start, err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account info for %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return nil, ErrNotFound
	}
	if out.Value.Data == nil {
		return nil, nil
	}
	return out.Value.Data.GetBinary(), nil
}

// RecentSignatures returns up to limit signatures for an address, newest first.
func (c *Client) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	c.observe("GetSignaturesForAddress", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"address", address.String(),
			"error", err,
		)
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"address", address.String(),
		"count", len(signatures),
	)
	return signatures, nil
}

// Transaction fetches and parses one transaction. A transaction the endpoint
// returns as null yields (nil, nil).
func (c *Client) Transaction(ctx context.Context, sig solana.Signature) (*ConfirmedTransaction, error) {
	maxVersion := uint64(0)
	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	c.observe("GetTransaction", start, err)
	if errors.Is(err, ErrNotFound) || (err == nil && result == nil) {
		c.logger.DebugContext(ctx, "transaction not available", "signature", sig.String())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}

	return parseTransactionFromResult(sig, result)
}
