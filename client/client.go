package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Session is the server's wallet session.
type Session struct {
	Connected        bool       `json:"connected"`
	Address          string     `json:"address,omitempty"`
	BalanceLamports  *uint64    `json:"balance_lamports,omitempty"`
	BalanceSOL       string     `json:"balance_sol,omitempty"`
	BalanceUpdatedAt *time.Time `json:"balance_updated_at,omitempty"`
}

// Receipt identifies a confirmed transaction.
type Receipt struct {
	Signature          string `json:"signature"`
	Slot               uint64 `json:"slot"`
	ConfirmationChecks int    `json:"confirmation_checks"`
	ExplorerURL        string `json:"explorer_url"`
}

// Mint is a newly created token mint.
type Mint struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Message   string `json:"message"`
	Receipt
}

// Minted is a confirmed mint of new supply.
type Minted struct {
	Mint               string `json:"mint"`
	Destination        string `json:"destination"`
	Amount             uint64 `json:"amount"`
	AmountUI           string `json:"amount_ui"`
	DestinationCreated bool   `json:"destination_created"`
	Message            string `json:"message"`
	Receipt
}

// Transfer is a confirmed token transfer.
type Transfer struct {
	Mint               string `json:"mint"`
	Recipient          string `json:"recipient"`
	Source             string `json:"source"`
	Destination        string `json:"destination"`
	Amount             uint64 `json:"amount"`
	AmountUI           string `json:"amount_ui"`
	DestinationCreated bool   `json:"destination_created"`
	Message            string `json:"message"`
	Receipt
}

// Transaction is one history row.
type Transaction struct {
	Signature     string     `json:"signature"`
	Slot          uint64     `json:"slot"`
	BlockTime     *time.Time `json:"block_time,omitempty"`
	Kind          string     `json:"kind"`
	Program       string     `json:"program,omitempty"`
	Source        string     `json:"source,omitempty"`
	Destination   string     `json:"destination,omitempty"`
	Amount        uint64     `json:"amount,omitempty"`
	AmountDisplay string     `json:"amount_display,omitempty"`
	Failed        bool       `json:"failed"`
	Error         string     `json:"error,omitempty"`
	ExplorerURL   string     `json:"explorer_url"`
}

// History is a page of recent transactions.
type History struct {
	Address      string        `json:"address"`
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
}

// OperationEvent is a view state change streamed by the server.
type OperationEvent struct {
	ID            string    `json:"id"`
	View          string    `json:"view"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Signature     string    `json:"signature,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	Generation    uint64    `json:"generation"`
	Timestamp     time.Time `json:"timestamp"`
}

// Finished reports whether the event ends an operation.
func (e *OperationEvent) Finished() bool {
	return e.Status == "success" || e.Status == "error"
}

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed (%s): %s", e.Kind, e.Message)
}

// KindOf returns the server error kind of err, or "" if err is not an *APIError.
func KindOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Client is the HTTP client for the solsage server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new client. Token operations wait for on-chain
// confirmation, so the default timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithTimeout sets the timeout of non-streaming requests. Non-positive d is ignored.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
	return c
}

// Session returns the current wallet session.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Connect connects the server's wallet.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/connect", nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet connected", "address", s.Address)
	return &s, nil
}

// Disconnect ends the session. It succeeds when no wallet is connected.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/session/disconnect", nil, http.StatusOK, nil)
}

// RefreshBalance re-reads the session's SOL balance.
func (c *Client) RefreshBalance(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/balance", nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateMint creates a token mint owned by the connected wallet.
func (c *Client) CreateMint(ctx context.Context, name, symbol, decimals string) (*Mint, error) {
	body := map[string]string{"name": name, "symbol": symbol, "decimals": decimals}
	var m Mint
	if err := c.do(ctx, http.MethodPost, "/api/v1/tokens", body, http.StatusCreated, &m); err != nil {
		return nil, err
	}
	c.logger.Debug("mint created", "mint", m.Mint, "signature", m.Signature)
	return &m, nil
}

// MintSupply mints amount (UI units) of mint to the connected wallet.
func (c *Client) MintSupply(ctx context.Context, mint, amount string) (*Minted, error) {
	path := fmt.Sprintf("/api/v1/tokens/%s/mint", url.PathEscape(mint))
	var m Minted
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"amount": amount}, http.StatusOK, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Transfer sends amount (UI units) of mint to recipient.
func (c *Client) Transfer(ctx context.Context, mint, recipient, amount string) (*Transfer, error) {
	path := fmt.Sprintf("/api/v1/tokens/%s/transfer", url.PathEscape(mint))
	body := map[string]string{"recipient": recipient, "amount": amount}
	var tr Transfer
	if err := c.do(ctx, http.MethodPost, path, body, http.StatusOK, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// History lists recent transactions of address, or of the connected wallet
// when address is empty. A non-positive limit uses the server default.
func (c *Client) History(ctx context.Context, address string, limit int) (*History, error) {
	params := url.Values{}
	if address != "" {
		params.Set("address", address)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var h History
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// StreamOperations reads operation events from the server's SSE endpoint
// until ctx is done, the stream ends, or fn returns an error or errStop.
// An empty address streams every wallet.
func (c *Client) StreamOperations(ctx context.Context, address string, fn func(*OperationEvent) error) error {
	u := c.baseURL + "/api/v1/stream/operations"
	if address != "" {
		u += "/" + url.PathEscape(address)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream has no deadline of its own, ctx bounds it
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if event == "operation" && data != "" {
				var op OperationEvent
				if err := json.Unmarshal([]byte(data), &op); err != nil {
					c.logger.Warn("failed to decode operation event", "error", err)
				} else if err := fn(&op); err != nil {
					if errors.Is(err, ErrStop) {
						return nil
					}
					return err
				}
			}
			event, data = "", ""
			continue
		}
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return ctx.Err()
}

// ErrStop ends StreamOperations without an error when returned by its callback.
var ErrStop = errors.New("stop streaming")

// AwaitOperation blocks until an operation event on address's stream
// finishes and satisfies match.
func (c *Client) AwaitOperation(ctx context.Context, address string, match func(*OperationEvent) bool) (*OperationEvent, error) {
	var found *OperationEvent
	err := c.StreamOperations(ctx, address, func(e *OperationEvent) error {
		if e.Finished() && (match == nil || match(e)) {
			found = e
			return ErrStop
		}
		return nil
	})
	if found != nil {
		return found, nil
	}
	if err == nil {
		err = errors.New("stream closed before a matching operation finished")
	}
	return nil, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, wantStatus int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: resp.StatusCode, Kind: errResp.Kind, Message: errResp.Error}
}
