package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/history"
	"github.com/brojonat/solsage/service/token"
	"github.com/brojonat/solsage/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
)

const maxRequestBodySize = 1 << 20 // 1MB

// flexString accepts a JSON string or a bare JSON number and keeps its text,
// so amounts like 1.5 reach the decimal parser without a float round trip.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

type sessionResponse struct {
	Connected        bool       `json:"connected"`
	Address          string     `json:"address,omitempty"`
	BalanceLamports  *uint64    `json:"balance_lamports,omitempty"`
	BalanceSOL       string     `json:"balance_sol,omitempty"`
	BalanceUpdatedAt *time.Time `json:"balance_updated_at,omitempty"`
}

func sessionToResponse(s wallet.Session, ok bool) sessionResponse {
	if !ok {
		return sessionResponse{}
	}
	resp := sessionResponse{
		Connected:       true,
		Address:         s.Address.String(),
		BalanceLamports: s.Balance,
	}
	if s.Balance != nil {
		resp.BalanceSOL = token.FormatSOL(*s.Balance)
		updated := s.BalanceUpdatedAt
		resp.BalanceUpdatedAt = &updated
	}
	return resp
}

type receiptResponse struct {
	Signature     string `json:"signature"`
	Slot          uint64 `json:"slot"`
	Confirmations int    `json:"confirmation_checks"`
	ExplorerURL   string `json:"explorer_url"`
}

func receiptToResponse(r token.Receipt, cluster string) receiptResponse {
	return receiptResponse{
		Signature:     r.Signature.String(),
		Slot:          r.Slot,
		Confirmations: r.Attempts,
		ExplorerURL:   history.ExplorerTxURL(r.Signature.String(), cluster),
	}
}

type createMintResponse struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Message   string `json:"message"`
	receiptResponse
}

type mintSupplyResponse struct {
	Mint        string `json:"mint"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	AmountUI    string `json:"amount_ui"`
	Created     bool   `json:"destination_created"`
	Message     string `json:"message"`
	receiptResponse
}

type transferResponse struct {
	Mint        string `json:"mint"`
	Recipient   string `json:"recipient"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	AmountUI    string `json:"amount_ui"`
	Created     bool   `json:"destination_created"`
	Message     string `json:"message"`
	receiptResponse
}

type historyResponse struct {
	Address      string           `json:"address"`
	Transactions []history.Record `json:"transactions"`
	Count        int              `json:"count"`
}

// handleGetSession returns the current session.
// GET /api/v1/session
func handleGetSession(session *wallet.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sessionToResponse(session.Session()), http.StatusOK)
	})
}

// handleConnect connects the wallet.
// POST /api/v1/session/connect
func handleConnect(session *wallet.Manager, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := session.Connect(r.Context()); err != nil {
			logger.DebugContext(r.Context(), "connect failed", "error", err)
			writeAppError(w, err)
			return
		}
		writeJSON(w, sessionToResponse(session.Session()), http.StatusOK)
	})
}

// handleDisconnect ends the session. Disconnecting without a session succeeds.
// POST /api/v1/session/disconnect
func handleDisconnect(session *wallet.Manager, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := session.Disconnect(r.Context()); err != nil {
			logger.DebugContext(r.Context(), "disconnect failed", "error", err)
			writeAppError(w, err)
			return
		}
		writeJSON(w, sessionToResponse(session.Session()), http.StatusOK)
	})
}

// handleRefreshBalance re-reads the session balance. Without a session it
// does nothing and returns the empty session.
// POST /api/v1/session/balance
func handleRefreshBalance(session *wallet.Manager, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := session.RefreshBalance(r.Context()); err != nil {
			logger.DebugContext(r.Context(), "balance refresh failed", "error", err)
			writeAppError(w, err)
			return
		}
		writeJSON(w, sessionToResponse(session.Session()), http.StatusOK)
	})
}

// handleCreateMint creates a new token mint.
// POST /api/v1/tokens
func handleCreateMint(builder *token.Builder, cluster string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string     `json:"name"`
			Symbol   string     `json:"symbol"`
			Decimals flexString `json:"decimals"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		// a broadcast transaction is not abandoned when the client goes away
		ctx := context.WithoutCancel(r.Context())
		result, err := builder.CreateMint(ctx, token.MintMetadata{
			Name:     req.Name,
			Symbol:   req.Symbol,
			Decimals: string(req.Decimals),
		})
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeJSON(w, createMintResponse{
			Mint:            result.Mint.String(),
			Authority:       result.Authority.String(),
			Name:            result.Name,
			Symbol:          result.Symbol,
			Decimals:        result.Decimals,
			Message:         result.Summary(),
			receiptResponse: receiptToResponse(result.Receipt, cluster),
		}, http.StatusCreated)
	})
}

// handleMintSupply mints tokens into the connected wallet.
// POST /api/v1/tokens/{mint}/mint
func handleMintSupply(builder *token.Builder, cluster string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount flexString `json:"amount"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		ctx := context.WithoutCancel(r.Context())
		result, err := builder.MintSupply(ctx, r.PathValue("mint"), string(req.Amount))
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeJSON(w, mintSupplyResponse{
			Mint:            result.Mint.String(),
			Destination:     result.Destination.String(),
			Amount:          result.Amount,
			AmountUI:        token.FormatUnits(result.Amount),
			Created:         result.Created,
			Message:         result.Summary(),
			receiptResponse: receiptToResponse(result.Receipt, cluster),
		}, http.StatusOK)
	})
}

// handleTransfer sends tokens from the connected wallet.
// POST /api/v1/tokens/{mint}/transfer
func handleTransfer(builder *token.Builder, cluster string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Recipient string     `json:"recipient"`
			Amount    flexString `json:"amount"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		ctx := context.WithoutCancel(r.Context())
		result, err := builder.Transfer(ctx, token.TransferRequest{
			Mint:      r.PathValue("mint"),
			Recipient: req.Recipient,
			Amount:    string(req.Amount),
		})
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeJSON(w, transferResponse{
			Mint:            result.Mint.String(),
			Recipient:       result.Recipient.String(),
			Source:          result.Source.String(),
			Destination:     result.Destination.String(),
			Amount:          result.Amount,
			AmountUI:        token.FormatUnits(result.Amount),
			Created:         result.DestinationCreated,
			Message:         result.Summary(),
			receiptResponse: receiptToResponse(result.Receipt, cluster),
		}, http.StatusOK)
	})
}

// handleHistory lists recent transactions of an address, the connected
// wallet by default.
// GET /api/v1/history?limit={n}&address={address}
func handleHistory(viewer *history.Viewer, session *wallet.Manager, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeAppError(w, apperr.Validation("limit must be a positive integer"))
				return
			}
			limit = n
		}

		address, err := historyAddress(r.URL.Query().Get("address"), session)
		if err != nil {
			writeAppError(w, err)
			return
		}

		records, err := viewer.Fetch(r.Context(), address, limit)
		if err != nil {
			logger.DebugContext(r.Context(), "history fetch failed", "address", address.String(), "error", err)
			writeAppError(w, err)
			return
		}
		if records == nil {
			records = []history.Record{}
		}

		writeJSON(w, historyResponse{
			Address:      address.String(),
			Transactions: records,
			Count:        len(records),
		}, http.StatusOK)
	})
}

func historyAddress(input string, session *wallet.Manager) (solanago.PublicKey, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		address, ok := session.Address()
		if !ok {
			return solanago.PublicKey{}, apperr.Validation("connect a wallet first")
		}
		return address, nil
	}
	address, err := solanago.PublicKeyFromBase58(input)
	if err != nil {
		return solanago.PublicKey{}, apperr.Validation("address is not a valid Solana address")
	}
	return address, nil
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large: maximum size is 1MB", string(apperr.KindValidation), http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", string(apperr.KindValidation), http.StatusBadRequest)
		return false
	}
	return true
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindConnection, apperr.KindDisconnection:
		return http.StatusConflict
	case apperr.KindAccountResolution, apperr.KindSubmission, apperr.KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, kind string, statusCode int) {
	writeJSON(w, map[string]string{
		"error": message,
		"kind":  kind,
	}, statusCode)
}

// writeAppError writes err with the status of its kind.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeError(w, apperr.Message(err), string(kind), statusForKind(kind))
}
