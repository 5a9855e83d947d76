package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/config"
	"github.com/brojonat/solsage/service/history"
	"github.com/brojonat/solsage/service/solana"
	"github.com/brojonat/solsage/service/token"
	"github.com/brojonat/solsage/service/view"
	"github.com/brojonat/solsage/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	mock       *solana.MockRPCClient
	manager    *wallet.Manager
	controller *view.Controller
	key        solanago.PrivateKey
	handler    http.Handler
}

// newTestServer wires the full stack to an in-memory ledger holding lamports
// for the wallet. opts adjust the config before the server is built.
func newTestServer(t *testing.T, lamports uint64, opts ...func(*config.Config)) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mock := solana.NewMockRPCClient()
	client := solana.NewClient(mock, "test", solana.ConfirmPolicy{Interval: time.Millisecond, MaxAttempts: 3}, nil, logger)

	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	mock.SetBalance(key.PublicKey(), lamports)

	manager := wallet.NewManager(wallet.NewStaticProvider(key), client, nil, logger)
	controller := view.NewController(nil, logger)
	cfg := &config.Config{ServerAddr: ":0", SolanaNetwork: "devnet", HistoryLimit: history.DefaultLimit}
	for _, opt := range opts {
		opt(cfg)
	}

	srv := New(cfg, Deps{
		Session:    manager,
		Builder:    token.NewBuilder(client, manager, nil, logger),
		History:    history.NewViewer(client, cfg.HistoryLimit, cfg.ExplorerCluster(), nil, logger),
		Controller: controller,
	}, nil, nil, logger)
	require.NoError(t, srv.WithTemplates())

	return &testServer{
		mock:       mock,
		manager:    manager,
		controller: controller,
		key:        key,
		handler:    srv.Handler(),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) form(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_SessionLifecycle(t *testing.T) {
	s := newTestServer(t, 2*solana.LamportsPerSOL)

	rec := s.do(t, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[sessionResponse](t, rec).Connected)

	rec = s.do(t, http.MethodPost, "/api/v1/session/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code, "disconnect without a wallet is a no-op")

	rec = s.do(t, http.MethodPost, "/api/v1/session/balance", "")
	require.Equal(t, http.StatusOK, rec.Code, "balance without a wallet is a no-op")
	assert.False(t, decode[sessionResponse](t, rec).Connected)
	assert.Equal(t, 0, s.mock.Calls("GetBalance"))

	rec = s.do(t, http.MethodPost, "/api/v1/session/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[sessionResponse](t, rec)
	assert.True(t, sess.Connected)
	assert.Equal(t, s.key.PublicKey().String(), sess.Address)
	assert.Equal(t, "2", sess.BalanceSOL)

	s.mock.SetBalance(s.key.PublicKey(), solana.LamportsPerSOL/2)
	rec = s.do(t, http.MethodPost, "/api/v1/session/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.5", decode[sessionResponse](t, rec).BalanceSOL)

	rec = s.do(t, http.MethodPost, "/api/v1/session/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[sessionResponse](t, rec).Connected)
}

func TestAPI_TokenLifecycle(t *testing.T) {
	s := newTestServer(t, 2*solana.LamportsPerSOL)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/session/connect", "").Code)

	rec := s.do(t, http.MethodPost, "/api/v1/tokens", `{"name":"MyToken","symbol":"MTK","decimals":6}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createMintResponse](t, rec)
	assert.NotEqual(t, s.key.PublicKey().String(), created.Mint)
	assert.Equal(t, uint8(6), created.Decimals)
	assert.Contains(t, created.ExplorerURL, "?cluster=devnet")

	rec = s.do(t, http.MethodPost, "/api/v1/tokens/"+created.Mint+"/mint", `{"amount":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	minted := decode[mintSupplyResponse](t, rec)
	assert.True(t, minted.Created)
	assert.Equal(t, uint64(100_000_000), minted.Amount)

	recipient, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/v1/tokens/"+created.Mint+"/transfer",
		`{"recipient":"`+recipient.PublicKey().String()+`","amount":1.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decode[transferResponse](t, rec)
	assert.True(t, sent.Created)
	assert.Equal(t, uint64(1_500_000), sent.Amount)
	assert.Equal(t, "1.5", sent.AmountUI)

	rec = s.do(t, http.MethodGet, "/api/v1/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hist := decode[historyResponse](t, rec)
	assert.Equal(t, 2, hist.Count)
	assert.Equal(t, sent.Signature, hist.Transactions[0].Signature)
}

func TestAPI_ErrorStatuses(t *testing.T) {
	recipient := "11111111111111111111111111111111"

	tests := []struct {
		name       string
		lamports   uint64
		connect    bool
		setup      func(s *testServer)
		method     string
		path       string
		body       string
		wantStatus int
		wantKind   apperr.Kind
	}{
		{
			name:       "create without wallet",
			lamports:   solana.LamportsPerSOL,
			method:     http.MethodPost,
			path:       "/api/v1/tokens",
			body:       `{"name":"A","symbol":"A","decimals":"6"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "decimals out of range",
			lamports:   solana.LamportsPerSOL,
			connect:    true,
			method:     http.MethodPost,
			path:       "/api/v1/tokens",
			body:       `{"name":"A","symbol":"A","decimals":12}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "insufficient funds",
			lamports:   1000,
			connect:    true,
			method:     http.MethodPost,
			path:       "/api/v1/tokens",
			body:       `{"name":"A","symbol":"A","decimals":"6"}`,
			wantStatus: http.StatusPaymentRequired,
			wantKind:   apperr.KindInsufficientFunds,
		},
		{
			name:       "failed on chain",
			lamports:   solana.LamportsPerSOL,
			connect:    true,
			setup:      func(s *testServer) { s.mock.FailOnChain = true },
			method:     http.MethodPost,
			path:       "/api/v1/tokens",
			body:       `{"name":"A","symbol":"A","decimals":"6"}`,
			wantStatus: http.StatusBadGateway,
			wantKind:   apperr.KindSubmission,
		},
		{
			name:       "malformed JSON",
			method:     http.MethodPost,
			path:       "/api/v1/tokens",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "non-positive amount",
			connect:    true,
			lamports:   solana.LamportsPerSOL,
			method:     http.MethodPost,
			path:       "/api/v1/tokens/" + recipient + "/mint",
			body:       `{"amount":"-3"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "malformed recipient",
			connect:    true,
			lamports:   solana.LamportsPerSOL,
			method:     http.MethodPost,
			path:       "/api/v1/tokens/" + recipient + "/transfer",
			body:       `{"recipient":"not-an-address","amount":"1"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "history without wallet",
			method:     http.MethodGet,
			path:       "/api/v1/history",
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "history bad limit",
			method:     http.MethodGet,
			path:       "/api/v1/history?address=" + recipient + "&limit=abc",
			wantStatus: http.StatusBadRequest,
			wantKind:   apperr.KindValidation,
		},
		{
			name:       "history endpoint failure",
			setup:      func(s *testServer) { s.mock.SetError("GetSignaturesForAddress", errors.New("429 too many requests")) },
			method:     http.MethodGet,
			path:       "/api/v1/history?address=" + recipient,
			wantStatus: http.StatusBadGateway,
			wantKind:   apperr.KindFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.lamports)
			if tt.connect {
				_, err := s.manager.Connect(context.Background())
				require.NoError(t, err)
			}
			if tt.setup != nil {
				tt.setup(s)
			}
			sentBefore := len(s.mock.Sent())

			rec := s.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode[map[string]string](t, rec)
			assert.Equal(t, string(tt.wantKind), body["kind"])
			assert.NotEmpty(t, body["error"])
			if tt.wantKind == apperr.KindValidation || tt.wantKind == apperr.KindInsufficientFunds {
				assert.Equal(t, sentBefore, len(s.mock.Sent()), "no transaction for rejected input")
			}
		})
	}
}

func TestAPI_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, 0)
	body := `{"name":"` + strings.Repeat("A", 2*maxRequestBodySize) + `"}`

	rec := s.do(t, http.MethodPost, "/api/v1/tokens", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large")
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindInsufficientFunds, http.StatusPaymentRequired},
		{apperr.KindConnection, http.StatusConflict},
		{apperr.KindDisconnection, http.StatusConflict},
		{apperr.KindAccountResolution, http.StatusBadGateway},
		{apperr.KindSubmission, http.StatusBadGateway},
		{apperr.KindFetch, http.StatusBadGateway},
		{apperr.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForKind(tt.kind), tt.kind)
	}
}

func TestFlexString(t *testing.T) {
	var req struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.50","b":0.000001}`), &req))
	assert.Equal(t, flexString("1.50"), req.A)
	assert.Equal(t, flexString("0.000001"), req.B)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCrossOriginRequestsRejected(t *testing.T) {
	recipient, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	mint, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		headers     map[string]string
	}{
		{
			name:        "api transfer from foreign origin",
			path:        "/api/v1/tokens/" + mint.PublicKey().String() + "/transfer",
			contentType: "application/json",
			body:        `{"recipient":"` + recipient.PublicKey().String() + `","amount":"1"}`,
			headers:     map[string]string{"Origin": "https://evil.example"},
		},
		{
			name:        "api create mint from foreign origin",
			path:        "/api/v1/tokens",
			contentType: "application/json",
			body:        `{"name":"A","symbol":"A","decimals":"6"}`,
			headers:     map[string]string{"Origin": "https://evil.example"},
		},
		{
			name:        "form create from foreign origin",
			path:        "/create-token",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"name": {"A"}, "symbol": {"A"}, "decimals": {"6"}}.Encode(),
			headers:     map[string]string{"Origin": "https://evil.example"},
		},
		{
			name:        "form send marked cross-site",
			path:        "/send-token",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"mint": {mint.PublicKey().String()}, "recipient": {recipient.PublicKey().String()}, "amount": {"1"}}.Encode(),
			headers:     map[string]string{"Sec-Fetch-Site": "cross-site"},
		},
		{
			name:        "sibling port is same-site, not same-origin",
			path:        "/create-token",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"name": {"A"}, "symbol": {"A"}, "decimals": {"6"}}.Encode(),
			headers:     map[string]string{"Origin": "http://example.com:3000", "Sec-Fetch-Site": "same-site"},
		},
		{
			name:        "opaque origin",
			path:        "/api/v1/session/connect",
			contentType: "application/json",
			headers:     map[string]string{"Origin": "null"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 2*solana.LamportsPerSOL)
			_, err := s.manager.Connect(context.Background())
			require.NoError(t, err)
			sentBefore := len(s.mock.Sent())

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			s.controller.Wait()

			assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, sentBefore, len(s.mock.Sent()), "wallet must not sign for a foreign site")
		})
	}
}

func TestSameOriginAndNonBrowserRequestsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "cli without browser headers"},
		{name: "same origin form", headers: map[string]string{"Origin": "http://example.com", "Sec-Fetch-Site": "same-origin"}},
		{name: "origin matches host", headers: map[string]string{"Origin": "http://example.com"}},
		{name: "typed into address bar", headers: map[string]string{"Sec-Fetch-Site": "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, solana.LamportsPerSOL)

			req := httptest.NewRequest(http.MethodPost, "/connect", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			s.controller.Wait()

			require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
			_, connected := s.manager.Address()
			assert.True(t, connected)
		})
	}
}

func TestCORS_AllowlistOnly(t *testing.T) {
	s := newTestServer(t, 2*solana.LamportsPerSOL, func(cfg *config.Config) {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/tokens", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://evil.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight("http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	// an allowed origin may act on the wallet
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/connect", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Sec-Fetch-Site", "same-site")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestViews_RenderAndNotFound(t *testing.T) {
	s := newTestServer(t, 0)

	for _, v := range view.Views {
		rec := s.do(t, http.MethodGet, v.Path, "")
		assert.Equal(t, http.StatusOK, rec.Code, v.Path)
		assert.Contains(t, rec.Body.String(), v.Title)
	}

	rec := s.do(t, http.MethodGet, "/settings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/settings")
}

func TestViews_ConnectFormAndTheme(t *testing.T) {
	s := newTestServer(t, solana.LamportsPerSOL)

	rec := s.do(t, http.MethodGet, "/", "")
	assert.Contains(t, rec.Body.String(), `data-theme="light"`)
	assert.Contains(t, rec.Body.String(), "Connect wallet")

	rec = s.form(t, "/balance", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	s.controller.Wait()
	state := s.controller.State(view.Connect)
	require.Equal(t, view.Success, state.Status, state.Err)
	assert.Equal(t, "No wallet connected", state.Message)
	assert.Equal(t, 0, s.mock.Calls("GetBalance"))

	rec = s.form(t, "/connect", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	s.controller.Wait()

	rec = s.do(t, http.MethodGet, "/", "")
	body := rec.Body.String()
	assert.Contains(t, body, s.key.PublicKey().String())
	assert.Contains(t, body, "Connected "+token.ShortAddress(s.key.PublicKey().String()))

	rec = s.form(t, "/theme", url.Values{"return_to": {"/history"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/history", rec.Header().Get("Location"))
	assert.Equal(t, view.Dark, s.controller.Theme())

	rec = s.form(t, "/dismiss/connect", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, view.Idle, s.controller.State(view.Connect).Status)

	rec = s.form(t, "/dismiss/settings", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViews_CreateFormShowsError(t *testing.T) {
	s := newTestServer(t, solana.LamportsPerSOL)
	_, err := s.manager.Connect(context.Background())
	require.NoError(t, err)

	rec := s.form(t, "/create-token", url.Values{"name": {"MyToken"}, "symbol": {""}, "decimals": {"6"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/create-token", rec.Header().Get("Location"))
	s.controller.Wait()

	state := s.controller.State(view.Create)
	require.Equal(t, view.Failed, state.Status)
	assert.True(t, apperr.IsKind(state.Err, apperr.KindValidation))

	rec = s.do(t, http.MethodGet, "/create-token", "")
	assert.Contains(t, rec.Body.String(), "token symbol is required")
}

func TestViews_CreateFormSuccess(t *testing.T) {
	s := newTestServer(t, solana.LamportsPerSOL)
	_, err := s.manager.Connect(context.Background())
	require.NoError(t, err)

	s.form(t, "/create-token", url.Values{"name": {"MyToken"}, "symbol": {"MTK"}, "decimals": {"6"}})
	s.controller.Wait()

	state := s.controller.State(view.Create)
	require.Equal(t, view.Success, state.Status, state.Err)
	result, ok := state.Result.(*token.CreateMintResult)
	require.True(t, ok)

	rec := s.do(t, http.MethodGet, "/create-token", "")
	body := rec.Body.String()
	assert.Contains(t, body, "Created MyToken (MTK)")
	assert.Contains(t, body, "/mint-token?mint="+result.Mint.String())
}

func TestViews_HistoryFetchesOnFreshMount(t *testing.T) {
	s := newTestServer(t, solana.LamportsPerSOL)

	// not connected: no fetch
	s.do(t, http.MethodGet, "/history", "")
	s.controller.Wait()
	assert.Equal(t, view.Idle, s.controller.State(view.History).Status)

	_, err := s.manager.Connect(context.Background())
	require.NoError(t, err)

	s.do(t, http.MethodGet, "/", "")
	s.do(t, http.MethodGet, "/history", "")
	s.controller.Wait()
	state := s.controller.State(view.History)
	require.Equal(t, view.Success, state.Status)
	assert.Equal(t, "No transactions found", state.Message)

	// a failed refresh keeps the previous records under an error banner
	s.mock.SetError("GetSignaturesForAddress", errors.New("429 too many requests"))
	s.form(t, "/history", nil)
	s.controller.Wait()
	state = s.controller.State(view.History)
	require.Equal(t, view.Failed, state.Status)
	_, kept := state.Result.([]history.Record)
	assert.True(t, kept)

	rec := s.do(t, http.MethodGet, "/history", "")
	assert.Contains(t, rec.Body.String(), "could not list transactions")
}

func TestViews_HistoryTableShowsSlot(t *testing.T) {
	s := newTestServer(t, 2*solana.LamportsPerSOL)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/session/connect", "").Code)
	rec := s.do(t, http.MethodPost, "/api/v1/tokens", `{"name":"MyToken","symbol":"MTK","decimals":6}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	s.do(t, http.MethodGet, "/history", "")
	s.controller.Wait()
	state := s.controller.State(view.History)
	require.Equal(t, view.Success, state.Status, state.Err)
	records, ok := state.Result.([]history.Record)
	require.True(t, ok)
	require.NotEmpty(t, records)
	require.NotZero(t, records[0].Slot)

	body := s.do(t, http.MethodGet, "/history", "").Body.String()
	assert.Contains(t, body, "<th>Slot</th>")
	assert.Contains(t, body, "<td>"+strconv.FormatUint(records[0].Slot, 10)+"</td>")
}
