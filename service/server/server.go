package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solsage/service/config"
	"github.com/brojonat/solsage/service/history"
	"github.com/brojonat/solsage/service/metrics"
	"github.com/brojonat/solsage/service/token"
	"github.com/brojonat/solsage/service/view"
	"github.com/brojonat/solsage/service/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP front end: HTML views plus a JSON API over the same
// wallet session and token builder.
type Server struct {
	addr       string
	cfg        *config.Config
	session    *wallet.Manager
	builder    *token.Builder
	history    *history.Viewer
	controller *view.Controller
	stream     *OperationStream
	renderer   *TemplateRenderer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// Deps are the components the server drives.
type Deps struct {
	Session    *wallet.Manager
	Builder    *token.Builder
	History    *history.Viewer
	Controller *view.Controller
}

// New creates a new HTTP server with the given dependencies.
// The stream is optional - if nil, the SSE endpoint isn't available.
// The metrics is optional - if nil, the metrics endpoint isn't available.
func New(cfg *config.Config, deps Deps, stream *OperationStream, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:       cfg.ServerAddr,
		cfg:        cfg,
		session:    deps.Session,
		builder:    deps.Builder,
		history:    deps.History,
		controller: deps.Controller,
		stream:     stream,
		metrics:    m,
		logger:     logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	instrument := func(name string, h http.Handler) http.Handler {
		return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
	}

	// JSON API
	mux.Handle("GET /api/v1/session", instrument("get_session", handleGetSession(s.session)))
	mux.Handle("POST /api/v1/session/connect", instrument("connect", handleConnect(s.session, s.logger)))
	mux.Handle("POST /api/v1/session/disconnect", instrument("disconnect", handleDisconnect(s.session, s.logger)))
	mux.Handle("POST /api/v1/session/balance", instrument("refresh_balance", handleRefreshBalance(s.session, s.logger)))
	mux.Handle("POST /api/v1/tokens", instrument("create_mint", handleCreateMint(s.builder, s.cfg.ExplorerCluster(), s.logger)))
	mux.Handle("POST /api/v1/tokens/{mint}/mint", instrument("mint_supply", handleMintSupply(s.builder, s.cfg.ExplorerCluster(), s.logger)))
	mux.Handle("POST /api/v1/tokens/{mint}/transfer", instrument("transfer", handleTransfer(s.builder, s.cfg.ExplorerCluster(), s.logger)))
	mux.Handle("GET /api/v1/history", instrument("history", handleHistory(s.history, s.session, s.logger)))

	// SSE streaming endpoints (if the stream is configured)
	if s.stream != nil {
		mux.Handle("GET /api/v1/stream/operations/{address}", handleStreamOperations(s.stream, s.metrics, s.logger))
		mux.Handle("GET /api/v1/stream/operations", handleStreamOperations(s.stream, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("NATS not configured, streaming endpoints disabled")
	}

	// HTML views (if template renderer is configured)
	if s.renderer != nil {
		pages := &pageHandlers{
			renderer:   s.renderer,
			controller: s.controller,
			session:    s.session,
			builder:    s.builder,
			history:    s.history,
			cfg:        s.cfg,
			logger:     s.logger,
		}
		pages.register(mux, instrument)
		s.logger.Info("HTML view endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(s.cfg.AllowedOrigins, s.crossOriginGuard()(limitBody(mux)))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// token operations wait for confirmation and SSE streams stay open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server, then waits for view
// operations already broadcast to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close the stream first (disconnects all SSE clients)
	if s.stream != nil {
		s.stream.Close()
	}

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.controller.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached with operations still running")
	}
	return err
}

// limitBody caps every request body at maxRequestBodySize.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// crossOriginGuard rejects state-changing requests a browser sends on behalf
// of another site. Every POST here can make the wallet sign, so a foreign page
// must not be able to submit a form or fetch to this server. Requests without
// browser headers (the CLI, curl) pass.
func (s *Server) crossOriginGuard() func(http.Handler) http.Handler {
	protection := http.NewCrossOriginProtection()
	for _, origin := range s.cfg.AllowedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			s.logger.Error("ignoring invalid allowed origin", "origin", origin, "error", err)
		}
	}
	protection.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "rejected cross-origin request",
			"method", r.Method,
			"path", r.URL.Path,
			"origin", r.Header.Get("Origin"),
			"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
		)
		writeError(w, "cross-origin request rejected", "forbidden", http.StatusForbidden)
	}))
	return protection.Handler
}

// corsMiddleware answers CORS for the allowed origins only. Other origins get
// no CORS headers, so browsers keep them from reading responses.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	origins := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		origins[origin] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
