package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/config"
	"github.com/brojonat/solsage/service/history"
	"github.com/brojonat/solsage/service/token"
	"github.com/brojonat/solsage/service/view"
	"github.com/brojonat/solsage/service/wallet"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"short":   token.ShortAddress,
		"sol":     token.FormatSOL,
		"units":   token.FormatUnits,
		"txURL":   history.ExplorerTxURL,
		"addrURL": history.ExplorerAddressURL,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, status int, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tr.templates.ExecuteTemplate(w, name, data)
}

// pageData is what every view template receives.
type pageData struct {
	Page    string
	View    view.View
	Views   []view.View
	Path    string
	Theme   view.Theme
	Cluster string
	Session sessionResponse

	State        view.State
	Loading      bool
	ErrorTitle   string
	ErrorMessage string
	TxURL        string

	// view specific
	Records []history.Record
	Prefill map[string]string
}

// pageHandlers serves the HTML views. Actions run through the view
// controller and redirect back, so a reload never resubmits a form.
type pageHandlers struct {
	renderer   *TemplateRenderer
	controller *view.Controller
	session    *wallet.Manager
	builder    *token.Builder
	history    *history.Viewer
	cfg        *config.Config
	logger     *slog.Logger
}

func (p *pageHandlers) register(mux *http.ServeMux, instrument func(string, http.Handler) http.Handler) {
	for _, v := range view.Views {
		pattern := "GET " + v.Path
		if v.Path == "/" {
			pattern = "GET /{$}"
		}
		mux.Handle(pattern, instrument("view_"+string(v.Name), p.handlePage(v)))
	}
	mux.Handle("GET /", instrument("view_not_found", p.handleNotFound()))

	mux.Handle("POST /connect", instrument("form_connect", p.handleAction(view.Connect, p.connect)))
	mux.Handle("POST /disconnect", instrument("form_disconnect", p.handleAction(view.Connect, p.disconnect)))
	mux.Handle("POST /balance", instrument("form_balance", p.handleAction(view.Connect, p.refreshBalance)))
	mux.Handle("POST /create-token", instrument("form_create", p.handleAction(view.Create, p.createMint)))
	mux.Handle("POST /mint-token", instrument("form_mint", p.handleAction(view.Mint, p.mintSupply)))
	mux.Handle("POST /send-token", instrument("form_send", p.handleAction(view.Send, p.transfer)))
	mux.Handle("POST /history", instrument("form_history", p.handleAction(view.History, p.fetchHistory)))

	mux.Handle("POST /dismiss/{view}", instrument("form_dismiss", p.handleDismiss()))
	mux.Handle("POST /theme", instrument("form_theme", p.handleTheme()))
}

// handlePage renders a view. A fresh mount of the history view starts its
// initial fetch when a wallet is connected.
func (p *pageHandlers) handlePage(v view.View) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fresh := p.controller.Mount(v.Name)
		if fresh && v.Name == view.History {
			if _, ok := p.session.Address(); ok {
				if err := p.controller.Run(r.Context(), view.History, p.fetchHistory(r)); err != nil {
					p.logger.DebugContext(r.Context(), "initial history fetch not started", "error", err)
				}
			}
		}
		p.render(w, r, http.StatusOK, v)
	})
}

func (p *pageHandlers) handleNotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.render(w, r, http.StatusNotFound, view.View{Name: "not-found", Path: r.URL.Path, Title: "Not Found"})
	})
}

// handleAction runs op for the view, then redirects back to it.
func (p *pageHandlers) handleAction(name view.Name, op func(r *http.Request) view.Op) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			p.logger.DebugContext(r.Context(), "failed to parse form", "error", err)
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		v, _ := view.ByName(name)
		p.controller.Mount(name)
		if err := p.controller.Run(r.Context(), name, op(r)); err != nil {
			if !errors.Is(err, view.ErrInFlight) {
				p.logger.ErrorContext(r.Context(), "failed to start view operation", "view", name, "error", err)
			}
		}
		http.Redirect(w, r, v.Path, http.StatusSeeOther)
	})
}

func (p *pageHandlers) handleDismiss() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := view.ByName(view.Name(r.PathValue("view")))
		if !ok {
			p.handleNotFound().ServeHTTP(w, r)
			return
		}
		p.controller.Dismiss(v.Name)
		http.Redirect(w, r, v.Path, http.StatusSeeOther)
	})
}

func (p *pageHandlers) handleTheme() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		theme := p.controller.ToggleTheme()
		p.logger.DebugContext(r.Context(), "theme toggled", "theme", theme)

		back := "/"
		if v, ok := view.ByPath(r.FormValue("return_to")); ok {
			back = v.Path
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	})
}

func (p *pageHandlers) connect(r *http.Request) view.Op {
	return func(ctx context.Context) (string, any, error) {
		s, err := p.session.Connect(ctx)
		if err != nil {
			return "", nil, err
		}
		return "Connected " + token.ShortAddress(s.Address.String()), nil, nil
	}
}

func (p *pageHandlers) disconnect(r *http.Request) view.Op {
	return func(ctx context.Context) (string, any, error) {
		if err := p.session.Disconnect(ctx); err != nil {
			return "", nil, err
		}
		return "Wallet disconnected", nil, nil
	}
}

func (p *pageHandlers) refreshBalance(r *http.Request) view.Op {
	return func(ctx context.Context) (string, any, error) {
		if _, ok := p.session.Address(); !ok {
			return "No wallet connected", nil, nil
		}
		if err := p.session.RefreshBalance(ctx); err != nil {
			return "", nil, err
		}
		s, _ := p.session.Session()
		if s.Balance == nil {
			return "Balance refreshed", nil, nil
		}
		return "Balance: " + token.FormatSOL(*s.Balance) + " SOL", nil, nil
	}
}

func (p *pageHandlers) createMint(r *http.Request) view.Op {
	meta := token.MintMetadata{
		Name:     r.PostFormValue("name"),
		Symbol:   r.PostFormValue("symbol"),
		Decimals: r.PostFormValue("decimals"),
	}
	return func(ctx context.Context) (string, any, error) {
		result, err := p.builder.CreateMint(ctx, meta)
		if err != nil {
			return "", nil, err
		}
		return result.Summary(), result, nil
	}
}

func (p *pageHandlers) mintSupply(r *http.Request) view.Op {
	mint, amount := r.PostFormValue("mint"), r.PostFormValue("amount")
	return func(ctx context.Context) (string, any, error) {
		result, err := p.builder.MintSupply(ctx, mint, amount)
		if err != nil {
			return "", nil, err
		}
		return result.Summary(), result, nil
	}
}

func (p *pageHandlers) transfer(r *http.Request) view.Op {
	req := token.TransferRequest{
		Mint:      r.PostFormValue("mint"),
		Recipient: r.PostFormValue("recipient"),
		Amount:    r.PostFormValue("amount"),
	}
	return func(ctx context.Context) (string, any, error) {
		result, err := p.builder.Transfer(ctx, req)
		if err != nil {
			return "", nil, err
		}
		return result.Summary(), result, nil
	}
}

func (p *pageHandlers) fetchHistory(r *http.Request) view.Op {
	return func(ctx context.Context) (string, any, error) {
		address, ok := p.session.Address()
		if !ok {
			return "", nil, apperr.Validation("connect a wallet first")
		}
		records, err := p.history.Fetch(ctx, address, 0)
		if err != nil {
			return "", nil, err
		}
		if len(records) == 0 {
			return "No transactions found", records, nil
		}
		return "", records, nil
	}
}

type signedResult interface {
	TxSignature() string
}

func (p *pageHandlers) render(w http.ResponseWriter, r *http.Request, status int, v view.View) {
	state := p.controller.State(v.Name)
	data := pageData{
		Page:    string(v.Name),
		View:    v,
		Views:   view.Views,
		Path:    v.Path,
		Theme:   p.controller.Theme(),
		Cluster: p.cfg.ExplorerCluster(),
		Session: sessionToResponse(p.session.Session()),
		State:   state,
		Loading: state.Status == view.Loading,
		Prefill: map[string]string{"mint": r.URL.Query().Get("mint")},
	}
	if state.Status == view.Failed && state.Err != nil {
		data.ErrorTitle = apperr.KindOf(state.Err).Title()
		data.ErrorMessage = apperr.Message(state.Err)
	}
	if s, ok := state.Result.(signedResult); ok && state.Status == view.Success {
		data.TxURL = history.ExplorerTxURL(s.TxSignature(), data.Cluster)
	}
	if records, ok := state.Result.([]history.Record); ok {
		data.Records = records
	}

	if err := p.renderer.Render(w, status, "layout", data); err != nil {
		p.logger.ErrorContext(r.Context(), "failed to render template", "view", v.Name, "error", err)
	}
}
