package wallet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/metrics"
	solanago "github.com/gagliardetto/solana-go"
)

// Session is a connected wallet. Balance is nil until the first successful refresh.
type Session struct {
	Address          solanago.PublicKey
	Balance          *uint64 // lamports
	BalanceUpdatedAt time.Time
}

// BalanceSource reads an account's lamport balance. *solana.Client implements it.
type BalanceSource interface {
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
}

// Manager owns the wallet session. All mutation goes through Connect,
// Disconnect and RefreshBalance; readers get copies.
type Manager struct {
	provider Provider
	balances BalanceSource
	logger   *slog.Logger
	metrics  *metrics.Metrics

	opMu    sync.Mutex // serializes provider calls
	mu      sync.RWMutex
	session *Session
}

// NewManager creates a manager with no session.
func NewManager(provider Provider, balances BalanceSource, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		provider: provider,
		balances: balances,
		logger:   logger,
		metrics:  m,
	}
}

func (m *Manager) record(action string, err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordSessionTransition(action, status)
}

// Connect asks the provider for authorization and starts a session.
// A balance refresh failure after a successful connect is logged only.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	address, err := m.provider.Connect(ctx)
	if err != nil {
		err = apperr.Wrap(apperr.KindConnection, err, "could not connect to the wallet")
		m.record("connect", err)
		m.logger.WarnContext(ctx, "wallet connect failed", "error", err)
		return Session{}, err
	}

	m.mu.Lock()
	m.session = &Session{Address: address}
	m.mu.Unlock()
	m.record("connect", nil)
	m.logger.InfoContext(ctx, "wallet connected", "address", address.String())

	if err := m.refresh(ctx); err != nil {
		m.logger.WarnContext(ctx, "balance refresh after connect failed",
			"address", address.String(),
			"error", err,
		)
	}

	s, _ := m.Session()
	return s, nil
}

// Disconnect ends the session. Without a session it does nothing.
// On provider failure the session is kept.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	connected := m.session != nil
	m.mu.RUnlock()
	if !connected {
		return nil
	}

	if err := m.provider.Disconnect(ctx); err != nil {
		err = apperr.Wrap(apperr.KindDisconnection, err, "could not disconnect the wallet")
		m.record("disconnect", err)
		m.logger.WarnContext(ctx, "wallet disconnect failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	m.record("disconnect", nil)
	m.logger.InfoContext(ctx, "wallet disconnected")
	return nil
}

// RefreshBalance re-reads the session's balance. Without a session it does nothing.
func (m *Manager) RefreshBalance(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.refresh(ctx)
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.RLock()
	if m.session == nil {
		m.mu.RUnlock()
		return nil
	}
	address := m.session.Address
	m.mu.RUnlock()

	lamports, err := m.balances.Balance(ctx, address)
	if err != nil {
		return apperr.Wrap(apperr.KindFetch, err, "could not fetch the wallet balance")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// the session may have changed while the RPC call was in flight
	if m.session == nil || !m.session.Address.Equals(address) {
		return nil
	}
	m.session.Balance = &lamports
	m.session.BalanceUpdatedAt = time.Now().UTC()
	return nil
}

// Session returns a copy of the current session and whether one exists.
func (m *Manager) Session() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Session{}, false
	}
	s := *m.session
	if s.Balance != nil {
		b := *s.Balance
		s.Balance = &b
	}
	return s, true
}

// Address returns the connected address, if any.
func (m *Manager) Address() (solanago.PublicKey, bool) {
	s, ok := m.Session()
	return s.Address, ok
}

// SignTransaction has the connected wallet sign tx.
func (m *Manager) SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	if _, ok := m.Address(); !ok {
		return nil, apperr.New(apperr.KindConnection, "no wallet is connected")
	}
	signed, err := m.provider.SignTransaction(ctx, tx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSubmission, err, "the wallet did not sign the transaction")
	}
	return signed, nil
}
