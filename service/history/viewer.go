package history

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/metrics"
	"github.com/brojonat/solsage/service/solana"
	"github.com/brojonat/solsage/service/token"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// DefaultLimit is how many transactions the history view shows.
const DefaultLimit = 5

// MaxLimit caps a single history request.
const MaxLimit = 25

// Source is the subset of *solana.Client the viewer reads from.
type Source interface {
	RecentSignatures(ctx context.Context, address solanago.PublicKey, limit int) ([]*rpc.TransactionSignature, error)
	Transaction(ctx context.Context, sig solanago.Signature) (*solana.ConfirmedTransaction, error)
}

// Viewer fetches recent transactions for an address. Nothing is cached.
type Viewer struct {
	source       Source
	defaultLimit int
	cluster      string // explorer cluster param, empty for mainnet
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewViewer creates a Viewer. A non-positive defaultLimit uses DefaultLimit.
func NewViewer(source Source, defaultLimit int, cluster string, m *metrics.Metrics, logger *slog.Logger) *Viewer {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Viewer{
		source:       source,
		defaultLimit: min(defaultLimit, MaxLimit),
		cluster:      cluster,
		logger:       logger,
		metrics:      m,
	}
}

// Record is one history row ready for display.
type Record struct {
	Signature      string     `json:"signature"`
	Slot           uint64     `json:"slot"`
	BlockTime      *time.Time `json:"block_time,omitempty"`
	Kind           string     `json:"kind"` // "transfer" or "non-transfer"
	Program        string     `json:"program,omitempty"`
	Source         string     `json:"source,omitempty"`
	Destination    string     `json:"destination,omitempty"`
	Amount         uint64     `json:"amount,omitempty"` // lamports or token base units
	AmountDisplay  string     `json:"amount_display,omitempty"`
	Failed         bool       `json:"failed"`
	Error          string     `json:"error,omitempty"`
	ExplorerURL    string     `json:"explorer_url"`
	ShortSignature string     `json:"-"`
}

// Fetch returns up to limit recent transactions for address, newest first in
// the order the endpoint returned them. Transactions the endpoint returns as
// null are skipped. A non-positive limit uses the default.
func (v *Viewer) Fetch(ctx context.Context, address solanago.PublicKey, limit int) (records []Record, err error) {
	defer func() {
		if v.metrics == nil {
			return
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		v.metrics.RecordHistoryFetch(status, len(records))
	}()

	if limit <= 0 {
		limit = v.defaultLimit
	}
	limit = min(limit, MaxLimit)

	signatures, err := v.source.RecentSignatures(ctx, address, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFetch, err, "could not list transactions for %s", address)
	}

	records = make([]Record, 0, len(signatures))
	for _, sig := range signatures {
		txn, err := v.source.Transaction(ctx, sig.Signature)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindFetch, err, "could not load transaction %s", sig.Signature)
		}
		if txn == nil {
			v.logger.DebugContext(ctx, "skipping unavailable transaction", "signature", sig.Signature.String())
			continue
		}
		records = append(records, v.toRecord(txn))
	}

	v.logger.InfoContext(ctx, "fetched transaction history",
		"address", address.String(),
		"signatures", len(signatures),
		"records", len(records),
	)
	return records, nil
}

func (v *Viewer) toRecord(txn *solana.ConfirmedTransaction) Record {
	r := Record{
		Signature:      txn.Signature,
		Slot:           txn.Slot,
		BlockTime:      txn.BlockTime,
		Kind:           "non-transfer",
		ExplorerURL:    ExplorerTxURL(txn.Signature, v.cluster),
		ShortSignature: token.ShortAddress(txn.Signature),
	}
	if txn.Err != nil {
		r.Failed = true
		r.Error = *txn.Err
	}
	if t := txn.Transfer; t != nil {
		r.Kind = "transfer"
		r.Program = t.Program
		r.Source = t.Source
		r.Destination = t.Destination
		r.Amount = t.Amount
		r.AmountDisplay = FormatAmount(t)
	}
	return r
}

// FormatAmount renders a transfer amount: SOL for system transfers, UI units
// at the fixed factor for token transfers.
func FormatAmount(t *solana.TransferDetail) string {
	if t.Program == solana.ProgramSystem {
		return token.FormatSOL(t.Amount) + " SOL"
	}
	return token.FormatUnits(t.Amount) + " tokens"
}

// ExplorerTxURL links a signature on the Solana explorer.
func ExplorerTxURL(signature, cluster string) string {
	return explorerURL("tx", signature, cluster)
}

// ExplorerAddressURL links an account on the Solana explorer.
func ExplorerAddressURL(address, cluster string) string {
	return explorerURL("address", address, cluster)
}

func explorerURL(kind, id, cluster string) string {
	u := fmt.Sprintf("https://explorer.solana.com/%s/%s", kind, url.PathEscape(id))
	if cluster != "" {
		u += "?cluster=" + url.QueryEscape(cluster)
	}
	return u
}
