package nats

import (
	"time"

	"github.com/brojonat/solsage/service/apperr"
	"github.com/brojonat/solsage/service/view"
	"github.com/google/uuid"
)

// AnonymousSubject carries events of operations run without a connected wallet.
const AnonymousSubject = "ops.anonymous"

// OperationEvent is a view state transition published to NATS.
// It is published to the subject "ops.{wallet_address}" in JetStream.
type OperationEvent struct {
	ID   string `json:"id"`
	View string `json:"view"`

	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	// Failure details, set when Status is "error".
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// Signature of the confirmed transaction, when the operation produced one.
	Signature string `json:"signature,omitempty"`

	WalletAddress string    `json:"wallet_address,omitempty"`
	Generation    uint64    `json:"generation"`
	Timestamp     time.Time `json:"timestamp"`
}

// signed is implemented by operation results that carry a transaction.
type signed interface {
	TxSignature() string
}

// NewOperationEvent converts a view transition into an event for the given wallet.
// address may be empty when no wallet is connected.
func NewOperationEvent(e view.Event, address string) *OperationEvent {
	event := &OperationEvent{
		ID:            uuid.NewString(),
		View:          string(e.View),
		Status:        string(e.State.Status),
		Message:       e.State.Message,
		WalletAddress: address,
		Generation:    e.State.Generation,
		Timestamp:     e.State.UpdatedAt,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if e.State.Err != nil {
		event.Error = apperr.Message(e.State.Err)
		event.ErrorKind = string(apperr.KindOf(e.State.Err))
	}
	if e.State.Status == view.Success {
		if s, ok := e.State.Result.(signed); ok {
			event.Signature = s.TxSignature()
		}
	}
	return event
}

// Subject returns the subject the event is published on.
func (e *OperationEvent) Subject() string {
	return SubjectFor(e.WalletAddress)
}

// SubjectFor returns the per-wallet subject, or AnonymousSubject for "".
func SubjectFor(address string) string {
	if address == "" {
		return AnonymousSubject
	}
	return "ops." + address
}
