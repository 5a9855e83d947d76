package solana

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Program names used in TransferDetail.
const (
	ProgramSystem   = "system"
	ProgramSPLToken = "spl-token"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// ConfirmedTransaction is a fetched transaction as shown in the history view.
// It is our domain model, independent of the RPC response format.
type ConfirmedTransaction struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Transfer  *TransferDetail // nil for anything that is not a plain transfer
	Err       *string         // nil if the transaction succeeded
}

// TransferDetail describes the first top-level transfer instruction of a transaction.
// For system transfers Amount is lamports; for SPL token transfers it is base units
// and Source/Destination are token accounts.
type TransferDetail struct {
	Program     string
	Source      string
	Destination string
	Amount      uint64
}

// Outcome is the terminal result of a confirmation poll.
type Outcome string

const (
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomeOnChainError Outcome = "on_chain_error"
	OutcomeExpired      Outcome = "expired"
	OutcomeTimedOut     Outcome = "timed_out"
)

// Confirmation reports how a submitted signature settled.
type Confirmation struct {
	Signature solana.Signature
	Outcome   Outcome
	Attempts  int
	Slot      uint64
	Err       string // on-chain error or last poll error, if any
}

// Confirmed reports whether the transaction reached confirmed commitment without error.
func (c Confirmation) Confirmed() bool {
	return c.Outcome == OutcomeConfirmed
}

// ConfirmPolicy bounds confirmation polling.
type ConfirmPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultConfirmPolicy polls once a second for up to a minute.
var DefaultConfirmPolicy = ConfirmPolicy{Interval: time.Second, MaxAttempts: 60}
