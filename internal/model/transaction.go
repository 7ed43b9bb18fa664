// Package model holds the persisted entities of the transaction lifecycle
// engine: Transaction, GatewayEvent, GatewayCallback, ClientCallback, and
// the audit log. Types here are storage-shape structs with no behavior
// beyond small helpers such as [Status.Terminal]; the state machine edges
// live in package txn, and the workers and store own the behavior.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes a synchronous name lookup from a full
// funds transfer.
type TransactionType string

const (
	TransactionTypeNEC TransactionType = "NEC"
	TransactionTypeFT  TransactionType = "FT"
)

// Status is the transaction's position in the lifecycle state machine.
// The zero value is never a valid stored status.
type Status string

const (
	StatusInitiated       Status = "INITIATED"
	StatusNECPending      Status = "NEC_PENDING"
	StatusNECSuccess      Status = "NEC_SUCCESS"
	StatusNECFailed       Status = "NEC_FAILED"
	StatusFTDPending      Status = "FTD_PENDING"
	StatusFTDTSQ          Status = "FTD_TSQ"
	StatusFTDSuccess      Status = "FTD_SUCCESS"
	StatusFTDFailed       Status = "FTD_FAILED"
	StatusFTCPending      Status = "FTC_PENDING"
	StatusFTCTSQ          Status = "FTC_TSQ"
	StatusFTCSuccess      Status = "FTC_SUCCESS"
	StatusFTCFailed       Status = "FTC_FAILED"
	StatusReversalPending Status = "REVERSAL_PENDING"
	StatusReversalSuccess Status = "REVERSAL_SUCCESS"
	StatusReversalFailed  Status = "REVERSAL_FAILED"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
	StatusTimeout         Status = "TIMEOUT"
)

// Terminal reports whether status is one of COMPLETED|FAILED|TIMEOUT,
// after which only cosmetic fields may change.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// Transaction is the master row.
type Transaction struct {
	ID              uuid.UUID
	ReferenceNumber string
	Type            TransactionType
	InstitutionID   uuid.UUID
	CredentialID    uuid.UUID

	SessionID      string
	TrackingNumber string

	SrcBankCode     string
	SrcAccountNum   string
	SrcAccountName  string
	DestBankCode    string
	DestAccountNum  string
	DestAccountName string

	Amount      decimal.Decimal
	Narration   string
	CallbackURL string

	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	TimeoutAt   time.Time

	NECActionCode      string
	FTDActionCode      string
	FTCActionCode      string
	ReversalActionCode string

	FTCSessionID           string
	FTCTrackingNumber      string
	ReversalSessionID      string
	ReversalTrackingNumber string

	TSQRequired      bool
	TSQNextAttemptAt *time.Time
	TSQAttempts      int

	ReversalRequired bool
	ReversalAttempts int

	ClientCallbackSent   bool
	ClientCallbackSentAt *time.Time
}

// AmountCents renders Amount as the Gateway's 12-digit zero-padded cents
// string. See [gateway.FormatAmount] for the canonical
// implementation; this is a convenience mirror used by log lines and
// tests that only have a [Transaction] in hand.
func (t *Transaction) AmountCents() string {
	cents := t.Amount.Mul(decimal.NewFromInt(100)).Round(0)
	return padLeft(cents.String(), 12)
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	pad := make([]byte, n-len(s))
	for i := range pad {
		pad[i] = '0'
	}
	return string(pad) + s
}
