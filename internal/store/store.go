// Package store defines the State Store contract: the single
// durable source of truth every component coordinates through. It is
// kept as an interface so workers and the submission API can be tested
// against [NewMemoryStore] without a live database, while [pg.Store]
// (package github.com/relaypay/switchcore/internal/store/pg) backs
// production with Postgres.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relaypay/switchcore/internal/model"
)

// Store is the full State Store contract. All mutation methods apply
// row-level locking equivalent to "claim, mutate, release":
// two callers racing the same row must never both succeed.
type Store interface {
	// MintIDs produces a globally unique, monotonic-enough
	// (sessionId, trackingNumber) pair.
	MintIDs(ctx context.Context) (sessionID, trackingNumber string, err error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetTransactionByReference(ctx context.Context, institutionID uuid.UUID, ref string) (*model.Transaction, error)
	// GetTransactionBySessionID looks a transaction up by its FTD,
	// FTC, or Reversal session id — whichever matches.
	GetTransactionBySessionID(ctx context.Context, sessionID string) (*model.Transaction, error)

	// UpdateStatus validates from -> to against the state machine,
	// applies mutate under a row lock, stamps CompletedAt on entering a
	// terminal state, and appends an audit row, all inside one
	// transaction boundary; it fires the [txn.Watcher] after that commits.
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, actor, reason string, mutate func(*model.Transaction)) error

	// ClaimByStatus claims up to limit transactions currently in status,
	// skipping rows claimed by another worker (the production backend
	// stamps a short lease so a crashed claimant's rows free themselves),
	// and returns them already loaded — the caller processes each and
	// calls UpdateStatus itself.
	ClaimByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Transaction, error)
	// ClaimReversalDue claims transactions with reversalRequired=true,
	// status=REVERSAL_PENDING, and reversalAttempts < maxAttempts.
	ClaimReversalDue(ctx context.Context, maxAttempts, limit int) ([]*model.Transaction, error)
	// ClaimTimedOut claims transactions whose timeoutAt has elapsed in
	// a non-terminal, non-reversal status.
	ClaimTimedOut(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error)

	AppendEvent(ctx context.Context, ev *model.GatewayEvent) error
	AppendAudit(ctx context.Context, a *model.AuditLog) error

	SaveGatewayCallback(ctx context.Context, cb *model.GatewayCallback) error
	ClaimPendingCallbacks(ctx context.Context, limit int) ([]*model.GatewayCallback, error)
	UpdateGatewayCallback(ctx context.Context, cb *model.GatewayCallback) error

	EnqueueClientCallback(ctx context.Context, cc *model.ClientCallback) error
	ClaimDueClientCallbacks(ctx context.Context, now time.Time, limit int) ([]*model.ClientCallback, error)
	UpdateClientCallback(ctx context.Context, cc *model.ClientCallback) error
	MarkClientCallbackSent(ctx context.Context, transactionID uuid.UUID, at time.Time) error

	ScheduleTSQ(ctx context.Context, task *model.TSQTask) error
	ClaimDueTSQTasks(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*model.TSQTask, error)
	UpdateTSQTask(ctx context.Context, task *model.TSQTask) error
	DeleteTSQTask(ctx context.Context, id uuid.UUID) error

	Close()
}
