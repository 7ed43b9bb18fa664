// Package txn implements the transaction state machine: the
// transition table, the in-process hook registry used to notify
// observers of a status change, and the validation that the store's
// UpdateStatus call applies under a row lock before writing.
//
// The package is a small table of allowed edges plus an observer
// registry, rather than a full FSM library — the table here is static
// and small enough that a general-purpose FSM package would only add
// indirection.
package txn

import (
	"context"

	"braces.dev/errtrace"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/types"
)

// edges maps a status to the set of statuses it may directly transition
// to. Any edge not listed here is rejected by [CanTransition].
var edges = map[model.Status][]model.Status{
	model.StatusInitiated:  {model.StatusNECPending, model.StatusFTDPending, model.StatusFailed, model.StatusTimeout},
	model.StatusNECPending: {model.StatusNECSuccess, model.StatusNECFailed, model.StatusTimeout},
	model.StatusNECSuccess: {model.StatusCompleted, model.StatusFTDPending},
	model.StatusNECFailed:  {model.StatusFailed},
	model.StatusFTDPending: {model.StatusFTDSuccess, model.StatusFTDFailed, model.StatusFTDTSQ, model.StatusTimeout},
	model.StatusFTDTSQ:     {model.StatusFTDSuccess, model.StatusFTDFailed, model.StatusTimeout},
	model.StatusFTDSuccess: {model.StatusFTCPending},
	model.StatusFTDFailed:  {model.StatusFailed},
	model.StatusFTCPending: {model.StatusFTCSuccess, model.StatusFTCFailed, model.StatusFTCTSQ, model.StatusTimeout},
	model.StatusFTCTSQ:     {model.StatusFTCSuccess, model.StatusFTCFailed, model.StatusTimeout},
	model.StatusFTCSuccess: {model.StatusCompleted},
	model.StatusFTCFailed:  {model.StatusReversalPending},
	// Reversal re-enters REVERSAL_PENDING on every retry (new session id,
	// incremented attempt counter) until it resolves or attempts are
	// exhausted.
	model.StatusReversalPending: {model.StatusReversalPending, model.StatusReversalSuccess, model.StatusReversalFailed},
	model.StatusReversalSuccess: {model.StatusFailed},
	model.StatusReversalFailed:  {model.StatusFailed},
	model.StatusCompleted:       nil,
	model.StatusFailed:          nil,
	model.StatusTimeout:         nil,
}

// CanTransition reports whether from -> to is a valid edge in the table
// above.
func CanTransition(from, to model.Status) bool {
	for _, allowed := range edges[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate returns [apperr.ErrInvalidTransition] if from -> to is not an
// allowed edge.
func Validate(from, to model.Status) error {
	if !CanTransition(from, to) {
		return errtrace.Wrap(apperr.InvalidTransition("%s -> %s is not a valid transition", from, to))
	}
	return nil
}

// ChangeEvent is delivered to observers registered with [Watcher.OnStateChanged].
type ChangeEvent struct {
	TransactionID string
	From, To      model.Status
}

// Watcher is an in-process, per-process registry of status-change
// observers layered on top of the durable audit log the store writes
// unconditionally. Nothing load-bearing depends on a Watcher firing —
// observers are optional, for things like metrics counters; the workers
// and the dispatcher poll the store and do not register with it.
type Watcher struct {
	cbs types.CallbackManager[func(context.Context, ChangeEvent)]
}

// OnStateChanged registers fn to be called after every successful
// status update. The returned func deregisters it.
func (w *Watcher) OnStateChanged(fn func(context.Context, ChangeEvent)) (remove func()) {
	return w.cbs.Add(fn)
}

// Fire notifies all registered observers. Called by the store after a
// status update commits.
func (w *Watcher) Fire(ctx context.Context, ev ChangeEvent) {
	if w == nil {
		return
	}
	for fn := range w.cbs.All() {
		fn(ctx, ev)
	}
}
