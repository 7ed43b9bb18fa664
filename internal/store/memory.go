package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"braces.dev/errtrace"
	"github.com/google/uuid"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/txn"
)

// MemoryStore is an in-process [Store] guarded by a single mutex: no
// attempt at realistic concurrency control beyond "one lock for the
// whole table", since its only job is to let the submission/workers/
// callback packages be unit tested without a live Postgres. [pg.Store]
// is what actually claims rows with leases in production.
type MemoryStore struct {
	mu sync.Mutex

	seq int64

	transactions map[uuid.UUID]*model.Transaction
	events       []*model.GatewayEvent
	audits       []*model.AuditLog
	gwCallbacks  map[uuid.UUID]*model.GatewayCallback
	clCallbacks  map[uuid.UUID]*model.ClientCallback
	tsqTasks     map[uuid.UUID]*model.TSQTask

	watcher *txn.Watcher
}

// NewMemoryStore builds an empty in-memory store. watcher may be nil.
func NewMemoryStore(watcher *txn.Watcher) *MemoryStore {
	return &MemoryStore{
		transactions: make(map[uuid.UUID]*model.Transaction),
		gwCallbacks:  make(map[uuid.UUID]*model.GatewayCallback),
		clCallbacks:  make(map[uuid.UUID]*model.ClientCallback),
		tsqTasks:     make(map[uuid.UUID]*model.TSQTask),
		watcher:      watcher,
	}
}

func (s *MemoryStore) MintIDs(_ context.Context) (string, string, error) {
	seq := atomic.AddInt64(&s.seq, 1)
	sessionID, trackingNumber := FormatIDs(seq)
	return sessionID, trackingNumber, nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.transactions {
		if existing.InstitutionID == t.InstitutionID && existing.ReferenceNumber == t.ReferenceNumber {
			return errtrace.Wrap(apperr.ErrDuplicateReference)
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTransactionByID(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, errtrace.Wrap(apperr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetTransactionByReference(_ context.Context, institutionID uuid.UUID, ref string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.transactions {
		if t.InstitutionID == institutionID && t.ReferenceNumber == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errtrace.Wrap(apperr.ErrNotFound)
}

func (s *MemoryStore) GetTransactionBySessionID(_ context.Context, sessionID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.transactions {
		if t.SessionID == sessionID || t.FTCSessionID == sessionID || t.ReversalSessionID == sessionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errtrace.Wrap(apperr.ErrNotFound)
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, actor, reason string, mutate func(*model.Transaction)) error {
	s.mu.Lock()

	t, ok := s.transactions[id]
	if !ok {
		s.mu.Unlock()
		return errtrace.Wrap(apperr.ErrNotFound)
	}

	from := t.Status
	if err := txn.Validate(from, newStatus); err != nil {
		s.mu.Unlock()
		return err
	}

	if mutate != nil {
		mutate(t)
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now()
	if newStatus.Terminal() {
		now := time.Now()
		t.CompletedAt = &now
	}

	s.audits = append(s.audits, &model.AuditLog{
		ID:            uuid.New(),
		TransactionID: id,
		Actor:         actor,
		FromStatus:    from,
		ToStatus:      newStatus,
		Reason:        reason,
		CreatedAt:     time.Now(),
	})

	watcher := s.watcher
	s.mu.Unlock()

	watcher.Fire(ctx, txn.ChangeEvent{TransactionID: id.String(), From: from, To: newStatus})
	return nil
}

func (s *MemoryStore) ClaimByStatus(_ context.Context, status model.Status, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return claimSorted(s.transactions, limit, func(t *model.Transaction) bool {
		return t.Status == status
	}), nil
}

func (s *MemoryStore) ClaimReversalDue(_ context.Context, maxAttempts, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return claimSorted(s.transactions, limit, func(t *model.Transaction) bool {
		return t.ReversalRequired && t.Status == model.StatusReversalPending && t.ReversalAttempts < maxAttempts
	}), nil
}

func (s *MemoryStore) ClaimTimedOut(_ context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return claimSorted(s.transactions, limit, func(t *model.Transaction) bool {
		switch t.Status {
		case model.StatusReversalPending, model.StatusReversalSuccess, model.StatusReversalFailed:
			return false
		}
		return !t.Status.Terminal() && !t.TimeoutAt.IsZero() && !now.Before(t.TimeoutAt)
	}), nil
}

func claimSorted(m map[uuid.UUID]*model.Transaction, limit int, match func(*model.Transaction) bool) []*model.Transaction {
	var out []*model.Transaction
	for _, t := range m {
		if match(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev *model.GatewayEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same upsert rule as the Postgres backend: one row per
	// (transactionId, eventSequence), response fields filled only while
	// still empty.
	for _, existing := range s.events {
		if existing.TransactionID != ev.TransactionID || existing.EventSequence != ev.EventSequence {
			continue
		}
		if existing.ResponsePayload == nil {
			existing.ResponsePayload = ev.ResponsePayload
		}
		if existing.ActionCode == "" {
			existing.ActionCode = ev.ActionCode
		}
		if existing.StatusLabel == "" {
			existing.StatusLabel = ev.StatusLabel
		}
		if existing.ResponseReceivedAt == nil {
			existing.ResponseReceivedAt = ev.ResponseReceivedAt
		}
		if existing.DurationMS == 0 {
			existing.DurationMS = ev.DurationMS
		}
		return nil
	}

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	cp := *ev
	s.events = append(s.events, &cp)
	return nil
}

// EventsFor returns copies of every gateway event recorded against
// transactionID, in append order. Test-double convenience; not part of
// [Store].
func (s *MemoryStore) EventsFor(transactionID uuid.UUID) []*model.GatewayEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.GatewayEvent
	for _, ev := range s.events {
		if ev.TransactionID == transactionID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryStore) AppendAudit(_ context.Context, a *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cp := *a
	s.audits = append(s.audits, &cp)
	return nil
}

// AuditsFor returns copies of every audit row recorded against
// transactionID, in append order. Test-double convenience; not part of
// [Store].
func (s *MemoryStore) AuditsFor(transactionID uuid.UUID) []*model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.AuditLog
	for _, a := range s.audits {
		if a.TransactionID == transactionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryStore) SaveGatewayCallback(_ context.Context, cb *model.GatewayCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb.ID == uuid.Nil {
		cb.ID = uuid.New()
	}
	if cb.Status == "" {
		cb.Status = model.GatewayCallbackPending
	}
	cp := *cb
	s.gwCallbacks[cb.ID] = &cp
	return nil
}

// GatewayCallbacksWithStatus returns copies of every stored gateway
// callback currently in status. Test-double convenience; not part of
// [Store].
func (s *MemoryStore) GatewayCallbacksWithStatus(status model.GatewayCallbackStatus) []*model.GatewayCallback {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.GatewayCallback
	for _, cb := range s.gwCallbacks {
		if cb.Status == status {
			cp := *cb
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryStore) ClaimPendingCallbacks(_ context.Context, limit int) ([]*model.GatewayCallback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.GatewayCallback
	for _, cb := range s.gwCallbacks {
		if cb.Status == model.GatewayCallbackPending {
			cp := *cb
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateGatewayCallback(_ context.Context, cb *model.GatewayCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gwCallbacks[cb.ID]; !ok {
		return errtrace.Wrap(apperr.ErrNotFound)
	}
	cp := *cb
	s.gwCallbacks[cb.ID] = &cp
	return nil
}

func (s *MemoryStore) EnqueueClientCallback(_ context.Context, cc *model.ClientCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cc.ID == uuid.Nil {
		cc.ID = uuid.New()
	}
	if cc.Status == "" {
		cc.Status = model.ClientCallbackPending
	}
	now := time.Now()
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = now
	}
	cc.UpdatedAt = now
	cp := *cc
	s.clCallbacks[cc.ID] = &cp
	return nil
}

func (s *MemoryStore) ClaimDueClientCallbacks(_ context.Context, now time.Time, limit int) ([]*model.ClientCallback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.ClientCallback
	for _, cc := range s.clCallbacks {
		if cc.Status == model.ClientCallbackPending && !now.Before(cc.NextAttemptAt) {
			cp := *cc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateClientCallback(_ context.Context, cc *model.ClientCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clCallbacks[cc.ID]; !ok {
		return errtrace.Wrap(apperr.ErrNotFound)
	}
	cc.UpdatedAt = time.Now()
	cp := *cc
	s.clCallbacks[cc.ID] = &cp
	return nil
}

func (s *MemoryStore) MarkClientCallbackSent(_ context.Context, transactionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[transactionID]
	if !ok {
		return errtrace.Wrap(apperr.ErrNotFound)
	}
	t.ClientCallbackSent = true
	t.ClientCallbackSentAt = &at
	return nil
}

func (s *MemoryStore) ScheduleTSQ(_ context.Context, task *model.TSQTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	cp := *task
	s.tsqTasks[task.ID] = &cp
	return nil
}

func (s *MemoryStore) ClaimDueTSQTasks(_ context.Context, now time.Time, maxAttempts, limit int) ([]*model.TSQTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.TSQTask
	for _, task := range s.tsqTasks {
		if !now.Before(task.ScheduledFor) && task.Attempts < maxAttempts {
			cp := *task
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateTSQTask(_ context.Context, task *model.TSQTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tsqTasks[task.ID]; !ok {
		return errtrace.Wrap(apperr.ErrNotFound)
	}
	cp := *task
	s.tsqTasks[task.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteTSQTask(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tsqTasks, id)
	return nil
}

func (s *MemoryStore) Close() {}
