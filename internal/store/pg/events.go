package pg

import (
	"context"

	"braces.dev/errtrace"
	"github.com/google/uuid"

	"github.com/relaypay/switchcore/internal/model"
)

// AppendEvent inserts ev, upserting onto an existing
// (transaction_id, event_sequence) row by filling in response fields
// that are still empty — a redelivered response never overwrites one
// already recorded.
func (s *Store) AppendEvent(ctx context.Context, ev *model.GatewayEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gateway_events (
			id, transaction_id, event_type, event_sequence,
			session_id, tracking_number, function_code,
			request_payload, response_payload, action_code, status_label,
			request_sent_at, response_received_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (transaction_id, event_sequence) DO UPDATE SET
			response_payload = COALESCE(gateway_events.response_payload, EXCLUDED.response_payload),
			action_code = COALESCE(NULLIF(gateway_events.action_code, ''), EXCLUDED.action_code),
			status_label = COALESCE(NULLIF(gateway_events.status_label, ''), EXCLUDED.status_label),
			response_received_at = COALESCE(gateway_events.response_received_at, EXCLUDED.response_received_at),
			duration_ms = CASE WHEN gateway_events.duration_ms = 0 THEN EXCLUDED.duration_ms ELSE gateway_events.duration_ms END`,
		ev.ID, ev.TransactionID, ev.EventType, ev.EventSequence,
		ev.SessionID, ev.TrackingNumber, ev.FunctionCode,
		ev.RequestPayload, ev.ResponsePayload, ev.ActionCode, ev.StatusLabel,
		ev.RequestSentAt, ev.ResponseReceivedAt, ev.DurationMS,
	)
	return errtrace.Wrap(err)
}

func (s *Store) AppendAudit(ctx context.Context, a *model.AuditLog) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, transaction_id, actor, from_status, to_status, critical, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		a.ID, a.TransactionID, a.Actor, a.FromStatus, a.ToStatus, a.Critical, a.Reason,
	)
	return errtrace.Wrap(err)
}
