package pg

import (
	"context"
	"errors"
	"time"

	"braces.dev/errtrace"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/model"
)

func (s *Store) SaveGatewayCallback(ctx context.Context, cb *model.GatewayCallback) error {
	if cb.ID == uuid.Nil {
		cb.ID = uuid.New()
	}
	if cb.Status == "" {
		cb.Status = model.GatewayCallbackPending
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gateway_callbacks (
			id, session_id, tracking_number, function_code, action_code,
			status_code, approval_code, raw_payload, source_ip, status,
			transaction_id, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`,
		cb.ID, cb.SessionID, cb.TrackingNumber, cb.FunctionCode, cb.ActionCode,
		cb.StatusCode, cb.ApprovalCode, cb.RawPayload, cb.SourceIP, cb.Status,
		cb.TransactionID,
	)
	return errtrace.Wrap(err)
}

func scanGatewayCallback(row pgx.Row) (*model.GatewayCallback, error) {
	var cb model.GatewayCallback
	err := row.Scan(
		&cb.ID, &cb.SessionID, &cb.TrackingNumber, &cb.FunctionCode, &cb.ActionCode,
		&cb.StatusCode, &cb.ApprovalCode, &cb.RawPayload, &cb.SourceIP, &cb.Status,
		&cb.TransactionID, &cb.ReceivedAt, &cb.ProcessedAt, &cb.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errtrace.Wrap(apperr.ErrNotFound)
	}
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	return &cb, nil
}

const gatewayCallbackColumns = `
	id, session_id, tracking_number, function_code, action_code,
	status_code, approval_code, raw_payload, source_ip, status,
	transaction_id, received_at, processed_at, error_message`

func (s *Store) ClaimPendingCallbacks(ctx context.Context, limit int) ([]*model.GatewayCallback, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE gateway_callbacks SET claimed_until = now() + make_interval(secs => $3)
		WHERE id IN (
			SELECT id FROM gateway_callbacks
			WHERE status = $1 AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY received_at
			FOR UPDATE SKIP LOCKED
			LIMIT $2)
		RETURNING `+gatewayCallbackColumns, model.GatewayCallbackPending, limit, claimLeaseSeconds)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	defer rows.Close()

	var out []*model.GatewayCallback
	for rows.Next() {
		cb, err := scanGatewayCallback(rows)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		out = append(out, cb)
	}
	return out, errtrace.Wrap(rows.Err())
}

func (s *Store) UpdateGatewayCallback(ctx context.Context, cb *model.GatewayCallback) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE gateway_callbacks SET
			status = $2, transaction_id = $3, processed_at = $4, error_message = $5
		WHERE id = $1`,
		cb.ID, cb.Status, cb.TransactionID, cb.ProcessedAt, cb.ErrorMessage,
	)
	return errtrace.Wrap(err)
}

func (s *Store) EnqueueClientCallback(ctx context.Context, cc *model.ClientCallback) error {
	if cc.ID == uuid.Nil {
		cc.ID = uuid.New()
	}
	if cc.Status == "" {
		cc.Status = model.ClientCallbackPending
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO client_callbacks (
			id, transaction_id, url, payload, max_attempts, next_attempt_at, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		cc.ID, cc.TransactionID, cc.URL, cc.Payload, cc.MaxAttempts, cc.NextAttemptAt, cc.Status,
	)
	return errtrace.Wrap(err)
}

const clientCallbackColumns = `
	id, transaction_id, url, payload, attempts, max_attempts, next_attempt_at,
	status, last_response_code, last_response_body, last_error, created_at, updated_at`

func scanClientCallback(row pgx.Row) (*model.ClientCallback, error) {
	var cc model.ClientCallback
	err := row.Scan(
		&cc.ID, &cc.TransactionID, &cc.URL, &cc.Payload, &cc.Attempts, &cc.MaxAttempts, &cc.NextAttemptAt,
		&cc.Status, &cc.LastResponseCode, &cc.LastResponseBody, &cc.LastError, &cc.CreatedAt, &cc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errtrace.Wrap(apperr.ErrNotFound)
	}
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	return &cc, nil
}

func (s *Store) ClaimDueClientCallbacks(ctx context.Context, now time.Time, limit int) ([]*model.ClientCallback, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE client_callbacks SET claimed_until = now() + make_interval(secs => $4)
		WHERE id IN (
			SELECT id FROM client_callbacks
			WHERE status = $1 AND next_attempt_at <= $2
				AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY next_attempt_at
			FOR UPDATE SKIP LOCKED
			LIMIT $3)
		RETURNING `+clientCallbackColumns, model.ClientCallbackPending, now, limit, claimLeaseSeconds)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	defer rows.Close()

	var out []*model.ClientCallback
	for rows.Next() {
		cc, err := scanClientCallback(rows)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		out = append(out, cc)
	}
	return out, errtrace.Wrap(rows.Err())
}

func (s *Store) UpdateClientCallback(ctx context.Context, cc *model.ClientCallback) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE client_callbacks SET
			attempts = $2, next_attempt_at = $3, status = $4,
			last_response_code = $5, last_response_body = $6, last_error = $7, updated_at = now()
		WHERE id = $1`,
		cc.ID, cc.Attempts, cc.NextAttemptAt, cc.Status,
		cc.LastResponseCode, cc.LastResponseBody, cc.LastError,
	)
	return errtrace.Wrap(err)
}

func (s *Store) MarkClientCallbackSent(ctx context.Context, transactionID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE transactions SET client_callback_sent = true, client_callback_sent_at = $2
		WHERE id = $1`, transactionID, at)
	return errtrace.Wrap(err)
}
