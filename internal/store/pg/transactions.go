package pg

import (
	"context"
	"errors"
	"time"

	"braces.dev/errtrace"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/txn"
)

const txnColumns = `
	id, reference_number, type, institution_id, credential_id,
	session_id, tracking_number,
	src_bank_code, src_account_num, src_account_name,
	dest_bank_code, dest_account_num, dest_account_name,
	amount, narration, callback_url,
	status, created_at, updated_at, completed_at, timeout_at,
	nec_action_code, ftd_action_code, ftc_action_code, reversal_action_code,
	ftc_session_id, ftc_tracking_number, reversal_session_id, reversal_tracking_number,
	tsq_required, tsq_next_attempt_at, tsq_attempts,
	reversal_required, reversal_attempts,
	client_callback_sent, client_callback_sent_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID, &t.ReferenceNumber, &t.Type, &t.InstitutionID, &t.CredentialID,
		&t.SessionID, &t.TrackingNumber,
		&t.SrcBankCode, &t.SrcAccountNum, &t.SrcAccountName,
		&t.DestBankCode, &t.DestAccountNum, &t.DestAccountName,
		&t.Amount, &t.Narration, &t.CallbackURL,
		&t.Status, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.TimeoutAt,
		&t.NECActionCode, &t.FTDActionCode, &t.FTCActionCode, &t.ReversalActionCode,
		&t.FTCSessionID, &t.FTCTrackingNumber, &t.ReversalSessionID, &t.ReversalTrackingNumber,
		&t.TSQRequired, &t.TSQNextAttemptAt, &t.TSQAttempts,
		&t.ReversalRequired, &t.ReversalAttempts,
		&t.ClientCallbackSent, &t.ClientCallbackSentAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errtrace.Wrap(apperr.ErrNotFound)
	}
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	return &t, nil
}

func (s *Store) MintIDs(ctx context.Context) (string, string, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('gateway_id_seq')`).Scan(&seq); err != nil {
		return "", "", errtrace.Wrap(err)
	}
	sessionID, trackingNumber := store.FormatIDs(seq)
	return sessionID, trackingNumber, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, reference_number, type, institution_id, credential_id,
			session_id, tracking_number,
			src_bank_code, src_account_num, src_account_name,
			dest_bank_code, dest_account_num, dest_account_name,
			amount, narration, callback_url,
			status, created_at, updated_at, timeout_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, now(), now(), $18
		)`,
		t.ID, t.ReferenceNumber, t.Type, t.InstitutionID, t.CredentialID,
		t.SessionID, t.TrackingNumber,
		t.SrcBankCode, t.SrcAccountNum, t.SrcAccountName,
		t.DestBankCode, t.DestAccountNum, t.DestAccountName,
		t.Amount, t.Narration, t.CallbackURL,
		t.Status, t.TimeoutAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errtrace.Wrap(apperr.ErrDuplicateReference)
		}
		return errtrace.Wrap(err)
	}
	return nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (s *Store) GetTransactionByReference(ctx context.Context, institutionID uuid.UUID, ref string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE institution_id = $1 AND reference_number = $2`, institutionID, ref)
	return scanTransaction(row)
}

func (s *Store) GetTransactionBySessionID(ctx context.Context, sessionID string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+txnColumns+` FROM transactions
		WHERE session_id = $1 OR ftc_session_id = $1 OR reversal_session_id = $1`, sessionID)
	return scanTransaction(row)
}

// UpdateStatus claims the row with SELECT ... FOR UPDATE inside a
// transaction, validates the edge, applies mutate by re-issuing a full
// UPDATE of the mutable columns, writes the audit row, and commits —
// all as one atomic unit.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, actor, reason string, mutate func(*model.Transaction)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errtrace.Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return errtrace.Wrap(err)
	}

	from := t.Status
	if err := txn.Validate(from, newStatus); err != nil {
		return err
	}

	if mutate != nil {
		mutate(t)
	}
	t.Status = newStatus
	if newStatus.Terminal() {
		now := time.Now()
		t.CompletedAt = &now
	}

	_, err = tx.Exec(ctx, `
		UPDATE transactions SET
			status = $2, updated_at = now(), completed_at = $3, timeout_at = $4,
			dest_account_name = $5,
			ftd_action_code = $6, ftc_action_code = $7, reversal_action_code = $8, nec_action_code = $9,
			ftc_session_id = $10, ftc_tracking_number = $11,
			reversal_session_id = $12, reversal_tracking_number = $13,
			tsq_required = $14, tsq_next_attempt_at = $15, tsq_attempts = $16,
			reversal_required = $17, reversal_attempts = $18,
			client_callback_sent = $19, client_callback_sent_at = $20
		WHERE id = $1`,
		t.ID, t.Status, t.CompletedAt, t.TimeoutAt,
		t.DestAccountName,
		t.FTDActionCode, t.FTCActionCode, t.ReversalActionCode, t.NECActionCode,
		t.FTCSessionID, t.FTCTrackingNumber,
		t.ReversalSessionID, t.ReversalTrackingNumber,
		t.TSQRequired, t.TSQNextAttemptAt, t.TSQAttempts,
		t.ReversalRequired, t.ReversalAttempts,
		t.ClientCallbackSent, t.ClientCallbackSentAt,
	)
	if err != nil {
		return errtrace.Wrap(err)
	}

	auditID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO audit_log (id, transaction_id, actor, from_status, to_status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		auditID, id, actor, from, newStatus, reason,
	)
	if err != nil {
		return errtrace.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errtrace.Wrap(err)
	}

	s.watcher.Fire(ctx, txn.ChangeEvent{TransactionID: id.String(), From: from, To: newStatus})
	return nil
}

func (s *Store) claimByQuery(ctx context.Context, query string, args ...any) ([]*model.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		out = append(out, t)
	}
	return out, errtrace.Wrap(rows.Err())
}

func (s *Store) ClaimByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Transaction, error) {
	return s.claimByQuery(ctx, `
		UPDATE transactions SET claimed_until = now() + make_interval(secs => $3)
		WHERE id IN (
			SELECT id FROM transactions
			WHERE status = $1 AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT $2)
		RETURNING `+txnColumns, status, limit, claimLeaseSeconds)
}

func (s *Store) ClaimReversalDue(ctx context.Context, maxAttempts, limit int) ([]*model.Transaction, error) {
	return s.claimByQuery(ctx, `
		UPDATE transactions SET claimed_until = now() + make_interval(secs => $4)
		WHERE id IN (
			SELECT id FROM transactions
			WHERE reversal_required AND status = $1 AND reversal_attempts < $2
				AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT $3)
		RETURNING `+txnColumns, model.StatusReversalPending, maxAttempts, limit, claimLeaseSeconds)
}

func (s *Store) ClaimTimedOut(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	return s.claimByQuery(ctx, `
		UPDATE transactions SET claimed_until = now() + make_interval(secs => $6)
		WHERE id IN (
			SELECT id FROM transactions
			WHERE completed_at IS NULL AND status NOT IN ($1, $2, $3) AND timeout_at <= $4
				AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY timeout_at
			FOR UPDATE SKIP LOCKED
			LIMIT $5)
		RETURNING `+txnColumns,
		model.StatusReversalPending, model.StatusReversalSuccess, model.StatusReversalFailed,
		now, limit, claimLeaseSeconds)
}
