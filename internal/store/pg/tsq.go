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

func (s *Store) ScheduleTSQ(ctx context.Context, task *model.TSQTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tsq_tasks (
			id, transaction_id, type, target_session_id, target_tracking_number,
			scheduled_for, max_attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		task.ID, task.TransactionID, task.Type, task.TargetSessionID, task.TargetTrackingNumber,
		task.ScheduledFor, task.MaxAttempts,
	)
	return errtrace.Wrap(err)
}

const tsqTaskColumns = `
	id, transaction_id, type, target_session_id, target_tracking_number,
	scheduled_for, attempts, max_attempts, created_at`

func scanTSQTask(row pgx.Row) (*model.TSQTask, error) {
	var task model.TSQTask
	err := row.Scan(
		&task.ID, &task.TransactionID, &task.Type, &task.TargetSessionID, &task.TargetTrackingNumber,
		&task.ScheduledFor, &task.Attempts, &task.MaxAttempts, &task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errtrace.Wrap(apperr.ErrNotFound)
	}
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	return &task, nil
}

func (s *Store) ClaimDueTSQTasks(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*model.TSQTask, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE tsq_tasks SET claimed_until = now() + make_interval(secs => $4)
		WHERE id IN (
			SELECT id FROM tsq_tasks
			WHERE scheduled_for <= $1 AND attempts < $2
				AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY scheduled_for
			FOR UPDATE SKIP LOCKED
			LIMIT $3)
		RETURNING `+tsqTaskColumns, now, maxAttempts, limit, claimLeaseSeconds)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	defer rows.Close()

	var out []*model.TSQTask
	for rows.Next() {
		task, err := scanTSQTask(rows)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		out = append(out, task)
	}
	return out, errtrace.Wrap(rows.Err())
}

func (s *Store) UpdateTSQTask(ctx context.Context, task *model.TSQTask) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tsq_tasks SET attempts = $2, scheduled_for = $3 WHERE id = $1`,
		task.ID, task.Attempts, task.ScheduledFor,
	)
	return errtrace.Wrap(err)
}

func (s *Store) DeleteTSQTask(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tsq_tasks WHERE id = $1`, id)
	return errtrace.Wrap(err)
}
