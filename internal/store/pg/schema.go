package pg

import "context"

// schema is executed idempotently on every [New]. It is plain embedded
// DDL rather than a migration framework — this core has one schema
// revision and no deployed history to migrate between yet; the moment a
// second revision is needed this should move to a proper migration
// tool.
const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                       uuid PRIMARY KEY,
	reference_number         text NOT NULL,
	type                     text NOT NULL,
	institution_id           uuid NOT NULL,
	credential_id            uuid NOT NULL,
	session_id               text NOT NULL,
	tracking_number          text NOT NULL,
	src_bank_code            text NOT NULL,
	src_account_num          text NOT NULL,
	src_account_name         text NOT NULL,
	dest_bank_code           text NOT NULL,
	dest_account_num         text NOT NULL,
	dest_account_name        text NOT NULL,
	amount                   numeric(18,2) NOT NULL,
	narration                text NOT NULL DEFAULT '',
	callback_url             text NOT NULL DEFAULT '',
	status                   text NOT NULL,
	created_at               timestamptz NOT NULL DEFAULT now(),
	updated_at               timestamptz NOT NULL DEFAULT now(),
	completed_at             timestamptz,
	timeout_at               timestamptz NOT NULL,
	nec_action_code          text NOT NULL DEFAULT '',
	ftd_action_code          text NOT NULL DEFAULT '',
	ftc_action_code          text NOT NULL DEFAULT '',
	reversal_action_code     text NOT NULL DEFAULT '',
	ftc_session_id           text NOT NULL DEFAULT '',
	ftc_tracking_number      text NOT NULL DEFAULT '',
	reversal_session_id      text NOT NULL DEFAULT '',
	reversal_tracking_number text NOT NULL DEFAULT '',
	tsq_required             boolean NOT NULL DEFAULT false,
	tsq_next_attempt_at      timestamptz,
	tsq_attempts             int NOT NULL DEFAULT 0,
	reversal_required        boolean NOT NULL DEFAULT false,
	reversal_attempts        int NOT NULL DEFAULT 0,
	client_callback_sent     boolean NOT NULL DEFAULT false,
	client_callback_sent_at  timestamptz,
	claimed_until            timestamptz,
	UNIQUE (institution_id, reference_number)
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status);
CREATE INDEX IF NOT EXISTS idx_transactions_session_id ON transactions (session_id);
CREATE INDEX IF NOT EXISTS idx_transactions_ftc_session_id ON transactions (ftc_session_id) WHERE ftc_session_id <> '';
CREATE INDEX IF NOT EXISTS idx_transactions_reversal_session_id ON transactions (reversal_session_id) WHERE reversal_session_id <> '';
CREATE INDEX IF NOT EXISTS idx_transactions_timeout_at ON transactions (timeout_at) WHERE completed_at IS NULL;

CREATE SEQUENCE IF NOT EXISTS gateway_id_seq;

CREATE TABLE IF NOT EXISTS gateway_events (
	id                   uuid PRIMARY KEY,
	transaction_id       uuid NOT NULL REFERENCES transactions (id),
	event_type           text NOT NULL,
	event_sequence       int NOT NULL,
	session_id           text NOT NULL,
	tracking_number      text NOT NULL,
	function_code        text NOT NULL,
	request_payload      bytea,
	response_payload     bytea,
	action_code          text NOT NULL DEFAULT '',
	status_label         text NOT NULL DEFAULT '',
	request_sent_at      timestamptz NOT NULL,
	response_received_at timestamptz,
	duration_ms          bigint NOT NULL DEFAULT 0,
	UNIQUE (transaction_id, event_sequence)
);

CREATE TABLE IF NOT EXISTS gateway_callbacks (
	id              uuid PRIMARY KEY,
	session_id      text NOT NULL,
	tracking_number text NOT NULL DEFAULT '',
	function_code   text NOT NULL DEFAULT '',
	action_code     text NOT NULL DEFAULT '',
	status_code     text NOT NULL DEFAULT '',
	approval_code   text NOT NULL DEFAULT '',
	raw_payload     bytea NOT NULL,
	source_ip       text NOT NULL DEFAULT '',
	status          text NOT NULL DEFAULT 'PENDING',
	transaction_id  uuid REFERENCES transactions (id),
	received_at     timestamptz NOT NULL DEFAULT now(),
	processed_at    timestamptz,
	error_message   text NOT NULL DEFAULT '',
	claimed_until   timestamptz
);
CREATE INDEX IF NOT EXISTS idx_gateway_callbacks_status ON gateway_callbacks (status) WHERE status = 'PENDING';
CREATE INDEX IF NOT EXISTS idx_gateway_callbacks_session_id ON gateway_callbacks (session_id);

CREATE TABLE IF NOT EXISTS client_callbacks (
	id                 uuid PRIMARY KEY,
	transaction_id     uuid NOT NULL REFERENCES transactions (id),
	url                text NOT NULL,
	payload            bytea NOT NULL,
	attempts           int NOT NULL DEFAULT 0,
	max_attempts       int NOT NULL,
	next_attempt_at    timestamptz NOT NULL DEFAULT now(),
	status             text NOT NULL DEFAULT 'PENDING',
	last_response_code int NOT NULL DEFAULT 0,
	last_response_body text NOT NULL DEFAULT '',
	last_error         text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now(),
	claimed_until      timestamptz
);
CREATE INDEX IF NOT EXISTS idx_client_callbacks_due ON client_callbacks (next_attempt_at) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS tsq_tasks (
	id                     uuid PRIMARY KEY,
	transaction_id         uuid NOT NULL REFERENCES transactions (id),
	type                   text NOT NULL,
	target_session_id      text NOT NULL,
	target_tracking_number text NOT NULL,
	scheduled_for          timestamptz NOT NULL,
	attempts               int NOT NULL DEFAULT 0,
	max_attempts           int NOT NULL,
	created_at             timestamptz NOT NULL DEFAULT now(),
	claimed_until          timestamptz
);
CREATE INDEX IF NOT EXISTS idx_tsq_tasks_due ON tsq_tasks (scheduled_for);

CREATE TABLE IF NOT EXISTS audit_log (
	id             uuid PRIMARY KEY,
	transaction_id uuid NOT NULL REFERENCES transactions (id),
	actor          text NOT NULL,
	from_status    text NOT NULL DEFAULT '',
	to_status      text NOT NULL,
	critical       boolean NOT NULL DEFAULT false,
	reason         text NOT NULL DEFAULT '',
	created_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_log_transaction_id ON audit_log (transaction_id);
`

// Migrate applies schema. It is safe to call on every startup: every
// statement is idempotent (IF NOT EXISTS / CREATE INDEX IF NOT EXISTS).
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
