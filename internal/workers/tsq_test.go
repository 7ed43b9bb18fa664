package workers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/gateway"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/workers"
)

func tsqTestConfig(url string) *config.Config {
	return &config.Config{
		TSQInterval:         time.Minute,
		TSQMaxAttempts:      3,
		MaxReversalAttempts: 3,
		BatchSize:           10,
		Gateway: config.Gateway{
			NECURL: url, FTDURL: url, FTCURL: url, TSQURL: url,
			ChannelCode:     "INTERNET_BANKING",
			NECFunctionCode: "230", FTCFunctionCode: "240", FTDFunctionCode: "241", TSQFunctionCode: "111",
			RequestTimeout: 5 * time.Second,
		},
		Backoff: config.Backoff{MaxAttempts: 5},
	}
}

func newPendingTSQTxn(t *testing.T, st *store.MemoryStore, status model.Status, sessionID string) *model.Transaction {
	t.Helper()
	tx := &model.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: "REF-" + uuid.NewString(),
		Type:            model.TransactionTypeFT,
		InstitutionID:   uuid.New(),
		SessionID:       sessionID,
		CallbackURL:     "https://example.test/webhook",
		Amount:          decimal.NewFromInt(100),
		Status:          model.StatusInitiated,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, st.CreateTransaction(t.Context(), tx))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTDPending, "test", "", nil))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, status, "test", "", func(t *model.Transaction) {
		t.TSQRequired = true
	}))
	return tx
}

func tsqResponseServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
}

func TestTSQWorker_FTDSuccessResolvesTransaction(t *testing.T) {
	srv := tsqResponseServer(`{"actionCode":"000","statusCode":"000"}`)
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newPendingTSQTxn(t, st, model.StatusFTDTSQ, "SES-FTD-TSQ-1")
	require.NoError(t, st.ScheduleTSQ(t.Context(), &model.TSQTask{
		TransactionID: tx.ID, Type: model.TSQTypeFTD,
		TargetSessionID: tx.SessionID, TargetTrackingNumber: tx.TrackingNumber,
		ScheduledFor: time.Now().Add(-time.Second), MaxAttempts: 3,
	}))

	cfg := tsqTestConfig(srv.URL)
	w := workers.NewTSQWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, w.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFTDSuccess, got.Status)

	tasks, err := st.ClaimDueTSQTasks(t.Context(), time.Now(), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTSQWorker_FTCSuccessCompletesTransactionAndEnqueuesCallback(t *testing.T) {
	srv := tsqResponseServer(`{"actionCode":"000","statusCode":"000"}`)
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newPendingTSQTxn(t, st, model.StatusFTDSuccess, "SES-FTC-TSQ-1")
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTCPending, "test", "", func(t *model.Transaction) {
		t.FTCSessionID = "SES-FTC-TSQ-TARGET"
	}))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTCTSQ, "test", "", nil))
	require.NoError(t, st.ScheduleTSQ(t.Context(), &model.TSQTask{
		TransactionID: tx.ID, Type: model.TSQTypeFTC,
		TargetSessionID: "SES-FTC-TSQ-TARGET", TargetTrackingNumber: tx.FTCTrackingNumber,
		ScheduledFor: time.Now().Add(-time.Second), MaxAttempts: 3,
	}))

	cfg := tsqTestConfig(srv.URL)
	w := workers.NewTSQWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, w.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestTSQWorker_RetryLaterReschedulesWithoutResolving(t *testing.T) {
	srv := tsqResponseServer(`{"actionCode":"000","statusCode":"990"}`)
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newPendingTSQTxn(t, st, model.StatusFTDTSQ, "SES-FTD-TSQ-2")
	require.NoError(t, st.ScheduleTSQ(t.Context(), &model.TSQTask{
		TransactionID: tx.ID, Type: model.TSQTypeFTD,
		TargetSessionID: tx.SessionID, TargetTrackingNumber: tx.TrackingNumber,
		ScheduledFor: time.Now().Add(-time.Second), MaxAttempts: 3,
	}))

	cfg := tsqTestConfig(srv.URL)
	w := workers.NewTSQWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, w.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFTDTSQ, got.Status)

	tasks, err := st.ClaimDueTSQTasks(t.Context(), time.Now().Add(time.Hour), 3, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Attempts)
}

func TestTSQWorker_ExhaustedInconclusiveForcesFailureForFTD(t *testing.T) {
	srv := tsqResponseServer(`{"actionCode":"000","statusCode":"990"}`)
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newPendingTSQTxn(t, st, model.StatusFTDTSQ, "SES-FTD-TSQ-3")
	require.NoError(t, st.ScheduleTSQ(t.Context(), &model.TSQTask{
		TransactionID: tx.ID, Type: model.TSQTypeFTD,
		TargetSessionID: tx.SessionID, TargetTrackingNumber: tx.TrackingNumber,
		ScheduledFor: time.Now().Add(-time.Second), Attempts: 2, MaxAttempts: 3,
	}))

	cfg := tsqTestConfig(srv.URL)
	w := workers.NewTSQWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, w.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)

	tasks, err := st.ClaimDueTSQTasks(t.Context(), time.Now(), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTSQWorker_TransportFailureExhaustionForcesTerminalDecision(t *testing.T) {
	srv := tsqResponseServer(`{}`)
	srv.Close() // every TSQ call now fails at the transport level

	st := store.NewMemoryStore(nil)
	tx := newPendingTSQTxn(t, st, model.StatusFTDTSQ, "SES-FTD-TSQ-4")
	require.NoError(t, st.ScheduleTSQ(t.Context(), &model.TSQTask{
		TransactionID: tx.ID, Type: model.TSQTypeFTD,
		TargetSessionID: tx.SessionID, TargetTrackingNumber: tx.TrackingNumber,
		ScheduledFor: time.Now().Add(-time.Second), Attempts: 2, MaxAttempts: 3,
	}))

	cfg := tsqTestConfig(srv.URL)
	w := workers.NewTSQWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, w.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)

	tasks, err := st.ClaimDueTSQTasks(t.Context(), time.Now().Add(time.Hour), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "an exhausted task must be deleted, not leaked")
}

func TestTSQWorker_ReversalFailureEscalatesCritical(t *testing.T) {
	srv := tsqResponseServer(`{"actionCode":"999"}`)
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newPendingTSQTxn(t, st, model.StatusFTDSuccess, "SES-REV-TSQ-1")
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTCPending, "test", "", nil))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTCFailed, "test", "", func(t *model.Transaction) {
		t.ReversalRequired = true
	}))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusReversalPending, "test", "", func(t *model.Transaction) {
		t.ReversalSessionID = "SES-REV-TSQ-TARGET"
	}))
	require.NoError(t, st.ScheduleTSQ(t.Context(), &model.TSQTask{
		TransactionID: tx.ID, Type: model.TSQTypeReversal,
		TargetSessionID: "SES-REV-TSQ-TARGET", TargetTrackingNumber: tx.ReversalTrackingNumber,
		ScheduledFor: time.Now().Add(-time.Second), MaxAttempts: 3,
	}))

	cfg := tsqTestConfig(srv.URL)
	w := workers.NewTSQWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, w.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
}
