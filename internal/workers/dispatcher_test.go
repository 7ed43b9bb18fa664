package workers_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/webhook"
	"github.com/relaypay/switchcore/internal/workers"
)

func dispatcherTestConfig() *config.Config {
	return &config.Config{
		BatchSize: 10,
		Backoff: config.Backoff{
			BaseDelay:      time.Minute,
			Multiplier:     2.0,
			MaxDelay:       time.Hour,
			MaxAttempts:    3,
			RequestTimeout: 5 * time.Second,
		},
	}
}

func newCallbackTxn(t *testing.T, st *store.MemoryStore, url string) *model.Transaction {
	t.Helper()
	tx := &model.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: "REF-" + uuid.NewString(),
		Type:            model.TransactionTypeFT,
		InstitutionID:   uuid.New(),
		CallbackURL:     url,
		Amount:          decimal.NewFromInt(100),
		Status:          model.StatusInitiated,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, st.CreateTransaction(t.Context(), tx))
	return tx
}

func TestDispatcher_SuccessMarksDeliveredAndSetsSentFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Webhook-Signature"))
		assert.NotEmpty(t, r.Header.Get("X-Webhook-Timestamp"))
		assert.NotEmpty(t, r.Header.Get("X-Transaction-Reference"))
		assert.Equal(t, "FundManagement-Webhook/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newCallbackTxn(t, st, srv.URL)
	payload := webhook.BuildPayload(tx, model.ClientResultSuccessful, "000", "ok")
	cc, err := webhook.NewClientCallback(tx, payload, 3)
	require.NoError(t, err)
	require.NoError(t, st.EnqueueClientCallback(t.Context(), cc))

	d := workers.NewDispatcher(st, workers.NewStaticSecretProvider([]byte("secret")), dispatcherTestConfig())
	require.NoError(t, d.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.True(t, got.ClientCallbackSent)

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDispatcher_ServerErrorReschedulesWithBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newCallbackTxn(t, st, srv.URL)
	payload := webhook.BuildPayload(tx, model.ClientResultSuccessful, "000", "ok")
	cc, err := webhook.NewClientCallback(tx, payload, 3)
	require.NoError(t, err)
	require.NoError(t, st.EnqueueClientCallback(t.Context(), cc))

	d := workers.NewDispatcher(st, workers.NewStaticSecretProvider([]byte("secret")), dispatcherTestConfig())
	require.NoError(t, d.Tick(t.Context()))

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, model.ClientCallbackPending, due[0].Status)
}

func TestDispatcher_ExhaustedAttemptsMarksPermanentlyFailed(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := store.NewMemoryStore(nil)
	tx := newCallbackTxn(t, st, srv.URL)
	payload := webhook.BuildPayload(tx, model.ClientResultSuccessful, "000", "ok")
	cc, err := webhook.NewClientCallback(tx, payload, 1)
	require.NoError(t, err)
	require.NoError(t, st.EnqueueClientCallback(t.Context(), cc))

	d := workers.NewDispatcher(st, workers.NewStaticSecretProvider([]byte("secret")), dispatcherTestConfig())
	require.NoError(t, d.Tick(t.Context()))

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
