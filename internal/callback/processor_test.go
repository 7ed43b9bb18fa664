package callback_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/callback"
	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		TSQInterval:         5 * time.Minute,
		TSQMaxAttempts:      3,
		MaxReversalAttempts: 3,
		Backoff:             config.Backoff{MaxAttempts: 5},
	}
}

func newFTDPendingTxn(t *testing.T, st *store.MemoryStore, sessionID string) *model.Transaction {
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
	return tx
}

func TestProcessor_FTDSuccessCallback(t *testing.T) {
	st := store.NewMemoryStore(nil)
	tx := newFTDPendingTxn(t, st, "SES-FTD-1")

	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: "SES-FTD-1", ActionCode: "000", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))

	p := callback.NewProcessor(st, testConfig())
	n, err := p.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFTDSuccess, got.Status)
}

func TestProcessor_FTDFailureCallback_EnqueuesClientCallback(t *testing.T) {
	st := store.NewMemoryStore(nil)
	tx := newFTDPendingTxn(t, st, "SES-FTD-2")

	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: "SES-FTD-2", ActionCode: "057", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))

	p := callback.NewProcessor(st, testConfig())
	_, err := p.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, tx.ID, due[0].TransactionID)
}

func TestProcessor_UnknownSessionIsIgnored(t *testing.T) {
	st := store.NewMemoryStore(nil)

	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: "SES-UNKNOWN", ActionCode: "000", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))

	p := callback.NewProcessor(st, testConfig())
	n, err := p.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.ClaimPendingCallbacks(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessor_FTCFailureMarksReversalRequired(t *testing.T) {
	st := store.NewMemoryStore(nil)
	tx := newFTDPendingTxn(t, st, "SES-FTC-BASE")
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTDSuccess, "test", "", nil))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTCPending, "test", "", func(t *model.Transaction) {
		t.FTCSessionID = "SES-FTC-1"
	}))

	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: "SES-FTC-1", ActionCode: "057", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))

	p := callback.NewProcessor(st, testConfig())
	_, err := p.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReversalPending, got.Status)
	assert.True(t, got.ReversalRequired)
}
