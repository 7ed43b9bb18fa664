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

	"github.com/relaypay/switchcore/internal/callback"
	"github.com/relaypay/switchcore/internal/gateway"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/workers"
)

// Drives a full transfer through the debit callback, the credit leg, the
// credit callback, and webhook delivery, asserting the event trail and
// the per-leg session ids along the way.
func TestTransferLifecycle_HappyPath(t *testing.T) {
	// The gateway answers the FTC submission inconclusively so the leg
	// resolves through its callback, like a real transfer does.
	gwSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"actionCode":"909"}`))
	}))
	defer gwSrv.Close()

	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer webhookSrv.Close()

	cfg := tsqTestConfig(gwSrv.URL)
	cfg.Backoff.RequestTimeout = 5 * time.Second

	st := store.NewMemoryStore(nil)
	amt, err := decimal.NewFromString("1000.50")
	require.NoError(t, err)
	tx := &model.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: "REF-" + uuid.NewString(),
		Type:            model.TransactionTypeFT,
		InstitutionID:   uuid.New(),
		SessionID:       "SES-LIFECYCLE-FTD",
		SrcBankCode:     "300307",
		SrcAccountNum:   "1111111111",
		DestBankCode:    "300304",
		DestAccountNum:  "2222222222",
		Amount:          amt,
		CallbackURL:     webhookSrv.URL,
		Status:          model.StatusInitiated,
		CreatedAt:       time.Now(),
		TimeoutAt:       time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateTransaction(t.Context(), tx))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTDPending, "test", "", nil))

	processor := callback.NewProcessor(st, cfg)

	// Debit leg resolves via its callback.
	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: tx.SessionID, ActionCode: "000", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))
	_, err = processor.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFTDSuccess, got.Status)

	// Credit leg fires with a freshly minted session pair.
	ftc := workers.NewFTCWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, ftc.Tick(t.Context()))

	got, err = st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFTCPending, got.Status)
	require.NotEmpty(t, got.FTCSessionID)
	assert.NotEqual(t, got.SessionID, got.FTCSessionID)

	// Credit leg resolves via its callback; transfer completes.
	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: got.FTCSessionID, ActionCode: "000", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))
	_, err = processor.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	got, err = st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// The event log carries one row per leg step, unique by sequence.
	events := st.EventsFor(tx.ID)
	byType := make(map[model.GatewayEventType]bool)
	seqs := make(map[int]bool)
	for _, ev := range events {
		byType[ev.EventType] = true
		assert.False(t, seqs[ev.EventSequence], "duplicate event sequence %d", ev.EventSequence)
		seqs[ev.EventSequence] = true
	}
	assert.True(t, byType[model.EventFTDCallback])
	assert.True(t, byType[model.EventFTCRequest])
	assert.True(t, byType[model.EventFTCCallback])

	// Exactly one client callback is delivered and the flag sticks.
	d := workers.NewDispatcher(st, workers.NewStaticSecretProvider([]byte("secret")), cfg)
	require.NoError(t, d.Tick(t.Context()))

	got, err = st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.True(t, got.ClientCallbackSent)
	require.NotNil(t, got.ClientCallbackSentAt)

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

// Credit failure reverses the debit and the client hears about the
// failure exactly once, after the reversal resolves.
func TestTransferLifecycle_FTCFailureReversalSuccess(t *testing.T) {
	gwSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"actionCode":"909"}`))
	}))
	defer gwSrv.Close()

	cfg := tsqTestConfig(gwSrv.URL)

	st := store.NewMemoryStore(nil)
	tx := &model.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: "REF-" + uuid.NewString(),
		Type:            model.TransactionTypeFT,
		InstitutionID:   uuid.New(),
		SessionID:       "SES-LIFECYCLE-REV",
		SrcBankCode:     "300307",
		SrcAccountNum:   "1111111111",
		DestBankCode:    "300304",
		DestAccountNum:  "2222222222",
		Amount:          decimal.NewFromInt(100),
		CallbackURL:     "https://example.test/webhook",
		Status:          model.StatusInitiated,
		CreatedAt:       time.Now(),
		TimeoutAt:       time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateTransaction(t.Context(), tx))
	require.NoError(t, st.UpdateStatus(t.Context(), tx.ID, model.StatusFTDPending, "test", "", nil))

	processor := callback.NewProcessor(st, cfg)

	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: tx.SessionID, ActionCode: "000", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))
	_, err := processor.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	ftc := workers.NewFTCWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, ftc.Tick(t.Context()))

	got, err := st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)

	// Credit leg fails; no client callback yet — reversal must resolve first.
	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: got.FTCSessionID, ActionCode: "051", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))
	_, err = processor.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	got, err = st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReversalPending, got.Status)
	require.True(t, got.ReversalRequired)

	due, err := st.ClaimDueClientCallbacks(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "client must not be notified before the reversal resolves")

	// The reversal goes out with its own fresh session pair.
	rev := workers.NewReversalWorker(st, gateway.New(cfg.Gateway), cfg)
	require.NoError(t, rev.Tick(t.Context()))

	got, err = st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.ReversalSessionID)
	assert.NotEqual(t, got.SessionID, got.ReversalSessionID)
	assert.NotEqual(t, got.FTCSessionID, got.ReversalSessionID)
	assert.Equal(t, 1, got.ReversalAttempts)

	// Reversal callback succeeds: the transfer terminates FAILED and the
	// client finally hears about it.
	require.NoError(t, st.SaveGatewayCallback(t.Context(), &model.GatewayCallback{
		SessionID: got.ReversalSessionID, ActionCode: "000", RawPayload: []byte(`{}`), ReceivedAt: time.Now(),
	}))
	_, err = processor.ProcessBatch(t.Context(), 10)
	require.NoError(t, err)

	got, err = st.GetTransactionByID(t.Context(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)

	due, err = st.ClaimDueClientCallbacks(t.Context(), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Contains(t, string(due[0].Payload), "reversed")
}
