package callback_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/callback"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
)

func TestIntake_PersistsCallbackAsPending(t *testing.T) {
	st := store.NewMemoryStore(nil)
	in := callback.NewIntake(st)

	raw := []byte(`{"sessionId":"SES-IN-1","functionCode":"241","actionCode":"000"}`)
	require.NoError(t, in.Handle(t.Context(), raw, "10.0.0.1"))

	pending, err := st.ClaimPendingCallbacks(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "SES-IN-1", pending[0].SessionID)
	assert.Equal(t, raw, pending[0].RawPayload)
	assert.Equal(t, "10.0.0.1", pending[0].SourceIP)
}

func TestIntake_MalformedPayloadIsStillPersisted(t *testing.T) {
	st := store.NewMemoryStore(nil)
	in := callback.NewIntake(st)

	raw := []byte(`not json at all`)
	err := in.Handle(t.Context(), raw, "10.0.0.2")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// The bytes must survive even though they never parsed, and must not
	// be claimable by the processor.
	stored := st.GatewayCallbacksWithStatus(model.GatewayCallbackError)
	require.Len(t, stored, 1)
	assert.Equal(t, raw, stored[0].RawPayload)
	assert.NotEmpty(t, stored[0].ErrorMessage)

	pending, err := st.ClaimPendingCallbacks(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
