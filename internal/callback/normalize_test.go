package callback_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/callback"
)

func TestNormalize_AcceptsCamelCase(t *testing.T) {
	n, err := callback.Normalize([]byte(`{"sessionId":"S1","trackingNumber":"T1","functionCode":"241","actionCode":"000","statusCode":"000","approvalCode":"A1"}`))
	require.NoError(t, err)
	assert.Equal(t, "S1", n.SessionID)
	assert.Equal(t, "T1", n.TrackingNumber)
	assert.Equal(t, "241", n.FunctionCode)
	assert.Equal(t, "000", n.ActionCode)
	assert.Equal(t, "000", n.StatusCode)
	assert.Equal(t, "A1", n.ApprovalCode)
}

func TestNormalize_AcceptsSnakeCase(t *testing.T) {
	n, err := callback.Normalize([]byte(`{"session_id":"S2","tracking_number":"T2","function_code":"240","action_code":"909"}`))
	require.NoError(t, err)
	assert.Equal(t, "S2", n.SessionID)
	assert.Equal(t, "T2", n.TrackingNumber)
	assert.Equal(t, "240", n.FunctionCode)
	assert.Equal(t, "909", n.ActionCode)
}

func TestNormalize_PrefersCamelCaseWhenBothPresent(t *testing.T) {
	n, err := callback.Normalize([]byte(`{"sessionId":"camel","session_id":"snake"}`))
	require.NoError(t, err)
	assert.Equal(t, "camel", n.SessionID)
}

func TestNormalize_RejectsMalformedJSON(t *testing.T) {
	_, err := callback.Normalize([]byte(`not json`))
	assert.Error(t, err)
}
