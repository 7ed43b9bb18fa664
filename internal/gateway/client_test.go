package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/gateway"
)

func testParties() gateway.TransferParties {
	amt, _ := decimal.NewFromString("1000.50")
	return gateway.TransferParties{
		SrcBankCode:     "300307",
		SrcAccountNum:   "1111111111",
		SrcAccountName:  "Alice Src",
		DestBankCode:    "300304",
		DestAccountNum:  "2222222222",
		DestAccountName: "Bob Dest",
		Amount:          amt,
		Narration:       "test transfer",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Gateway{
		NECURL: srv.URL, FTDURL: srv.URL, FTCURL: srv.URL, TSQURL: srv.URL,
		ChannelCode:     "INTERNET_BANKING",
		NECFunctionCode: "230", FTCFunctionCode: "240", FTDFunctionCode: "241", TSQFunctionCode: "111",
	}
	return gateway.New(cfg)
}

func TestFTD_DirectionIsNotSwapped(t *testing.T) {
	var got gateway.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"actionCode":"000"}`))
	})

	resp, err := client.FTD(t.Context(), "sess-1", "trk-1", testParties())
	require.NoError(t, err)
	assert.True(t, resp.Success())

	assert.Equal(t, "300307", got.OriginBank)
	assert.Equal(t, "300304", got.DestBank)
	assert.Equal(t, "1111111111", got.AccountToDebit)
	assert.Equal(t, "2222222222", got.AccountToCredit)
	assert.Equal(t, "241", got.FunctionCode)
}

func TestFTC_DirectionIsSwapped(t *testing.T) {
	var got gateway.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"actionCode":"000"}`))
	})

	_, err := client.FTC(t.Context(), "sess-2", "trk-2", testParties())
	require.NoError(t, err)

	assert.Equal(t, "300304", got.OriginBank, "FTC origin is dest")
	assert.Equal(t, "300307", got.DestBank, "FTC dest is src")
	assert.Equal(t, "1111111111", got.AccountToDebit, "debit is still the original src account")
	assert.Equal(t, "2222222222", got.AccountToCredit)
	assert.Equal(t, "240", got.FunctionCode)
}

func TestReversal_IsFullyMirroredFTD(t *testing.T) {
	var got gateway.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"actionCode":"000"}`))
	})

	_, err := client.Reversal(t.Context(), "sess-3", "trk-3", testParties())
	require.NoError(t, err)

	assert.Equal(t, "300304", got.OriginBank)
	assert.Equal(t, "300307", got.DestBank)
	assert.Equal(t, "2222222222", got.AccountToDebit, "reversal debits the original destination")
	assert.Equal(t, "1111111111", got.AccountToCredit)
	assert.Equal(t, "241", got.FunctionCode, "reversal reuses the FTD function code")
	assert.Contains(t, got.Narration, "REVERSAL: ")
}

func TestInconclusiveActionCodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"actionCode":"990"}`))
	})
	resp, err := client.FTD(t.Context(), "s", "t", testParties())
	require.NoError(t, err)
	assert.True(t, resp.Inconclusive())
	assert.False(t, resp.Success())
}

func TestNonSuccessNonInconclusiveIsImmediateFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"actionCode":"057"}`))
	})
	resp, err := client.FTD(t.Context(), "s", "t", testParties())
	require.NoError(t, err)
	assert.False(t, resp.Inconclusive())
	assert.False(t, resp.Success())
	assert.Equal(t, "057", resp.ActionCode)
}

func TestNon2xxWithBodyIsStillAParsedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"actionCode":"999"}`))
	})
	resp, err := client.FTD(t.Context(), "s", "t", testParties())
	require.NoError(t, err, "a 4xx with a Gateway body is not a transport error")
	assert.Equal(t, "999", resp.ActionCode)
}
