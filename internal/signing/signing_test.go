package signing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaypay/switchcore/internal/signing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("whtest-secret")
	payload := []byte(`{"referenceNumber":"REF1"}`)

	sig := signing.Sign(secret, 1700000000000, payload)
	assert.True(t, signing.Verify(secret, 1700000000000, payload, sig))
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	secret := []byte("whtest-secret")
	sig := signing.Sign(secret, 1700000000000, []byte(`{"a":1}`))
	assert.False(t, signing.Verify(secret, 1700000000000, []byte(`{"a":2}`), sig))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	sig := signing.Sign([]byte("secret-a"), 1700000000000, []byte(`{"a":1}`))
	assert.False(t, signing.Verify([]byte("secret-b"), 1700000000000, []byte(`{"a":1}`), sig))
}
