// Package signing implements the HMAC-SHA-256 signature the client
// callback dispatcher attaches to every outbound webhook.
// It is five lines over stdlib crypto/hmac — no example in the retrieved
// pack reaches for a third-party HMAC library for this, and stdlib is
// the idiomatic choice here.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign returns the hex-encoded HMAC-SHA-256 of
// "{timestampMs}.{canonicalPayload}" keyed by secret.
func Sign(secret []byte, timestampMs int64, canonicalPayload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(fmt.Sprintf("%d.", timestampMs)))
	mac.Write(canonicalPayload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the correct signature for the given
// secret, timestamp, and payload, using a constant-time comparison.
func Verify(secret []byte, timestampMs int64, canonicalPayload []byte, sig string) bool {
	want := Sign(secret, timestampMs, canonicalPayload)
	return hmac.Equal([]byte(want), []byte(sig))
}
