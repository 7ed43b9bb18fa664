package store

import (
	"fmt"

	"github.com/google/uuid"
)

// FormatIDs renders a monotonic sequence number into a (sessionId,
// trackingNumber) pair. The sequence guarantees monotonicity within one
// store; the uuid suffix guarantees global uniqueness across stores
// without requiring a single shared sequencer. No particular id grammar
// is required beyond uniqueness.
func FormatIDs(seq int64) (sessionID, trackingNumber string) {
	suffix := uuid.New().String()[:8]
	sessionID = fmt.Sprintf("SES%012d%s", seq, suffix)
	trackingNumber = fmt.Sprintf("%019d", seq)
	return sessionID, trackingNumber
}
