// Package callback implements Callback Intake and the Callback
// Processor Worker: persisting every inbound Gateway
// callback verbatim, then correlating and dispatching the pending ones.
package callback

import (
	"encoding/json"
	"fmt"
)

// Normalized is the correlation/decision field set this engine depends
// on from an inbound callback, after camel/snake normalization — the
// Gateway sends field names in either spelling, and intake accepts
// both.
type Normalized struct {
	SessionID      string
	TrackingNumber string
	FunctionCode   string
	ActionCode     string
	StatusCode     string
	ApprovalCode   string
}

// Normalize parses raw as a flat JSON object and extracts the fields in
// [Normalized], accepting either camelCase or snake_case keys.
func Normalize(raw []byte) (Normalized, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Normalized{}, fmt.Errorf("parsing callback payload: %w", err)
	}

	return Normalized{
		SessionID:      firstString(m, "sessionId", "session_id"),
		TrackingNumber: firstString(m, "trackingNumber", "tracking_number"),
		FunctionCode:   firstString(m, "functionCode", "function_code"),
		ActionCode:     firstString(m, "actionCode", "action_code"),
		StatusCode:     firstString(m, "statusCode", "status_code"),
		ApprovalCode:   firstString(m, "approvalCode", "approval_code"),
	}, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}
