package callback

import (
	"context"
	"time"

	"braces.dev/errtrace"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/log"
)

// Intake persists every inbound Gateway callback before anything ever
// acknowledges it, so a crash between persistence and the caller's 200
// response cannot silently drop a callback — the Gateway simply
// redelivers and the processor re-reads the row.
type Intake struct {
	store store.Store
}

// NewIntake builds an Intake over st.
func NewIntake(st store.Store) *Intake {
	return &Intake{store: st}
}

// Handle normalizes and persists raw as a PENDING [model.GatewayCallback].
// The caller is expected to respond 200 to the Gateway immediately after
// this returns nil, regardless of whether the callback ends up
// correlating to a known transaction — that determination is the
// processor's job, not intake's. A payload that does not even parse is
// still persisted, as an ERROR row carrying the raw bytes, so no
// inbound callback ever vanishes without a durable record.
func (i *Intake) Handle(ctx context.Context, raw []byte, sourceIP string) error {
	n, err := Normalize(raw)
	if err != nil {
		log.LoggerFromValues(ctx).Warn("malformed gateway callback", "sourceIp", sourceIP, "raw", log.StringValue(raw))
		cb := &model.GatewayCallback{
			RawPayload:   raw,
			SourceIP:     sourceIP,
			Status:       model.GatewayCallbackError,
			ErrorMessage: err.Error(),
			ReceivedAt:   time.Now(),
		}
		if saveErr := i.store.SaveGatewayCallback(ctx, cb); saveErr != nil {
			return errtrace.Wrap(saveErr)
		}
		return errtrace.Wrap(apperr.Validation(err))
	}

	cb := &model.GatewayCallback{
		SessionID:      n.SessionID,
		TrackingNumber: n.TrackingNumber,
		FunctionCode:   n.FunctionCode,
		ActionCode:     n.ActionCode,
		StatusCode:     n.StatusCode,
		ApprovalCode:   n.ApprovalCode,
		RawPayload:     raw,
		SourceIP:       sourceIP,
		Status:         model.GatewayCallbackPending,
		ReceivedAt:     time.Now(),
	}
	return errtrace.Wrap(i.store.SaveGatewayCallback(ctx, cb))
}
