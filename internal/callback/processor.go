package callback

import (
	"context"
	"errors"
	"time"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/decision"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/webhook"
	"github.com/relaypay/switchcore/internal/workers"
	"github.com/relaypay/switchcore/log"
)

// leg identifies which session field on the transaction a callback's
// session id matched.
type leg int

const (
	legUnknown leg = iota
	legFTD
	legFTC
	legReversal
)

func legFor(t *model.Transaction, sessionID string) leg {
	switch sessionID {
	case t.SessionID:
		return legFTD
	case t.FTCSessionID:
		return legFTC
	case t.ReversalSessionID:
		return legReversal
	default:
		return legUnknown
	}
}

// Processor implements the Callback Processor Worker: claim
// PENDING callbacks, correlate to a transaction by session id, and apply
// the per-leg decision rules.
type Processor struct {
	store store.Store
	cfg   *config.Config
}

// NewProcessor builds a Processor.
func NewProcessor(st store.Store, cfg *config.Config) *Processor {
	return &Processor{store: st, cfg: cfg}
}

// Run starts the polling loop; it returns when ctx is canceled.
func (p *Processor) Run(ctx context.Context) {
	workers.Run(ctx, "callback-processor", p.cfg.PollIntervals.CallbackProcessor, p.tick)
}

func (p *Processor) tick(ctx context.Context) error {
	_, err := p.ProcessBatch(ctx, p.cfg.BatchSize)
	return err
}

// ProcessBatch claims up to limit PENDING callbacks and processes each,
// returning the count successfully processed (including IGNORED
// outcomes, which are a valid terminal state for a callback).
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (int, error) {
	callbacks, err := p.store.ClaimPendingCallbacks(ctx, limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, cb := range callbacks {
		if err := p.processOne(ctx, cb); err != nil {
			log.LoggerFromValues(ctx).Error("processing gateway callback failed", "callbackId", cb.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

func (p *Processor) processOne(ctx context.Context, cb *model.GatewayCallback) error {
	now := time.Now()

	t, err := p.store.GetTransactionBySessionID(ctx, cb.SessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		cb.Status = model.GatewayCallbackIgnored
		cb.ProcessedAt = &now
		return p.store.UpdateGatewayCallback(ctx, cb)
	}
	if err != nil {
		cb.Status = model.GatewayCallbackError
		cb.ErrorMessage = err.Error()
		cb.ProcessedAt = &now
		_ = p.store.UpdateGatewayCallback(ctx, cb)
		return err
	}
	cb.TransactionID = &t.ID

	matched := legFor(t, cb.SessionID)
	if matched == legUnknown {
		cb.Status = model.GatewayCallbackIgnored
		cb.ProcessedAt = &now
		return p.store.UpdateGatewayCallback(ctx, cb)
	}
	p.recordCallbackEvent(ctx, t, cb, matched)

	var handleErr error
	switch matched {
	case legFTD:
		handleErr = p.handleFTD(ctx, t, cb)
	case legFTC:
		handleErr = p.handleFTC(ctx, t, cb)
	default:
		handleErr = p.handleReversal(ctx, t, cb)
	}

	if handleErr != nil {
		cb.Status = model.GatewayCallbackError
		cb.ErrorMessage = handleErr.Error()
		cb.ProcessedAt = &now
		_ = p.store.UpdateGatewayCallback(ctx, cb)
		return handleErr
	}

	cb.Status = model.GatewayCallbackProcessed
	cb.ProcessedAt = &now
	return p.store.UpdateGatewayCallback(ctx, cb)
}

// recordCallbackEvent appends the *_CALLBACK gateway event for the leg
// cb resolved to. Best-effort: the event log must never block the
// decision itself, and a redelivered callback upserts onto the same
// (transactionId, eventSequence) row instead of duplicating it.
func (p *Processor) recordCallbackEvent(ctx context.Context, t *model.Transaction, cb *model.GatewayCallback, matched leg) {
	eventType, seq := model.EventFTDCallback, model.SeqFTDCallback
	switch matched {
	case legFTC:
		eventType, seq = model.EventFTCCallback, model.SeqFTCCallback
	case legReversal:
		eventType, seq = model.EventReversalCallback, model.SeqReversalCallback
	}

	receivedAt := cb.ReceivedAt
	if err := p.store.AppendEvent(ctx, &model.GatewayEvent{
		TransactionID:      t.ID,
		EventType:          eventType,
		EventSequence:      seq,
		SessionID:          cb.SessionID,
		TrackingNumber:     cb.TrackingNumber,
		FunctionCode:       cb.FunctionCode,
		ResponsePayload:    cb.RawPayload,
		ActionCode:         cb.ActionCode,
		StatusLabel:        cb.StatusCode,
		RequestSentAt:      receivedAt,
		ResponseReceivedAt: &receivedAt,
	}); err != nil {
		log.LoggerFromValues(ctx).Error("recording gateway callback event failed", "callbackId", cb.ID, "error", err)
	}
}

func (p *Processor) enqueueCallback(ctx context.Context, t *model.Transaction, status model.ClientResultStatus, responseCode, responseMessage string) error {
	payload := webhook.BuildPayload(t, status, responseCode, responseMessage)
	cc, err := webhook.NewClientCallback(t, payload, p.cfg.Backoff.MaxAttempts)
	if err != nil {
		return err
	}
	return p.store.EnqueueClientCallback(ctx, cc)
}

func (p *Processor) handleFTD(ctx context.Context, t *model.Transaction, cb *model.GatewayCallback) error {
	switch decision.ClassifyActionCode(cb.ActionCode) {
	case decision.OutcomeSuccess:
		return p.store.UpdateStatus(ctx, t.ID, model.StatusFTDSuccess, "callback-processor", "", func(t *model.Transaction) {
			t.FTDActionCode = cb.ActionCode
		})
	case decision.OutcomeInconclusive:
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFTDTSQ, "callback-processor", "inconclusive ftd callback", func(t *model.Transaction) {
			t.FTDActionCode = cb.ActionCode
			t.TSQRequired = true
		}); err != nil {
			return err
		}
		return p.store.ScheduleTSQ(ctx, &model.TSQTask{
			TransactionID:        t.ID,
			Type:                 model.TSQTypeFTD,
			TargetSessionID:      t.SessionID,
			TargetTrackingNumber: t.TrackingNumber,
			ScheduledFor:         time.Now().Add(p.cfg.TSQInterval),
			MaxAttempts:          p.cfg.TSQMaxAttempts,
		})
	default: // OutcomeFailure
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFTDFailed, "callback-processor", "", func(t *model.Transaction) {
			t.FTDActionCode = cb.ActionCode
		}); err != nil {
			return err
		}
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "callback-processor", "ftd rejected", nil); err != nil {
			return err
		}
		return p.enqueueCallback(ctx, t, model.ClientResultFailed, cb.ActionCode, "FTD rejected by gateway")
	}
}

func (p *Processor) handleFTC(ctx context.Context, t *model.Transaction, cb *model.GatewayCallback) error {
	switch decision.ClassifyActionCode(cb.ActionCode) {
	case decision.OutcomeSuccess:
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFTCSuccess, "callback-processor", "", func(t *model.Transaction) {
			t.FTCActionCode = cb.ActionCode
		}); err != nil {
			return err
		}
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusCompleted, "callback-processor", "ftc successful", nil); err != nil {
			return err
		}
		return p.enqueueCallback(ctx, t, model.ClientResultSuccessful, cb.ActionCode, "transfer completed")
	case decision.OutcomeInconclusive:
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFTCTSQ, "callback-processor", "inconclusive ftc callback", func(t *model.Transaction) {
			t.FTCActionCode = cb.ActionCode
			t.TSQRequired = true
		}); err != nil {
			return err
		}
		return p.store.ScheduleTSQ(ctx, &model.TSQTask{
			TransactionID:        t.ID,
			Type:                 model.TSQTypeFTC,
			TargetSessionID:      t.FTCSessionID,
			TargetTrackingNumber: t.FTCTrackingNumber,
			ScheduledFor:         time.Now().Add(p.cfg.TSQInterval),
			MaxAttempts:          p.cfg.TSQMaxAttempts,
		})
	default: // OutcomeFailure: do not notify the client yet, wait for reversal resolution.
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFTCFailed, "callback-processor", "ftc rejected", func(t *model.Transaction) {
			t.FTCActionCode = cb.ActionCode
			t.ReversalRequired = true
		}); err != nil {
			return err
		}
		return p.store.UpdateStatus(ctx, t.ID, model.StatusReversalPending, "callback-processor", "ftc failed, reversal required", nil)
	}
}

func (p *Processor) handleReversal(ctx context.Context, t *model.Transaction, cb *model.GatewayCallback) error {
	switch decision.ClassifyActionCode(cb.ActionCode) {
	case decision.OutcomeSuccess:
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusReversalSuccess, "callback-processor", "", func(t *model.Transaction) {
			t.ReversalActionCode = cb.ActionCode
		}); err != nil {
			return err
		}
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "callback-processor", "reversed after ftc failure", nil); err != nil {
			return err
		}
		return p.enqueueCallback(ctx, t, model.ClientResultFailed, cb.ActionCode, "transfer failed and was reversed")
	case decision.OutcomeInconclusive:
		return p.store.ScheduleTSQ(ctx, &model.TSQTask{
			TransactionID:        t.ID,
			Type:                 model.TSQTypeReversal,
			TargetSessionID:      t.ReversalSessionID,
			TargetTrackingNumber: t.ReversalTrackingNumber,
			ScheduledFor:         time.Now().Add(p.cfg.TSQInterval),
			MaxAttempts:          p.cfg.TSQMaxAttempts,
		})
	default: // OutcomeFailure: funds potentially stuck, manual intervention required.
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusReversalFailed, "callback-processor", "", func(t *model.Transaction) {
			t.ReversalActionCode = cb.ActionCode
		}); err != nil {
			return err
		}
		if err := p.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "callback-processor", "reversal failed", nil); err != nil {
			return err
		}
		if err := p.store.AppendAudit(ctx, &model.AuditLog{
			TransactionID: t.ID,
			Actor:         "callback-processor",
			FromStatus:    model.StatusReversalFailed,
			ToStatus:      model.StatusFailed,
			Critical:      true,
			Reason:        "reversal failed, manual intervention required",
		}); err != nil {
			return err
		}
		return p.enqueueCallback(ctx, t, model.ClientResultFailed, cb.ActionCode, "reversal failed, manual intervention required")
	}
}
