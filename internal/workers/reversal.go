package workers

import (
	"context"
	"time"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/decision"
	"github.com/relaypay/switchcore/internal/gateway"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/webhook"
	"github.com/relaypay/switchcore/log"
)

// ReversalWorker resubmits the reversal leg for transactions stuck in
// REVERSAL_PENDING.
type ReversalWorker struct {
	store store.Store
	gw    *gateway.Client
	cfg   *config.Config
}

// NewReversalWorker builds a ReversalWorker.
func NewReversalWorker(st store.Store, gw *gateway.Client, cfg *config.Config) *ReversalWorker {
	return &ReversalWorker{store: st, gw: gw, cfg: cfg}
}

// Run starts the polling loop; it returns when ctx is canceled.
func (w *ReversalWorker) Run(ctx context.Context) {
	Run(ctx, "reversal", w.cfg.PollIntervals.Reversal, w.Tick)
}

// Tick claims transactions eligible for another reversal attempt and
// submits one each.
func (w *ReversalWorker) Tick(ctx context.Context) error {
	txs, err := w.store.ClaimReversalDue(ctx, w.cfg.MaxReversalAttempts, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, t := range txs {
		if err := w.processOne(ctx, t); err != nil {
			log.LoggerFromValues(ctx).Error("reversal worker failed on transaction", "transactionId", t.ID, "error", err)
		}
	}
	return nil
}

func (w *ReversalWorker) processOne(ctx context.Context, t *model.Transaction) error {
	sessionID, trackingNumber, err := w.store.MintIDs(ctx)
	if err != nil {
		return err
	}

	attempt := t.ReversalAttempts + 1
	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusReversalPending, "reversal-worker", "", func(t *model.Transaction) {
		t.ReversalSessionID = sessionID
		t.ReversalTrackingNumber = trackingNumber
		t.ReversalAttempts = attempt
	}); err != nil {
		return err
	}

	sentAt := time.Now()
	parties := gateway.TransferParties{
		SrcBankCode:     t.SrcBankCode,
		SrcAccountNum:   t.SrcAccountNum,
		SrcAccountName:  t.SrcAccountName,
		DestBankCode:    t.DestBankCode,
		DestAccountNum:  t.DestAccountNum,
		DestAccountName: t.DestAccountName,
		Amount:          t.Amount,
		Narration:       t.Narration,
	}

	resp, err := w.gw.Reversal(ctx, sessionID, trackingNumber, parties)

	ev := &model.GatewayEvent{
		TransactionID:  t.ID,
		EventType:      model.EventReversalRequest,
		EventSequence:  model.SeqReversalRequest,
		SessionID:      sessionID,
		TrackingNumber: trackingNumber,
		FunctionCode:   w.cfg.Gateway.FTDFunctionCode,
		RequestSentAt:  sentAt,
	}
	if err != nil {
		_ = w.store.AppendEvent(ctx, ev)
		return err
	}

	now := time.Now()
	ev.ResponsePayload = resp.RawResponse
	ev.ActionCode = resp.ActionCode
	ev.ResponseReceivedAt = &now
	ev.DurationMS = resp.DurationMS
	if err := w.store.AppendEvent(ctx, ev); err != nil {
		return err
	}

	if decision.ClassifyActionCode(resp.ActionCode) != decision.OutcomeFailure {
		// Success or inconclusive: await the callback/TSQ resolution.
		return nil
	}

	if attempt < w.cfg.MaxReversalAttempts {
		// Not the final attempt yet; stay REVERSAL_PENDING for the next tick.
		return nil
	}

	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusReversalFailed, "reversal-worker", "reversal attempts exhausted", func(t *model.Transaction) {
		t.ReversalActionCode = resp.ActionCode
	}); err != nil {
		return err
	}
	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "reversal-worker", "reversal failed, manual intervention required", nil); err != nil {
		return err
	}
	if err := w.store.AppendAudit(ctx, &model.AuditLog{
		TransactionID: t.ID,
		Actor:         "reversal-worker",
		FromStatus:    model.StatusReversalFailed,
		ToStatus:      model.StatusFailed,
		Critical:      true,
		Reason:        "reversal failed on final attempt, manual intervention required",
	}); err != nil {
		return err
	}

	payload := webhook.BuildPayload(t, model.ClientResultFailed, resp.ActionCode, "reversal failed, manual intervention required")
	cc, err := webhook.NewClientCallback(t, payload, w.cfg.Backoff.MaxAttempts)
	if err != nil {
		return err
	}
	return w.store.EnqueueClientCallback(ctx, cc)
}
