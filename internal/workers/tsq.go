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

// TSQWorker reconciles inconclusive legs via status queries.
type TSQWorker struct {
	store store.Store
	gw    *gateway.Client
	cfg   *config.Config
}

// NewTSQWorker builds a TSQWorker.
func NewTSQWorker(st store.Store, gw *gateway.Client, cfg *config.Config) *TSQWorker {
	return &TSQWorker{store: st, gw: gw, cfg: cfg}
}

// Run starts the polling loop after an initial warm-up delay, so TSQs scheduled tsqIntervalMin out
// aren't claimed before they are actually due on a freshly started
// process.
func (w *TSQWorker) Run(ctx context.Context) {
	timer := time.NewTimer(w.cfg.PollIntervals.TSQWarmup)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	Run(ctx, "tsq", w.cfg.PollIntervals.TSQ, w.Tick)
}

// Tick claims due TSQ tasks and resolves each.
func (w *TSQWorker) Tick(ctx context.Context) error {
	tasks, err := w.store.ClaimDueTSQTasks(ctx, time.Now(), w.cfg.TSQMaxAttempts, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := w.processOne(ctx, task); err != nil {
			log.LoggerFromValues(ctx).Error("tsq worker failed on task", "taskId", task.ID, "error", err)
		}
	}
	return nil
}

func eventTypeFor(tsqType model.TSQType) model.GatewayEventType {
	switch tsqType {
	case model.TSQTypeFTD:
		return model.EventFTDTSQResponse
	case model.TSQTypeFTC:
		return model.EventFTCTSQResponse
	default:
		return model.EventReversalTSQResp
	}
}

// lastActionCode returns the action code already stored for the leg a
// task targets, for resolutions forced without a fresh gateway answer.
func lastActionCode(t *model.Transaction, tsqType model.TSQType) string {
	switch tsqType {
	case model.TSQTypeFTD:
		return t.FTDActionCode
	case model.TSQTypeFTC:
		return t.FTCActionCode
	default:
		return t.ReversalActionCode
	}
}

func (w *TSQWorker) processOne(ctx context.Context, task *model.TSQTask) error {
	t, err := w.store.GetTransactionByID(ctx, task.TransactionID)
	if err != nil {
		return err
	}

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

	sentAt := time.Now()
	resp, err := w.gw.TSQ(ctx, task.TargetSessionID, task.TargetTrackingNumber, parties)
	attempts := task.Attempts + 1

	if err != nil {
		if attempts >= task.MaxAttempts {
			// The gateway never answered and attempts are spent: force
			// the terminal decision here too, otherwise the task drops
			// below the claim filter and leaks forever.
			if err := w.resolve(ctx, t, task, lastActionCode(t, task.Type), decision.TSQFail); err != nil {
				return err
			}
			return w.store.DeleteTSQTask(ctx, task.ID)
		}
		task.Attempts = attempts
		task.ScheduledFor = time.Now().Add(w.cfg.TSQInterval)
		return w.store.UpdateTSQTask(ctx, task)
	}

	now := time.Now()
	_ = w.store.AppendEvent(ctx, &model.GatewayEvent{
		TransactionID:      t.ID,
		EventType:          eventTypeFor(task.Type),
		EventSequence:      model.BaseTSQSequence + task.Attempts,
		SessionID:          task.TargetSessionID,
		TrackingNumber:     task.TargetTrackingNumber,
		FunctionCode:       w.cfg.Gateway.TSQFunctionCode,
		ResponsePayload:    resp.RawResponse,
		ActionCode:         resp.ActionCode,
		StatusLabel:        resp.StatusCode,
		RequestSentAt:      sentAt,
		ResponseReceivedAt: &now,
		DurationMS:         resp.DurationMS,
	})

	outcome := decision.ClassifyTSQ(resp.ActionCode, resp.StatusCode)
	exhausted := attempts >= task.MaxAttempts

	if outcome == decision.TSQRetryLater && !exhausted {
		task.Attempts = attempts
		task.ScheduledFor = time.Now().Add(w.cfg.TSQInterval)
		return w.store.UpdateTSQTask(ctx, task)
	}

	// Either a decisive outcome, or attempts are exhausted and the last
	// result is still inconclusive — force a terminal decision rather
	// than requeuing forever.
	if outcome == decision.TSQRetryLater {
		outcome = decision.TSQFail
	}

	if err := w.resolve(ctx, t, task, resp.ActionCode, outcome); err != nil {
		return err
	}
	return w.store.DeleteTSQTask(ctx, task.ID)
}

func (w *TSQWorker) resolve(ctx context.Context, t *model.Transaction, task *model.TSQTask, actionCode string, outcome decision.TSQOutcome) error {
	switch task.Type {
	case model.TSQTypeFTD:
		return w.resolveFTD(ctx, t, actionCode, outcome)
	case model.TSQTypeFTC:
		return w.resolveFTC(ctx, t, actionCode, outcome)
	default:
		return w.resolveReversal(ctx, t, actionCode, outcome)
	}
}

func (w *TSQWorker) resolveFTD(ctx context.Context, t *model.Transaction, actionCode string, outcome decision.TSQOutcome) error {
	if outcome == decision.TSQSuccess {
		return w.store.UpdateStatus(ctx, t.ID, model.StatusFTDSuccess, "tsq-worker", "", func(t *model.Transaction) {
			t.FTDActionCode = actionCode
		})
	}

	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFTDFailed, "tsq-worker", "ftd tsq resolved as failed", func(t *model.Transaction) {
		t.FTDActionCode = actionCode
	}); err != nil {
		return err
	}
	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "tsq-worker", "ftd failed", nil); err != nil {
		return err
	}
	if outcome == decision.TSQManual {
		if err := w.store.AppendAudit(ctx, &model.AuditLog{
			TransactionID: t.ID, Actor: "tsq-worker",
			FromStatus: model.StatusFTDFailed, ToStatus: model.StatusFailed,
			Critical: true, Reason: "ftd tsq returned a mismatched result requiring operator review",
		}); err != nil {
			return err
		}
	}
	return w.enqueueResult(ctx, t, model.ClientResultFailed, actionCode, "ftd failed")
}

func (w *TSQWorker) resolveFTC(ctx context.Context, t *model.Transaction, actionCode string, outcome decision.TSQOutcome) error {
	if outcome == decision.TSQSuccess {
		if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFTCSuccess, "tsq-worker", "", func(t *model.Transaction) {
			t.FTCActionCode = actionCode
		}); err != nil {
			return err
		}
		if err := w.store.UpdateStatus(ctx, t.ID, model.StatusCompleted, "tsq-worker", "ftc successful", nil); err != nil {
			return err
		}
		return w.enqueueResult(ctx, t, model.ClientResultSuccessful, actionCode, "transfer completed")
	}

	// FAIL or exhausted-inconclusive: safer to reverse than leak funds.
	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFTCFailed, "tsq-worker", "ftc tsq resolved as failed", func(t *model.Transaction) {
		t.FTCActionCode = actionCode
		t.ReversalRequired = true
	}); err != nil {
		return err
	}
	return w.store.UpdateStatus(ctx, t.ID, model.StatusReversalPending, "tsq-worker", "ftc failed, reversal required", nil)
}

func (w *TSQWorker) resolveReversal(ctx context.Context, t *model.Transaction, actionCode string, outcome decision.TSQOutcome) error {
	if outcome == decision.TSQSuccess {
		if err := w.store.UpdateStatus(ctx, t.ID, model.StatusReversalSuccess, "tsq-worker", "", func(t *model.Transaction) {
			t.ReversalActionCode = actionCode
		}); err != nil {
			return err
		}
		if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "tsq-worker", "reversed after ftc failure", nil); err != nil {
			return err
		}
		return w.enqueueResult(ctx, t, model.ClientResultFailed, actionCode, "transfer failed and was reversed")
	}

	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusReversalFailed, "tsq-worker", "reversal tsq resolved as failed", func(t *model.Transaction) {
		t.ReversalActionCode = actionCode
	}); err != nil {
		return err
	}
	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "tsq-worker", "reversal failed", nil); err != nil {
		return err
	}
	if err := w.store.AppendAudit(ctx, &model.AuditLog{
		TransactionID: t.ID, Actor: "tsq-worker",
		FromStatus: model.StatusReversalFailed, ToStatus: model.StatusFailed,
		Critical: true, Reason: "reversal tsq resolved as failed, manual intervention required",
	}); err != nil {
		return err
	}
	return w.enqueueResult(ctx, t, model.ClientResultFailed, actionCode, "reversal failed, manual intervention required")
}

func (w *TSQWorker) enqueueResult(ctx context.Context, t *model.Transaction, status model.ClientResultStatus, responseCode, message string) error {
	payload := webhook.BuildPayload(t, status, responseCode, message)
	cc, err := webhook.NewClientCallback(t, payload, w.cfg.Backoff.MaxAttempts)
	if err != nil {
		return err
	}
	return w.store.EnqueueClientCallback(ctx, cc)
}
