package workers

import (
	"context"
	"time"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/internal/webhook"
	"github.com/relaypay/switchcore/log"
)

// TimeoutWorker scans for transactions whose timeoutAt has elapsed
// without a resolving callback and forces a decision per leg.
type TimeoutWorker struct {
	store store.Store
	cfg   *config.Config
}

// NewTimeoutWorker builds a TimeoutWorker.
func NewTimeoutWorker(st store.Store, cfg *config.Config) *TimeoutWorker {
	return &TimeoutWorker{store: st, cfg: cfg}
}

// Run starts the polling loop; it returns when ctx is canceled.
func (w *TimeoutWorker) Run(ctx context.Context) {
	Run(ctx, "timeout", w.cfg.PollIntervals.Timeout, w.Tick)
}

// Tick claims transactions past their timeoutAt and applies the
// per-status timeout policy to each.
func (w *TimeoutWorker) Tick(ctx context.Context) error {
	txs, err := w.store.ClaimTimedOut(ctx, time.Now(), w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, t := range txs {
		if err := w.processOne(ctx, t); err != nil {
			log.LoggerFromValues(ctx).Error("timeout worker failed on transaction", "transactionId", t.ID, "error", err)
		}
	}
	return nil
}

func (w *TimeoutWorker) processOne(ctx context.Context, t *model.Transaction) error {
	switch t.Status {
	case model.StatusInitiated, model.StatusNECPending:
		return w.timeoutOutright(ctx, t, model.StatusTimeout, "")
	case model.StatusFTDPending:
		return w.scheduleImmediateTSQ(ctx, t, model.StatusFTDTSQ, model.TSQTypeFTD, t.SessionID, t.TrackingNumber)
	case model.StatusFTDTSQ:
		return w.timeoutOutright(ctx, t, model.StatusFTDFailed, "ftd timed out, tsq exhausted")
	case model.StatusFTCPending:
		return w.scheduleImmediateTSQ(ctx, t, model.StatusFTCTSQ, model.TSQTypeFTC, t.FTCSessionID, t.FTCTrackingNumber)
	case model.StatusFTCTSQ:
		return w.ftcTimedOut(ctx, t)
	default:
		// Terminal or REVERSAL_PENDING rows are never claimed by
		// ClaimTimedOut; nothing else to do here.
		return nil
	}
}

// timeoutOutright marks t TIMEOUT (or escalates FTD_FAILED -> FAILED)
// and notifies the client.
func (w *TimeoutWorker) timeoutOutright(ctx context.Context, t *model.Transaction, status model.Status, reason string) error {
	if err := w.store.UpdateStatus(ctx, t.ID, status, "timeout-worker", reason, nil); err != nil {
		return err
	}

	resultStatus := model.ClientResultTimeout
	message := "request timed out"
	if status == model.StatusFTDFailed {
		resultStatus = model.ClientResultFailed
		message = "ftd timed out after exhausting status queries"
		if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "timeout-worker", reason, nil); err != nil {
			return err
		}
	}

	payload := webhook.BuildPayload(t, resultStatus, "", message)
	cc, err := webhook.NewClientCallback(t, payload, w.cfg.Backoff.MaxAttempts)
	if err != nil {
		return err
	}
	return w.store.EnqueueClientCallback(ctx, cc)
}

// scheduleImmediateTSQ transitions t into the TSQ-pending status for its
// leg and schedules a status query due right away, rather than waiting
// out the ordinary tsqInterval.
func (w *TimeoutWorker) scheduleImmediateTSQ(ctx context.Context, t *model.Transaction, status model.Status, tsqType model.TSQType, sessionID, trackingNumber string) error {
	// The original deadline has already passed, so push it out far enough
	// for the full TSQ chain to run; otherwise the next timeout tick
	// would claim this row again and fail it before the first status
	// query even fires.
	extendedDeadline := time.Now().Add(w.cfg.TSQInterval * time.Duration(w.cfg.TSQMaxAttempts+1))
	if err := w.store.UpdateStatus(ctx, t.ID, status, "timeout-worker", "no callback before timeout, forcing tsq", func(t *model.Transaction) {
		t.TSQRequired = true
		t.TimeoutAt = extendedDeadline
	}); err != nil {
		return err
	}
	return w.store.ScheduleTSQ(ctx, &model.TSQTask{
		TransactionID:        t.ID,
		Type:                 tsqType,
		TargetSessionID:      sessionID,
		TargetTrackingNumber: trackingNumber,
		ScheduledFor:         time.Now(),
		MaxAttempts:          w.cfg.TSQMaxAttempts,
	})
}

// ftcTimedOut is reached when the FTC leg's own TSQ chain (scheduled by
// the Callback Processor or a prior timeout) never resolved before the
// transaction's overall deadline. Funds may have moved on the gateway's
// side, so this defaults to reversal rather than a bare failure.
func (w *TimeoutWorker) ftcTimedOut(ctx context.Context, t *model.Transaction) error {
	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFTCFailed, "timeout-worker", "ftc tsq chain timed out", func(t *model.Transaction) {
		t.ReversalRequired = true
	}); err != nil {
		return err
	}
	return w.store.UpdateStatus(ctx, t.ID, model.StatusReversalPending, "timeout-worker", "ftc timed out, reversal required", nil)
}
