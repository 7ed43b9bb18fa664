package workers

import (
	"context"
	"time"

	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/decision"
	"github.com/relaypay/switchcore/internal/gateway"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/log"
)

// FTCWorker promotes FTD_SUCCESS transactions into the credit leg.
type FTCWorker struct {
	store store.Store
	gw    *gateway.Client
	cfg   *config.Config
}

// NewFTCWorker builds an FTCWorker.
func NewFTCWorker(st store.Store, gw *gateway.Client, cfg *config.Config) *FTCWorker {
	return &FTCWorker{store: st, gw: gw, cfg: cfg}
}

// Run starts the polling loop; it returns when ctx is canceled.
func (w *FTCWorker) Run(ctx context.Context) {
	Run(ctx, "ftc", w.cfg.PollIntervals.FTC, w.Tick)
}

// Tick claims up to the configured batch size of FTD_SUCCESS
// transactions and submits the FTC leg for each.
func (w *FTCWorker) Tick(ctx context.Context) error {
	txs, err := w.store.ClaimByStatus(ctx, model.StatusFTDSuccess, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, t := range txs {
		if err := w.processOne(ctx, t); err != nil {
			log.LoggerFromValues(ctx).Error("ftc worker failed on transaction", "transactionId", t.ID, "error", err)
		}
	}
	return nil
}

func (w *FTCWorker) processOne(ctx context.Context, t *model.Transaction) error {
	sessionID, trackingNumber, err := w.store.MintIDs(ctx)
	if err != nil {
		return err
	}

	if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFTCPending, "ftc-worker", "", func(t *model.Transaction) {
		t.FTCSessionID = sessionID
		t.FTCTrackingNumber = trackingNumber
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

	resp, err := w.gw.FTC(ctx, sessionID, trackingNumber, parties)

	ev := &model.GatewayEvent{
		TransactionID:  t.ID,
		EventType:      model.EventFTCRequest,
		EventSequence:  model.SeqFTCRequest,
		SessionID:      sessionID,
		TrackingNumber: trackingNumber,
		FunctionCode:   w.cfg.Gateway.FTCFunctionCode,
		RequestSentAt:  sentAt,
	}
	if err != nil {
		_ = w.store.AppendEvent(ctx, ev)
		// Stays FTC_PENDING; Timeout Worker recovers via TSQ.
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

	if decision.ClassifyActionCode(resp.ActionCode) == decision.OutcomeFailure {
		if err := w.store.UpdateStatus(ctx, t.ID, model.StatusFTCFailed, "ftc-worker", "immediate ftc failure", func(t *model.Transaction) {
			t.FTCActionCode = resp.ActionCode
			t.ReversalRequired = true
		}); err != nil {
			return err
		}
		return w.store.UpdateStatus(ctx, t.ID, model.StatusReversalPending, "ftc-worker", "ftc failed, reversal required", nil)
	}

	// Success or inconclusive: await the callback (processed by the
	// Callback Processor Worker).
	return nil
}
