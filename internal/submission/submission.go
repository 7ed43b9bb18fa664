// Package submission implements the Submission API: the
// in-process entry point institutions call to start a name enquiry, a
// full funds transfer, or an ad-hoc status query.
package submission

import (
	"context"
	"encoding/json"
	"time"

	"braces.dev/errtrace"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/relaypay/switchcore/internal/apperr"
	"github.com/relaypay/switchcore/internal/config"
	"github.com/relaypay/switchcore/internal/decision"
	"github.com/relaypay/switchcore/internal/gateway"
	"github.com/relaypay/switchcore/internal/model"
	"github.com/relaypay/switchcore/internal/store"
	"github.com/relaypay/switchcore/log"
)

// Service implements the Submission API against a [store.Store] and a
// [gateway.Client].
type Service struct {
	store    store.Store
	gw       *gateway.Client
	cfg      *config.Config
	registry ParticipantRegistry
}

// New builds a Service.
func New(st store.Store, gw *gateway.Client, cfg *config.Config, registry ParticipantRegistry) *Service {
	return &Service{store: st, gw: gw, cfg: cfg, registry: registry}
}

// NECRequest is the payload for [Service.SubmitNEC].
type NECRequest struct {
	InstitutionID   uuid.UUID
	CredentialID    uuid.UUID
	ReferenceNumber string
	SrcBankCode     string
	SrcAccountNum   string
	SrcAccountName  string
	DestBankCode    string
	DestAccountNum  string
	Narration       string
	CallbackURL     string
}

// NECResult is the synchronous outcome of a name enquiry.
type NECResult struct {
	ResponseCode    string
	SessionID       string
	ReferenceNumber string
	DestAccountName string
}

func (s *Service) validateParticipants(srcBank, destBank string) error {
	if !s.registry.IsValidBank(srcBank) || !s.registry.IsValidBank(destBank) {
		return errtrace.Wrap(apperr.InvalidParticipant("unknown participant bank code"))
	}
	return nil
}

// SubmitNEC validates the request, mints a session/tracking pair,
// creates the Transaction, and synchronously calls the Gateway's
// NameEnquiry, returning a result that reflects the outcome — the name
// enquiry never leaves NEC_PENDING unresolved the way a full transfer
// can.
func (s *Service) SubmitNEC(ctx context.Context, req NECRequest) (*NECResult, error) {
	if err := s.validateParticipants(req.SrcBankCode, req.DestBankCode); err != nil {
		return nil, err
	}

	sessionID, trackingNumber, err := s.store.MintIDs(ctx)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	now := time.Now()
	t := &model.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: req.ReferenceNumber,
		Type:            model.TransactionTypeNEC,
		InstitutionID:   req.InstitutionID,
		CredentialID:    req.CredentialID,
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		SrcBankCode:     req.SrcBankCode,
		SrcAccountNum:   req.SrcAccountNum,
		SrcAccountName:  req.SrcAccountName,
		DestBankCode:    req.DestBankCode,
		DestAccountNum:  req.DestAccountNum,
		Narration:       req.Narration,
		CallbackURL:     req.CallbackURL,
		Status:          model.StatusInitiated,
		CreatedAt:       now,
		UpdatedAt:       now,
		TimeoutAt:       now.Add(s.cfg.NECTimeout),
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, errtrace.Wrap(err)
	}

	if err := s.store.UpdateStatus(ctx, t.ID, model.StatusNECPending, "submission", "", nil); err != nil {
		return nil, errtrace.Wrap(err)
	}

	parties := gateway.TransferParties{
		SrcBankCode:    req.SrcBankCode,
		SrcAccountNum:  req.SrcAccountNum,
		SrcAccountName: req.SrcAccountName,
		DestBankCode:   req.DestBankCode,
		DestAccountNum: req.DestAccountNum,
		Narration:      req.Narration,
	}
	sentAt := time.Now()
	resp, err := s.gw.NameEnquiry(ctx, sessionID, trackingNumber, parties)

	ev := &model.GatewayEvent{
		TransactionID:  t.ID,
		EventType:      model.EventNECRequest,
		EventSequence:  model.SeqNECRequest,
		SessionID:      sessionID,
		TrackingNumber: trackingNumber,
		FunctionCode:   s.cfg.Gateway.NECFunctionCode,
		RequestSentAt:  sentAt,
	}
	if err != nil {
		_ = s.store.AppendEvent(ctx, ev)
		// A transport failure leaves the transaction NEC_PENDING; the
		// Timeout Worker recovers it once necTimeoutMin elapses.
		return nil, errtrace.Wrap(err)
	}

	respAt := time.Now()
	ev.ResponsePayload = resp.RawResponse
	ev.ActionCode = resp.ActionCode
	ev.StatusLabel = resp.StatusCode
	ev.ResponseReceivedAt = &respAt
	ev.DurationMS = resp.DurationMS
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return nil, errtrace.Wrap(err)
	}

	destName := extractDestAccountName(resp.RawResponse)

	if resp.Success() {
		if err := s.store.UpdateStatus(ctx, t.ID, model.StatusNECSuccess, "submission", "", func(t *model.Transaction) {
			t.NECActionCode = resp.ActionCode
			t.DestAccountName = destName
		}); err != nil {
			return nil, errtrace.Wrap(err)
		}
		if err := s.store.UpdateStatus(ctx, t.ID, model.StatusCompleted, "submission", "name enquiry successful", nil); err != nil {
			return nil, errtrace.Wrap(err)
		}
	} else {
		if err := s.store.UpdateStatus(ctx, t.ID, model.StatusNECFailed, "submission", "", func(t *model.Transaction) {
			t.NECActionCode = resp.ActionCode
		}); err != nil {
			return nil, errtrace.Wrap(err)
		}
		if err := s.store.UpdateStatus(ctx, t.ID, model.StatusFailed, "submission", "name enquiry failed", nil); err != nil {
			return nil, errtrace.Wrap(err)
		}
	}

	return &NECResult{
		ResponseCode:    resp.ActionCode,
		SessionID:       sessionID,
		ReferenceNumber: req.ReferenceNumber,
		DestAccountName: destName,
	}, nil
}

// FTRequest is the payload for [Service.SubmitFT].
type FTRequest struct {
	InstitutionID   uuid.UUID
	CredentialID    uuid.UUID
	ReferenceNumber string
	SrcBankCode     string
	SrcAccountNum   string
	SrcAccountName  string
	DestBankCode    string
	DestAccountNum  string
	DestAccountName string
	Amount          decimal.Decimal
	Narration       string
	CallbackURL     string
}

// FTResult is the immediate ACCEPTED response to a full transfer — the
// actual outcome arrives later via the Client Callback Dispatcher.
type FTResult struct {
	ResponseCode    string
	Status          model.Status
	SessionID       string
	ReferenceNumber string
}

// SubmitFT validates the request, creates the Transaction in
// FTD_PENDING, and fires the FTD request to the Gateway without
// awaiting its callback — the caller gets an ACCEPTED result back
// immediately. The FTD call itself still runs to
// completion in the background so its *immediate* response (as opposed
// to the asynchronous callback) can resolve a leg that never needed a
// callback at all.
func (s *Service) SubmitFT(ctx context.Context, req FTRequest) (*FTResult, error) {
	if err := s.validateParticipants(req.SrcBankCode, req.DestBankCode); err != nil {
		return nil, err
	}

	sessionID, trackingNumber, err := s.store.MintIDs(ctx)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	now := time.Now()
	t := &model.Transaction{
		ID:              uuid.New(),
		ReferenceNumber: req.ReferenceNumber,
		Type:            model.TransactionTypeFT,
		InstitutionID:   req.InstitutionID,
		CredentialID:    req.CredentialID,
		SessionID:       sessionID,
		TrackingNumber:  trackingNumber,
		SrcBankCode:     req.SrcBankCode,
		SrcAccountNum:   req.SrcAccountNum,
		SrcAccountName:  req.SrcAccountName,
		DestBankCode:    req.DestBankCode,
		DestAccountNum:  req.DestAccountNum,
		DestAccountName: req.DestAccountName,
		Amount:          req.Amount,
		Narration:       req.Narration,
		CallbackURL:     req.CallbackURL,
		Status:          model.StatusInitiated,
		CreatedAt:       now,
		UpdatedAt:       now,
		TimeoutAt:       now.Add(s.cfg.FTTimeout),
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if err := s.store.UpdateStatus(ctx, t.ID, model.StatusFTDPending, "submission", "", nil); err != nil {
		return nil, errtrace.Wrap(err)
	}

	// Detached from ctx deliberately: the caller's request context ends
	// the moment SubmitFT returns ACCEPTED, but the FTD call must run to
	// completion regardless.
	go s.resolveFTD(context.WithoutCancel(ctx), t.ID, sessionID, trackingNumber, req)

	return &FTResult{
		ResponseCode:    "000",
		Status:          model.StatusFTDPending,
		SessionID:       sessionID,
		ReferenceNumber: req.ReferenceNumber,
	}, nil
}

func (s *Service) resolveFTD(ctx context.Context, txID uuid.UUID, sessionID, trackingNumber string, req FTRequest) {
	parties := gateway.TransferParties{
		SrcBankCode:     req.SrcBankCode,
		SrcAccountNum:   req.SrcAccountNum,
		SrcAccountName:  req.SrcAccountName,
		DestBankCode:    req.DestBankCode,
		DestAccountNum:  req.DestAccountNum,
		DestAccountName: req.DestAccountName,
		Amount:          req.Amount,
		Narration:       req.Narration,
	}

	sentAt := time.Now()
	resp, err := s.gw.FTD(ctx, sessionID, trackingNumber, parties)

	ev := &model.GatewayEvent{
		TransactionID:  txID,
		EventType:      model.EventFTDRequest,
		EventSequence:  model.SeqFTDRequest,
		SessionID:      sessionID,
		TrackingNumber: trackingNumber,
		FunctionCode:   s.cfg.Gateway.FTDFunctionCode,
		RequestSentAt:  sentAt,
	}
	if err != nil {
		_ = s.store.AppendEvent(ctx, ev)
		// Stays FTD_PENDING; the Timeout Worker will move it to FTD_TSQ.
		log.LoggerFromValues(ctx).Error("ftd request failed", "transactionId", txID, "error", err)
		return
	}

	respAt := time.Now()
	ev.ResponsePayload = resp.RawResponse
	ev.ActionCode = resp.ActionCode
	ev.StatusLabel = resp.StatusCode
	ev.ResponseReceivedAt = &respAt
	ev.DurationMS = resp.DurationMS
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		log.LoggerFromValues(ctx).Error("recording ftd request event failed", "transactionId", txID, "error", err)
	}

	switch decision.ClassifyActionCode(resp.ActionCode) {
	case decision.OutcomeSuccess:
		if err := s.store.UpdateStatus(ctx, txID, model.StatusFTDSuccess, "ftd-submit", "", func(t *model.Transaction) {
			t.FTDActionCode = resp.ActionCode
		}); err != nil {
			log.LoggerFromValues(ctx).Error("ftd success transition failed", "transactionId", txID, "error", err)
		}
	case decision.OutcomeInconclusive:
		if err := s.store.UpdateStatus(ctx, txID, model.StatusFTDTSQ, "ftd-submit", "inconclusive immediate response", func(t *model.Transaction) {
			t.FTDActionCode = resp.ActionCode
			t.TSQRequired = true
		}); err != nil {
			log.LoggerFromValues(ctx).Error("ftd tsq transition failed", "transactionId", txID, "error", err)
			return
		}
		if err := s.store.ScheduleTSQ(ctx, &model.TSQTask{
			TransactionID:        txID,
			Type:                 model.TSQTypeFTD,
			TargetSessionID:      sessionID,
			TargetTrackingNumber: trackingNumber,
			ScheduledFor:         time.Now().Add(s.cfg.TSQInterval),
			MaxAttempts:          s.cfg.TSQMaxAttempts,
		}); err != nil {
			log.LoggerFromValues(ctx).Error("scheduling ftd tsq failed", "transactionId", txID, "error", err)
		}
	case decision.OutcomeFailure:
		if err := s.store.UpdateStatus(ctx, txID, model.StatusFTDFailed, "ftd-submit", "", func(t *model.Transaction) {
			t.FTDActionCode = resp.ActionCode
		}); err != nil {
			log.LoggerFromValues(ctx).Error("ftd failure transition failed", "transactionId", txID, "error", err)
			return
		}
		if err := s.store.UpdateStatus(ctx, txID, model.StatusFailed, "ftd-submit", "ftd rejected", nil); err != nil {
			log.LoggerFromValues(ctx).Error("ftd -> failed transition failed", "transactionId", txID, "error", err)
		}
	}
}

// TSQRequest is the payload for [Service.SubmitTSQ].
type TSQRequest struct {
	InstitutionID   uuid.UUID
	ReferenceNumber string
}

// TSQResult echoes the Gateway's ad-hoc status query response alongside
// the transaction's current internal status.
type TSQResult struct {
	ResponseCode string
	StatusCode   string
	Status       model.Status
	SessionID    string
}

// SubmitTSQ never mutates the state machine: if the
// transaction is already terminal its stored result is echoed; otherwise
// an ad-hoc TSQ is issued against the Gateway for visibility only.
func (s *Service) SubmitTSQ(ctx context.Context, req TSQRequest) (*TSQResult, error) {
	t, err := s.store.GetTransactionByReference(ctx, req.InstitutionID, req.ReferenceNumber)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	if t.Status.Terminal() {
		return &TSQResult{
			ResponseCode: t.FTDActionCode,
			Status:       t.Status,
			SessionID:    t.SessionID,
		}, nil
	}

	parties := gateway.TransferParties{
		SrcBankCode:    t.SrcBankCode,
		SrcAccountNum:  t.SrcAccountNum,
		DestBankCode:   t.DestBankCode,
		DestAccountNum: t.DestAccountNum,
		Amount:         t.Amount,
	}
	resp, err := s.gw.TSQ(ctx, t.SessionID, t.TrackingNumber, parties)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	return &TSQResult{
		ResponseCode: resp.ActionCode,
		StatusCode:   resp.StatusCode,
		Status:       t.Status,
		SessionID:    t.SessionID,
	}, nil
}

// extractDestAccountName best-effort pulls a payee name back out of a
// NEC response body; the Gateway's exact field name for this is not
// part of the wire contract this engine depends on, so a miss here is
// not an error.
func extractDestAccountName(raw []byte) string {
	var body struct {
		DestAccountName string `json:"destAccountName"`
		AccountName     string `json:"accountName"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.DestAccountName != "" {
		return body.DestAccountName
	}
	return body.AccountName
}
