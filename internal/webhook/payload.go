// Package webhook builds the outgoing client callback payload shared
// by every place that enqueues one — the Callback
// Processor, the Reversal/TSQ/Timeout workers — so the wire shape
// is defined exactly once.
package webhook

import (
	"encoding/json"
	"time"

	"github.com/relaypay/switchcore/internal/model"
)

// Payload is the stable-shape JSON body sent to an institution's
// callbackUrl. Field order here is also the signed byte
// order — encoding/json serializes struct fields in declaration order,
// which is what this core treats as "canonical" for signing purposes.
type Payload struct {
	SrcBankCode       string                   `json:"srcBankCode"`
	SrcAccountNumber  string                   `json:"srcAccountNumber"`
	ReferenceNumber   string                   `json:"referenceNumber"`
	RequestTimestamp  string                   `json:"requestTimestamp"`
	SessionID         string                   `json:"sessionId"`
	DestBankCode      string                   `json:"destBankCode"`
	DestAccountNumber string                   `json:"destAccountNumber"`
	Narration         string                   `json:"narration"`
	ResponseCode      string                   `json:"responseCode"`
	ResponseMessage   string                   `json:"responseMessage"`
	Status            model.ClientResultStatus `json:"status"`
}

// BuildPayload assembles the webhook body for t's terminal outcome.
func BuildPayload(t *model.Transaction, status model.ClientResultStatus, responseCode, responseMessage string) Payload {
	return Payload{
		SrcBankCode:       t.SrcBankCode,
		SrcAccountNumber:  t.SrcAccountNum,
		ReferenceNumber:   t.ReferenceNumber,
		RequestTimestamp:  time.Now().Format("2006-01-02 15:04:05"),
		SessionID:         t.SessionID,
		DestBankCode:      t.DestBankCode,
		DestAccountNumber: t.DestAccountNum,
		Narration:         t.Narration,
		ResponseCode:      responseCode,
		ResponseMessage:   responseMessage,
		Status:            status,
	}
}

// Marshal renders p as the canonical JSON the signature covers: the
// plain struct-order encoding this package always produces.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// NewClientCallback builds the durable queue row for p, ready for
// [store.Store.EnqueueClientCallback].
func NewClientCallback(t *model.Transaction, p Payload, maxAttempts int) (*model.ClientCallback, error) {
	body, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	return &model.ClientCallback{
		TransactionID: t.ID,
		URL:           t.CallbackURL,
		Payload:       body,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: time.Now(),
		Status:        model.ClientCallbackPending,
	}, nil
}
