package model

import (
	"time"

	"github.com/google/uuid"
)

// GatewayEventType enumerates the leg request/response pairs logged for
// every transaction.
type GatewayEventType string

const (
	EventNECRequest       GatewayEventType = "NEC_REQUEST"
	EventFTDRequest       GatewayEventType = "FTD_REQUEST"
	EventFTDCallback      GatewayEventType = "FTD_CALLBACK"
	EventFTDTSQResponse   GatewayEventType = "FTD_TSQ_RESPONSE"
	EventFTCRequest       GatewayEventType = "FTC_REQUEST"
	EventFTCCallback      GatewayEventType = "FTC_CALLBACK"
	EventFTCTSQResponse   GatewayEventType = "FTC_TSQ_RESPONSE"
	EventReversalRequest  GatewayEventType = "REVERSAL_REQUEST"
	EventReversalCallback GatewayEventType = "REVERSAL_CALLBACK"
	EventReversalTSQResp  GatewayEventType = "REVERSAL_TSQ_RESPONSE"
)

// Fixed event sequence numbers used by the legs that always occur at the
// same point in the lifecycle. TSQ responses use
// BaseTSQSequence+attempt so repeated attempts on one transaction keep
// the (transactionId, eventSequence) pair unique.
const (
	SeqNECRequest       = 1
	SeqFTDRequest       = 2
	SeqFTDCallback      = 3
	SeqFTCRequest       = 5
	SeqFTCCallback      = 6
	SeqReversalRequest  = 7
	SeqReversalCallback = 8
	BaseTSQSequence     = 99
)

// GatewayEvent is the append-mostly log of every leg's
// request/response.
type GatewayEvent struct {
	ID                 uuid.UUID
	TransactionID      uuid.UUID
	EventType          GatewayEventType
	EventSequence      int
	SessionID          string
	TrackingNumber     string
	FunctionCode       string
	RequestPayload     []byte
	ResponsePayload    []byte
	ActionCode         string
	StatusLabel        string
	RequestSentAt      time.Time
	ResponseReceivedAt *time.Time
	DurationMS         int64
}

// GatewayCallbackStatus is the processing state of an inbound callback.
type GatewayCallbackStatus string

const (
	GatewayCallbackPending   GatewayCallbackStatus = "PENDING"
	GatewayCallbackProcessed GatewayCallbackStatus = "PROCESSED"
	GatewayCallbackIgnored   GatewayCallbackStatus = "IGNORED"
	GatewayCallbackError     GatewayCallbackStatus = "ERROR"
)

// GatewayCallback is the durable record of every inbound Gateway
// callback, referenced by SessionID against the transaction's FTD,
// FTC, or Reversal session id.
type GatewayCallback struct {
	ID             uuid.UUID
	SessionID      string
	TrackingNumber string
	FunctionCode   string
	ActionCode     string
	StatusCode     string
	ApprovalCode   string
	RawPayload     []byte
	SourceIP       string
	Status         GatewayCallbackStatus
	TransactionID  *uuid.UUID
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
	ErrorMessage   string
}

// ClientCallbackStatus is the delivery state of an outgoing webhook.
type ClientCallbackStatus string

const (
	ClientCallbackPending   ClientCallbackStatus = "PENDING"
	ClientCallbackFailed    ClientCallbackStatus = "FAILED"
	ClientCallbackDelivered ClientCallbackStatus = "DELIVERED"
)

// ClientResultStatus is the value of the "status" field in the outgoing
// webhook payload body, distinct from [ClientCallbackStatus]
// which tracks delivery, not outcome.
type ClientResultStatus string

const (
	ClientResultSuccessful ClientResultStatus = "SUCCESSFUL"
	ClientResultFailed     ClientResultStatus = "FAILED"
	ClientResultTimeout    ClientResultStatus = "TIMEOUT"
)

// ClientCallback is the outgoing webhook record.
type ClientCallback struct {
	ID               uuid.UUID
	TransactionID    uuid.UUID
	URL              string
	Payload          []byte
	Attempts         int
	MaxAttempts      int
	NextAttemptAt    time.Time
	Status           ClientCallbackStatus
	LastResponseCode int
	LastResponseBody string
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TSQType identifies which leg a queued status query targets.
type TSQType string

const (
	TSQTypeFTD      TSQType = "FTD"
	TSQTypeFTC      TSQType = "FTC"
	TSQTypeReversal TSQType = "REVERSAL"
)

// TSQTask is a due status-query job. It is modelled as a
// standalone queue row so a "claim the next due TSQ" query needs no join
// against Transaction beyond the foreign key.
type TSQTask struct {
	ID                   uuid.UUID
	TransactionID        uuid.UUID
	Type                 TSQType
	TargetSessionID      string
	TargetTrackingNumber string
	ScheduledFor         time.Time
	Attempts             int
	MaxAttempts          int
	CreatedAt            time.Time
}

// AuditLog records every status update and critical event against a
// transaction. Critical rows flag lost-funds scenarios that need an
// operator.
type AuditLog struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Actor         string
	FromStatus    Status
	ToStatus      Status
	Critical      bool
	Reason        string
	CreatedAt     time.Time
}
