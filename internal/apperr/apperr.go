// Package apperr defines the error kinds the core raises, following the
// sentinel-error-plus-wrapper pattern used throughout the module.
package apperr

import (
	"braces.dev/errtrace"

	"github.com/relaypay/switchcore/internal/errorutil"
)

// Sentinel error kinds, one per failure class. Callers compare with
// errors.Is; workers branch on these to decide whether a failure is
// reported synchronously, retried, or escalated.
const (
	// ErrValidation covers bad input: duplicate reference, unknown bank
	// code, an illegal state transition. Reported synchronously; no
	// state mutation happens.
	ErrValidation errorutil.Error = "validation failed"
	// ErrGatewayTransport covers network/timeout failures before a
	// parseable Gateway response arrived. The leg stays *_PENDING; the
	// timeout worker recovers it via TSQ.
	ErrGatewayTransport errorutil.Error = "gateway transport failure"
	// ErrGatewayReject covers a parseable Gateway response carrying a
	// non-success action code.
	ErrGatewayReject errorutil.Error = "gateway rejected request"
	// ErrInconclusive covers a Gateway response (or timeout) that cannot
	// be classified without a TSQ.
	ErrInconclusive errorutil.Error = "inconclusive gateway response"
	// ErrCritical covers reversal failure or other lost-funds scenarios
	// that require manual intervention.
	ErrCritical errorutil.Error = "critical: manual intervention required"
	// ErrWebhookDelivery covers a client webhook non-2xx response or
	// transport failure, recovered by the dispatcher's retry policy.
	ErrWebhookDelivery errorutil.Error = "webhook delivery failed"
	// ErrInvalidTransition covers a state machine edge that does not
	// exist in the transition table.
	ErrInvalidTransition errorutil.Error = "invalid state transition"
	// ErrDuplicateReference covers a referenceNumber already used by
	// the same institution.
	ErrDuplicateReference errorutil.Error = "duplicate reference number"
	// ErrInvalidParticipant covers a bank code not present in the
	// participants registry.
	ErrInvalidParticipant errorutil.Error = "invalid participant bank code"
	// ErrNotFound covers a lookup (by reference, by session) that
	// matched no row.
	ErrNotFound errorutil.Error = "not found"
)

// Validation wraps err (or formats msg) with [ErrValidation].
func Validation(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrValidation, args...))
}

// GatewayTransport wraps err with [ErrGatewayTransport].
func GatewayTransport(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrGatewayTransport, args...))
}

// GatewayReject wraps err with [ErrGatewayReject].
func GatewayReject(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrGatewayReject, args...))
}

// Critical wraps err with [ErrCritical].
func Critical(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrCritical, args...))
}

// WebhookDelivery wraps err with [ErrWebhookDelivery].
func WebhookDelivery(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrWebhookDelivery, args...))
}

// InvalidTransition wraps err with [ErrInvalidTransition].
func InvalidTransition(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidTransition, args...))
}

// InvalidParticipant wraps err (or formats msg) with [ErrInvalidParticipant].
func InvalidParticipant(args ...any) error {
	return errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidParticipant, args...))
}
