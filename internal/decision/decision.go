// Package decision centralizes the classification rules that the
// submission API's fire-and-forget FTD call, the Callback Processor
// Worker, and the TSQ Worker all need — so "what does this Gateway
// response mean" is decided in exactly one place rather than
// re-derived per caller.
package decision

// Outcome classifies a Gateway response or callback into one of three
// buckets every leg resolves to.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInconclusive
	OutcomeFailure
)

var inconclusiveActionCodes = map[string]bool{
	"909": true,
	"912": true,
	"990": true,
}

// ClassifyActionCode applies the inconclusive-action-code rule shared by
// every leg: "000" is success, the inconclusive set (or
// an empty/absent code) mandates TSQ, anything else is an immediate
// failure.
func ClassifyActionCode(actionCode string) Outcome {
	switch {
	case actionCode == "000":
		return OutcomeSuccess
	case actionCode == "" || inconclusiveActionCodes[actionCode]:
		return OutcomeInconclusive
	default:
		return OutcomeFailure
	}
}

// TSQOutcome is the terminal-or-retry verdict produced by [ClassifyTSQ].
type TSQOutcome int

const (
	TSQSuccess TSQOutcome = iota
	TSQRetryLater
	TSQFail
	TSQManual
)

// ClassifyTSQ applies the status-query decision table to an
// (actionCode, statusCode) pair.
func ClassifyTSQ(actionCode, statusCode string) TSQOutcome {
	switch {
	case actionCode == "000" && statusCode == "000":
		return TSQSuccess
	case actionCode == "000" && statusCode == "990":
		return TSQRetryLater
	case actionCode == "000" && statusCode == "381":
		return TSQFail
	case actionCode == "381":
		return TSQManual
	case actionCode == "999":
		return TSQFail
	case actionCode == "990":
		return TSQRetryLater
	default:
		return TSQRetryLater
	}
}
