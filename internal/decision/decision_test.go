package decision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaypay/switchcore/internal/decision"
)

func TestClassifyActionCode(t *testing.T) {
	cases := []struct {
		code string
		want decision.Outcome
	}{
		{"000", decision.OutcomeSuccess},
		{"909", decision.OutcomeInconclusive},
		{"912", decision.OutcomeInconclusive},
		{"990", decision.OutcomeInconclusive},
		{"", decision.OutcomeInconclusive},
		{"057", decision.OutcomeFailure},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, decision.ClassifyActionCode(c.code), "code %q", c.code)
	}
}

func TestClassifyTSQ(t *testing.T) {
	cases := []struct {
		action, status string
		want           decision.TSQOutcome
	}{
		{"000", "000", decision.TSQSuccess},
		{"000", "990", decision.TSQRetryLater},
		{"000", "381", decision.TSQFail},
		{"381", "", decision.TSQManual},
		{"999", "", decision.TSQFail},
		{"990", "", decision.TSQRetryLater},
		{"777", "", decision.TSQRetryLater},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, decision.ClassifyTSQ(c.action, c.status), "action=%q status=%q", c.action, c.status)
	}
}
