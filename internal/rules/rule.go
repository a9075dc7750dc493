// Package rules defines the validation rule contract and the builtin rule
// catalogue, plus the CEL-based engine for provider-defined expression
// rules.
package rules

import (
	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/refdata"
)

// Rule is a stateless per-learner validator: a pure function of the
// learner and the reference indices. Implementations must not mutate
// either argument and must fail open on missing data (no deliveries, no
// monitoring records, unknown codes mean the rule does not apply).
type Rule interface {
	// Name returns the catalogue rule name.
	Name() string

	// Evaluate returns zero or more findings for one learner.
	Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding
}

// BatchRule is a cross-learner validator whose subject is the whole batch,
// used for duplicate detection across a submission.
type BatchRule interface {
	Name() string

	// EvaluateBatch returns zero or more findings across the batch.
	EvaluateBatch(batch []*domain.Learner, ix *refdata.Indices) []domain.Finding
}

// NewFinding builds a finding for one learner aim with ordered diagnostic
// parameters. aimSeq 0 marks a learner-level finding.
func NewFinding(rule string, l *domain.Learner, aimSeq int, params ...domain.Param) domain.Finding {
	return domain.Finding{
		Rule:           rule,
		LearnRefNumber: l.LearnRefNumber,
		AimSeqNumber:   aimSeq,
		Params:         params,
	}
}

// P is shorthand for a diagnostic parameter.
func P(name, value string) domain.Param {
	return domain.Param{Name: name, Value: value}
}

// DateFormat is the wire format for dates carried in finding parameters.
const DateFormat = "2006-01-02"
