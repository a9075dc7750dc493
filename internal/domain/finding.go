package domain

// Param is one named diagnostic value attached to a Finding.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Finding is a single reported business-rule violation. Findings are created
// once per violated condition per subject and never mutated afterwards.
type Finding struct {
	// Rule is the name of the rule that produced the finding.
	Rule string `json:"rule"`

	// LearnRefNumber identifies the subject learner.
	LearnRefNumber string `json:"learnRefNumber"`

	// AimSeqNumber identifies the violating aim; 0 for learner-level findings.
	AimSeqNumber int `json:"aimSeqNumber,omitempty"`

	// Seq is the sink-assigned sequence number, unique within a run.
	Seq int64 `json:"seq"`

	// Params carry ordered diagnostic context for reporting.
	Params []Param `json:"params,omitempty"`
}

// Fault records an execution failure of one rule against one learner.
// Faults are diagnostics, not business findings: a faulting rule is skipped
// for that learner and the batch continues.
type Fault struct {
	Rule           string `json:"rule"`
	LearnRefNumber string `json:"learnRefNumber,omitempty"`
	Message        string `json:"message"`
}

// Severity levels carried by rule metadata.
const (
	SeverityError   = "E"
	SeverityWarning = "W"
)
