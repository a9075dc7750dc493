package domain

import (
	"time"
)

// Run is the persisted result of validating one learner batch.
type Run struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Findings []Finding `json:"findings"`
	Faults   []Fault   `json:"faults,omitempty"`

	Metadata RunMetadata `json:"metadata"`
}

// RunMetadata contains processing information for a run.
type RunMetadata struct {
	TraceID        string `json:"traceId,omitempty"`
	Learners       int    `json:"learners"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	IndexMs        int64  `json:"indexMs,omitempty"`
	EvaluateMs     int64  `json:"evaluateMs"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion,omitempty"`
}

// RunResponse is the API response for a batch validation.
type RunResponse struct {
	RunID    string      `json:"runId"`
	Learners int         `json:"learners"`
	Findings []Finding   `json:"findings"`
	Faults   []Fault     `json:"faults,omitempty"`
	Metadata RunMetadata `json:"metadata"`
}

// ToResponse converts a Run to an API response.
func (r *Run) ToResponse() *RunResponse {
	return &RunResponse{
		RunID:    r.ID,
		Learners: r.Metadata.Learners,
		Findings: r.Findings,
		Faults:   r.Faults,
		Metadata: r.Metadata,
	}
}
