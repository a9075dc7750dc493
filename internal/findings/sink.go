// Package findings provides the append-only collector every rule
// invocation reports into.
package findings

import (
	"sync"

	"github.com/openlearn/kestrel/internal/domain"
)

// Sink collects findings and execution faults during a run. It is the only
// mutable object touched during evaluation; appends are concurrency-safe.
// Findings are never deduplicated: a learner may receive the same rule's
// finding once per violating aim.
type Sink struct {
	mu       sync.Mutex
	seq      int64
	findings []domain.Finding
	faults   []domain.Fault
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Record appends a finding, assigning it the next sequence number.
func (s *Sink) Record(f domain.Finding) {
	s.mu.Lock()
	s.seq++
	f.Seq = s.seq
	s.findings = append(s.findings, f)
	s.mu.Unlock()
}

// RecordAll appends a batch of findings in order.
func (s *Sink) RecordAll(fs []domain.Finding) {
	if len(fs) == 0 {
		return
	}
	s.mu.Lock()
	for _, f := range fs {
		s.seq++
		f.Seq = s.seq
		s.findings = append(s.findings, f)
	}
	s.mu.Unlock()
}

// RecordFault appends an execution fault. Faults are diagnostics, kept
// apart from business findings.
func (s *Sink) RecordFault(f domain.Fault) {
	s.mu.Lock()
	s.faults = append(s.faults, f)
	s.mu.Unlock()
}

// Findings returns a copy of the collected findings in append order.
func (s *Sink) Findings() []domain.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

// Faults returns a copy of the collected faults.
func (s *Sink) Faults() []domain.Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Fault, len(s.faults))
	copy(out, s.faults)
	return out
}

// Len returns the number of findings collected so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings)
}
