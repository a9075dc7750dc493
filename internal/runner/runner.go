// Package runner schedules rule evaluation over a learner batch. Indices
// are built before any rule runs; evaluation is embarrassingly parallel
// across learners, with the finding sink as the only shared mutable state.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/findings"
	"github.com/openlearn/kestrel/internal/refdata"
	"github.com/openlearn/kestrel/internal/rules"
)

// Runner evaluates a rule catalogue over learner batches.
type Runner struct {
	rules      []rules.Rule
	batchRules []rules.BatchRule
	indices    *refdata.Indices
	workers    int
}

// New creates a runner. workers caps the number of learners evaluated
// concurrently.
func New(ix *refdata.Indices, perLearner []rules.Rule, batch []rules.BatchRule, workers int) *Runner {
	if workers <= 0 {
		workers = 8
	}
	return &Runner{
		rules:      perLearner,
		batchRules: batch,
		indices:    ix,
		workers:    workers,
	}
}

// Summary describes one completed run.
type Summary struct {
	Learners   int           `json:"learners"`
	Rules      int           `json:"rules"`
	Findings   int           `json:"findings"`
	Faults     int           `json:"faults"`
	EvaluateMs int64         `json:"evaluateMs"`
	Duration   time.Duration `json:"-"`
}

// Run evaluates every rule against every learner, then the batch rules
// against the whole batch. A faulting rule is isolated per (rule, learner):
// it records a fault and the remaining rules and learners continue. The
// batch always completes.
func (r *Runner) Run(ctx context.Context, batch []*domain.Learner, sink *findings.Sink) Summary {
	start := time.Now()

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for _, l := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(l *domain.Learner) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			for _, rule := range r.rules {
				r.evaluateOne(rule, l, sink)
			}
		}(l)
	}

	wg.Wait()

	for _, rule := range r.batchRules {
		r.evaluateBatchRule(rule, batch, sink)
	}

	elapsed := time.Since(start)
	return Summary{
		Learners:   len(batch),
		Rules:      len(r.rules) + len(r.batchRules),
		Findings:   sink.Len(),
		Faults:     len(sink.Faults()),
		EvaluateMs: elapsed.Milliseconds(),
		Duration:   elapsed,
	}
}

// evaluateOne runs a single rule against a single learner, converting a
// panic into a recorded fault.
func (r *Runner) evaluateOne(rule rules.Rule, l *domain.Learner, sink *findings.Sink) {
	defer func() {
		if rec := recover(); rec != nil {
			sink.RecordFault(domain.Fault{
				Rule:           rule.Name(),
				LearnRefNumber: l.LearnRefNumber,
				Message:        fmt.Sprintf("rule panicked: %v", rec),
			})
			slog.Error("rule evaluation fault",
				"rule", rule.Name(),
				"learn_ref", l.LearnRefNumber,
				"panic", rec,
			)
		}
	}()

	sink.RecordAll(rule.Evaluate(l, r.indices))
}

func (r *Runner) evaluateBatchRule(rule rules.BatchRule, batch []*domain.Learner, sink *findings.Sink) {
	defer func() {
		if rec := recover(); rec != nil {
			sink.RecordFault(domain.Fault{
				Rule:    rule.Name(),
				Message: fmt.Sprintf("batch rule panicked: %v", rec),
			})
			slog.Error("batch rule evaluation fault",
				"rule", rule.Name(),
				"panic", rec,
			)
		}
	}()

	sink.RecordAll(rule.EvaluateBatch(batch, r.indices))
}
