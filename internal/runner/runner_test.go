package runner

import (
	"context"
	"fmt"
	"testing"

	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/findings"
	"github.com/openlearn/kestrel/internal/refdata"
	"github.com/openlearn/kestrel/internal/rules"
)

type stubRule struct {
	name string
	fn   func(l *domain.Learner, ix *refdata.Indices) []domain.Finding
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	return r.fn(l, ix)
}

type stubBatchRule struct {
	name string
	fn   func(batch []*domain.Learner, ix *refdata.Indices) []domain.Finding
}

func (r stubBatchRule) Name() string { return r.name }

func (r stubBatchRule) EvaluateBatch(batch []*domain.Learner, ix *refdata.Indices) []domain.Finding {
	return r.fn(batch, ix)
}

func alwaysFlag(name string) rules.Rule {
	return stubRule{name: name, fn: func(l *domain.Learner, _ *refdata.Indices) []domain.Finding {
		return []domain.Finding{{Rule: name, LearnRefNumber: l.LearnRefNumber}}
	}}
}

func neverFlag(name string) rules.Rule {
	return stubRule{name: name, fn: func(_ *domain.Learner, _ *refdata.Indices) []domain.Finding {
		return nil
	}}
}

func panicking(name string) rules.Rule {
	return stubRule{name: name, fn: func(_ *domain.Learner, _ *refdata.Indices) []domain.Finding {
		panic("boom")
	}}
}

func testBatch(n int) []*domain.Learner {
	batch := make([]*domain.Learner, n)
	for i := range batch {
		batch[i] = &domain.Learner{LearnRefNumber: fmt.Sprintf("L%03d", i)}
	}
	return batch
}

func TestRunEveryRuleAgainstEveryLearner(t *testing.T) {
	r := New(&refdata.Indices{}, []rules.Rule{alwaysFlag("R1"), alwaysFlag("R2")}, nil, 4)
	sink := findings.NewSink()

	summary := r.Run(context.Background(), testBatch(10), sink)

	if summary.Learners != 10 {
		t.Errorf("expected 10 learners, got %d", summary.Learners)
	}
	if summary.Findings != 20 {
		t.Errorf("expected 20 findings, got %d", summary.Findings)
	}
	if summary.Faults != 0 {
		t.Errorf("expected no faults, got %d", summary.Faults)
	}
}

func TestRunPanicIsolation(t *testing.T) {
	perLearner := []rules.Rule{
		neverFlag("Before"),
		panicking("Broken"),
		alwaysFlag("After"),
	}
	r := New(&refdata.Indices{}, perLearner, nil, 2)
	sink := findings.NewSink()

	summary := r.Run(context.Background(), testBatch(5), sink)

	// One fault per (rule, learner), and the rule after the broken one
	// still ran for every learner.
	if summary.Faults != 5 {
		t.Fatalf("expected 5 faults, got %d", summary.Faults)
	}
	if summary.Findings != 5 {
		t.Errorf("expected 5 findings from the surviving rule, got %d", summary.Findings)
	}
	for _, f := range sink.Faults() {
		if f.Rule != "Broken" {
			t.Errorf("fault attributed to %q, want Broken", f.Rule)
		}
		if f.LearnRefNumber == "" {
			t.Error("fault missing learner attribution")
		}
	}
}

func TestRunBatchRules(t *testing.T) {
	batchRule := stubBatchRule{name: "Dup", fn: func(batch []*domain.Learner, _ *refdata.Indices) []domain.Finding {
		// Runs once over the full batch, not once per learner.
		return []domain.Finding{{Rule: "Dup", LearnRefNumber: batch[0].LearnRefNumber}}
	}}
	r := New(&refdata.Indices{}, nil, []rules.BatchRule{batchRule}, 4)
	sink := findings.NewSink()

	summary := r.Run(context.Background(), testBatch(8), sink)

	if summary.Findings != 1 {
		t.Errorf("expected 1 finding, got %d", summary.Findings)
	}
	if summary.Rules != 1 {
		t.Errorf("expected 1 rule counted, got %d", summary.Rules)
	}
}

func TestRunBatchRulePanicIsolation(t *testing.T) {
	broken := stubBatchRule{name: "BrokenBatch", fn: func(_ []*domain.Learner, _ *refdata.Indices) []domain.Finding {
		panic("batch boom")
	}}
	ok := stubBatchRule{name: "OkBatch", fn: func(batch []*domain.Learner, _ *refdata.Indices) []domain.Finding {
		return []domain.Finding{{Rule: "OkBatch"}}
	}}
	r := New(&refdata.Indices{}, nil, []rules.BatchRule{broken, ok}, 4)
	sink := findings.NewSink()

	summary := r.Run(context.Background(), testBatch(3), sink)

	if summary.Faults != 1 {
		t.Errorf("expected 1 fault, got %d", summary.Faults)
	}
	if summary.Findings != 1 {
		t.Errorf("expected the second batch rule to run, got %d findings", summary.Findings)
	}
}

func TestRunConcurrencyBounded(t *testing.T) {
	// A large batch through a small pool must still evaluate everyone.
	r := New(&refdata.Indices{}, []rules.Rule{alwaysFlag("R")}, nil, 2)
	sink := findings.NewSink()

	summary := r.Run(context.Background(), testBatch(200), sink)

	if summary.Findings != 200 {
		t.Errorf("expected 200 findings, got %d", summary.Findings)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(&refdata.Indices{}, []rules.Rule{alwaysFlag("R")}, nil, 4)
	sink := findings.NewSink()

	summary := r.Run(ctx, testBatch(50), sink)

	if summary.Findings >= 50 {
		t.Errorf("expected cancellation to stop scheduling, got %d findings", summary.Findings)
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	r := New(&refdata.Indices{}, nil, nil, 0)
	if r.workers != 8 {
		t.Errorf("expected default worker count 8, got %d", r.workers)
	}
}
