package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/findings"
	"github.com/openlearn/kestrel/internal/refdata"
	"github.com/openlearn/kestrel/internal/rules"
)

// snapshotTTL bounds how long a cached reference-source snapshot is served
// before the repository is consulted again.
const snapshotTTL = time.Hour

// Service orchestrates the validation pipeline: reference-data loading and
// indexing, rule evaluation, run persistence and event publication. The API
// handlers and the async worker share one Service.
type Service struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *rules.Engine
	workers int
	version string

	mu      sync.RWMutex
	indices *refdata.Indices
	diags   []refdata.Diagnostics
	indexMs int64
}

// NewService creates a validation service. repo, cache and bus may be nil
// for embedded use; the engine may be nil when no expression rules are
// loaded.
func NewService(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, workers int, version string) *Service {
	empty, _ := refdata.BuildIndices(refdata.Collections{})
	return &Service{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		workers: workers,
		version: version,
		indices: empty,
	}
}

// LoadReferenceData reads every reference source, rebuilds the indices and
// swaps them in atomically. Cached snapshots are used when present; misses
// fall through to the repository and repopulate the cache. Index
// diagnostics (overlaps, duplicates, dropped rows) are reported, never
// fatal.
func (s *Service) LoadReferenceData(ctx context.Context) ([]refdata.Diagnostics, error) {
	start := time.Now()

	bySource := make(map[string][]domain.ReferenceRecord, len(domain.AllSources()))
	for _, source := range domain.AllSources() {
		records, err := s.loadSource(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to load source %s: %w", source, err)
		}
		bySource[source] = records
	}

	collections := refdata.CollectionsFromRecords(bySource)
	indices, diags := refdata.BuildIndices(collections)
	indexMs := time.Since(start).Milliseconds()

	s.mu.Lock()
	s.indices = indices
	s.diags = diags
	s.indexMs = indexMs
	s.mu.Unlock()

	for _, d := range diags {
		slog.Warn("reference index diagnostics",
			"source", d.Source,
			"total", d.Total,
			"dropped", d.Dropped,
			"duplicates", d.Duplicates,
			"overlaps", d.Overlaps,
		)
	}

	slog.Info("reference data indexed",
		"sources", len(bySource),
		"index_ms", indexMs,
	)

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"sources": len(bySource),
			"indexMs": indexMs,
		})
		if err := s.bus.Publish(ctx, domain.TopicRefdataReloaded, payload); err != nil {
			slog.Error("failed to publish refdata reload event", "error", err)
		}
	}

	return diags, nil
}

func (s *Service) loadSource(ctx context.Context, source string) ([]domain.ReferenceRecord, error) {
	if s.cache != nil {
		records, err := s.cache.GetSnapshot(ctx, source)
		if err != nil {
			slog.Warn("snapshot cache read failed", "source", source, "error", err)
		} else if records != nil {
			return records, nil
		}
	}

	if s.repo == nil {
		return nil, nil
	}

	records, err := s.repo.ListReferenceRecords(ctx, source)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(records) > 0 {
		if err := s.cache.SetSnapshot(ctx, source, records, snapshotTTL); err != nil {
			slog.Warn("snapshot cache write failed", "source", source, "error", err)
		}
	}

	return records, nil
}

// Indices returns the current reference indices.
func (s *Service) Indices() *refdata.Indices {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indices
}

// Diagnostics returns the diagnostics from the last index build.
func (s *Service) Diagnostics() []refdata.Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diags
}

// ValidateBatch evaluates the full rule catalogue over one learner batch
// and returns the persisted run. Findings are never deduplicated; faults
// are reported alongside, not mixed in.
func (s *Service) ValidateBatch(ctx context.Context, learners []*domain.Learner, traceID string) (*domain.Run, error) {
	start := time.Now()

	s.mu.RLock()
	indices := s.indices
	indexMs := s.indexMs
	s.mu.RUnlock()

	sink := findings.NewSink()

	perLearner := rules.BuiltinRules()
	if s.engine != nil && s.engine.RulesCount() > 0 {
		perLearner = append(perLearner, rules.NewExprRules(s.engine, sink.RecordFault))
	}

	r := New(indices, perLearner, rules.BuiltinBatchRules(), s.workers)
	summary := r.Run(ctx, learners, sink)

	run := &domain.Run{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Findings:  sink.Findings(),
		Faults:    sink.Faults(),
		Metadata: domain.RunMetadata{
			TraceID:        traceID,
			Learners:       summary.Learners,
			RulesEvaluated: summary.Rules,
			IndexMs:        indexMs,
			EvaluateMs:     summary.EvaluateMs,
			TotalMs:        time.Since(start).Milliseconds(),
			EngineVersion:  s.version,
		},
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			slog.Error("failed to save run", "run_id", run.ID, "error", err)
		}
	}

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]any{
			"runId":    run.ID,
			"learners": summary.Learners,
			"findings": summary.Findings,
			"faults":   summary.Faults,
		})
		if err := s.bus.Publish(ctx, domain.TopicRunCompleted, payload); err != nil {
			slog.Error("failed to publish run completed event", "run_id", run.ID, "error", err)
		}
		s.publishAlerts(ctx, run, indices)
	}

	slog.Info("batch validated",
		"run_id", run.ID,
		"learners", summary.Learners,
		"findings", summary.Findings,
		"faults", summary.Faults,
		"duration_ms", run.Metadata.TotalMs,
	)

	return run, nil
}

// publishAlerts emits one finding.reported event per error-severity
// finding. Severity comes from the rule metadata index; rules without
// metadata count as errors.
func (s *Service) publishAlerts(ctx context.Context, run *domain.Run, indices *refdata.Indices) {
	for _, f := range run.Findings {
		if indices != nil && indices.RuleMeta != nil {
			if indices.RuleMeta.Severity(f.Rule) == domain.SeverityWarning {
				continue
			}
		}
		payload, _ := json.Marshal(map[string]any{
			"runId":          run.ID,
			"rule":           f.Rule,
			"learnRefNumber": f.LearnRefNumber,
			"aimSeqNumber":   f.AimSeqNumber,
		})
		if err := s.bus.Publish(ctx, domain.TopicFindingReported, payload); err != nil {
			slog.Error("failed to publish finding event", "run_id", run.ID, "rule", f.Rule, "error", err)
			return
		}
	}
}

// ReloadExprRules reloads expression rules from the repository into the
// engine, returning the number loaded.
func (s *Service) ReloadExprRules(ctx context.Context) (int, error) {
	if s.repo == nil || s.engine == nil {
		return 0, fmt.Errorf("expression rules not available")
	}

	configs, err := s.repo.ListExprRules(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.engine.ReloadRules(configs); err != nil {
		return 0, err
	}

	return len(configs), nil
}
