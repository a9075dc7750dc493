package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/repository"
	"github.com/openlearn/kestrel/internal/rules"
	"github.com/openlearn/kestrel/internal/runner"
)

// createTestServer wires a server with a temp SQLite repository and a real
// expression engine.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	service := runner.NewService(repo, nil, nil, engine, 4, "test-v1")

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, nil, nil, engine, service, "test-v1")
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestValidateEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulValidation", func(t *testing.T) {
		start := time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)
		reqBody := ValidateRequest{
			Learners: []*domain.Learner{
				{
					LearnRefNumber: "L001",
					ULN:            1000000027,
					Deliveries: []domain.Delivery{
						{
							AimSeqNumber:     1,
							AimRef:           "50086832",
							AimType:          domain.AimTypeProgramme,
							LearnStartDate:   start,
							LearnPlanEndDate: start.AddDate(1, 0, 0),
						},
					},
				},
			},
		}

		rr := postJSON(t, server, "/validate", reqBody)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.RunResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.RunID == "" {
			t.Error("expected runId in response")
		}
		if resp.Learners != 1 {
			t.Errorf("expected 1 learner, got %d", resp.Learners)
		}
		// No reference data is loaded, so the unknown-aim rule must flag.
		var flagged bool
		for _, f := range resp.Findings {
			if f.Rule == "LearnAimRef_01" {
				flagged = true
			}
		}
		if !flagged {
			t.Error("expected unknown aim finding against empty indices")
		}
		if resp.Metadata.EngineVersion != "test-v1" {
			t.Errorf("expected engine version test-v1, got %s", resp.Metadata.EngineVersion)
		}
	})

	t.Run("RunIsRetrievable", func(t *testing.T) {
		reqBody := ValidateRequest{
			Learners: []*domain.Learner{{LearnRefNumber: "L002"}},
		}

		rr := postJSON(t, server, "/validate", reqBody)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp domain.RunResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		req := httptest.NewRequest(http.MethodGet, "/runs/"+resp.RunID, nil)
		getRR := httptest.NewRecorder()
		server.Router().ServeHTTP(getRR, req)

		if getRR.Code != http.StatusOK {
			t.Fatalf("expected status 200 fetching run, got %d", getRR.Code)
		}

		var run domain.Run
		if err := json.Unmarshal(getRR.Body.Bytes(), &run); err != nil {
			t.Fatalf("failed to parse run: %v", err)
		}
		if run.ID != resp.RunID {
			t.Errorf("expected run %s, got %s", resp.RunID, run.ID)
		}
	})

	t.Run("EmptyBatchRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/validate", ValidateRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingLearnRefRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/validate", ValidateRequest{
			Learners: []*domain.Learner{{ULN: 1000000027}},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSONRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewBufferString("{not json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRunNotFound(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/runs/no-such-run", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateAndReload", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			Name:       "FundModel_09",
			Expression: "fund_model == 99 && prog_type == 0",
			Severity:   domain.SeverityError,
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = postJSON(t, server, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200 on reload, got %d: %s", rr.Code, rr.Body.String())
		}

		req := httptest.NewRequest(http.MethodGet, "/rules/FundModel_09", nil)
		getRR := httptest.NewRecorder()
		server.Router().ServeHTTP(getRR, req)
		if getRR.Code != http.StatusOK {
			t.Errorf("expected status 200 fetching rule, got %d", getRR.Code)
		}
	})

	t.Run("InvalidExpressionRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			Name:       "Broken_01",
			Expression: "fund_model >>> 1",
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for invalid CEL, got %d", rr.Code)
		}
	})

	t.Run("NonBoolExpressionRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			Name:       "NonBool_01",
			Expression: "fund_model + 1",
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for non-bool CEL, got %d", rr.Code)
		}
	})

	t.Run("MissingFieldsRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{Name: "NoExpr"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownRuleNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/NoSuchRule", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestRefdataEndpoints(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/refdata/reload", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/refdata/diagnostics", nil)
	getRR := httptest.NewRecorder()
	server.Router().ServeHTTP(getRR, req)
	if getRR.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", getRR.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", resp["status"])
	}
	if resp["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", resp["version"])
	}

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr = httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 from /ready, got %d", rr.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("expected request ID header on response")
	}
	if rr.Header().Get(TraceIDHeader) == "" {
		t.Error("expected trace ID header on response")
	}
}
