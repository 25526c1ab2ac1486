package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelake/carelake/internal/audit"
	"github.com/carelake/carelake/internal/gold"
	"github.com/carelake/carelake/internal/pipeline"
)

type fakeRuns struct {
	runs  []audit.StageRun
	total int64
	err   error

	gotLimit  int
	gotOffset int
}

func (f *fakeRuns) RecordStageRun(ctx context.Context, run audit.StageRun) error { return nil }

func (f *fakeRuns) ListRuns(ctx context.Context, limit, offset int) ([]audit.StageRun, int64, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.runs, f.total, f.err
}

type fakeRejects struct {
	rejects []audit.RejectedRow
	total   int64
	err     error

	gotTable  string
	gotLimit  int
	gotOffset int
}

func (f *fakeRejects) Record(ctx context.Context, table string, payload map[string]any, reason string) error {
	return nil
}

func (f *fakeRejects) List(ctx context.Context, table string, limit, offset int) ([]audit.RejectedRow, int64, error) {
	f.gotTable, f.gotLimit, f.gotOffset = table, limit, offset
	return f.rejects, f.total, f.err
}

type fakeMeasures struct {
	rows []map[string]any
	err  error

	gotMeasure string
}

func (f *fakeMeasures) Results(ctx context.Context, m gold.Measure) ([]map[string]any, error) {
	f.gotMeasure = m.ID
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	got     []uuid.UUID
	started chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (f *fakeRunner) RunWithID(ctx context.Context, runID uuid.UUID) (pipeline.RunReport, error) {
	f.mu.Lock()
	f.got = append(f.got, runID)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.done != nil {
		f.done <- struct{}{}
	}
	return pipeline.RunReport{RunID: runID}, nil
}

type testDeps struct {
	runs     *fakeRuns
	rejects  *fakeRejects
	measures *fakeMeasures
	runner   *fakeRunner
}

func newTestServer(t *testing.T, jwtSecret string) (*Server, *testDeps) {
	t.Helper()
	td := &testDeps{
		runs:     &fakeRuns{},
		rejects:  &fakeRejects{},
		measures: &fakeMeasures{},
		runner:   &fakeRunner{},
	}
	s := New(Deps{
		Rejects:  td.rejects,
		Runs:     td.runs,
		Measures: td.measures,
		Runner:   td.runner,
		Version:  "test",
	}, jwtSecret, zerolog.Nop())
	return s, td
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHandleListRuns(t *testing.T) {
	s, td := newTestServer(t, "")
	now := time.Now().UTC()
	td.runs.runs = []audit.StageRun{
		{RunID: uuid.New(), Stage: "patients", Status: audit.RunStatusCompleted, RowsChecked: 3, RowsLoaded: 2, RowsRejected: 1, StartedAt: now},
		{RunID: uuid.New(), Stage: "doctors", Status: audit.RunStatusCompleted, StartedAt: now},
	}
	td.runs.total = 5

	rec := doRequest(s, http.MethodGet, "/api/v1/runs?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if td.runs.gotLimit != 2 || td.runs.gotOffset != 0 {
		t.Fatalf("repo got limit=%d offset=%d", td.runs.gotLimit, td.runs.gotOffset)
	}

	var body struct {
		Data    []audit.StageRun `json:"data"`
		Total   int64            `json:"total"`
		HasMore bool             `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body.Data) != 2 || body.Total != 5 || !body.HasMore {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if body.Data[0].Stage != "patients" {
		t.Fatalf("first run stage = %q", body.Data[0].Stage)
	}
}

func TestHandleListRuns_Error(t *testing.T) {
	s, td := newTestServer(t, "")
	td.runs.err = errors.New("boom")

	rec := doRequest(s, http.MethodGet, "/api/v1/runs")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleListRejects(t *testing.T) {
	s, td := newTestServer(t, "")
	td.rejects.rejects = []audit.RejectedRow{
		{TableName: "patients", RowData: json.RawMessage(`{"patient_id":"2","dob":"2990-01-01"}`), ErrorReason: "Invalid DOB", RejectedAt: time.Now().UTC()},
	}
	td.rejects.total = 1

	rec := doRequest(s, http.MethodGet, "/api/v1/rejects?table=patients&limit=10&offset=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if td.rejects.gotTable != "patients" || td.rejects.gotLimit != 10 || td.rejects.gotOffset != 5 {
		t.Fatalf("repo got table=%q limit=%d offset=%d", td.rejects.gotTable, td.rejects.gotLimit, td.rejects.gotOffset)
	}

	var body struct {
		Data []audit.RejectedRow `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ErrorReason != "Invalid DOB" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleListMeasures(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodGet, "/api/v1/measures")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body []gold.Measure
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != len(gold.Measures) {
		t.Fatalf("expected %d measures, got %d", len(gold.Measures), len(body))
	}
}

func TestHandleGetMeasure(t *testing.T) {
	s, td := newTestServer(t, "")
	td.measures.rows = []map[string]any{{"total_revenue": 1200.5}}

	rec := doRequest(s, http.MethodGet, "/api/v1/measures/total-revenue")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if td.measures.gotMeasure != "total-revenue" {
		t.Fatalf("source got measure %q", td.measures.gotMeasure)
	}

	var report MeasureReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.MeasureID != "total-revenue" || len(report.Results) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestHandleGetMeasure_NotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodGet, "/api/v1/measures/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetMeasure_SourceError(t *testing.T) {
	s, td := newTestServer(t, "")
	td.measures.err = errors.New("boom")

	rec := doRequest(s, http.MethodGet, "/api/v1/measures/total-revenue")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleTriggerRun(t *testing.T) {
	s, td := newTestServer(t, "")
	td.runner.done = make(chan struct{}, 1)

	rec := doRequest(s, http.MethodPost, "/api/v1/pipeline/run")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runID, err := uuid.Parse(body["run_id"])
	if err != nil {
		t.Fatalf("run_id not a uuid: %v", err)
	}

	select {
	case <-td.runner.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner never started")
	}
	td.runner.mu.Lock()
	defer td.runner.mu.Unlock()
	if len(td.runner.got) != 1 || td.runner.got[0] != runID {
		t.Fatalf("runner got %v, want [%s]", td.runner.got, runID)
	}
}

func TestHandleTriggerRun_Conflict(t *testing.T) {
	s, td := newTestServer(t, "")
	td.runner.started = make(chan struct{}, 1)
	td.runner.release = make(chan struct{})
	td.runner.done = make(chan struct{}, 1)

	first := doRequest(s, http.MethodPost, "/api/v1/pipeline/run")
	if first.Code != http.StatusAccepted {
		t.Fatalf("first trigger status = %d, want 202", first.Code)
	}
	<-td.runner.started

	second := doRequest(s, http.MethodPost, "/api/v1/pipeline/run")
	if second.Code != http.StatusConflict {
		t.Fatalf("second trigger status = %d, want 409", second.Code)
	}

	close(td.runner.release)
	select {
	case <-td.runner.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner never finished")
	}
}
