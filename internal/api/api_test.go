package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/mq"
	"github.com/shaiso/synapse/internal/orchestrator"
	"github.com/shaiso/synapse/internal/pipeline"
	"github.com/shaiso/synapse/internal/repo"
)

type memStore struct {
	mu    sync.Mutex
	runs  map[uuid.UUID]domain.Run
	snaps map[uuid.UUID][]domain.RunSnapshot
}

func newMemStore() *memStore {
	return &memStore{
		runs:  make(map[uuid.UUID]domain.Run),
		snaps: make(map[uuid.UUID][]domain.RunSnapshot),
	}
}

func (m *memStore) Create(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memStore) Update(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (m *memStore) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []domain.Run
	for _, run := range m.runs {
		if filter.Status == "" || run.Status == filter.Status {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

func (m *memStore) Append(_ context.Context, snap *domain.RunSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.RunID] = append(m.snaps[snap.RunID], *snap)
	return nil
}

func (m *memStore) ListByRun(_ context.Context, runID uuid.UUID) ([]domain.RunSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[runID], nil
}

type nopPublisher struct{}

func (nopPublisher) PublishRunPending(context.Context, mq.RunPendingPayload) error   { return nil }
func (nopPublisher) PublishRunSnapshot(context.Context, mq.RunSnapshotPayload) error { return nil }
func (nopPublisher) PublishRunFinished(context.Context, mq.RunFinishedPayload) error { return nil }

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	def, err := pipeline.Default()
	if err != nil {
		t.Fatalf("parse default pipeline: %v", err)
	}
	p, err := pipeline.New(def, pipeline.Options{})
	if err != nil {
		t.Fatalf("build default pipeline: %v", err)
	}
	return p
}

// newServer собирает API; store == nil отключает историю runs.
func newServer(t *testing.T, store *memStore, publisher orchestrator.Publisher) *httptest.Server {
	t.Helper()

	cfg := orchestrator.Config{Pipeline: newPipeline(t), Publisher: publisher}
	apiCfg := Config{}
	if store != nil {
		cfg.Runs = store
		cfg.Snapshots = store
		apiCfg.Runs = store
		apiCfg.Snapshots = store
	}
	apiCfg.Service = orchestrator.New(cfg)

	mux := http.NewServeMux()
	NewHandler(apiCfg).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postRun(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// readStream читает NDJSON поток: снимки и завершающую строку.
func readStream(t *testing.T, resp *http.Response) ([]SnapshotResponse, FinalLine) {
	t.Helper()

	var snaps []SnapshotResponse
	var final FinalLine
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		var line StreamLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("invalid NDJSON line %q: %v", scanner.Text(), err)
		}
		if line.Run != nil || line.Error != "" {
			final = FinalLine{Run: line.Run, Error: line.Error}
			continue
		}
		snaps = append(snaps, line.SnapshotResponse)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return snaps, final
}

func TestCreateRun_Streams(t *testing.T) {
	store := newMemStore()
	srv := newServer(t, store, nil)

	resp := postRun(t, srv.URL+"/api/v1/runs", `{"user_story":"simple form","simulate_failures":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != ContentTypeNDJSON {
		t.Errorf("expected %s, got %s", ContentTypeNDJSON, ct)
	}

	snaps, final := readStream(t, resp)
	if final.Run == nil {
		t.Fatal("stream must end with a run line")
	}
	if final.Error != "" {
		t.Errorf("unexpected run error %q", final.Error)
	}
	if final.Run.Status != string(domain.RunStatusSucceeded) || final.Run.Outcome != string(domain.OutcomeDeployed) {
		t.Errorf("expected SUCCEEDED/deployed, got %s/%s", final.Run.Status, final.Run.Outcome)
	}
	if final.Run.RetryCount != 2 {
		t.Errorf("expected retry_count 2, got %d", final.Run.RetryCount)
	}
	if len(snaps) != final.Run.Steps {
		t.Errorf("expected %d snapshot lines, got %d", final.Run.Steps, len(snaps))
	}
	for i, s := range snaps {
		if s.Step != i+1 {
			t.Errorf("line %d has step %d", i, s.Step)
		}
	}

	// Run и снимки доступны через API
	var got DataResponse
	if code := getJSON(t, srv.URL+"/api/v1/runs/"+final.Run.ID.String(), &got); code != http.StatusOK {
		t.Errorf("expected 200 for stored run, got %d", code)
	}

	var list struct {
		Data  []SnapshotResponse `json:"data"`
		Total int                `json:"total"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/runs/"+final.Run.ID.String()+"/snapshots", &list); code != http.StatusOK {
		t.Fatalf("expected 200 for snapshots, got %d", code)
	}
	if list.Total != len(snaps) {
		t.Errorf("expected %d stored snapshots, got %d", len(snaps), list.Total)
	}
}

func TestCreateRun_RunawayReportedInFinalLine(t *testing.T) {
	srv := newServer(t, nil, nil)

	resp := postRun(t, srv.URL+"/api/v1/runs", `{"user_story":"simple form","max_steps":4}`)
	snaps, final := readStream(t, resp)

	if len(snaps) != 4 {
		t.Errorf("expected 4 snapshots, got %d", len(snaps))
	}
	if final.Run == nil || final.Run.Status != string(domain.RunStatusFailed) {
		t.Fatalf("expected FAILED run, got %+v", final.Run)
	}
	if !strings.Contains(final.Error, "exceeded 4 node visits") {
		t.Errorf("unexpected error %q", final.Error)
	}
}

func TestCreateRun_BadRequest(t *testing.T) {
	srv := newServer(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"user_story":`},
		{name: "empty body", body: ``},
		{name: "blank story", body: `{"user_story":"   "}`},
		{name: "negative failures", body: `{"user_story":"x","simulate_failures":-1}`},
		{name: "negative max steps", body: `{"user_story":"x","max_steps":-3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRun(t, srv.URL+"/api/v1/runs", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != ErrCodeBadRequest {
				t.Errorf("expected BAD_REQUEST, got %s", body.Error.Code)
			}
		})
	}
}

func TestCreateRun_Async(t *testing.T) {
	store := newMemStore()
	srv := newServer(t, store, nopPublisher{})

	resp := postRun(t, srv.URL+"/api/v1/runs?async=true", `{"user_story":"simple form"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var body struct {
		Data RunResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Status != string(domain.RunStatusPending) {
		t.Errorf("expected PENDING, got %s", body.Data.Status)
	}
	if _, err := store.GetByID(context.Background(), body.Data.ID); err != nil {
		t.Errorf("pending run should be stored: %v", err)
	}
}

func TestCreateRun_AsyncWithoutQueue(t *testing.T) {
	srv := newServer(t, nil, nil)

	resp := postRun(t, srv.URL+"/api/v1/runs?async=true", `{"user_story":"simple form"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestGetRun_Errors(t *testing.T) {
	srv := newServer(t, newMemStore(), nil)

	if code := getJSON(t, srv.URL+"/api/v1/runs/not-a-uuid", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/v1/runs/"+uuid.NewString(), nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/v1/runs/"+uuid.NewString()+"/snapshots", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for snapshots, got %d", code)
	}
}

func TestListRuns(t *testing.T) {
	store := newMemStore()
	srv := newServer(t, store, nil)

	readStream(t, postRun(t, srv.URL+"/api/v1/runs", `{"user_story":"first"}`))
	readStream(t, postRun(t, srv.URL+"/api/v1/runs", `{"user_story":"second","max_steps":1}`))

	var all struct {
		Data []RunResponse `json:"data"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/runs", &all); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(all.Data) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all.Data))
	}
	for _, run := range all.Data {
		if run.Record != nil {
			t.Error("list should not include records")
		}
	}

	var failed struct {
		Data []RunResponse `json:"data"`
	}
	getJSON(t, srv.URL+"/api/v1/runs?status=failed", &failed)
	if len(failed.Data) != 1 || failed.Data[0].UserStory != "second" {
		t.Errorf("expected only the failed run, got %+v", failed.Data)
	}

	if code := getJSON(t, srv.URL+"/api/v1/runs?status=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad status, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/v1/runs?limit=abc", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", code)
	}
}

func TestListRuns_StorageDisabled(t *testing.T) {
	srv := newServer(t, nil, nil)

	if code := getJSON(t, srv.URL+"/api/v1/runs", nil); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}

func TestGetPipeline(t *testing.T) {
	srv := newServer(t, nil, nil)

	var body struct {
		Data pipeline.Description `json:"data"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/pipeline", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body.Data.Nodes) != 9 || body.Data.RetryCeiling != 2 {
		t.Errorf("unexpected pipeline description %+v", body.Data)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, nil, nil)

	var body HealthResponse
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Status != "ok" || body.Storage {
		t.Errorf("unexpected health %+v", body)
	}
}

func TestRecovery(t *testing.T) {
	logger := newTestLogger()
	h := Chain(Recovery(logger), Logging(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
