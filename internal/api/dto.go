package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/orchestrator"
	"github.com/shaiso/synapse/internal/pipeline"
)

// Run DTOs

// CreateRunRequest — запрос на запуск run.
type CreateRunRequest struct {
	UserStory        string `json:"user_story"`
	UseSamplePayload bool   `json:"use_sample_payload,omitempty"`
	SimulateFailures int    `json:"simulate_failures,omitempty"`
	MaxSteps         int    `json:"max_steps,omitempty"`
}

// ToRequest конвертирует запрос API в запрос orchestrator.
func (r CreateRunRequest) ToRequest() orchestrator.Request {
	return orchestrator.Request{
		Input: pipeline.Input{
			UserStory:        r.UserStory,
			UseSamplePayload: r.UseSamplePayload,
			SimulateFailures: r.SimulateFailures,
		},
		MaxSteps: r.MaxSteps,
	}
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID     `json:"id"`
	UserStory  string        `json:"user_story"`
	Status     string        `json:"status"`
	Outcome    string        `json:"outcome,omitempty"`
	Steps      int           `json:"steps"`
	RetryCount int           `json:"retry_count"`
	Record     domain.Record `json:"record,omitempty"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	DurationMS int64         `json:"duration_ms,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		UserStory:  r.UserStory,
		Status:     string(r.Status),
		Outcome:    string(r.Outcome),
		Steps:      r.Steps,
		RetryCount: r.RetryCount,
		Record:     r.Record,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
	}
}

// RunSummaryFromDomain — RunResponse без Record, для списков.
func RunSummaryFromDomain(r domain.Run) RunResponse {
	resp := RunFromDomain(r)
	resp.Record = nil
	return resp
}

// Snapshot DTOs

// SnapshotResponse — снимок Record после одного узла.
type SnapshotResponse struct {
	Step      int           `json:"step"`
	NodeID    string        `json:"node_id"`
	Status    string        `json:"status"`
	Changed   []string      `json:"changed"`
	Record    domain.Record `json:"record"`
	CreatedAt time.Time     `json:"created_at"`
}

// SnapshotFromDomain конвертирует domain.RunSnapshot в SnapshotResponse.
func SnapshotFromDomain(s domain.RunSnapshot) SnapshotResponse {
	return SnapshotResponse{
		Step:      s.Step,
		NodeID:    s.NodeID,
		Status:    s.Status,
		Changed:   s.Changed,
		Record:    s.Record,
		CreatedAt: s.CreatedAt,
	}
}

// StreamLine — строка NDJSON потока POST /api/v1/runs.
// Строки снимков содержат поля SnapshotResponse; последняя строка — Run
// и ошибка run, если она была.
type StreamLine struct {
	SnapshotResponse
	Run   *RunResponse `json:"run,omitempty"`
	Error string       `json:"error,omitempty"`
}

// FinalLine — завершающая строка потока.
type FinalLine struct {
	Run   *RunResponse `json:"run"`
	Error string       `json:"error,omitempty"`
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	Storage    bool   `json:"storage"`
}
