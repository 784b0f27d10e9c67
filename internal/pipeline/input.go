package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/shaiso/synapse/internal/domain"
)

// InitialStatus — статус Record до первого шага.
const InitialStatus = "Waiting for orchestration"

// DefaultStory — user story демо по умолчанию.
const DefaultStory = "As a student, I want an exam registration form where I can enter my name, " +
	"email, exam code and choose a preferred exam slot, so that my registration is stored " +
	"and visible in the exam dashboard."

// Input — параметры нового run.
type Input struct {
	// UserStory — свободный текст запроса.
	UserStory string `json:"user_story"`

	// UseSamplePayload — приложить mock payload work item.
	UseSamplePayload bool `json:"use_sample_payload"`

	// SimulateFailures — сколько первых попыток backend_coder будут неудачными.
	SimulateFailures int `json:"simulate_failures"`
}

// workItem — mock payload work item.
type workItem struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	AreaPath      string `json:"areaPath"`
	IterationPath string `json:"iterationPath"`
}

// NewRecord строит начальный Record run.
func NewRecord(in Input) domain.Record {
	story := strings.TrimSpace(in.UserStory)

	rec := domain.NewRecord()
	rec[domain.FieldUserStory] = story
	rec.SetStatus(InitialStatus)

	if in.SimulateFailures > 0 {
		rec[domain.FieldSimulateFailures] = in.SimulateFailures
	}

	if in.UseSamplePayload {
		payload, _ := json.Marshal(workItem{
			ID:            101,
			Title:         "Exam Form UI with FastAPI backend",
			Description:   story,
			AreaPath:      "AutoDev/Frontend-Backend",
			IterationPath: "Sprint 3",
		})
		rec[domain.FieldADOPayload] = string(payload)
	}

	return rec
}
