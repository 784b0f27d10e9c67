package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один прогон pipeline для одного user story.
//
// Run создаётся когда:
// - Пользователь запускает pipeline через CLI или API
// - Scheduler ставит демонстрационный прогон в очередь
//
// Сам Record живёт только во время выполнения; Run хранит итоговый
// снимок и сводку (исход, число посещений узлов, число повторов).
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// UserStory — исходный запрос пользователя.
	UserStory string `json:"user_story"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Outcome — бизнес-исход (deployed / handed_off), пустой до завершения.
	Outcome Outcome `json:"outcome,omitempty"`

	// Steps — количество посещённых узлов.
	Steps int `json:"steps"`

	// RetryCount — итоговое значение retry_count.
	RetryCount int `json:"retry_count"`

	// Record — последний снимок Record.
	Record Record `json:"record,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(userStory string) *Run {
	return &Run{
		ID:        uuid.New(),
		UserStory: userStory,
		Status:    RunStatusPending,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED и фиксирует итоговый Record.
func (r *Run) MarkSucceeded(final Record) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
	r.apply(final)
}

// MarkFailed переводит run в статус FAILED с ошибкой.
// last — последний успешно выданный снимок (может быть nil).
func (r *Run) MarkFailed(err string, last Record) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
	r.apply(last)
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled(last Record) {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
	r.apply(last)
}

func (r *Run) apply(rec Record) {
	if rec == nil {
		return
	}
	r.Record = rec
	r.RetryCount = rec.RetryCount()
	r.Outcome = Outcome(rec.String(FieldOutcome))
}
