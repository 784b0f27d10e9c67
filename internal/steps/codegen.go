package steps

import (
	"context"

	"github.com/shaiso/synapse/internal/domain"
)

// DBArchitect предлагает схему БД.
type DBArchitect struct{ agent }

// NewDBArchitect создаёт DBArchitect.
func NewDBArchitect() *DBArchitect {
	return &DBArchitect{agent{id: StepDBArchitect, name: "DB Architect"}}
}

// Handle заполняет db_schema.
func (s *DBArchitect) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Designing DB schema")

	schema, err := Render("db_schema.sql.tmpl", map[string]any{"Table": "exam_registrations"})
	if err != nil {
		return nil, err
	}
	rec[domain.FieldDBSchema] = schema
	rec.AppendLog("DB Architect: Proposed PostgreSQL schema for exam_registrations table.")

	return rec, nil
}

// BackendCoder генерирует FastAPI сервис.
//
// Пока retry_count меньше simulate_failures, health endpoint в коде
// отсутствует и sentinel отклоняет артефакт. Так демо показывает цикл повторов.
type BackendCoder struct{ agent }

// NewBackendCoder создаёт BackendCoder.
func NewBackendCoder() *BackendCoder {
	return &BackendCoder{agent{id: StepBackendCoder, name: "Backend Coder"}}
}

// Handle заполняет backend_code.
func (s *BackendCoder) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Authoring FastAPI backend")

	withHealth := rec.RetryCount() >= rec.Int(domain.FieldSimulateFailures)
	code, err := Render("backend.py.tmpl", map[string]any{
		"Title":      "Exam Registration API",
		"WithHealth": withHealth,
	})
	if err != nil {
		return nil, err
	}
	rec[domain.FieldBackendCode] = code

	if withHealth {
		rec.AppendLog("Backend Coder: Generated FastAPI service with health, create and list endpoints.")
	} else {
		rec.AppendLog("Backend Coder: Generated FastAPI service with create and list endpoints.")
	}

	return rec, nil
}

// FrontendCoder генерирует React компонент.
type FrontendCoder struct{ agent }

// NewFrontendCoder создаёт FrontendCoder.
func NewFrontendCoder() *FrontendCoder {
	return &FrontendCoder{agent{id: StepFrontendCoder, name: "Frontend Coder"}}
}

// Handle заполняет frontend_code.
func (s *FrontendCoder) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Authoring frontend UI")

	code, err := Render("frontend.jsx.tmpl", map[string]any{"APIBase": "http://localhost:8000"})
	if err != nil {
		return nil, err
	}
	rec[domain.FieldFrontendCode] = code
	rec.AppendLog("Frontend Coder: Generated React component wired to FastAPI endpoints.")

	return rec, nil
}

// LegacyAgent ищет точку расширения в legacy модуле.
type LegacyAgent struct{ agent }

// NewLegacyAgent создаёт LegacyAgent.
func NewLegacyAgent() *LegacyAgent {
	return &LegacyAgent{agent{id: StepLegacyAgent, name: "Legacy Agent"}}
}

// Handle заполняет legacy_analysis.
func (s *LegacyAgent) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Analysing legacy code")

	patch, err := Render("legacy_patch.py.tmpl", map[string]any{
		"Module": "legacy_exam_module.py",
		"Marker": "AUTO-DEV-INJECT-HERE",
		"Route":  "/exam/registration",
	})
	if err != nil {
		return nil, err
	}
	rec[domain.FieldLegacyAnalysis] = patch
	rec.AppendLog("Legacy Agent: Located safe injection point in legacy_exam_module.py and suggested patch.")

	return rec, nil
}
