package steps

import (
	"context"
	"strings"

	"github.com/shaiso/synapse/internal/domain"
)

// ID агентов pipeline.
const (
	StepADOConnector     = "ado_connector"
	StepPlanner          = "synapse_orchestrator"
	StepMetaRefiner      = "meta_refiner"
	StepDBArchitect      = "db_architect"
	StepBackendCoder     = "backend_coder"
	StepFrontendCoder    = "frontend_coder"
	StepLegacyAgent      = "legacy_agent"
	StepSentinel         = "sentinel"
	StepDeploymentEngine = "deployment_engine"
)

// agent — общая часть всех агентов: ID и отображаемое имя.
type agent struct {
	id   string
	name string
}

func (a agent) ID() string { return a.id }

func (a agent) Name() string { return a.name }

// ADOConnector принимает user story из work item.
type ADOConnector struct{ agent }

// NewADOConnector создаёт ADOConnector.
func NewADOConnector() *ADOConnector {
	return &ADOConnector{agent{id: StepADOConnector, name: "ADO Connector"}}
}

// Handle нормализует входной payload. Пустая story не ошибка:
// шаг пишет в журнал, что делать нечего, и run идёт дальше.
func (s *ADOConnector) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Parsing ADO user story")

	story := rec.String(domain.FieldUserStory)
	if story == "" {
		rec.AppendLog("No user story provided – nothing to do.")
		return rec, nil
	}

	rec.AppendLog("ADO Connector: Ingested user story and created a normalized payload.")
	if strings.Contains(strings.ToLower(story), "exam") {
		rec.AppendLog("ADO tags: [exam-form, fastapi, postgres, ui].")
	}

	return rec, nil
}

// planItems — шаги плана сборки.
var planItems = []string{
	"Clarify functional scope and inputs from the user story.",
	"Design DB schema for submissions table.",
	"Generate FastAPI backend with CRUD endpoints.",
	"Generate React UI bound to backend API.",
	"Run automated tests on generated backend stub.",
	"Patch legacy exam module without breaking old flows.",
	"Prepare deployable artefacts.",
}

// Planner строит высокоуровневый план сборки.
type Planner struct{ agent }

// NewPlanner создаёт Planner.
func NewPlanner() *Planner {
	return &Planner{agent{id: StepPlanner, name: "Synapse Orchestrator"}}
}

// Handle заполняет plan.
func (s *Planner) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Deriving high-level build plan")

	plan, err := Render("plan.tmpl", map[string]any{"Items": planItems})
	if err != nil {
		return nil, err
	}
	rec[domain.FieldPlan] = plan
	rec.AppendLog("Synapse Orchestrator: Generated build plan and routed work to Meta-Refiner.")

	return rec, nil
}

// MetaRefiner превращает story в однозначное инженерное требование.
type MetaRefiner struct{ agent }

// NewMetaRefiner создаёт MetaRefiner.
func NewMetaRefiner() *MetaRefiner {
	return &MetaRefiner{agent{id: StepMetaRefiner, name: "Meta-Refiner"}}
}

// Handle заполняет refined_story.
func (s *MetaRefiner) Handle(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec.SetStatus("Refining requirements")

	refined, err := Render("refined_story.tmpl", map[string]any{
		"Story": rec.String(domain.FieldUserStory),
	})
	if err != nil {
		return nil, err
	}
	rec[domain.FieldRefinedStory] = refined
	rec.AppendLog("Meta-Refiner: Eliminated ambiguity and produced a concise engineering-ready requirement.")

	return rec, nil
}
