package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/steps"
)

func newDefault(t *testing.T, opts Options) *Pipeline {
	t.Helper()

	def, err := Default()
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	p, err := New(def, opts)
	if err != nil {
		t.Fatalf("build default: %v", err)
	}
	return p
}

func run(t *testing.T, p *Pipeline, in Input) []engine.Snapshot {
	t.Helper()

	var snaps []engine.Snapshot
	for snap, err := range p.Graph.Stream(context.Background(), NewRecord(in), p.RunOptions()...) {
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

func visits(snaps []engine.Snapshot, id string) int {
	n := 0
	for _, s := range snaps {
		if s.NodeID == id {
			n++
		}
	}
	return n
}

func TestDefault(t *testing.T) {
	def, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Entry != steps.StepADOConnector {
		t.Errorf("expected entry %s, got %s", steps.StepADOConnector, def.Entry)
	}
	if def.MaxSteps != 25 {
		t.Errorf("expected max_steps 25, got %d", def.MaxSteps)
	}
	if len(def.Steps) != 9 {
		t.Errorf("expected 9 steps, got %d", len(def.Steps))
	}

	last := def.Steps[len(def.Steps)-1]
	if last.Next == nil || *last.Next != engine.End {
		t.Errorf("last step should route to end, got %+v", last.Next)
	}

	ceiling, ok := def.RetryCeiling()
	if !ok || ceiling != 2 {
		t.Errorf("expected ceiling 2, got %d (ok=%v)", ceiling, ok)
	}
}

func TestPipeline_HappyPath(t *testing.T) {
	p := newDefault(t, Options{})

	snaps := run(t, p, Input{UserStory: DefaultStory, UseSamplePayload: true})

	want := []string{
		steps.StepADOConnector,
		steps.StepPlanner,
		steps.StepMetaRefiner,
		steps.StepDBArchitect,
		steps.StepBackendCoder,
		steps.StepFrontendCoder,
		steps.StepLegacyAgent,
		steps.StepSentinel,
		steps.StepDeploymentEngine,
	}
	got := make([]string, len(snaps))
	for i, s := range snaps {
		got[i] = s.NodeID
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("node order mismatch (-want +got):\n%s", diff)
	}

	final := snaps[len(snaps)-1].Record
	if final.String(domain.FieldOutcome) != string(domain.OutcomeDeployed) {
		t.Errorf("expected deployed, got %q", final.String(domain.FieldOutcome))
	}
	if final.RetryCount() != 0 {
		t.Errorf("expected retry_count 0, got %d", final.RetryCount())
	}
	for _, field := range []string{
		domain.FieldPlan, domain.FieldRefinedStory, domain.FieldDBSchema,
		domain.FieldBackendCode, domain.FieldFrontendCode, domain.FieldLegacyAnalysis,
		domain.FieldTestResults, domain.FieldDeploymentStatus,
	} {
		if final.String(field) == "" {
			t.Errorf("field %s should be populated", field)
		}
	}
}

func TestPipeline_RecoversAfterTwoFailures(t *testing.T) {
	p := newDefault(t, Options{})

	snaps := run(t, p, Input{UserStory: "simple form", SimulateFailures: 2})

	var statuses []string
	for _, s := range snaps {
		if s.NodeID == steps.StepSentinel {
			statuses = append(statuses, s.Record.Status())
		}
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 sentinel visits, got %d", len(statuses))
	}
	for i, status := range statuses[:2] {
		if !strings.Contains(status, steps.MarkerFail) {
			t.Errorf("attempt %d should fail, got %q", i+1, status)
		}
	}
	if !strings.Contains(statuses[2], steps.MarkerPass) {
		t.Errorf("attempt 3 should pass, got %q", statuses[2])
	}

	final := snaps[len(snaps)-1].Record
	if final.RetryCount() != 2 {
		t.Errorf("expected retry_count 2, got %d", final.RetryCount())
	}
	if final.String(domain.FieldOutcome) != string(domain.OutcomeDeployed) {
		t.Errorf("expected deployed, got %q", final.String(domain.FieldOutcome))
	}
}

func TestPipeline_HandsOffAfterCeiling(t *testing.T) {
	p := newDefault(t, Options{})

	snaps := run(t, p, Input{UserStory: "simple form", SimulateFailures: 10})

	if n := visits(snaps, steps.StepBackendCoder); n != 3 {
		t.Errorf("expected backend_coder visited 3 times, got %d", n)
	}

	final := snaps[len(snaps)-1]
	if final.NodeID != steps.StepDeploymentEngine {
		t.Errorf("expected deployment_engine last, got %s", final.NodeID)
	}
	if final.Record.String(domain.FieldOutcome) != string(domain.OutcomeHandedOff) {
		t.Errorf("expected handed_off, got %q", final.Record.String(domain.FieldOutcome))
	}
	if !strings.HasPrefix(final.Record.String(domain.FieldDeploymentStatus), "⚠️") {
		t.Errorf("unexpected deployment status %q", final.Record.String(domain.FieldDeploymentStatus))
	}
}

func TestPipeline_CeilingOverride(t *testing.T) {
	zero := 0
	p := newDefault(t, Options{RetryCeiling: &zero, MaxSteps: 40})

	if p.MaxSteps != 40 {
		t.Errorf("expected max steps 40, got %d", p.MaxSteps)
	}
	if d := p.Describe(); d.RetryCeiling != 0 || d.MaxSteps != 40 {
		t.Errorf("description should carry overrides, got ceiling=%d max_steps=%d", d.RetryCeiling, d.MaxSteps)
	}

	snaps := run(t, p, Input{UserStory: "simple form", SimulateFailures: 1})

	if n := visits(snaps, steps.StepBackendCoder); n != 1 {
		t.Errorf("expected backend_coder visited once, got %d", n)
	}
	final := snaps[len(snaps)-1].Record
	if final.String(domain.FieldOutcome) != string(domain.OutcomeHandedOff) {
		t.Errorf("expected handed_off, got %q", final.String(domain.FieldOutcome))
	}
}

func TestPipeline_Describe(t *testing.T) {
	p := newDefault(t, Options{})

	d := p.Describe()
	if d.Entry != steps.StepADOConnector {
		t.Errorf("unexpected entry %s", d.Entry)
	}
	if len(d.Nodes) != 9 {
		t.Errorf("expected 9 nodes, got %d", len(d.Nodes))
	}
	if d.RetryCeiling != 2 || d.MaxSteps != 25 {
		t.Errorf("unexpected ceilings: retry=%d max_steps=%d", d.RetryCeiling, d.MaxSteps)
	}
	if d.Nodes[7].Name != "The Sentinel" {
		t.Errorf("expected The Sentinel, got %s", d.Nodes[7].Name)
	}

	// 7 безусловных рёбер + 3 маршрута sentinel + ребро в end
	if len(d.Transitions) != 11 {
		t.Errorf("expected 11 transitions, got %d", len(d.Transitions))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "syntax",
			src:     `entry = `,
			wantErr: ErrParse,
		},
		{
			name:    "missing entry",
			src:     `step "a" { next = end }`,
			wantErr: ErrParse,
		},
		{
			name:    "unknown variable",
			src:     "entry = \"a\"\nstep \"a\" { next = nowhere }",
			wantErr: ErrParse,
		},
		{
			name:    "next and retry",
			src:     "entry = \"a\"\nstep \"a\" {\n next = end\n retry {\n producer = \"a\"\n success = end\n give_up = end\n }\n}",
			wantErr: ErrInvalidDefinition,
		},
		{
			name:    "no transition",
			src:     "entry = \"a\"\nstep \"a\" {}",
			wantErr: ErrInvalidDefinition,
		},
		{
			name:    "negative ceiling",
			src:     "entry = \"a\"\nstep \"a\" {\n retry {\n producer = \"a\"\n success = end\n give_up = end\n ceiling = -1\n }\n}",
			wantErr: ErrInvalidDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	registry := steps.DefaultRegistry(steps.Options{RetryCeiling: 2})

	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "unknown step",
			src:     "entry = \"ghost\"\nstep \"ghost\" { next = end }",
			wantErr: ErrUnknownStep,
		},
		{
			name:    "unknown target",
			src:     "entry = \"sentinel\"\nstep \"sentinel\" { next = \"ghost\" }",
			wantErr: engine.ErrUnknownNode,
		},
		{
			name:    "unknown decision",
			src:     "entry = \"sentinel\"\nstep \"sentinel\" {\n retry {\n decision = \"coin\"\n producer = \"sentinel\"\n success = end\n give_up = end\n }\n}",
			wantErr: ErrUnknownDecision,
		},
		{
			name:    "duplicate step",
			src:     "entry = \"sentinel\"\nstep \"sentinel\" { next = end }\nstep \"sentinel\" { next = end }",
			wantErr: engine.ErrDuplicateNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.src), "test.hcl")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := Build(def, registry, 2); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(Input{UserStory: "  simple form  "})

	if rec.String(domain.FieldUserStory) != "simple form" {
		t.Errorf("story should be trimmed, got %q", rec.String(domain.FieldUserStory))
	}
	if rec.Status() != InitialStatus {
		t.Errorf("unexpected status %q", rec.Status())
	}
	if rec.RetryCount() != 0 || len(rec.Logs()) != 0 {
		t.Error("control fields should start empty")
	}
	if _, ok := rec.Get(domain.FieldADOPayload); ok {
		t.Error("payload must be absent unless requested")
	}
	if _, ok := rec.Get(domain.FieldSimulateFailures); ok {
		t.Error("simulate_failures must be absent when zero")
	}
}

func TestNewRecord_SamplePayload(t *testing.T) {
	rec := NewRecord(Input{UserStory: "simple form", UseSamplePayload: true})

	var payload map[string]any
	if err := json.Unmarshal([]byte(rec.String(domain.FieldADOPayload)), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}

	want := map[string]any{
		"id":            float64(101),
		"title":         "Exam Form UI with FastAPI backend",
		"description":   "simple form",
		"areaPath":      "AutoDev/Frontend-Backend",
		"iterationPath": "Sprint 3",
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}
