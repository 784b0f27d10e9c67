package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/synapse/internal/config"
	"github.com/shaiso/synapse/internal/pipeline"
)

// writePipeline сохраняет встроенное определение с другими ceilings.
func writePipeline(t *testing.T, ceiling, maxSteps string) string {
	t.Helper()

	src, err := os.ReadFile(filepath.Join("..", "pipeline", pipeline.DefaultFile))
	if err != nil {
		t.Fatalf("read default pipeline: %v", err)
	}
	text := strings.Replace(string(src), "ceiling  = 2", "ceiling  = "+ceiling, 1)
	text = strings.Replace(text, "max_steps = 25", "max_steps = "+maxSteps, 1)

	path := filepath.Join(t.TempDir(), "pipeline.hcl")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildPipeline_DefinitionCeilings(t *testing.T) {
	cfg := config.Default().Engine
	cfg.PipelineFile = writePipeline(t, "4", "40")

	p, err := buildPipeline(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.RetryCeiling != 4 {
		t.Errorf("expected retry ceiling 4 from the file, got %d", p.RetryCeiling)
	}
	if p.MaxSteps != 40 {
		t.Errorf("expected max steps 40 from the file, got %d", p.MaxSteps)
	}
}

func TestBuildPipeline_ConfigOverrides(t *testing.T) {
	zero := 0
	cfg := config.Default().Engine
	cfg.PipelineFile = writePipeline(t, "4", "40")
	cfg.RetryCeiling = &zero
	cfg.MaxSteps = 12

	p, err := buildPipeline(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.RetryCeiling != 0 {
		t.Errorf("expected retry ceiling 0 from config, got %d", p.RetryCeiling)
	}
	if p.MaxSteps != 12 {
		t.Errorf("expected max steps 12 from config, got %d", p.MaxSteps)
	}
	if d := p.Describe(); d.RetryCeiling != 0 {
		t.Errorf("description should report the compiled ceiling, got %d", d.RetryCeiling)
	}
}

func TestBuildPipeline_Builtin(t *testing.T) {
	p, err := buildPipeline(config.Default().Engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.RetryCeiling != 2 || p.MaxSteps != 25 {
		t.Errorf("unexpected ceilings: retry=%d max_steps=%d", p.RetryCeiling, p.MaxSteps)
	}
}

func TestBuildPipeline_MissingFile(t *testing.T) {
	cfg := config.Default().Engine
	cfg.PipelineFile = filepath.Join(t.TempDir(), "nope.hcl")

	if _, err := buildPipeline(cfg); err == nil {
		t.Error("expected error for missing pipeline file")
	}
}

func TestServiceName(t *testing.T) {
	opts := Options{Name: "synapse-api"}

	if got := serviceName(config.TelemetryConfig{}, opts); got != "synapse-api" {
		t.Errorf("expected binary name, got %q", got)
	}
	if got := serviceName(config.TelemetryConfig{ServiceName: "demo"}, opts); got != "demo" {
		t.Errorf("expected configured name, got %q", got)
	}
}
