package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Ceilings не заданы: действуют значения из определения pipeline
	if cfg.Engine.MaxSteps != 0 {
		t.Errorf("expected unset max steps, got %d", cfg.Engine.MaxSteps)
	}
	if cfg.Engine.RetryCeiling != nil {
		t.Errorf("expected unset retry ceiling, got %d", *cfg.Engine.RetryCeiling)
	}
	if cfg.Scheduler.Port != "8081" || cfg.Orchestrator.Port != "8083" {
		t.Errorf("unexpected ports: scheduler=%s orchestrator=%s", cfg.Scheduler.Port, cfg.Orchestrator.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	data := `
engine:
  max_steps: 40
  retry_ceiling: 3
scheduler:
  cron: "*/5 * * * *"
  interval: 30s
telemetry:
  log_format: text
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Default()
	ceiling := 3
	want.Engine.MaxSteps = 40
	want.Engine.RetryCeiling = &ceiling
	want.Scheduler.Cron = "*/5 * * * *"
	want.Scheduler.Interval = 30 * time.Second
	want.Telemetry.LogFormat = "text"

	// Окружение теста может переопределять значения
	if err := want.applyEnv(os.Getenv); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SYNAPSE_MAX_STEPS":           "7",
		"SYNAPSE_RETRY_CEILING":       "0",
		"SYNAPSE_PIPELINE_FILE":       "/etc/synapse/pipeline.hcl",
		"API_PORT":                    "9090",
		"DB_URL":                      "postgres://x",
		"RABBITMQ_URL":                "amqp://y",
		"SCHEDULER_CRON":              "@hourly",
		"SCHEDULER_PORT":              "9191",
		"ORCHESTRATOR_PORT":           "9292",
		"OTEL_SERVICE_NAME":           "synapse-demo",
		"SCHEDULER_INTERVAL":          "1m",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	}

	cfg := Default()
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Engine.MaxSteps != 7 {
		t.Errorf("expected max steps 7, got %d", cfg.Engine.MaxSteps)
	}
	// Явный 0 отличается от незаданного значения
	if cfg.Engine.RetryCeiling == nil || *cfg.Engine.RetryCeiling != 0 {
		t.Errorf("expected explicit retry ceiling 0, got %v", cfg.Engine.RetryCeiling)
	}
	if cfg.Engine.PipelineFile != "/etc/synapse/pipeline.hcl" {
		t.Errorf("unexpected pipeline file %q", cfg.Engine.PipelineFile)
	}
	if cfg.API.Port != "9090" || cfg.Database.URL != "postgres://x" || cfg.RabbitMQ.URL != "amqp://y" {
		t.Error("connection overrides not applied")
	}
	if cfg.Scheduler.Cron != "@hourly" || cfg.Scheduler.Interval != time.Minute {
		t.Errorf("scheduler overrides not applied: %+v", cfg.Scheduler)
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" || cfg.Telemetry.ServiceName != "synapse-demo" {
		t.Errorf("telemetry overrides not applied: %+v", cfg.Telemetry)
	}
	if cfg.Scheduler.Port != "9191" || cfg.Orchestrator.Port != "9292" {
		t.Errorf("port overrides not applied: scheduler=%s orchestrator=%s", cfg.Scheduler.Port, cfg.Orchestrator.Port)
	}
}

func TestApplyEnv_InvalidCeiling(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == "SYNAPSE_RETRY_CEILING" {
			return "two"
		}
		return ""
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv_InvalidInt(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == "SYNAPSE_MAX_STEPS" {
			return "lots"
		}
		return ""
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "negative max steps", mutate: func(c *Config) { c.Engine.MaxSteps = -1 }},
		{name: "negative ceiling", mutate: func(c *Config) { n := -1; c.Engine.RetryCeiling = &n }},
		{name: "bad cron", mutate: func(c *Config) { c.Scheduler.Cron = "61 * * * *" }},
		{name: "negative simulate", mutate: func(c *Config) { c.Scheduler.SimulateFailures = -1 }},
		{name: "zero interval", mutate: func(c *Config) { c.Scheduler.Interval = 0 }},
		{name: "bad log format", mutate: func(c *Config) { c.Telemetry.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
