package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/shaiso/synapse/internal/config"
	"github.com/shaiso/synapse/internal/dashboard"
	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/pipeline"
	"github.com/shaiso/synapse/internal/telemetry"
)

// LocalRunOptions — параметры локального run.
type LocalRunOptions struct {
	Input pipeline.Input

	// PipelineFile — HCL определение (пусто — встроенное).
	PipelineFile string

	// MaxSteps — лимит посещений узлов (0 — из определения).
	MaxSteps int

	// RetryCeiling — потолок повторов (< 0 — из определения).
	RetryCeiling int

	// Pace — пауза между снимками.
	Pace time.Duration

	// TUI — интерактивный dashboard вместо построчного вывода.
	TUI bool

	// Verbose — журнал engine в stderr.
	Verbose bool
}

// RunSummary — итог локального run в JSON режиме.
type RunSummary struct {
	Steps      int    `json:"steps"`
	RetryCount int    `json:"retry_count"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
}

// LocalDefaults возвращает параметры локального run по умолчанию:
// ceilings и файл pipeline берутся из конфигурации, если заданы.
func LocalDefaults(cfg config.EngineConfig) LocalRunOptions {
	opts := LocalRunOptions{
		Input:        pipeline.Input{UserStory: pipeline.DefaultStory, UseSamplePayload: true},
		PipelineFile: cfg.PipelineFile,
		MaxSteps:     cfg.MaxSteps,
		RetryCeiling: -1,
		Pace:         dashboard.DefaultPace,
	}
	if cfg.RetryCeiling != nil {
		opts.RetryCeiling = *cfg.RetryCeiling
	}
	return opts
}

// NewRunCmd создаёт команду локального запуска pipeline.
// Команда не требует API: graph собирается и выполняется в процессе CLI.
// Значения флагов по умолчанию берутся из engineCfg.
func NewRunCmd(outputFn func() *Output, engineCfg config.EngineConfig) *cobra.Command {
	opts := LocalDefaults(engineCfg)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent pipeline locally and watch it step by step",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			if opts.TUI && out.JSONMode() {
				return errors.New("--tui and --json are mutually exclusive")
			}
			return RunLocal(cmd.Context(), opts, out)
		},
	}

	cmd.Flags().StringVar(&opts.Input.UserStory, "story", opts.Input.UserStory, "User story to orchestrate")
	cmd.Flags().BoolVar(&opts.Input.UseSamplePayload, "sample-payload", opts.Input.UseSamplePayload, "Attach a sample work item payload")
	cmd.Flags().IntVar(&opts.Input.SimulateFailures, "simulate-failures", 0, "Number of initial backend attempts that fail tests")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", opts.MaxSteps, "Node visit limit (0 uses the pipeline definition)")
	cmd.Flags().IntVar(&opts.RetryCeiling, "retry-ceiling", opts.RetryCeiling, "Retry ceiling (negative uses the pipeline definition)")
	cmd.Flags().StringVar(&opts.PipelineFile, "pipeline-file", opts.PipelineFile, "HCL pipeline definition (built-in if empty)")
	cmd.Flags().DurationVar(&opts.Pace, "pace", opts.Pace, "Delay between snapshots")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "Interactive terminal dashboard")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "Log engine events to stderr")

	return cmd
}

// RunLocal собирает pipeline и выполняет run, выводя каждый снимок.
// Возвращает ошибку run (например, RunawayExecutionError).
func RunLocal(ctx context.Context, opts LocalRunOptions, out *Output) error {
	p, err := loadPipeline(opts.PipelineFile, opts.RetryCeiling, opts.MaxSteps)
	if err != nil {
		return err
	}

	logger := localLogger(opts)
	runOpts := append(p.RunOptions(), engine.WithLogger(logger))
	exec := p.Graph.Execute(ctx, pipeline.NewRecord(opts.Input), runOpts...)
	defer exec.Close()

	if opts.TUI {
		return runTUI(ctx, p, exec, opts.Pace, out)
	}
	return streamLocal(ctx, p, exec, opts.Pace, out)
}

func streamLocal(ctx context.Context, p *pipeline.Pipeline, exec *engine.Execution, pace time.Duration, out *Output) error {
	renderer := dashboard.NewRenderer(nil, 0)
	final := domain.NewRecord()

	for exec.Next() {
		snap := exec.Snapshot()
		final = snap.Record

		if out.JSONMode() {
			out.JSONLine(snap)
		} else {
			out.Text(renderer.Frame(dashboard.FrameFromSnapshot(snap, p.Registry.Name(snap.NodeID))))
			out.Text("")
		}

		// Отмена контекста прервёт run на следующем Next
		sleep(ctx, pace)
	}

	runErr := exec.Err()
	if out.JSONMode() {
		summary := RunSummary{
			Steps:      exec.Steps(),
			RetryCount: final.RetryCount(),
			Outcome:    final.String(domain.FieldOutcome),
		}
		if runErr != nil {
			summary.Error = runErr.Error()
		}
		out.JSONLine(summary)
	} else {
		out.Text(renderer.Summary(final, exec.Steps(), runErr))
	}

	return runErr
}

func runTUI(ctx context.Context, p *pipeline.Pipeline, exec *engine.Execution, pace time.Duration, out *Output) error {
	model := dashboard.NewModel(exec, p.Describe(), pace)

	result, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	m, ok := result.(dashboard.Model)
	if !ok {
		return nil
	}

	// Alt screen закрыт, сводка остаётся в терминале
	renderer := dashboard.NewRenderer(nil, 0)
	out.Text(renderer.Summary(m.Final(), len(m.Frames()), m.Err()))
	return m.Err()
}

// loadPipeline читает определение и собирает pipeline.
// ceiling < 0 и maxSteps == 0 оставляют значения определения.
func loadPipeline(path string, ceiling, maxSteps int) (*pipeline.Pipeline, error) {
	def, err := pipeline.Load(path)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{MaxSteps: maxSteps}
	if ceiling >= 0 {
		opts.RetryCeiling = &ceiling
	}
	return pipeline.New(def, opts)
}

func localLogger(opts LocalRunOptions) *slog.Logger {
	if opts.TUI || !opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return telemetry.NewLogger(os.Stderr, "INFO", "text")
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
