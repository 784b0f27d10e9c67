package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxSteps — глобальный лимит посещений узлов по умолчанию.
const DefaultMaxSteps = 25

// Observer получает события выполнения. Используется для метрик.
// Методы вызываются синхронно из горутины потребителя run.
type Observer interface {
	NodeStarted(nodeID string, step int)
	NodeFinished(nodeID string, step int, duration time.Duration, err error)
	RetryRouted(nodeID string, attempt int, capped bool)
	RunFinished(steps int, err error)
}

// NopObserver — Observer, который ничего не делает.
type NopObserver struct{}

func (NopObserver) NodeStarted(string, int) {}

func (NopObserver) NodeFinished(string, int, time.Duration, error) {}

func (NopObserver) RetryRouted(string, int, bool) {}

func (NopObserver) RunFinished(int, error) {}

type observers []Observer

func (o observers) NodeStarted(nodeID string, step int) {
	for _, obs := range o {
		obs.NodeStarted(nodeID, step)
	}
}

func (o observers) NodeFinished(nodeID string, step int, d time.Duration, err error) {
	for _, obs := range o {
		obs.NodeFinished(nodeID, step, d, err)
	}
}

func (o observers) RetryRouted(nodeID string, attempt int, capped bool) {
	for _, obs := range o {
		obs.RetryRouted(nodeID, attempt, capped)
	}
}

func (o observers) RunFinished(steps int, err error) {
	for _, obs := range o {
		obs.RunFinished(steps, err)
	}
}

// RunOption настраивает один run.
type RunOption func(*runOptions)

type runOptions struct {
	maxSteps  int
	observers observers
	tracer    trace.Tracer
	logger    *slog.Logger
}

func newRunOptions(opts []RunOption) runOptions {
	o := runOptions{
		maxSteps: DefaultMaxSteps,
		tracer:   noop.NewTracerProvider().Tracer(""),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxSteps задаёт лимит посещений узлов. n <= 0 оставляет значение по умолчанию.
func WithMaxSteps(n int) RunOption {
	return func(o *runOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithObserver добавляет Observer. Можно передать несколько.
func WithObserver(obs Observer) RunOption {
	return func(o *runOptions) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithTracer задаёт OpenTelemetry tracer: по span на каждое посещение узла.
func WithTracer(tracer trace.Tracer) RunOption {
	return func(o *runOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithLogger задаёт логгер run.
func WithLogger(logger *slog.Logger) RunOption {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
