package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName — имя tracer для span узлов.
const TracerName = "github.com/shaiso/synapse/internal/engine"

// TracingConfig — настройки трассировки.
type TracingConfig struct {
	// Endpoint — адрес OTLP/gRPC collector (host:port). Пусто — трассировка выключена.
	Endpoint string

	// ServiceName — имя сервиса в resource.
	ServiceName string

	// Insecure — без TLS (локальный collector).
	Insecure bool
}

// Tracing — инициализированная трассировка.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// SetupTracing создаёт TracerProvider.
//
// Без Endpoint возвращается noop provider без накладных расходов.
// С Endpoint — SDK provider с batch экспортом по OTLP/gRPC; он же
// становится глобальным.
func SetupTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	if cfg.Endpoint == "" {
		return &Tracing{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "synapse"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Tracing{provider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer возвращает tracer для span узлов.
func (t *Tracing) Tracer() trace.Tracer {
	return t.provider.Tracer(TracerName)
}

// Shutdown сбрасывает накопленные span и закрывает exporter.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
