// Package app собирает общие зависимости бинарников Synapse:
// логгер, метрики, трассировку, pipeline, PostgreSQL, RabbitMQ и orchestrator.
//
// PostgreSQL и RabbitMQ необязательны, если Options не требует их явно:
// недоступная зависимость логируется и соответствующая функция отключается.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/synapse/internal/config"
	"github.com/shaiso/synapse/internal/mq"
	"github.com/shaiso/synapse/internal/orchestrator"
	"github.com/shaiso/synapse/internal/pipeline"
	"github.com/shaiso/synapse/internal/repo"
	"github.com/shaiso/synapse/internal/telemetry"
)

// ConfigEnv — переменная окружения с путём к YAML конфигурации.
const ConfigEnv = "SYNAPSE_CONFIG"

// Options — что нужно конкретному бинарнику.
type Options struct {
	// Name — имя сервиса для логов и трассировки.
	Name string

	// RequireDB — без PostgreSQL запуск невозможен.
	RequireDB bool

	// RequireMQ — без RabbitMQ запуск невозможен.
	RequireMQ bool
}

// App — собранные зависимости.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline
	Service  *orchestrator.Service

	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
	Tracing  *telemetry.Tracing

	// nil, если хранилище отключено
	Pool      *pgxpool.Pool
	Runs      *repo.RunRepo
	Snapshots *repo.SnapshotRepo

	// nil, если очередь отключена
	Conn      *mq.Connection
	Publisher *mq.Publisher
}

// LoadConfig читает конфигурацию из файла SYNAPSE_CONFIG (если задан) и окружения.
func LoadConfig() (*config.Config, error) {
	return config.Load(os.Getenv(ConfigEnv))
}

// New собирает зависимости. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := telemetry.Setup(os.Stdout, cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat).
		With("service", opts.Name)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = telemetry.NewMetrics(a.Registry)

	var err error
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.Tracing, err = telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: serviceName(cfg.Telemetry, opts),
		Insecure:    true,
	})
	if err != nil {
		return nil, err
	}

	a.Pipeline, err = buildPipeline(cfg.Engine)
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline loaded",
		"nodes", a.Pipeline.Graph.Size(),
		"agents", a.Pipeline.Registry.Count(),
		"max_steps", a.Pipeline.MaxSteps,
		"retry_ceiling", a.Pipeline.RetryCeiling,
	)

	if err = a.connectDB(ctx, opts.RequireDB); err != nil {
		return nil, err
	}
	if err = a.connectMQ(ctx, opts.RequireMQ); err != nil {
		return nil, err
	}

	a.Service = orchestrator.New(a.serviceConfig())
	return a, nil
}

// buildPipeline читает определение. Значения конфигурации переопределяют
// ceilings определения, только если заданы.
func buildPipeline(cfg config.EngineConfig) (*pipeline.Pipeline, error) {
	def, err := pipeline.Load(cfg.PipelineFile)
	if err != nil {
		return nil, err
	}
	return pipeline.New(def, pipeline.Options{
		RetryCeiling: cfg.RetryCeiling,
		MaxSteps:     cfg.MaxSteps,
	})
}

// serviceName — имя сервиса в трассировке: из конфигурации или имя бинарника.
func serviceName(cfg config.TelemetryConfig, opts Options) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return opts.Name
}

func (a *App) connectDB(ctx context.Context, required bool) error {
	pool, err := repo.NewPool(ctx, a.Config.Database.URL)
	if err != nil {
		if required {
			return fmt.Errorf("connect database: %w", err)
		}
		a.Logger.Warn("database not available, run history disabled", "error", err)
		return nil
	}

	a.Pool = pool
	a.Runs = repo.NewRunRepo(pool)
	a.Snapshots = repo.NewSnapshotRepo(pool)
	a.Logger.Info("database connected")
	return nil
}

func (a *App) connectMQ(ctx context.Context, required bool) error {
	conn, err := mq.NewConnection(a.Config.RabbitMQ.URL, a.Logger)
	if err != nil {
		if required {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.Logger.Warn("RabbitMQ not available, async runs disabled", "error", err)
		return nil
	}
	a.Conn = conn

	if err := mq.SetupTopology(ctx, conn); err != nil {
		if required {
			return fmt.Errorf("setup topology: %w", err)
		}
		a.Logger.Warn("failed to setup topology", "error", err)
	}

	a.Publisher = mq.NewPublisher(conn, a.Logger)
	a.Logger.Info("RabbitMQ connected")
	return nil
}

// serviceConfig собирает orchestrator.Config. Отключённые зависимости
// остаются nil интерфейсами, а не интерфейсами с nil указателем.
func (a *App) serviceConfig() orchestrator.Config {
	cfg := orchestrator.Config{
		Pipeline: a.Pipeline,
		Conn:     a.Conn,
		Observer: a.Metrics,
		Tracer:   a.Tracing.Tracer(),
		Logger:   a.Logger,
	}
	if a.Runs != nil {
		cfg.Runs = a.Runs
		cfg.Snapshots = a.Snapshots
	}
	if a.Publisher != nil {
		cfg.Publisher = a.Publisher
	}
	return cfg
}

// MetricsHandler отдаёт метрики реестра App.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close(ctx context.Context) {
	var errs []error
	if a.Conn != nil {
		errs = append(errs, a.Conn.Close())
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Tracing != nil {
		errs = append(errs, a.Tracing.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("shutdown error", "error", err)
	}
}
