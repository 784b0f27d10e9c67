// Synapse Scheduler — ставит демо run в очередь по cron-выражению.
//
// Несколько экземпляров безопасны: runs создаёт только лидер
// (pg_try_advisory_lock), если доступен PostgreSQL.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/synapse/internal/app"
	"github.com/shaiso/synapse/internal/orchestrator"
	"github.com/shaiso/synapse/internal/pipeline"
	"github.com/shaiso/synapse/internal/repo"
	"github.com/shaiso/synapse/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("synapse-scheduler: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Scheduler.Cron == "" {
		return errors.New("SCHEDULER_CRON is not set")
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Name: "synapse-scheduler", RequireMQ: true})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	logger := a.Logger

	schedCfg := scheduler.Config{
		Enqueuer: a.Service,
		CronExpr: cfg.Scheduler.Cron,
		Request: orchestrator.Request{
			Input: pipeline.Input{
				UserStory:        cfg.Scheduler.Story,
				UseSamplePayload: true,
				SimulateFailures: cfg.Scheduler.SimulateFailures,
			},
		},
		Logger: logger,
	}

	if a.Pool != nil {
		lock := repo.NewAdvisoryLock(a.Pool, repo.SchedulerLockKey)
		schedCfg.Leader = lock
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("failed to release leader lock", "error", err)
			}
		}()
	} else {
		logger.Warn("database not available, leader election disabled")
	}

	sched, err := scheduler.New(schedCfg)
	if err != nil {
		return err
	}
	logger.Info("scheduler ready", "cron", cfg.Scheduler.Cron, "next_due", sched.NextDueAt())

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok next_due=" + sched.NextDueAt().Format(time.RFC3339)))
	})
	mux.Handle("/metrics", a.MetricsHandler())

	addr := ":" + cfg.Scheduler.Port
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sched.Run(ctx, cfg.Scheduler.Interval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}

	logger.Info("synapse-scheduler stopped")
	return nil
}
