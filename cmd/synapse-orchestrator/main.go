// Synapse Orchestrator — выполняет runs из очереди.
//
// Orchestrator:
//   - Получает run.pending из RabbitMQ
//   - Выполняет pipeline и сохраняет каждый снимок
//   - Публикует run.snapshot и run.finished
//   - Финализирует run в PostgreSQL
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/synapse/internal/app"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("synapse-orchestrator: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Name: "synapse-orchestrator", RequireMQ: true})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	logger := a.Logger

	if err := a.Service.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer a.Service.Stop()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !a.Conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", a.MetricsHandler())

	addr := ":" + cfg.Orchestrator.Port
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}

	logger.Info("synapse-orchestrator stopped")
	return nil
}
