package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/orchestrator"
	"github.com/shaiso/synapse/internal/repo"
)

// RunReader читает сохранённые runs. Реализация: repo.RunRepo.
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// SnapshotReader читает снимки runs. Реализация: repo.SnapshotRepo.
type SnapshotReader interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunSnapshot, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	service   *orchestrator.Service
	runs      RunReader
	snapshots SnapshotReader
	metrics   http.Handler
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
// Runs и Snapshots могут быть nil: тогда история runs недоступна (503).
type Config struct {
	Service   *orchestrator.Service
	Runs      RunReader
	Snapshots SnapshotReader
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:   cfg.Service,
		runs:      cfg.Runs,
		snapshots: cfg.Snapshots,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}
