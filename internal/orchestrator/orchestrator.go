package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/mq"
	"github.com/shaiso/synapse/internal/pipeline"
)

// MaxStoryLength — максимальная длина user story в байтах.
const MaxStoryLength = 8 << 10

const defaultPrefetch = 4

// Store сохраняет runs. Реализация: repo.RunRepo.
type Store interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
}

// SnapshotStore сохраняет снимки. Реализация: repo.SnapshotRepo.
type SnapshotStore interface {
	Append(ctx context.Context, snap *domain.RunSnapshot) error
}

// Publisher публикует события runs. Реализация: mq.Publisher.
type Publisher interface {
	PublishRunPending(ctx context.Context, payload mq.RunPendingPayload) error
	PublishRunSnapshot(ctx context.Context, payload mq.RunSnapshotPayload) error
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// Sink получает снимки run по мере выполнения. Ошибка прекращает run.
type Sink func(snap *domain.RunSnapshot) error

// Request — параметры запуска run.
type Request struct {
	pipeline.Input

	// MaxSteps переопределяет лимит посещений узлов (0 — из pipeline).
	MaxSteps int `json:"max_steps,omitempty"`
}

// Validate проверяет параметры запуска.
func (r Request) Validate() error {
	var problems []string
	if len(r.UserStory) > MaxStoryLength {
		problems = append(problems, fmt.Sprintf("user_story exceeds %d bytes", MaxStoryLength))
	}
	if r.SimulateFailures < 0 {
		problems = append(problems, "simulate_failures must be >= 0")
	}
	if r.MaxSteps < 0 {
		problems = append(problems, "max_steps must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Service выполняет runs pipeline.
//
// Service — центральный компонент системы, который:
//   - Выполняет run синхронно (Execute) и отдаёт снимки вызывающему
//   - Ставит run в очередь (Enqueue) для отдельного процесса
//   - Получает runs из очереди RabbitMQ (Start)
//   - Сохраняет Run и снимки, публикует события
//
// Store, SnapshotStore и Publisher необязательны: nil отключает соответствующую функцию.
// Граф pipeline общий для всех runs, Record у каждого run свой.
type Service struct {
	pipeline  *pipeline.Pipeline
	runs      Store
	snapshots SnapshotStore
	publisher Publisher
	observer  engine.Observer
	tracer    trace.Tracer

	conn     *mq.Connection
	consumer *mq.Consumer
	prefetch int

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns map[uuid.UUID]*RunState
	mu         sync.RWMutex

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Service.
type Config struct {
	Pipeline *pipeline.Pipeline

	// Persistence
	Runs      Store
	Snapshots SnapshotStore

	// MQ
	Publisher Publisher
	Conn      *mq.Connection
	Prefetch  int

	// Telemetry
	Observer engine.Observer
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

// New создаёт новый Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Service{
		pipeline:   cfg.Pipeline,
		runs:       cfg.Runs,
		snapshots:  cfg.Snapshots,
		publisher:  cfg.Publisher,
		observer:   cfg.Observer,
		tracer:     cfg.Tracer,
		conn:       cfg.Conn,
		prefetch:   prefetch,
		activeRuns: make(map[uuid.UUID]*RunState),
		logger:     logger,
	}
}

// Pipeline возвращает pipeline сервиса.
func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Execute создаёт run и выполняет его до конца.
//
// Каждый снимок сохраняется, публикуется и передаётся в sink.
// Возвращаемый Run финализирован всегда, кроме ошибок валидации
// и сохранения; ошибка run (runaway, нарушение контракта, отмена)
// возвращается вторым значением вместе с Run.
func (s *Service) Execute(ctx context.Context, req Request, sink Sink) (*domain.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := domain.NewRun(strings.TrimSpace(req.UserStory))
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	return run, s.execute(ctx, run, req, sink)
}

// Enqueue создаёт run в статусе PENDING и публикует run.pending.
// Если публикация не удалась, сохранённый run переводится в FAILED.
func (s *Service) Enqueue(ctx context.Context, req Request) (*domain.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, ErrQueueDisabled
	}

	run := domain.NewRun(strings.TrimSpace(req.UserStory))
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	err := s.publisher.PublishRunPending(ctx, mq.RunPendingPayload{
		RunID:            run.ID,
		UserStory:        run.UserStory,
		UseSamplePayload: req.UseSamplePayload,
		SimulateFailures: req.SimulateFailures,
		MaxSteps:         req.MaxSteps,
	})
	if err != nil {
		err = fmt.Errorf("publish run.pending: %w", err)
		// Сообщение не ушло: run не будет выполнен, PENDING в БД не оставляем
		if s.runs != nil {
			run.MarkFailed(err.Error(), nil)
			if uerr := s.runs.Update(context.WithoutCancel(ctx), run); uerr != nil {
				s.logger.Error("failed to mark run failed", "run_id", run.ID, "error", uerr)
			}
		}
		return nil, err
	}

	s.logger.Info("run enqueued", "run_id", run.ID)
	return run, nil
}

// Start запускает consumer очереди runs.pending.
func (s *Service) Start(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoConnection
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.consumer = mq.NewConsumer(s.conn, s.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunsPending,
		Handler:  s.handleRunPending,
		Prefetch: s.prefetch,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("run consumer error", "error", err)
		}
	}()

	s.logger.Info("orchestrator started", "queue", mq.QueueRunsPending, "prefetch", s.prefetch)
	return nil
}

// Stop останавливает consumer и ждёт завершения текущего run.
func (s *Service) Stop() {
	s.logger.Info("stopping orchestrator...")

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.consumer != nil {
		s.consumer.Stop()
	}

	s.wg.Wait()

	s.logger.Info("orchestrator stopped", "active_runs", s.ActiveRunsCount())
}

// isRunActive проверяет, находится ли run в обработке.
func (s *Service) isRunActive(runID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.activeRuns[runID]
	return exists
}

// addActiveRun добавляет run в активные.
func (s *Service) addActiveRun(state *RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activeRuns[state.RunID()]; exists {
		return ErrRunAlreadyActive
	}
	s.activeRuns[state.RunID()] = state
	return nil
}

// removeActiveRun удаляет run из активных.
func (s *Service) removeActiveRun(runID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeRuns, runID)
}

// ActiveRunsCount возвращает количество активных runs.
func (s *Service) ActiveRunsCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activeRuns)
}

// ActiveRuns возвращает статистику активных runs, старые первыми.
func (s *Service) ActiveRuns() []RunStats {
	s.mu.RLock()
	stats := make([]RunStats, 0, len(s.activeRuns))
	created := make(map[uuid.UUID]int64, len(s.activeRuns))
	for id, state := range s.activeRuns {
		stats = append(stats, state.Stats())
		created[id] = state.Run.CreatedAt.UnixNano()
	}
	s.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool {
		return created[stats[i].RunID] < created[stats[j].RunID]
	})
	return stats
}
