package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/orchestrator"
	"github.com/shaiso/synapse/internal/pipeline"
)

// DefaultInterval — период проверки расписания.
const DefaultInterval = 10 * time.Second

// ErrNoEnqueuer — Scheduler создан без Enqueuer.
var ErrNoEnqueuer = errors.New("scheduler: enqueuer is required")

// Enqueuer ставит run в очередь. Реализация: orchestrator.Service.
type Enqueuer interface {
	Enqueue(ctx context.Context, req orchestrator.Request) (*domain.Run, error)
}

// Leader решает, кто из экземпляров scheduler запускает runs.
// Реализация: repo.AdvisoryLock.
type Leader interface {
	TryLock(ctx context.Context) (bool, error)
}

// Scheduler по cron-выражению ставит в очередь демо run.
type Scheduler struct {
	enqueuer Enqueuer
	leader   Leader
	expr     string
	schedule cron.Schedule
	request  orchestrator.Request
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	nextDue time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Enqueuer Enqueuer
	CronExpr string

	// Request — параметры run. Пустая user story заменяется демо.
	Request orchestrator.Request

	// Leader — nil означает, что экземпляр всегда лидер.
	Leader Leader

	Logger *slog.Logger

	// Now — источник времени (nil — time.Now).
	Now func() time.Time
}

// New создаёт Scheduler и вычисляет первое время запуска.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Enqueuer == nil {
		return nil, ErrNoEnqueuer
	}

	schedule, err := cronParser.Parse(cfg.CronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.CronExpr, err)
	}

	req := cfg.Request
	if strings.TrimSpace(req.UserStory) == "" {
		req.UserStory = pipeline.DefaultStory
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		leader:   cfg.Leader,
		expr:     cfg.CronExpr,
		schedule: schedule,
		request:  req,
		logger:   logger.With("component", "scheduler"),
		now:      now,
		nextDue:  schedule.Next(now()).UTC(),
	}, nil
}

// NextDueAt возвращает время следующего запуска.
func (s *Scheduler) NextDueAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

// Tick выполняет один тик планировщика.
//
// Если время запуска наступило и экземпляр — лидер, ставит run в очередь.
// Пропущенные запуски не догоняются: следующий считается от текущего времени.
// Возвращает созданный run или nil.
func (s *Scheduler) Tick(ctx context.Context) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Before(s.nextDue) {
		return nil, nil
	}
	due := s.nextDue
	s.nextDue = s.schedule.Next(now).UTC()

	if s.leader != nil {
		ok, err := s.leader.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("leader election: %w", err)
		}
		if !ok {
			s.logger.Debug("not a leader, skipping", "due", due, "next_due", s.nextDue)
			return nil, nil
		}
	}

	run, err := s.enqueuer.Enqueue(ctx, s.request)
	if err != nil {
		return nil, fmt.Errorf("enqueue scheduled run: %w", err)
	}

	s.logger.Info("scheduled run enqueued",
		"run_id", run.ID,
		"cron", s.expr,
		"due", due,
		"next_due", s.nextDue,
	)
	return run, nil
}

// Run вызывает Tick каждые interval до отмены ctx.
// Ошибки тика логируются и не останавливают цикл.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()

	s.logger.Info("scheduler started", "cron", s.expr, "next_due", s.NextDueAt(), "interval", interval)

	for {
		select {
		case <-tk.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}
