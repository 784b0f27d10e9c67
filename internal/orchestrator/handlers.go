package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
	"github.com/shaiso/synapse/internal/mq"
	"github.com/shaiso/synapse/internal/pipeline"
	"github.com/shaiso/synapse/internal/repo"
	"github.com/shaiso/synapse/internal/telemetry"
)

// finalizeTimeout ограничивает запись итогового Run после отмены контекста run.
const finalizeTimeout = 5 * time.Second

// handleRunPending обрабатывает запрос на выполнение run из очереди.
func (s *Service) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		return fmt.Errorf("%w: parse run.pending: %v", mq.ErrPermanent, err)
	}

	s.logger.Debug("received run.pending event", "run_id", payload.RunID)

	if s.isRunActive(payload.RunID) {
		s.logger.Debug("run already active, skipping", "run_id", payload.RunID)
		return nil
	}

	run, err := s.loadPending(ctx, payload)
	if errors.Is(err, ErrRunNotPending) {
		s.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}

	req := Request{
		Input: pipeline.Input{
			UserStory:        payload.UserStory,
			UseSamplePayload: payload.UseSamplePayload,
			SimulateFailures: payload.SimulateFailures,
		},
		MaxSteps: payload.MaxSteps,
	}

	err = s.execute(ctx, run, req, nil)
	if run.IsFinished() {
		// Ошибка run уже записана в Run; сообщение обработано
		return nil
	}
	return err
}

// loadPending находит run из сообщения. Без Store run восстанавливается из payload.
func (s *Service) loadPending(ctx context.Context, payload mq.RunPendingPayload) (*domain.Run, error) {
	if s.runs == nil {
		run := domain.NewRun(payload.UserStory)
		run.ID = payload.RunID
		return run, nil
	}

	run, err := s.runs.GetByID(ctx, payload.RunID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w: %s", mq.ErrPermanent, ErrRunNotFound, payload.RunID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return nil, ErrRunNotPending
	}
	return run, nil
}

// execute выполняет run и финализирует его.
func (s *Service) execute(ctx context.Context, run *domain.Run, req Request, sink Sink) error {
	state := NewRunState(run)
	if err := s.addActiveRun(state); err != nil {
		return err
	}
	defer s.removeActiveRun(run.ID)

	logger := telemetry.WithRunID(s.logger, run.ID.String())

	run.MarkRunning()
	if s.runs != nil {
		if err := s.runs.Update(ctx, run); err != nil {
			return fmt.Errorf("update run to running: %w", err)
		}
	}

	logger.Info("run started",
		"simulate_failures", req.SimulateFailures,
		"sample_payload", req.UseSamplePayload,
	)

	exec := s.pipeline.Graph.Execute(ctx, pipeline.NewRecord(req.Input), s.runOptions(req, logger)...)

	var stopErr error
	for exec.Next() {
		snap := state.Record(exec.Snapshot())
		if err := s.emit(ctx, snap, sink); err != nil {
			stopErr = err
			exec.Close()
			break
		}
	}

	runErr := stopErr
	if runErr == nil {
		runErr = exec.Err()
	}
	run.Steps = exec.Steps()

	switch {
	case runErr == nil:
		run.MarkSucceeded(state.Last())
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded), errors.Is(runErr, ErrSinkClosed):
		run.MarkCancelled(state.Last())
		run.Error = runErr.Error()
	default:
		run.MarkFailed(runErr.Error(), state.Last())
	}

	s.finalize(ctx, run, logger)
	return runErr
}

// runOptions собирает опции engine для одного run.
func (s *Service) runOptions(req Request, logger *slog.Logger) []engine.RunOption {
	opts := append(s.pipeline.RunOptions(),
		engine.WithMaxSteps(req.MaxSteps),
		engine.WithLogger(logger),
	)
	if s.observer != nil {
		opts = append(opts, engine.WithObserver(s.observer))
	}
	if s.tracer != nil {
		opts = append(opts, engine.WithTracer(s.tracer))
	}
	return opts
}

// emit сохраняет снимок, публикует событие и передаёт снимок в sink.
// Ошибка публикации не прерывает run: событие снимка теряемо.
func (s *Service) emit(ctx context.Context, snap *domain.RunSnapshot, sink Sink) error {
	if s.snapshots != nil {
		if err := s.snapshots.Append(ctx, snap); err != nil {
			return fmt.Errorf("append snapshot %d: %w", snap.Step, err)
		}
	}

	if s.publisher != nil {
		err := s.publisher.PublishRunSnapshot(ctx, mq.RunSnapshotPayload{
			RunID:      snap.RunID,
			Step:       snap.Step,
			NodeID:     snap.NodeID,
			Status:     snap.Status,
			RetryCount: snap.Record.RetryCount(),
			Changed:    snap.Changed,
		})
		if err != nil {
			s.logger.Warn("failed to publish snapshot",
				"run_id", snap.RunID,
				"step", snap.Step,
				"error", err,
			)
		}
	}

	if sink != nil {
		if err := sink(snap); err != nil {
			return fmt.Errorf("%w: %w", ErrSinkClosed, err)
		}
	}
	return nil
}

// finalize сохраняет итоговый Run и публикует run.finished.
// Контекст run может быть уже отменён, поэтому запись идёт с отдельным таймаутом.
func (s *Service) finalize(ctx context.Context, run *domain.Run, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if s.runs != nil {
		if err := s.runs.Update(ctx, run); err != nil {
			logger.Error("failed to save finished run", "error", err)
		}
	}

	if s.publisher != nil {
		err := s.publisher.PublishRunFinished(ctx, mq.RunFinishedPayload{
			RunID:      run.ID,
			Status:     string(run.Status),
			Outcome:    string(run.Outcome),
			Steps:      run.Steps,
			RetryCount: run.RetryCount,
			Error:      run.Error,
		})
		if err != nil {
			logger.Warn("failed to publish run.finished", "error", err)
		}
	}

	attrs := []any{
		"status", run.Status,
		"outcome", run.Outcome,
		"steps", run.Steps,
		"retry_count", run.RetryCount,
		"duration", run.Duration(),
	}
	if run.Status == domain.RunStatusFailed {
		logger.Warn("run failed", append(attrs, "error", run.Error)...)
		return
	}
	logger.Info("run finished", attrs...)
}
