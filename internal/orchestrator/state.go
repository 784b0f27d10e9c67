package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// Создаётся перед первым шагом и удаляется после финализации.
// Хранит последний выданный снимок: именно он попадает в Run,
// если run прерван ошибкой.
type RunState struct {
	// Run — run, который выполняется.
	Run *domain.Run

	last   domain.Record
	nodeID string
	steps  int

	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run) *RunState {
	return &RunState{Run: run}
}

// Record фиксирует снимок engine и возвращает его сохраняемую форму.
func (s *RunState) Record(snap engine.Snapshot) *domain.RunSnapshot {
	s.mu.Lock()
	s.last = snap.Record
	s.nodeID = snap.NodeID
	s.steps = snap.Step
	s.mu.Unlock()

	return &domain.RunSnapshot{
		RunID:     s.Run.ID,
		Step:      snap.Step,
		NodeID:    snap.NodeID,
		Status:    snap.Record.Status(),
		Changed:   snap.Changed,
		Record:    snap.Record,
		CreatedAt: time.Now(),
	}
}

// Last возвращает Record последнего снимка (nil, если снимков не было).
func (s *RunState) Last() domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.Run.ID
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{
		RunID:  s.Run.ID,
		Steps:  s.steps,
		NodeID: s.nodeID,
	}
	if s.last != nil {
		stats.Status = s.last.Status()
		stats.RetryCount = s.last.RetryCount()
	}
	return stats
}

// RunStats — статистика активного run.
type RunStats struct {
	RunID      uuid.UUID `json:"run_id"`
	Steps      int       `json:"steps"`
	NodeID     string    `json:"node_id"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
}
