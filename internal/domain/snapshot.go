package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunSnapshot — сохранённый снимок Record после одного посещения узла.
type RunSnapshot struct {
	RunID     uuid.UUID `json:"run_id"`
	Step      int       `json:"step"`
	NodeID    string    `json:"node_id"`
	Status    string    `json:"status"`
	Changed   []string  `json:"changed"`
	Record    Record    `json:"record"`
	CreatedAt time.Time `json:"created_at"`
}
