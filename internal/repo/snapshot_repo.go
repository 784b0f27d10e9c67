package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/synapse/internal/domain"
)

// SnapshotRepo — журнал снимков Record по шагам run.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepo создаёт новый SnapshotRepo.
func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

// Append сохраняет снимок. Повторная запись того же шага — ErrAlreadyExists.
func (r *SnapshotRepo) Append(ctx context.Context, snap *domain.RunSnapshot) error {
	recordJSON, err := marshalRecord(snap.Record)
	if err != nil {
		return err
	}
	changed := snap.Changed
	if changed == nil {
		changed = []string{}
	}

	query := `
		INSERT INTO run_snapshots (run_id, step, node_id, status, changed, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		snap.RunID,
		snap.Step,
		snap.NodeID,
		snap.Status,
		changed,
		recordJSON,
		snap.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListByRun возвращает снимки run в порядке шагов.
func (r *SnapshotRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunSnapshot, error) {
	query := `
		SELECT run_id, step, node_id, status, changed, record, created_at
		FROM run_snapshots
		WHERE run_id = $1
		ORDER BY step ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.RunSnapshot
	for rows.Next() {
		var snap domain.RunSnapshot
		var recordJSON []byte
		if err := rows.Scan(
			&snap.RunID,
			&snap.Step,
			&snap.NodeID,
			&snap.Status,
			&snap.Changed,
			&recordJSON,
			&snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.Record, err = unmarshalRecord(recordJSON); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
