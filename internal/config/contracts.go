package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prismbi/prism/internal/contract"
	"github.com/prismbi/prism/internal/model"
)

// SaveSnapshot creates or replaces the introspected column snapshot for a
// datasource.
func (s *Store) SaveSnapshot(ctx context.Context, datasourceUID string, columns []model.Column) (*contract.Snapshot, error) {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("marshal columns: %w", err)
	}

	now := time.Now().UTC()
	const q = `INSERT INTO column_snapshots (datasource_uid, columns_json, taken_at)
		VALUES (?, ?, ?)
		ON CONFLICT(datasource_uid) DO UPDATE SET
			columns_json = excluded.columns_json,
			taken_at = excluded.taken_at`

	result, err := s.db.ExecContext(ctx, q, datasourceUID, string(columnsJSON), now)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	id, _ := result.LastInsertId()
	return &contract.Snapshot{
		ID:            id,
		DatasourceUID: datasourceUID,
		Columns:       columns,
		ColumnsJSON:   string(columnsJSON),
		TakenAt:       now,
	}, nil
}

// GetSnapshot returns the stored column snapshot for a datasource.
func (s *Store) GetSnapshot(ctx context.Context, datasourceUID string) (*contract.Snapshot, error) {
	var snap contract.Snapshot
	const q = `SELECT id, datasource_uid, columns_json, taken_at
		FROM column_snapshots WHERE datasource_uid = ?`
	if err := s.db.GetContext(ctx, &snap, q, datasourceUID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(snap.ColumnsJSON), &snap.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot columns: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot removes the column snapshot for a datasource.
func (s *Store) DeleteSnapshot(ctx context.Context, datasourceUID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM column_snapshots WHERE datasource_uid = ?", datasourceUID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
