package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/inventorius/inventorius-web/ports"
)

// ActivityStore implements ports.ActivityStore using SQLite.
type ActivityStore struct {
	db  *DB
	now func() time.Time
}

// NewActivityStore creates a new SQLite activity store.
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{db: db, now: time.Now}
}

// Record appends an activity. A zero CreatedAt is set to the current time.
func (s *ActivityStore) Record(ctx context.Context, a ports.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, action, resource_id, detail, outcome, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Action, a.ResourceID, a.Detail, a.Outcome, a.RequestID, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Recent returns the latest activities, newest first.
func (s *ActivityStore) Recent(ctx context.Context, limit int) ([]ports.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, resource_id, detail, outcome, request_id, created_at
		FROM activity
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ForResource returns the latest activities on one resource, newest first.
func (s *ActivityStore) ForResource(ctx context.Context, resourceID string, limit int) ([]ports.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, resource_id, detail, outcome, request_id, created_at
		FROM activity
		WHERE resource_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// Prune deletes activities older than the cutoff and returns how many were removed.
func (s *ActivityStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM activity WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	return result.RowsAffected()
}

func scanActivities(rows *sql.Rows) ([]ports.Activity, error) {
	var out []ports.Activity
	for rows.Next() {
		var a ports.Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.ResourceID, &a.Detail, &a.Outcome, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.ActivityStore = (*ActivityStore)(nil)
