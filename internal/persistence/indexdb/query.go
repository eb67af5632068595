package indexdb

import (
	"context"
	"encoding/json"
	"fmt"

	"hivenet.ai/internal/sim/world"
)

type EventFilter struct {
	Kind     string
	FromTick uint64
	Limit    int
}

// Events returns indexed events in (tick, seq) order. Queued writes that have
// not been committed yet are not visible.
func (s *SQLiteIndex) Events(ctx context.Context, f EventFilter) ([]world.EventEntry, error) {
	q := `SELECT raw_json FROM events WHERE tick >= ?`
	args := []any{int64(f.FromTick)}
	if f.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	q += ` ORDER BY tick, seq`
	if f.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.EventEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e world.EventEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type SnapshotRecord struct {
	Tick        uint64 `json:"tick"`
	Path        string `json:"path"`
	Controllers int    `json:"controllers"`
	Formed      int    `json:"formed"`
	Requests    int    `json:"requests"`
	Tasks       int    `json:"tasks"`
}

// Snapshots lists recorded snapshots, newest first.
func (s *SQLiteIndex) Snapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,path,controllers,formed,requests,tasks FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var tick int64
		if err := rows.Scan(&tick, &r.Path, &r.Controllers, &r.Formed, &r.Requests, &r.Tasks); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRequests counts the requests a snapshot recorded with the given status.
func (s *SQLiteIndex) CountRequests(ctx context.Context, tick uint64, status string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_requests WHERE tick = ? AND status = ?`, int64(tick), status).Scan(&n)
	return n, err
}
