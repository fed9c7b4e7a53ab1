// Package history keeps a durable, append-only archive of finished tasks in
// SQLite. The in-memory registry only retains the most recent tasks per
// agent; the archive preserves everything for later inspection.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marchhare/go-crew/internal/bus"
)

// Record is one archived task outcome.
type Record struct {
	TaskID      string
	AgentID     string
	Prompt      string
	Status      string
	Result      string
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Archive is the SQLite-backed task archive.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the archive database at path.
func Open(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &Archive{db: db, logger: logger}
	if err := a.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) init(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("set pragma: %w", err)
	}
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS task_history (
			task_id      TEXT PRIMARY KEY,
			agent_id     TEXT NOT NULL,
			prompt       TEXT NOT NULL,
			status       TEXT NOT NULL,
			result       TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL,
			started_at   DATETIME,
			completed_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_task_history_agent
			ON task_history (agent_id, completed_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record upserts one terminal task event. Re-delivery of the same task id is
// harmless.
func (a *Archive) Record(ctx context.Context, te bus.TaskEvent) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO task_history
			(task_id, agent_id, prompt, status, result, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			completed_at = excluded.completed_at
	`, te.TaskID, te.AgentID, te.Prompt, te.Status, te.Result, te.Error,
		te.CreatedAt, te.StartedAt, te.CompletedAt)
	if err != nil {
		return fmt.Errorf("record task %s: %w", te.TaskID, err)
	}
	return nil
}

// Recent returns the newest records for an agent, most recent first. An
// empty agentID returns records across all agents.
func (a *Archive) Recent(ctx context.Context, agentID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT task_id, agent_id, prompt, status, result, error,
		       created_at, started_at, completed_at
		FROM task_history`
	args := []any{}
	if agentID != "" {
		query += " WHERE agent_id = ?"
		args = append(args, agentID)
	}
	query += " ORDER BY completed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.TaskID, &r.AgentID, &r.Prompt, &r.Status, &r.Result,
			&r.Error, &r.CreatedAt, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count reports the number of archived tasks.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_history").Scan(&n)
	return n, err
}

// Run subscribes to the bus and archives every terminal task event until
// the context is cancelled. Start events are ignored; the archive only holds
// outcomes.
func (a *Archive) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe("task.")
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			if ev.Topic != bus.TopicTaskComplete && ev.Topic != bus.TopicTaskError {
				continue
			}
			te, isTask := ev.Payload.(bus.TaskEvent)
			if !isTask {
				continue
			}
			if err := a.Record(ctx, te); err != nil {
				a.logger.Error("archive write failed", "task_id", te.TaskID, "error", err)
			}
		}
	}
}
