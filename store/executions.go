package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/actorkit/models"
)

const executionColumns = `id, actor_id, status, start_time, end_time, results, logs`

// CreateExecution inserts e. ID and StartTime are assigned when empty.
func (s *Store) CreateExecution(ctx context.Context, e *models.ActorExecution) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.StartTime.IsZero() {
		e.StartTime = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actor_executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ActorID, string(e.Status), toUnix(e.StartTime), nullTime(e.EndTime),
		nullJSON(e.Results), e.Logs)
	if err != nil {
		return fmt.Errorf("store: insert execution: %w", err)
	}
	return nil
}

// GetExecution loads one execution.
func (s *Store) GetExecution(ctx context.Context, id string) (*models.ActorExecution, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM actor_executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get execution: %w", err)
	}
	return e, nil
}

// StatusUpdate describes a conditional status change.
type StatusUpdate struct {
	From    models.ExecutionStatus
	To      models.ExecutionStatus
	EndTime *time.Time
	Results json.RawMessage
	Logs    string
}

// TransitionExecution applies u only if the execution is currently in
// u.From. It reports whether a row changed; false means the execution is
// missing or in another state.
func (s *Store) TransitionExecution(ctx context.Context, id string, u StatusUpdate) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE actor_executions
		SET status = ?,
		    end_time = COALESCE(?, end_time),
		    results = COALESCE(?, results),
		    logs = CASE WHEN ? <> '' THEN ? ELSE logs END
		WHERE id = ? AND status = ?
	`, string(u.To), nullTime(u.EndTime), nullJSON(u.Results), u.Logs, u.Logs, id, string(u.From))
	if err != nil {
		return false, fmt.Errorf("store: transition execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: transition execution: %w", err)
	}
	return n == 1, nil
}

// ListExecutions returns up to limit executions of actorID, newest first,
// together with the actor's total execution count.
func (s *Store) ListExecutions(ctx context.Context, actorID string, limit int) ([]*models.ActorExecution, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM actor_executions WHERE actor_id = ?`, actorID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count executions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+executionColumns+` FROM actor_executions
		WHERE actor_id = ?
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`, actorID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list executions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ActorExecution, 0, limit)
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*models.ActorExecution, error) {
	var (
		e       models.ActorExecution
		status  string
		start   int64
		end     sql.NullInt64
		results sql.NullString
	)
	if err := row.Scan(&e.ID, &e.ActorID, &status, &start, &end, &results, &e.Logs); err != nil {
		return nil, err
	}
	e.Status = models.ExecutionStatus(status)
	e.StartTime = fromUnix(start)
	if end.Valid {
		t := fromUnix(end.Int64)
		e.EndTime = &t
	}
	if results.Valid && results.String != "" {
		e.Results = json.RawMessage(results.String)
	}
	return &e, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func nullJSON(b json.RawMessage) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
