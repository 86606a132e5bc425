package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/use-agent/actorkit/models"
)

const actorColumns = `id, namespace, title, description, icon, script, response_filters, user_id, created_at, updated_at`

// CreateActor inserts a. ID and timestamps are assigned when empty.
// A taken namespace yields ErrDuplicate.
func (s *Store) CreateActor(ctx context.Context, a *models.Actor) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	filters, err := encodeFilters(a.ResponseFilters)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actors (`+actorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Namespace, a.Title, a.Description, a.Icon, a.Script, filters, a.UserID,
		toUnix(a.CreatedAt), toUnix(a.UpdatedAt))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: actor namespace %q", ErrDuplicate, a.Namespace)
		}
		return fmt.Errorf("store: insert actor: %w", err)
	}
	return nil
}

// FindActor resolves ref as an actor id first and then as a namespace.
// It returns ErrNotFound when neither matches; any other error is a storage
// failure.
func (s *Store) FindActor(ctx context.Context, ref string) (*models.Actor, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actorColumns+` FROM actors
		WHERE id = ? OR namespace = ?
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END
		LIMIT 1
	`, ref, ref, ref)

	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find actor: %w", err)
	}
	return a, nil
}

// UpdateResponseFilters replaces the stored response filters of actor id.
// Nil clears them.
func (s *Store) UpdateResponseFilters(ctx context.Context, id string, f *models.ResponseFilters) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	filters, err := encodeFilters(f)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE actors SET response_filters = ?, updated_at = ? WHERE id = ?
	`, filters, toUnix(s.now()), id)
	if err != nil {
		return fmt.Errorf("store: update filters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanActor(row *sql.Row) (*models.Actor, error) {
	var (
		a                  models.Actor
		filters            sql.NullString
		created, updatedAt int64
	)
	if err := row.Scan(&a.ID, &a.Namespace, &a.Title, &a.Description, &a.Icon, &a.Script,
		&filters, &a.UserID, &created, &updatedAt); err != nil {
		return nil, err
	}
	if filters.Valid && filters.String != "" {
		var f models.ResponseFilters
		if err := json.Unmarshal([]byte(filters.String), &f); err != nil {
			return nil, fmt.Errorf("decode response filters: %w", err)
		}
		a.ResponseFilters = &f
	}
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updatedAt)
	return &a, nil
}

func encodeFilters(f *models.ResponseFilters) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("store: encode response filters: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
