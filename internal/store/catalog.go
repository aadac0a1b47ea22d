package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sproutlearn/backend/internal/identity"
	"github.com/sproutlearn/backend/internal/plan"
)

type curriculumRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
}

// LatestCurriculum implements plan.Catalog: the identity's most recently
// created curriculum, nil when none exists.
func (s *Store) LatestCurriculum(ctx context.Context, id identity.Identity) (*plan.Curriculum, error) {
	var row curriculumRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT id, title, created_at FROM curricula
		WHERE identity_kind = $1 AND identity_id = $2
		ORDER BY created_at DESC LIMIT 1`,
		id.Kind, id.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}
	return &plan.Curriculum{ID: row.ID, Title: row.Title, CreatedAt: row.CreatedAt}, nil
}

type moduleRow struct {
	ID         string `db:"id"`
	Title      string `db:"title"`
	OrderIndex int    `db:"order_index"`
}

// Modules returns a curriculum's modules ordered by index.
func (s *Store) Modules(ctx context.Context, curriculumID string) ([]plan.Module, error) {
	var rows []moduleRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, title, order_index FROM curriculum_modules
		WHERE curriculum_id = $1 ORDER BY order_index`,
		curriculumID)
	if err != nil {
		return nil, fmt.Errorf("loading modules: %w", err)
	}
	out := make([]plan.Module, len(rows))
	for i, r := range rows {
		out[i] = plan.Module{ID: r.ID, Title: r.Title, OrderIndex: r.OrderIndex}
	}
	return out, nil
}

type contentRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	ContentType string `db:"content_type"`
	Duration    string `db:"duration"`
	OrderIndex  int    `db:"order_index"`
}

// Contents returns a module's contents ordered by index.
func (s *Store) Contents(ctx context.Context, moduleID string) ([]plan.Content, error) {
	var rows []contentRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, title, content_type, duration, order_index FROM module_contents
		WHERE module_id = $1 ORDER BY order_index`,
		moduleID)
	if err != nil {
		return nil, fmt.Errorf("loading contents: %w", err)
	}
	out := make([]plan.Content, len(rows))
	for i, r := range rows {
		out[i] = plan.Content{
			ID:         r.ID,
			Title:      r.Title,
			Type:       r.ContentType,
			Duration:   r.Duration,
			OrderIndex: r.OrderIndex,
		}
	}
	return out, nil
}

type actionRow struct {
	ID               string `db:"id"`
	Title            string `db:"title"`
	ActionKind       string `db:"action_kind"`
	EstimatedMinutes int    `db:"estimated_minutes"`
	OrderIndex       int    `db:"order_index"`
}

// ActiveActions returns up to limit of the identity's active action items,
// ordered by index.
func (s *Store) ActiveActions(ctx context.Context, id identity.Identity, limit int) ([]plan.Action, error) {
	var rows []actionRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, title, action_kind, estimated_minutes, order_index FROM action_items
		WHERE identity_kind = $1 AND identity_id = $2 AND is_active = TRUE
		ORDER BY order_index LIMIT $3`,
		id.Kind, id.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading actions: %w", err)
	}
	out := make([]plan.Action, len(rows))
	for i, r := range rows {
		out[i] = plan.Action{
			ID:               r.ID,
			Title:            r.Title,
			Kind:             r.ActionKind,
			EstimatedMinutes: r.EstimatedMinutes,
			OrderIndex:       r.OrderIndex,
		}
	}
	return out, nil
}

// InsertCurriculum writes a curriculum row. Catalog writes are used by the
// onboarding pipeline and the demo seeder; they are not part of the reward
// path.
func (s *Store) InsertCurriculum(ctx context.Context, id identity.Identity, c plan.Curriculum) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO curricula (id, identity_kind, identity_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, id.Kind, id.ID, c.Title, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting curriculum: %w", err)
	}
	return nil
}

// InsertModule writes a curriculum module row.
func (s *Store) InsertModule(ctx context.Context, curriculumID string, m plan.Module) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO curriculum_modules (id, curriculum_id, title, order_index)
		VALUES ($1, $2, $3, $4)`,
		m.ID, curriculumID, m.Title, m.OrderIndex)
	if err != nil {
		return fmt.Errorf("inserting module: %w", err)
	}
	return nil
}

// InsertContent writes a module content row.
func (s *Store) InsertContent(ctx context.Context, moduleID string, c plan.Content) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO module_contents (id, module_id, title, content_type, duration, order_index)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, moduleID, c.Title, c.Type, c.Duration, c.OrderIndex)
	if err != nil {
		return fmt.Errorf("inserting content: %w", err)
	}
	return nil
}

// InsertAction writes an active action item row.
func (s *Store) InsertAction(ctx context.Context, id identity.Identity, a plan.Action) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO action_items (id, identity_kind, identity_id, title, action_kind, estimated_minutes, order_index, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)`,
		a.ID, id.Kind, id.ID, a.Title, a.Kind, a.EstimatedMinutes, a.OrderIndex)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}
