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

type planRow struct {
	ID               string `db:"id"`
	PlanDate         string `db:"plan_date"`
	EstimatedMinutes int    `db:"estimated_minutes"`
	Status           string `db:"status"`
}

type planItemRow struct {
	ID              string `db:"id"`
	ItemType        string `db:"item_type"`
	RefID           string `db:"ref_id"`
	OrderIndex      int    `db:"order_index"`
	Status          string `db:"status"`
	Title           string `db:"title"`
	DurationMinutes int    `db:"duration_minutes"`
	ActionKind      string `db:"action_kind"`
}

// PlanByDate implements plan.Store: the materialized plan for the
// identity+date with its items in order, nil when none exists.
func (s *Store) PlanByDate(ctx context.Context, id identity.Identity, date string) (*plan.Plan, error) {
	var row planRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT id, plan_date, estimated_minutes, status FROM daily_plans
		WHERE identity_kind = $1 AND identity_id = $2 AND plan_date = $3`,
		id.Kind, id.ID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	var itemRows []planItemRow
	err = sqlx.SelectContext(ctx, s.q, &itemRows, `
		SELECT id, item_type, ref_id, order_index, status, title, duration_minutes, action_kind
		FROM plan_items WHERE plan_id = $1 ORDER BY order_index`,
		row.ID)
	if err != nil {
		return nil, fmt.Errorf("loading plan items: %w", err)
	}

	p := &plan.Plan{
		ID:               row.ID,
		Date:             row.PlanDate,
		EstimatedMinutes: row.EstimatedMinutes,
		Status:           row.Status,
	}
	for _, r := range itemRows {
		p.Items = append(p.Items, plan.Item{
			ID:         r.ID,
			Type:       r.ItemType,
			RefID:      r.RefID,
			Order:      r.OrderIndex,
			Status:     r.Status,
			Title:      r.Title,
			Minutes:    r.DurationMinutes,
			ActionKind: r.ActionKind,
		})
	}
	return p, nil
}

// SavePlan inserts the plan and its items in one transaction. The plan row
// insert is conditional on the (identity, date) uniqueness constraint; when
// another builder won the race, nothing is written and ok=false.
func (s *Store) SavePlan(ctx context.Context, id identity.Identity, p *plan.Plan) (bool, error) {
	inserted := false
	err := s.inTx(ctx, func(tx *Store) error {
		res, err := tx.q.ExecContext(ctx, `
			INSERT INTO daily_plans (id, identity_kind, identity_id, plan_date, estimated_minutes, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (identity_kind, identity_id, plan_date) DO NOTHING`,
			p.ID, id.Kind, id.ID, p.Date, p.EstimatedMinutes, p.Status, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("inserting plan: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		for _, it := range p.Items {
			_, err := tx.q.ExecContext(ctx, `
				INSERT INTO plan_items (id, plan_id, item_type, ref_id, order_index, status, title, duration_minutes, action_kind)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				it.ID, p.ID, it.Type, it.RefID, it.Order, it.Status, it.Title, it.Minutes, it.ActionKind)
			if err != nil {
				return fmt.Errorf("inserting plan item: %w", err)
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// CompleteItem transitions a plan item pending -> completed. The conditional
// update makes the transition one-way; completing an already-completed item
// is a no-op success. When every item is completed the plan row is marked
// completed as well.
func (s *Store) CompleteItem(ctx context.Context, id identity.Identity, date, itemID string) (*plan.Item, error) {
	var item *plan.Item
	err := s.inTx(ctx, func(tx *Store) error {
		var planID string
		err := sqlx.GetContext(ctx, tx.q, &planID, `
			SELECT id FROM daily_plans
			WHERE identity_kind = $1 AND identity_id = $2 AND plan_date = $3`,
			id.Kind, id.ID, date)
		if errors.Is(err, sql.ErrNoRows) {
			return plan.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("loading plan id: %w", err)
		}

		_, err = tx.q.ExecContext(ctx, `
			UPDATE plan_items SET status = $1
			WHERE id = $2 AND plan_id = $3 AND status = $4`,
			plan.StatusCompleted, itemID, planID, plan.StatusPending)
		if err != nil {
			return fmt.Errorf("completing plan item: %w", err)
		}

		var row planItemRow
		err = sqlx.GetContext(ctx, tx.q, &row, `
			SELECT id, item_type, ref_id, order_index, status, title, duration_minutes, action_kind
			FROM plan_items WHERE id = $1 AND plan_id = $2`,
			itemID, planID)
		if errors.Is(err, sql.ErrNoRows) {
			return plan.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("loading plan item: %w", err)
		}

		var pending int
		err = sqlx.GetContext(ctx, tx.q, &pending, `
			SELECT COUNT(*) FROM plan_items WHERE plan_id = $1 AND status = $2`,
			planID, plan.StatusPending)
		if err != nil {
			return fmt.Errorf("counting pending items: %w", err)
		}
		if pending == 0 {
			if _, err := tx.q.ExecContext(ctx, `
				UPDATE daily_plans SET status = $1 WHERE id = $2`,
				plan.StatusCompleted, planID); err != nil {
				return fmt.Errorf("completing plan: %w", err)
			}
		}

		item = &plan.Item{
			ID:         row.ID,
			Type:       row.ItemType,
			RefID:      row.RefID,
			Order:      row.OrderIndex,
			Status:     row.Status,
			Title:      row.Title,
			Minutes:    row.DurationMinutes,
			ActionKind: row.ActionKind,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
