// Package plan materializes the per-identity, per-day list of recommended
// learning items from the curriculum and action-item catalogs.
package plan

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sproutlearn/backend/internal/identity"
)

const (
	// maxContentsPerDay bounds how many curriculum contents a daily plan holds.
	maxContentsPerDay = 2
	// actionFetchLimit is how many active actions are considered per build.
	actionFetchLimit = 5

	// defaultContentMinutes is used when a content duration string does not
	// start with a number.
	defaultContentMinutes = 5
	// defaultActionMinutes is used when an action has no estimate.
	defaultActionMinutes = 15
	// defaultPlanMinutes is the whole-plan floor when every item parsed to zero.
	defaultPlanMinutes = 20
)

// ErrItemNotFound is returned when completing a plan item that does not exist
// in today's plan.
var ErrItemNotFound = errors.New("plan item not found")

// Item statuses. Transitions are one-way: pending -> completed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Item types.
const (
	TypeContent = "content"
	TypeAction  = "action"
)

// Curriculum is the root of an identity's generated learning track.
type Curriculum struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Module is one ordered section of a curriculum.
type Module struct {
	ID         string
	Title      string
	OrderIndex int
}

// Content is one ordered learning unit inside a module. Duration is a
// human-readable string such as "10분" or "5 min".
type Content struct {
	ID         string
	Title      string
	Type       string
	Duration   string
	OrderIndex int
}

// Action is an externally managed micro-task.
type Action struct {
	ID               string
	Title            string
	Kind             string
	EstimatedMinutes int
	OrderIndex       int
}

// Item is one entry of a materialized daily plan: a content or an action.
type Item struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	RefID      string `json:"refId"`
	Order      int    `json:"order"`
	Status     string `json:"status"`
	Title      string `json:"title"`
	Minutes    int    `json:"duration"`
	ActionKind string `json:"actionKind,omitempty"`
}

// Plan is the per-identity, per-date materialized plan.
type Plan struct {
	ID               string `json:"id"`
	Date             string `json:"date"`
	Items            []Item `json:"items"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	CompletedCount   int    `json:"completedCount"`
	TotalCount       int    `json:"totalCount"`
}

// Catalog is the read surface over the curriculum and action-item catalogs.
// Modules and contents come back ordered by their explicit order index.
type Catalog interface {
	// LatestCurriculum returns the identity's most recently created
	// curriculum, or nil when none exists.
	LatestCurriculum(ctx context.Context, id identity.Identity) (*Curriculum, error)
	Modules(ctx context.Context, curriculumID string) ([]Module, error)
	Contents(ctx context.Context, moduleID string) ([]Content, error)
	// ActiveActions returns up to limit active actions ordered by index.
	ActiveActions(ctx context.Context, id identity.Identity, limit int) ([]Action, error)
}

// Store persists materialized plans. SavePlan must be insert-if-absent on
// (identity, date) so concurrent builders cannot duplicate a day's plan.
type Store interface {
	// PlanByDate returns nil when no plan exists for the identity+date.
	PlanByDate(ctx context.Context, id identity.Identity, date string) (*Plan, error)
	// SavePlan reports false when a plan for the identity+date already
	// existed, in which case nothing is written.
	SavePlan(ctx context.Context, id identity.Identity, p *Plan) (bool, error)
	// CompleteItem transitions one item pending -> completed and returns the
	// item. Completing an already-completed item is a no-op success.
	CompleteItem(ctx context.Context, id identity.Identity, date, itemID string) (*Item, error)
}

// Builder assembles and serves daily plans.
type Builder struct {
	catalog Catalog
	store   Store
}

// NewBuilder creates a Builder over the given catalog and plan store.
func NewBuilder(catalog Catalog, store Store) *Builder {
	return &Builder{catalog: catalog, store: store}
}

// Today returns the identity's plan for the calendar day of now, building
// and persisting it on first call. Construction is idempotent by date: a
// lost insert race falls back to reading the winner's plan.
func (b *Builder) Today(ctx context.Context, id identity.Identity, now time.Time) (*Plan, error) {
	date := now.UTC().Format("2006-01-02")

	existing, err := b.store.PlanByDate(ctx, id, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		refreshProgress(existing)
		return existing, nil
	}

	p, err := b.build(ctx, id, date)
	if err != nil {
		return nil, err
	}

	inserted, err := b.store.SavePlan(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !inserted {
		p, err = b.store.PlanByDate(ctx, id, date)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, errors.New("plan vanished after insert conflict")
		}
	}
	refreshProgress(p)
	return p, nil
}

// CompleteItem marks one item of today's plan completed.
func (b *Builder) CompleteItem(ctx context.Context, id identity.Identity, now time.Time, itemID string) (*Item, error) {
	date := now.UTC().Format("2006-01-02")
	return b.store.CompleteItem(ctx, id, date, itemID)
}

func (b *Builder) build(ctx context.Context, id identity.Identity, date string) (*Plan, error) {
	p := &Plan{
		ID:     uuid.NewString(),
		Date:   date,
		Status: StatusPending,
	}
	minutes := 0
	order := 0

	cur, err := b.catalog.LatestCurriculum(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		modules, err := b.catalog.Modules(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
	collect:
		for _, m := range modules {
			contents, err := b.catalog.Contents(ctx, m.ID)
			if err != nil {
				return nil, err
			}
			for _, c := range contents {
				if len(p.Items) >= maxContentsPerDay {
					break collect
				}
				dur := parseDurationMinutes(c.Duration)
				p.Items = append(p.Items, Item{
					ID:      uuid.NewString(),
					Type:    TypeContent,
					RefID:   c.ID,
					Order:   order,
					Status:  StatusPending,
					Title:   c.Title,
					Minutes: dur,
				})
				minutes += dur
				order++
			}
		}
	}

	actions, err := b.catalog.ActiveActions(ctx, id, actionFetchLimit)
	if err != nil {
		return nil, err
	}
	if len(actions) > 0 {
		// One action per day, whether or not contents were found: a plan is
		// never empty while any action exists.
		a := actions[0]
		est := a.EstimatedMinutes
		if est <= 0 {
			est = defaultActionMinutes
		}
		p.Items = append(p.Items, Item{
			ID:         uuid.NewString(),
			Type:       TypeAction,
			RefID:      a.ID,
			Order:      order,
			Status:     StatusPending,
			Title:      a.Title,
			Minutes:    est,
			ActionKind: a.Kind,
		})
		minutes += est
	}

	if minutes == 0 {
		minutes = defaultPlanMinutes
	}
	p.EstimatedMinutes = minutes
	p.TotalCount = len(p.Items)
	return p, nil
}

// refreshProgress recomputes the derived completion fields from item status.
func refreshProgress(p *Plan) {
	completed := 0
	for _, it := range p.Items {
		if it.Status == StatusCompleted {
			completed++
		}
	}
	p.CompletedCount = completed
	p.TotalCount = len(p.Items)
	p.Progress = 0
	if p.TotalCount > 0 {
		p.Progress = (completed*100 + p.TotalCount/2) / p.TotalCount
	}
	p.Status = StatusPending
	if p.TotalCount > 0 && completed == p.TotalCount {
		p.Status = StatusCompleted
	}
}

// parseDurationMinutes extracts the leading integer from a human-readable
// duration string ("10분", "5 min"). Unparseable strings fall back to the
// content default; parsing never fails the plan build.
func parseDurationMinutes(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return defaultContentMinutes
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return defaultContentMinutes
	}
	return n
}
