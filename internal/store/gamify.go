package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sproutlearn/backend/internal/gamification"
	"github.com/sproutlearn/backend/internal/identity"
)

// MarkContentCompleted implements gamification.Store. The insert-if-absent
// is the idempotency guard for the whole completion event: rows affected
// tells first completion apart from a duplicate without a read-check gap.
func (s *Store) MarkContentCompleted(ctx context.Context, id identity.Identity, contentID string, now time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO content_completions (identity_kind, identity_id, content_id, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_kind, identity_id, content_id) DO NOTHING`,
		id.Kind, id.ID, contentID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("marking content completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TotalCompletions counts all contents the identity has ever completed.
func (s *Store) TotalCompletions(ctx context.Context, id identity.Identity) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.q, &n, `
		SELECT COUNT(*) FROM content_completions
		WHERE identity_kind = $1 AND identity_id = $2`,
		id.Kind, id.ID)
	if err != nil {
		return 0, fmt.Errorf("counting completions: %w", err)
	}
	return n, nil
}

type streakRow struct {
	Current      int            `db:"current_streak"`
	Longest      int            `db:"longest_streak"`
	LastActivity sql.NullString `db:"last_activity_date"`
}

// Streak returns the streak aggregate, zero-valued when none exists yet.
func (s *Store) Streak(ctx context.Context, id identity.Identity) (gamification.StreakState, error) {
	var row streakRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT current_streak, longest_streak, last_activity_date FROM streaks
		WHERE identity_kind = $1 AND identity_id = $2`,
		id.Kind, id.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return gamification.StreakState{}, nil
	}
	if err != nil {
		return gamification.StreakState{}, fmt.Errorf("loading streak: %w", err)
	}

	st := gamification.StreakState{Current: row.Current, Longest: row.Longest}
	if row.LastActivity.Valid {
		d, err := time.ParseInLocation("2006-01-02", row.LastActivity.String, time.UTC)
		if err != nil {
			return gamification.StreakState{}, fmt.Errorf("parsing last activity date: %w", err)
		}
		st.LastActivity = &d
	}
	return st, nil
}

// SaveStreak upserts the streak aggregate.
func (s *Store) SaveStreak(ctx context.Context, id identity.Identity, st gamification.StreakState) error {
	var last interface{}
	if st.LastActivity != nil {
		last = st.LastActivity.UTC().Format("2006-01-02")
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO streaks (identity_kind, identity_id, current_streak, longest_streak, last_activity_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_kind, identity_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_activity_date = excluded.last_activity_date`,
		id.Kind, id.ID, st.Current, st.Longest, last)
	if err != nil {
		return fmt.Errorf("saving streak: %w", err)
	}
	return nil
}

type levelRow struct {
	TotalXP      int `db:"total_xp"`
	CurrentLevel int `db:"current_level"`
}

// LevelState returns the XP aggregate; absent rows come back as level 1, 0 XP.
func (s *Store) LevelState(ctx context.Context, id identity.Identity) (gamification.LevelState, error) {
	var row levelRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT total_xp, current_level FROM level_state
		WHERE identity_kind = $1 AND identity_id = $2`,
		id.Kind, id.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return gamification.LevelState{TotalXP: 0, CurrentLevel: 1}, nil
	}
	if err != nil {
		return gamification.LevelState{}, fmt.Errorf("loading level state: %w", err)
	}
	return gamification.LevelState{TotalXP: row.TotalXP, CurrentLevel: row.CurrentLevel}, nil
}

// SaveLevelState upserts the XP aggregate.
func (s *Store) SaveLevelState(ctx context.Context, id identity.Identity, ls gamification.LevelState) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO level_state (identity_kind, identity_id, total_xp, current_level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_kind, identity_id) DO UPDATE SET
			total_xp = excluded.total_xp,
			current_level = excluded.current_level`,
		id.Kind, id.ID, ls.TotalXP, ls.CurrentLevel)
	if err != nil {
		return fmt.Errorf("saving level state: %w", err)
	}
	return nil
}

// RecordDailyActivity increments the per-day completion counter via a single
// upsert and returns the count after the increment.
func (s *Store) RecordDailyActivity(ctx context.Context, id identity.Identity, day string) (int, error) {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO daily_activity (identity_kind, identity_id, day, contents_completed, xp_earned)
		VALUES ($1, $2, $3, 1, 0)
		ON CONFLICT (identity_kind, identity_id, day) DO UPDATE SET
			contents_completed = daily_activity.contents_completed + 1`,
		id.Kind, id.ID, day)
	if err != nil {
		return 0, fmt.Errorf("recording daily activity: %w", err)
	}

	var n int
	err = sqlx.GetContext(ctx, s.q, &n, `
		SELECT contents_completed FROM daily_activity
		WHERE identity_kind = $1 AND identity_id = $2 AND day = $3`,
		id.Kind, id.ID, day)
	if err != nil {
		return 0, fmt.Errorf("reading daily activity: %w", err)
	}
	return n, nil
}

// AddDailyXP accumulates XP into the per-day activity row.
func (s *Store) AddDailyXP(ctx context.Context, id identity.Identity, day string, xp int) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO daily_activity (identity_kind, identity_id, day, contents_completed, xp_earned)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (identity_kind, identity_id, day) DO UPDATE SET
			xp_earned = daily_activity.xp_earned + excluded.xp_earned`,
		id.Kind, id.ID, day, xp)
	if err != nil {
		return fmt.Errorf("adding daily xp: %w", err)
	}
	return nil
}

type weeklyGoalRow struct {
	WeekStart  string       `db:"week_start"`
	Target     int          `db:"target_contents"`
	Completed  int          `db:"completed_contents"`
	IsAchieved bool         `db:"is_achieved"`
	AchievedAt sql.NullTime `db:"achieved_at"`
}

// WeeklyGoal returns the goal for the identity+week, nil when none exists.
func (s *Store) WeeklyGoal(ctx context.Context, id identity.Identity, weekStart string) (*gamification.WeeklyGoal, error) {
	var row weeklyGoalRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT week_start, target_contents, completed_contents, is_achieved, achieved_at
		FROM weekly_goals
		WHERE identity_kind = $1 AND identity_id = $2 AND week_start = $3`,
		id.Kind, id.ID, weekStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading weekly goal: %w", err)
	}

	g := &gamification.WeeklyGoal{
		WeekStart:  row.WeekStart,
		Target:     row.Target,
		Completed:  row.Completed,
		IsAchieved: row.IsAchieved,
	}
	if row.AchievedAt.Valid {
		t := row.AchievedAt.Time
		g.AchievedAt = &t
	}
	return g, nil
}

// CreateWeeklyGoal inserts a goal for the identity+week if none exists;
// ok=false when one was already present. Goal creation lives outside the
// reward path (onboarding, scheduler rollover).
func (s *Store) CreateWeeklyGoal(ctx context.Context, id identity.Identity, weekStart string, target int) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO weekly_goals (identity_kind, identity_id, week_start, target_contents, completed_contents, is_achieved)
		VALUES ($1, $2, $3, $4, 0, FALSE)
		ON CONFLICT (identity_kind, identity_id, week_start) DO NOTHING`,
		id.Kind, id.ID, weekStart, target)
	if err != nil {
		return false, fmt.Errorf("creating weekly goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementWeeklyGoal bumps the week's completion counter and returns the
// new count.
func (s *Store) IncrementWeeklyGoal(ctx context.Context, id identity.Identity, weekStart string) (int, error) {
	_, err := s.q.ExecContext(ctx, `
		UPDATE weekly_goals SET completed_contents = completed_contents + 1
		WHERE identity_kind = $1 AND identity_id = $2 AND week_start = $3`,
		id.Kind, id.ID, weekStart)
	if err != nil {
		return 0, fmt.Errorf("incrementing weekly goal: %w", err)
	}

	var n int
	err = sqlx.GetContext(ctx, s.q, &n, `
		SELECT completed_contents FROM weekly_goals
		WHERE identity_kind = $1 AND identity_id = $2 AND week_start = $3`,
		id.Kind, id.ID, weekStart)
	if err != nil {
		return 0, fmt.Errorf("reading weekly goal count: %w", err)
	}
	return n, nil
}

// LatchWeeklyGoal flips is_achieved false->true. The conditional update is
// the one-way latch: whichever call wins the flip gets true and awards the
// bonus; everyone else gets false.
func (s *Store) LatchWeeklyGoal(ctx context.Context, id identity.Identity, weekStart string, now time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE weekly_goals SET is_achieved = TRUE, achieved_at = $1
		WHERE identity_kind = $2 AND identity_id = $3 AND week_start = $4
			AND is_achieved = FALSE`,
		now.UTC(), id.Kind, id.ID, weekStart)
	if err != nil {
		return false, fmt.Errorf("latching weekly goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RollForwardWeeklyGoals creates this week's goal for every identity that
// held one last week, carrying the target over. Existing rows are untouched.
// Returns how many goals were created.
func (s *Store) RollForwardWeeklyGoals(ctx context.Context, prevWeekStart, weekStart string) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO weekly_goals (identity_kind, identity_id, week_start, target_contents, completed_contents, is_achieved)
		SELECT identity_kind, identity_id, $1, target_contents, 0, FALSE
		FROM weekly_goals WHERE week_start = $2
		ON CONFLICT (identity_kind, identity_id, week_start) DO NOTHING`,
		weekStart, prevWeekStart)
	if err != nil {
		return 0, fmt.Errorf("rolling weekly goals forward: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// EarnedBadgeIDs returns the set of badge IDs the identity has earned.
func (s *Store) EarnedBadgeIDs(ctx context.Context, id identity.Identity) (map[string]bool, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, s.q, &ids, `
		SELECT badge_id FROM earned_badges
		WHERE identity_kind = $1 AND identity_id = $2`,
		id.Kind, id.ID)
	if err != nil {
		return nil, fmt.Errorf("loading earned badge ids: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, b := range ids {
		set[b] = true
	}
	return set, nil
}

// GrantBadge appends the badge to the earned set, reporting whether this
// call inserted it. A badge is never granted twice.
func (s *Store) GrantBadge(ctx context.Context, id identity.Identity, badgeID string, now time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO earned_badges (identity_kind, identity_id, badge_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_kind, identity_id, badge_id) DO NOTHING`,
		id.Kind, id.ID, badgeID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("granting badge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type earnedBadgeRow struct {
	BadgeID  string    `db:"badge_id"`
	EarnedAt time.Time `db:"earned_at"`
}

// EarnedBadges returns the identity's badges with definitions, oldest first.
// Rows whose badge ID no longer exists in the registry are skipped.
func (s *Store) EarnedBadges(ctx context.Context, id identity.Identity) ([]gamification.EarnedBadge, error) {
	var rows []earnedBadgeRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT badge_id, earned_at FROM earned_badges
		WHERE identity_kind = $1 AND identity_id = $2
		ORDER BY earned_at`,
		id.Kind, id.ID)
	if err != nil {
		return nil, fmt.Errorf("loading earned badges: %w", err)
	}

	out := make([]gamification.EarnedBadge, 0, len(rows))
	for _, r := range rows {
		def, ok := gamification.BadgeByID(r.BadgeID)
		if !ok {
			continue
		}
		out = append(out, gamification.EarnedBadge{Badge: def, EarnedAt: r.EarnedAt})
	}
	return out, nil
}
