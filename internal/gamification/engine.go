package gamification

import (
	"context"
	"errors"
	"time"

	"github.com/sproutlearn/backend/internal/identity"
)

// ErrInvalidIdentity is returned when an operation is attempted without a
// resolved identity key.
var ErrInvalidIdentity = errors.New("invalid identity")

// ErrMissingContent is returned when a completion event carries no content ID.
var ErrMissingContent = errors.New("missing content id")

// StreakState is the persisted per-identity streak aggregate.
// Invariant: Longest >= Current.
type StreakState struct {
	Current      int        `json:"currentStreak"`
	Longest      int        `json:"longestStreak"`
	LastActivity *time.Time `json:"lastActivityDate,omitempty"`
}

// LevelState is the persisted per-identity XP aggregate. CurrentLevel must
// always equal ResolveLevel(TotalXP).Level after a write; a stored level that
// lags behind TotalXP signals an un-applied level-up.
type LevelState struct {
	TotalXP      int `json:"totalXp"`
	CurrentLevel int `json:"currentLevel"`
}

// EarnedBadge pairs a badge definition with its grant timestamp.
type EarnedBadge struct {
	Badge
	EarnedAt time.Time `json:"earnedAt"`
}

// Store is the persistence surface the engine reconciles against. Every
// mutation must be independently idempotent: completion marks and badge
// grants are insert-if-absent, the weekly-goal latch is a conditional
// false->true update. RunInTx runs fn against a transactional view so one
// completion event commits or rolls back as a unit.
type Store interface {
	RunInTx(ctx context.Context, fn func(Store) error) error

	// MarkContentCompleted records the completion marker and reports whether
	// it was newly inserted. ok=false means this content was already
	// completed by this identity.
	MarkContentCompleted(ctx context.Context, id identity.Identity, contentID string, now time.Time) (bool, error)
	TotalCompletions(ctx context.Context, id identity.Identity) (int, error)

	Streak(ctx context.Context, id identity.Identity) (StreakState, error)
	SaveStreak(ctx context.Context, id identity.Identity, st StreakState) error

	LevelState(ctx context.Context, id identity.Identity) (LevelState, error)
	SaveLevelState(ctx context.Context, id identity.Identity, ls LevelState) error

	// RecordDailyActivity increments the per-day completion counter and
	// returns the count after the increment; 1 means first event of the day.
	RecordDailyActivity(ctx context.Context, id identity.Identity, day string) (int, error)
	AddDailyXP(ctx context.Context, id identity.Identity, day string, xp int) error

	// WeeklyGoal returns nil when no goal exists for the identity+week.
	WeeklyGoal(ctx context.Context, id identity.Identity, weekStart string) (*WeeklyGoal, error)
	// IncrementWeeklyGoal bumps the completion counter and returns the new count.
	IncrementWeeklyGoal(ctx context.Context, id identity.Identity, weekStart string) (int, error)
	// LatchWeeklyGoal flips IsAchieved false->true and reports whether this
	// call performed the flip. Repeat calls return false.
	LatchWeeklyGoal(ctx context.Context, id identity.Identity, weekStart string, now time.Time) (bool, error)

	EarnedBadgeIDs(ctx context.Context, id identity.Identity) (map[string]bool, error)
	// GrantBadge inserts the badge into the earned set and reports whether
	// it was newly granted.
	GrantBadge(ctx context.Context, id identity.Identity, badgeID string, now time.Time) (bool, error)
	EarnedBadges(ctx context.Context, id identity.Identity) ([]EarnedBadge, error)
}

// RewardSummary is the observable outcome of one completion event. A
// duplicate completion yields the zero summary with Duplicate set.
type RewardSummary struct {
	XPEarned      int            `json:"xpEarned"`
	XPBreakdown   []XPEntry      `json:"xpBreakdown"`
	StreakUpdated bool           `json:"streakUpdated"`
	NewStreak     int            `json:"newStreak"`
	LevelUp       bool           `json:"levelUp"`
	NewLevel      *LevelProgress `json:"newLevel,omitempty"`
	BadgesEarned  []Badge        `json:"badgesEarned,omitempty"`
	GoalProgress  *GoalProgress  `json:"goalProgress,omitempty"`
	Duplicate     bool           `json:"duplicate,omitempty"`
}

// HeadlineBadge returns the first badge granted in this event, nil when none.
func (r *RewardSummary) HeadlineBadge() *Badge {
	if len(r.BadgesEarned) == 0 {
		return nil
	}
	return &r.BadgesEarned[0]
}

// StatsSummary is the read-side aggregate snapshot for an identity.
type StatsSummary struct {
	Level  LevelProgress `json:"level"`
	Streak StreakState   `json:"streak"`
	Goal   *WeeklyGoal   `json:"weeklyGoal,omitempty"`
	Badges []EarnedBadge `json:"badges"`
}

// Engine reconciles one learning event against every gamification aggregate.
type Engine struct {
	store Store
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// CompleteContent applies a content-completion event for the identity at the
// injected time now. It is idempotent per (identity, contentID): the second
// and later calls are no-op successes with an empty, Duplicate-flagged
// summary. All writes happen inside one store transaction.
func (e *Engine) CompleteContent(ctx context.Context, id identity.Identity, contentID string, now time.Time) (RewardSummary, error) {
	if !id.Valid() {
		return RewardSummary{}, ErrInvalidIdentity
	}
	if contentID == "" {
		return RewardSummary{}, ErrMissingContent
	}

	var summary RewardSummary
	err := e.store.RunInTx(ctx, func(s Store) error {
		first, err := s.MarkContentCompleted(ctx, id, contentID, now)
		if err != nil {
			return err
		}
		if !first {
			summary = RewardSummary{Duplicate: true}
			return nil
		}

		breakdown := []XPEntry{{Reason: ReasonContentComplete, Amount: XPContentComplete}}

		// Streak.
		streak, err := s.Streak(ctx, id)
		if err != nil {
			return err
		}
		res := EvaluateStreak(now, streak.LastActivity, streak.Current)
		if res.ShouldUpdate {
			day := truncateToDay(now)
			streak.Current = res.NewStreak
			if res.NewStreak > streak.Longest {
				streak.Longest = res.NewStreak
			}
			streak.LastActivity = &day
			if err := s.SaveStreak(ctx, id, streak); err != nil {
				return err
			}
			if bonus := streakMilestoneXP(res.NewStreak); bonus > 0 {
				breakdown = append(breakdown, XPEntry{Reason: ReasonStreakMilestone, Amount: bonus})
			}
		}
		summary.StreakUpdated = res.ShouldUpdate
		summary.NewStreak = res.NewStreak

		// Daily activity; the first completion of the day earns a bonus.
		contentsToday, err := s.RecordDailyActivity(ctx, id, DayKey(now))
		if err != nil {
			return err
		}
		if contentsToday == 1 {
			breakdown = append(breakdown, XPEntry{Reason: ReasonFirstOfDay, Amount: XPFirstOfDay})
		}

		// Weekly goal. No goal row means no goal tracking for this event;
		// goal creation never happens in the reward path.
		weekKey := WeekKey(now)
		goal, err := s.WeeklyGoal(ctx, id, weekKey)
		if err != nil {
			return err
		}
		goalLatched := false
		if goal != nil {
			completed, err := s.IncrementWeeklyGoal(ctx, id, weekKey)
			if err != nil {
				return err
			}
			if !goal.IsAchieved && completed >= goal.Target {
				goalLatched, err = s.LatchWeeklyGoal(ctx, id, weekKey, now)
				if err != nil {
					return err
				}
				if goalLatched {
					breakdown = append(breakdown, XPEntry{Reason: ReasonWeeklyGoal, Amount: XPWeeklyGoal})
				}
			}
			summary.GoalProgress = &GoalProgress{
				Completed:  completed,
				Target:     goal.Target,
				IsAchieved: goal.IsAchieved || goalLatched,
			}
		}

		// Badges.
		total, err := s.TotalCompletions(ctx, id)
		if err != nil {
			return err
		}
		earned, err := s.EarnedBadgeIDs(ctx, id)
		if err != nil {
			return err
		}
		facts := EventFacts{
			Streak:             res.NewStreak,
			TotalCompletions:   total,
			WeeklyGoalAchieved: goalLatched,
		}
		for _, b := range EvaluateBadges(earned, facts) {
			granted, err := s.GrantBadge(ctx, id, b.ID, now)
			if err != nil {
				return err
			}
			if !granted {
				continue
			}
			summary.BadgesEarned = append(summary.BadgesEarned, b)
			breakdown = append(breakdown, XPEntry{Reason: b.Name, Amount: b.XP})
		}

		// Level. The level-up bonus is granted once per event even when the
		// new total crosses several thresholds at once.
		ls, err := s.LevelState(ctx, id)
		if err != nil {
			return err
		}
		prevLevel := ls.CurrentLevel
		if prevLevel < 1 {
			prevLevel = 1
		}
		xp := 0
		for _, entry := range breakdown {
			xp += entry.Amount
		}
		newTotal := ls.TotalXP + xp
		if ResolveLevel(newTotal).Level > prevLevel {
			breakdown = append(breakdown, XPEntry{Reason: ReasonLevelUp, Amount: XPLevelUp})
			xp += XPLevelUp
			newTotal += XPLevelUp
			summary.LevelUp = true
		}
		resolved := ResolveLevel(newTotal)
		if err := s.SaveLevelState(ctx, id, LevelState{TotalXP: newTotal, CurrentLevel: resolved.Level}); err != nil {
			return err
		}
		if summary.LevelUp {
			summary.NewLevel = &resolved
		}

		if err := s.AddDailyXP(ctx, id, DayKey(now), xp); err != nil {
			return err
		}

		summary.XPEarned = xp
		summary.XPBreakdown = breakdown
		return nil
	})
	if err != nil {
		return RewardSummary{}, err
	}
	return summary, nil
}

// Stats assembles the read-side snapshot for an identity at time now.
func (e *Engine) Stats(ctx context.Context, id identity.Identity, now time.Time) (StatsSummary, error) {
	if !id.Valid() {
		return StatsSummary{}, ErrInvalidIdentity
	}

	ls, err := e.store.LevelState(ctx, id)
	if err != nil {
		return StatsSummary{}, err
	}
	streak, err := e.store.Streak(ctx, id)
	if err != nil {
		return StatsSummary{}, err
	}
	goal, err := e.store.WeeklyGoal(ctx, id, WeekKey(now))
	if err != nil {
		return StatsSummary{}, err
	}
	badges, err := e.store.EarnedBadges(ctx, id)
	if err != nil {
		return StatsSummary{}, err
	}

	return StatsSummary{
		Level:  ResolveLevel(ls.TotalXP),
		Streak: streak,
		Goal:   goal,
		Badges: badges,
	}, nil
}
