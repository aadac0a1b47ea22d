package gamification

// EventFacts is the snapshot of per-identity state a badge condition may
// inspect. It is assembled by the engine after the current completion has
// been counted, so TotalCompletions includes the triggering event.
type EventFacts struct {
	Streak             int
	TotalCompletions   int
	WeeklyGoalAchieved bool // the current event latched the weekly goal
}

// Badge describes a single append-only achievement. Condition reports
// whether the badge should be granted given the event facts; already-earned
// badges are filtered out before evaluation and never re-checked.
type Badge struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	XP   int    `json:"xp"`

	Condition func(EventFacts) bool `json:"-"`
}

// badgeRegistry is the fixed rule list, evaluated in order. The first badge
// granted in an event is the headline badge surfaced most prominently, but
// every newly earned badge is returned and rewarded.
var badgeRegistry = []Badge{
	{
		ID: "first_step", Name: "첫 걸음", Icon: "👣", XP: 20,
		Condition: func(f EventFacts) bool { return f.TotalCompletions >= 1 },
	},
	{
		ID: "week_warrior", Name: "7일의 전사", Icon: "⚔️", XP: 70,
		Condition: func(f EventFacts) bool { return f.Streak >= 7 },
	},
	{
		ID: "monthly_master", Name: "한 달 마스터", Icon: "🏆", XP: 200,
		Condition: func(f EventFacts) bool { return f.Streak >= 30 },
	},
	{
		ID: "bookworm", Name: "열공 모드", Icon: "📚", XP: 50,
		Condition: func(f EventFacts) bool { return f.TotalCompletions >= 10 },
	},
	{
		ID: "goal_getter", Name: "목표 달성러", Icon: "🎯", XP: 40,
		Condition: func(f EventFacts) bool { return f.WeeklyGoalAchieved },
	},
}

// BadgeCatalog returns a copy of the full badge rule list.
func BadgeCatalog() []Badge {
	out := make([]Badge, len(badgeRegistry))
	copy(out, badgeRegistry)
	return out
}

// BadgeByID looks up a badge definition, ok=false when unknown.
func BadgeByID(id string) (Badge, bool) {
	for _, b := range badgeRegistry {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// EvaluateBadges returns, in registry order, every not-yet-earned badge
// whose condition holds for the given facts.
func EvaluateBadges(earned map[string]bool, facts EventFacts) []Badge {
	var granted []Badge
	for _, b := range badgeRegistry {
		if earned[b.ID] {
			continue
		}
		if b.Condition(facts) {
			granted = append(granted, b)
		}
	}
	return granted
}
