package gamification

import "time"

// WeeklyGoal is the per-identity, per-week completion target. IsAchieved is
// a one-way latch: once true it never reverts, even if Completed is later
// adjusted downward.
type WeeklyGoal struct {
	WeekStart  string     `json:"weekStart"` // Monday, formatted as 2006-01-02
	Target     int        `json:"target"`
	Completed  int        `json:"completed"`
	IsAchieved bool       `json:"isAchieved"`
	AchievedAt *time.Time `json:"achievedAt,omitempty"`
}

// GoalProgress is the weekly-goal slice of a reward summary.
type GoalProgress struct {
	Completed  int  `json:"completed"`
	Target     int  `json:"target"`
	IsAchieved bool `json:"isAchieved"`
}

// WeekStart returns the most recent Monday at or before t, normalized to
// midnight UTC. Sunday counts as day 7 of the preceding week.
func WeekStart(t time.Time) time.Time {
	t = truncateToDay(t)
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return t.AddDate(0, 0, -(wd - 1))
}

// WeekKey formats the Monday anchor of the week containing t as the
// canonical per-week aggregate key.
func WeekKey(t time.Time) string {
	return WeekStart(t).Format("2006-01-02")
}
