package gamification

// XP award amounts for learning events.
const (
	XPContentComplete = 10
	XPFirstOfDay      = 5
	XPLevelUp         = 50
	XPWeeklyGoal      = 50
)

// Breakdown reason strings surfaced to the client UI.
const (
	ReasonContentComplete = "콘텐츠 완료"
	ReasonFirstOfDay      = "오늘의 첫 학습"
	ReasonStreakMilestone = "연속 학습 보너스"
	ReasonLevelUp         = "레벨 업 보너스"
	ReasonWeeklyGoal      = "주간 목표 달성"
)

// XPEntry is one line of the per-event reward breakdown.
type XPEntry struct {
	Reason string `json:"reason"`
	Amount int    `json:"amount"`
}

// streakMilestoneXP returns the bonus awarded when a streak first reaches a
// milestone length, or 0 when the length is not a milestone. It is only
// consulted on days that extend the streak, so each milestone pays out at
// most once per run.
func streakMilestoneXP(streak int) int {
	switch streak {
	case 3:
		return 10
	case 7:
		return 30
	case 14:
		return 50
	case 30:
		return 100
	default:
		return 0
	}
}
