package httpapi

import "github.com/sproutlearn/backend/internal/gamification"

type MessageType string

const (
	MsgRewardGranted MessageType = "reward_granted"
	MsgBadgeEarned   MessageType = "badge_earned"
	MsgLevelUp       MessageType = "level_up"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// RewardGrantedPayload is pushed after every rewarding completion event.
type RewardGrantedPayload struct {
	Identity string                     `json:"identity"`
	Reward   gamification.RewardSummary `json:"reward"`
}

// BadgeEarnedPayload is pushed once per newly earned badge.
type BadgeEarnedPayload struct {
	Identity string             `json:"identity"`
	Badge    gamification.Badge `json:"badge"`
}

// LevelUpPayload is pushed when an event raises the identity's level.
type LevelUpPayload struct {
	Identity string                     `json:"identity"`
	Level    gamification.LevelProgress `json:"level"`
}
