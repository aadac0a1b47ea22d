package gamification

// LevelDefinition is one row of the static level table.
type LevelDefinition struct {
	Level      int    `json:"level"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	RequiredXP int    `json:"requiredXp"`
}

// levelTable is ordered ascending by RequiredXP. The first entry must start
// at 0 XP so every non-negative total resolves to a level.
var levelTable = []LevelDefinition{
	{Level: 1, Name: "씨앗", Icon: "🌱", RequiredXP: 0},
	{Level: 2, Name: "새싹", Icon: "🌿", RequiredXP: 100},
	{Level: 3, Name: "도전자", Icon: "🔥", RequiredXP: 300},
	{Level: 4, Name: "빌더", Icon: "🔨", RequiredXP: 600},
	{Level: 5, Name: "메이커", Icon: "🚀", RequiredXP: 1000},
	{Level: 6, Name: "파운더", Icon: "💼", RequiredXP: 1500},
	{Level: 7, Name: "유니콘", Icon: "🦄", RequiredXP: 2500},
}

// Levels returns a copy of the full level table.
func Levels() []LevelDefinition {
	out := make([]LevelDefinition, len(levelTable))
	copy(out, levelTable)
	return out
}

// LevelProgress describes where a given XP total sits in the level table.
type LevelProgress struct {
	Level       int    `json:"level"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	CurrentXP   int    `json:"currentXp"`   // XP earned within the current level
	NextLevelXP int    `json:"nextLevelXp"` // XP gap between current and next level
	Progress    int    `json:"progress"`    // percentage within current level, 0-100
}

// ResolveLevel maps a cumulative XP total to its level and within-level
// progress. It picks the highest table entry whose RequiredXP <= totalXP.
// At the top level the gap to the next level is zero and progress saturates
// at 100; it never exceeds 100 and never goes below 0.
func ResolveLevel(totalXP int) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}

	cur := levelTable[0]
	next := cur
	for i := len(levelTable) - 1; i >= 0; i-- {
		if levelTable[i].RequiredXP <= totalXP {
			cur = levelTable[i]
			if i+1 < len(levelTable) {
				next = levelTable[i+1]
			} else {
				next = cur
			}
			break
		}
	}

	currentXP := totalXP - cur.RequiredXP
	gap := next.RequiredXP - cur.RequiredXP

	progress := 100
	if gap > 0 {
		progress = (currentXP*100 + gap/2) / gap
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
	}

	return LevelProgress{
		Level:       cur.Level,
		Name:        cur.Name,
		Icon:        cur.Icon,
		CurrentXP:   currentXP,
		NextLevelXP: gap,
		Progress:    progress,
	}
}
