package gamification

import "testing"

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name         string
		totalXP      int
		wantLevel    int
		wantProgress int
	}{
		{"zero", 0, 1, 0},
		{"mid_first_level", 50, 1, 50},
		{"exact_threshold", 100, 2, 0},
		{"mid_second_level", 200, 2, 50},
		{"just_below_threshold", 299, 2, 100}, // 199/200 rounds to 100
		{"third_level", 300, 3, 0},
		{"top_level", 2500, 7, 100},
		{"beyond_top", 99999, 7, 100},
		{"negative_clamped", -10, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveLevel(tt.totalXP)
			if got.Level != tt.wantLevel {
				t.Errorf("ResolveLevel(%d).Level = %d, want %d", tt.totalXP, got.Level, tt.wantLevel)
			}
			if got.Progress != tt.wantProgress {
				t.Errorf("ResolveLevel(%d).Progress = %d, want %d", tt.totalXP, got.Progress, tt.wantProgress)
			}
		})
	}
}

func TestResolveLevel_Monotonic(t *testing.T) {
	prev := 0
	for xp := 0; xp <= 3000; xp += 7 {
		got := ResolveLevel(xp)
		if got.Level < prev {
			t.Fatalf("level decreased at xp=%d: %d -> %d", xp, prev, got.Level)
		}
		if got.Progress < 0 || got.Progress > 100 {
			t.Fatalf("progress out of range at xp=%d: %d", xp, got.Progress)
		}
		prev = got.Level
	}
}

func TestResolveLevel_CurrentXPWithinLevel(t *testing.T) {
	got := ResolveLevel(250)
	if got.Level != 2 {
		t.Fatalf("Level = %d, want 2", got.Level)
	}
	if got.CurrentXP != 150 {
		t.Errorf("CurrentXP = %d, want 150", got.CurrentXP)
	}
	if got.NextLevelXP != 200 {
		t.Errorf("NextLevelXP = %d, want 200", got.NextLevelXP)
	}
}

func TestLevels_TableOrdered(t *testing.T) {
	levels := Levels()
	if len(levels) == 0 {
		t.Fatal("empty level table")
	}
	if levels[0].RequiredXP != 0 {
		t.Errorf("first level requires %d XP, want 0", levels[0].RequiredXP)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].RequiredXP <= levels[i-1].RequiredXP {
			t.Errorf("level table not strictly ascending at index %d", i)
		}
		if levels[i].Level != levels[i-1].Level+1 {
			t.Errorf("level numbers not consecutive at index %d", i)
		}
	}
}
