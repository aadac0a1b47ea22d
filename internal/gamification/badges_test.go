package gamification

import "testing"

func TestEvaluateBadges_FirstStep(t *testing.T) {
	got := EvaluateBadges(nil, EventFacts{TotalCompletions: 1, Streak: 1})
	if len(got) != 1 {
		t.Fatalf("got %d badges, want 1", len(got))
	}
	if got[0].ID != "first_step" {
		t.Errorf("badge = %s, want first_step", got[0].ID)
	}
}

func TestEvaluateBadges_AlreadyEarnedSkipped(t *testing.T) {
	earned := map[string]bool{"first_step": true}
	got := EvaluateBadges(earned, EventFacts{TotalCompletions: 2, Streak: 2})
	if len(got) != 0 {
		t.Errorf("got %d badges, want 0: %v", len(got), got)
	}
}

func TestEvaluateBadges_MultipleInOneEvent(t *testing.T) {
	// A 7-day streak on the 10th completion grants week_warrior and
	// bookworm together, in registry order.
	earned := map[string]bool{"first_step": true}
	got := EvaluateBadges(earned, EventFacts{TotalCompletions: 10, Streak: 7})
	if len(got) != 2 {
		t.Fatalf("got %d badges, want 2: %v", len(got), got)
	}
	if got[0].ID != "week_warrior" || got[1].ID != "bookworm" {
		t.Errorf("badges = [%s %s], want [week_warrior bookworm]", got[0].ID, got[1].ID)
	}
}

func TestEvaluateBadges_GoalGetter(t *testing.T) {
	earned := map[string]bool{"first_step": true}
	got := EvaluateBadges(earned, EventFacts{TotalCompletions: 3, Streak: 1, WeeklyGoalAchieved: true})
	if len(got) != 1 || got[0].ID != "goal_getter" {
		t.Fatalf("got %v, want [goal_getter]", got)
	}
}

func TestBadgeCatalog(t *testing.T) {
	catalog := BadgeCatalog()
	if len(catalog) == 0 {
		t.Fatal("empty badge catalog")
	}
	seen := make(map[string]bool)
	for _, b := range catalog {
		if b.ID == "" || b.Name == "" {
			t.Errorf("badge missing id or name: %+v", b)
		}
		if b.XP <= 0 {
			t.Errorf("badge %s has non-positive XP", b.ID)
		}
		if b.Condition == nil {
			t.Errorf("badge %s has no condition", b.ID)
		}
		if seen[b.ID] {
			t.Errorf("duplicate badge id %s", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestBadgeByID(t *testing.T) {
	if _, ok := BadgeByID("first_step"); !ok {
		t.Error("first_step not found")
	}
	if _, ok := BadgeByID("no_such_badge"); ok {
		t.Error("unexpected badge found")
	}
}
