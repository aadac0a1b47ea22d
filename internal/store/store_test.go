package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sproutlearn/backend/internal/gamification"
	"github.com/sproutlearn/backend/internal/identity"
	"github.com/sproutlearn/backend/internal/plan"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return s
}

var (
	testID  = identity.User("u1")
	testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMarkContentCompleted_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.MarkContentCompleted(ctx, testID, "c1", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Error("first completion not reported as new")
	}

	again, err := s.MarkContentCompleted(ctx, testID, "c1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("duplicate completion reported as new")
	}

	// A different identity completing the same content is independent.
	other, err := s.MarkContentCompleted(ctx, identity.Anonymous("sess1"), "c1", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !other {
		t.Error("other identity's completion blocked")
	}

	n, err := s.TotalCompletions(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("TotalCompletions = %d, want 1", n)
	}
}

func TestStreak_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.Streak(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Current != 0 || empty.LastActivity != nil {
		t.Errorf("fresh streak = %+v, want zero value", empty)
	}

	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	want := gamification.StreakState{Current: 4, Longest: 9, LastActivity: &day}
	if err := s.SaveStreak(ctx, testID, want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Streak(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Current != 4 || got.Longest != 9 {
		t.Errorf("streak = %+v, want current=4 longest=9", got)
	}
	if got.LastActivity == nil || !got.LastActivity.Equal(day) {
		t.Errorf("LastActivity = %v, want %v", got.LastActivity, day)
	}

	// Upsert path.
	want.Current = 5
	if err := s.SaveStreak(ctx, testID, want); err != nil {
		t.Fatal(err)
	}
	got, err = s.Streak(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Current != 5 {
		t.Errorf("after upsert current = %d, want 5", got.Current)
	}
}

func TestLevelState_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh, err := s.LevelState(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.TotalXP != 0 || fresh.CurrentLevel != 1 {
		t.Errorf("fresh level state = %+v, want {0 1}", fresh)
	}

	if err := s.SaveLevelState(ctx, testID, gamification.LevelState{TotalXP: 150, CurrentLevel: 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveLevelState(ctx, testID, gamification.LevelState{TotalXP: 320, CurrentLevel: 3}); err != nil {
		t.Fatal(err)
	}

	got, err := s.LevelState(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalXP != 320 || got.CurrentLevel != 3 {
		t.Errorf("level state = %+v, want {320 3}", got)
	}
}

func TestRecordDailyActivity_Counts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := s.RecordDailyActivity(ctx, testID, "2026-03-04")
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("count = %d, want %d", n, want)
		}
	}

	// A different day starts over.
	n, err := s.RecordDailyActivity(ctx, testID, "2026-03-05")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("new day count = %d, want 1", n)
	}

	if err := s.AddDailyXP(ctx, testID, "2026-03-04", 35); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDailyXP(ctx, testID, "2026-03-04", 10); err != nil {
		t.Fatal(err)
	}
	var xp int
	if err := s.db.Get(&xp, `SELECT xp_earned FROM daily_activity WHERE identity_kind = $1 AND identity_id = $2 AND day = $3`,
		testID.Kind, testID.ID, "2026-03-04"); err != nil {
		t.Fatal(err)
	}
	if xp != 45 {
		t.Errorf("xp_earned = %d, want 45", xp)
	}
}

func TestWeeklyGoal_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	week := "2026-03-02"

	missing, err := s.WeeklyGoal(ctx, testID, week)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("goal before creation = %+v, want nil", missing)
	}

	created, err := s.CreateWeeklyGoal(ctx, testID, week, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("goal creation not reported")
	}
	again, err := s.CreateWeeklyGoal(ctx, testID, week, 7)
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("second creation overwrote the goal")
	}

	g, err := s.WeeklyGoal(ctx, testID, week)
	if err != nil {
		t.Fatal(err)
	}
	if g.Target != 5 || g.Completed != 0 || g.IsAchieved {
		t.Errorf("goal = %+v, want target 5, untouched", g)
	}

	for want := 1; want <= 2; want++ {
		n, err := s.IncrementWeeklyGoal(ctx, testID, week)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("completed = %d, want %d", n, want)
		}
	}
}

func TestLatchWeeklyGoal_OneWay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	week := "2026-03-02"

	if _, err := s.CreateWeeklyGoal(ctx, testID, week, 1); err != nil {
		t.Fatal(err)
	}

	flipped, err := s.LatchWeeklyGoal(ctx, testID, week, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !flipped {
		t.Error("first latch did not flip")
	}

	again, err := s.LatchWeeklyGoal(ctx, testID, week, testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("second latch flipped again")
	}

	g, err := s.WeeklyGoal(ctx, testID, week)
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsAchieved || g.AchievedAt == nil {
		t.Errorf("goal = %+v, want achieved with timestamp", g)
	}
	if !g.AchievedAt.Equal(testNow) {
		t.Errorf("AchievedAt = %v, want first latch time %v", g.AchievedAt, testNow)
	}
}

func TestRollForwardWeeklyGoals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	prev, next := "2026-02-23", "2026-03-02"

	other := identity.Anonymous("sess1")
	if _, err := s.CreateWeeklyGoal(ctx, testID, prev, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWeeklyGoal(ctx, other, prev, 3); err != nil {
		t.Fatal(err)
	}
	// One identity already holds a goal for the new week.
	if _, err := s.CreateWeeklyGoal(ctx, other, next, 9); err != nil {
		t.Fatal(err)
	}

	created, err := s.RollForwardWeeklyGoals(ctx, prev, next)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}

	g, err := s.WeeklyGoal(ctx, testID, next)
	if err != nil {
		t.Fatal(err)
	}
	if g == nil || g.Target != 5 || g.Completed != 0 || g.IsAchieved {
		t.Errorf("rolled goal = %+v, want fresh target-5 goal", g)
	}

	kept, err := s.WeeklyGoal(ctx, other, next)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Target != 9 {
		t.Errorf("existing goal overwritten: %+v", kept)
	}

	// Rerun is a no-op.
	created, err = s.RollForwardWeeklyGoals(ctx, prev, next)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("rerun created = %d, want 0", created)
	}
}

func TestGrantBadge_Once(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	granted, err := s.GrantBadge(ctx, testID, "first_step", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !granted {
		t.Error("first grant not reported")
	}
	again, err := s.GrantBadge(ctx, testID, "first_step", testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("second grant reported as new")
	}

	ids, err := s.EarnedBadgeIDs(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || !ids["first_step"] {
		t.Errorf("EarnedBadgeIDs = %v, want {first_step}", ids)
	}
}

func TestEarnedBadges_JoinsRegistry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GrantBadge(ctx, testID, "first_step", testNow); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GrantBadge(ctx, testID, "week_warrior", testNow.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	// A badge that was later removed from the registry.
	if _, err := s.GrantBadge(ctx, testID, "retired_badge", testNow.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	badges, err := s.EarnedBadges(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if len(badges) != 2 {
		t.Fatalf("len = %d, want 2 (unknown id skipped)", len(badges))
	}
	if badges[0].ID != "first_step" || badges[1].ID != "week_warrior" {
		t.Errorf("order = %s, %s; want oldest first", badges[0].ID, badges[1].ID)
	}
	if badges[0].Name == "" || badges[0].XP == 0 {
		t.Errorf("definition not joined: %+v", badges[0])
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(txs gamification.Store) error {
		if _, err := txs.MarkContentCompleted(ctx, testID, "c1", testNow); err != nil {
			return err
		}
		if err := txs.SaveLevelState(ctx, testID, gamification.LevelState{TotalXP: 10, CurrentLevel: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	n, err := s.TotalCompletions(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("completion survived rollback: count = %d", n)
	}
	ls, err := s.LevelState(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if ls.TotalXP != 0 {
		t.Errorf("level state survived rollback: %+v", ls)
	}
}

func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	old := plan.Curriculum{ID: "cur-old", Title: "이전 커리큘럼", CreatedAt: testNow.Add(-48 * time.Hour)}
	cur := plan.Curriculum{ID: "cur1", Title: "린 스타트업 기초", CreatedAt: testNow}
	if err := s.InsertCurriculum(ctx, testID, old); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertCurriculum(ctx, testID, cur); err != nil {
		t.Fatal(err)
	}

	modules := []plan.Module{
		{ID: "m2", Title: "MVP 만들기", OrderIndex: 1},
		{ID: "m1", Title: "아이디어 검증", OrderIndex: 0},
	}
	for _, m := range modules {
		if err := s.InsertModule(ctx, "cur1", m); err != nil {
			t.Fatal(err)
		}
	}
	contents := []plan.Content{
		{ID: "c2", Title: "고객 인터뷰 방법", Type: "article", Duration: "7분", OrderIndex: 1},
		{ID: "c1", Title: "문제 정의하기", Type: "video", Duration: "10분", OrderIndex: 0},
	}
	for _, c := range contents {
		if err := s.InsertContent(ctx, "m1", c); err != nil {
			t.Fatal(err)
		}
	}
	actions := []plan.Action{
		{ID: "a2", Title: "경쟁사 조사", Kind: "research", EstimatedMinutes: 15, OrderIndex: 1},
		{ID: "a1", Title: "고객 인터뷰", Kind: "interview", EstimatedMinutes: 20, OrderIndex: 0},
	}
	for _, a := range actions {
		if err := s.InsertAction(ctx, testID, a); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCatalog_ReadsOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	cur, err := s.LatestCurriculum(ctx, testID)
	if err != nil {
		t.Fatal(err)
	}
	if cur == nil || cur.ID != "cur1" {
		t.Fatalf("LatestCurriculum = %+v, want cur1", cur)
	}

	none, err := s.LatestCurriculum(ctx, identity.User("nobody"))
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("curriculum for unknown identity = %+v", none)
	}

	modules, err := s.Modules(ctx, "cur1")
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 2 || modules[0].ID != "m1" || modules[1].ID != "m2" {
		t.Errorf("modules = %+v, want m1 then m2", modules)
	}

	contents, err := s.Contents(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 2 || contents[0].ID != "c1" {
		t.Errorf("contents = %+v, want c1 first", contents)
	}

	actions, err := s.ActiveActions(ctx, testID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 || actions[0].ID != "a1" {
		t.Errorf("actions = %+v, want a1 first", actions)
	}

	one, err := s.ActiveActions(ctx, testID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 {
		t.Errorf("limited actions = %+v, want 1", one)
	}
}

func TestActiveActions_SkipsInactive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	if _, err := s.db.Exec(`UPDATE action_items SET is_active = FALSE WHERE id = 'a1'`); err != nil {
		t.Fatal(err)
	}

	actions, err := s.ActiveActions(ctx, testID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 || actions[0].ID != "a2" {
		t.Errorf("actions = %+v, want only a2", actions)
	}
}

func testPlan(date string) *plan.Plan {
	return &plan.Plan{
		ID:               "p1",
		Date:             date,
		EstimatedMinutes: 37,
		Status:           plan.StatusPending,
		Items: []plan.Item{
			{ID: "i1", Type: plan.TypeContent, RefID: "c1", Order: 0, Status: plan.StatusPending, Title: "문제 정의하기", Minutes: 10},
			{ID: "i2", Type: plan.TypeContent, RefID: "c2", Order: 1, Status: plan.StatusPending, Title: "고객 인터뷰 방법", Minutes: 7},
			{ID: "i3", Type: plan.TypeAction, RefID: "a1", Order: 2, Status: plan.StatusPending, Title: "고객 인터뷰", Minutes: 20, ActionKind: "interview"},
		},
	}
}

func TestSavePlan_InsertIfAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	date := "2026-03-04"

	inserted, err := s.SavePlan(ctx, testID, testPlan(date))
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("first save not reported as inserted")
	}

	rival := testPlan(date)
	rival.ID = "p2"
	rival.Items[0].ID = "x1"
	rival.Items[1].ID = "x2"
	rival.Items[2].ID = "x3"
	inserted, err = s.SavePlan(ctx, testID, rival)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("losing save reported as inserted")
	}

	got, err := s.PlanByDate(ctx, testID, date)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "p1" {
		t.Fatalf("plan = %+v, want p1", got)
	}
	if len(got.Items) != 3 {
		t.Fatalf("items = %d, want 3 (loser's items not written)", len(got.Items))
	}
	for i, it := range got.Items {
		if it.Order != i {
			t.Errorf("item %d out of order: %+v", i, it)
		}
	}

	missing, err := s.PlanByDate(ctx, testID, "2026-03-05")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("plan for other date = %+v, want nil", missing)
	}
}

func TestCompleteItem_Transitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	date := "2026-03-04"

	if _, err := s.SavePlan(ctx, testID, testPlan(date)); err != nil {
		t.Fatal(err)
	}

	item, err := s.CompleteItem(ctx, testID, date, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != plan.StatusCompleted {
		t.Errorf("item status = %q, want completed", item.Status)
	}

	// Already completed: no-op success.
	item, err = s.CompleteItem(ctx, testID, date, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != plan.StatusCompleted {
		t.Errorf("repeat completion status = %q", item.Status)
	}

	p, err := s.PlanByDate(ctx, testID, date)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != plan.StatusPending {
		t.Errorf("plan status = %q, want pending while items remain", p.Status)
	}

	if _, err := s.CompleteItem(ctx, testID, date, "i2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompleteItem(ctx, testID, date, "i3"); err != nil {
		t.Fatal(err)
	}

	p, err = s.PlanByDate(ctx, testID, date)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != plan.StatusCompleted {
		t.Errorf("plan status = %q, want completed", p.Status)
	}
}

func TestCompleteItem_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	date := "2026-03-04"

	if _, err := s.CompleteItem(ctx, testID, date, "i1"); !errors.Is(err, plan.ErrItemNotFound) {
		t.Errorf("no plan: err = %v, want ErrItemNotFound", err)
	}

	if _, err := s.SavePlan(ctx, testID, testPlan(date)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompleteItem(ctx, testID, date, "nope"); !errors.Is(err, plan.ErrItemNotFound) {
		t.Errorf("unknown item: err = %v, want ErrItemNotFound", err)
	}
}
