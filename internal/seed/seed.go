// Package seed populates a fresh database with a demo identity, curriculum,
// and action items so the API can be exercised without the onboarding
// pipeline.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sproutlearn/backend/internal/gamification"
	"github.com/sproutlearn/backend/internal/identity"
	"github.com/sproutlearn/backend/internal/plan"
	"github.com/sproutlearn/backend/internal/store"
)

// DemoUserID is the fixed identity the demo data belongs to.
const DemoUserID = "demo"

// Run inserts the demo catalog if the demo identity has no curriculum yet.
func Run(ctx context.Context, s *store.Store, weeklyTarget int, now time.Time) error {
	id := identity.User(DemoUserID)

	existing, err := s.LatestCurriculum(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	cur := plan.Curriculum{
		ID:        uuid.NewString(),
		Title:     "린 스타트업 기초",
		CreatedAt: now,
	}
	if err := s.InsertCurriculum(ctx, id, cur); err != nil {
		return err
	}

	modules := []struct {
		title    string
		contents []plan.Content
	}{
		{
			title: "아이디어 검증",
			contents: []plan.Content{
				{Title: "문제 정의하기", Type: "article", Duration: "10분"},
				{Title: "고객 인터뷰 설계", Type: "video", Duration: "15분"},
				{Title: "가설 수립 워크시트", Type: "worksheet", Duration: "20분"},
			},
		},
		{
			title: "MVP 만들기",
			contents: []plan.Content{
				{Title: "MVP의 범위 정하기", Type: "article", Duration: "10분"},
				{Title: "노코드 프로토타입", Type: "video", Duration: "25분"},
			},
		},
	}
	for mi, m := range modules {
		mod := plan.Module{ID: uuid.NewString(), Title: m.title, OrderIndex: mi}
		if err := s.InsertModule(ctx, cur.ID, mod); err != nil {
			return err
		}
		for ci, c := range m.contents {
			c.ID = uuid.NewString()
			c.OrderIndex = ci
			if err := s.InsertContent(ctx, mod.ID, c); err != nil {
				return err
			}
		}
	}

	actions := []plan.Action{
		{Title: "경쟁사 3곳 조사하기", Kind: "research", EstimatedMinutes: 20},
		{Title: "잠재 고객 1명 인터뷰", Kind: "interview", EstimatedMinutes: 30},
		{Title: "아이디어 한 줄 요약 작성", Kind: "writing", EstimatedMinutes: 10},
	}
	for i, a := range actions {
		a.ID = uuid.NewString()
		a.OrderIndex = i
		if err := s.InsertAction(ctx, id, a); err != nil {
			return err
		}
	}

	if _, err := s.CreateWeeklyGoal(ctx, id, gamification.WeekKey(now), weeklyTarget); err != nil {
		return fmt.Errorf("seeding weekly goal: %w", err)
	}
	return nil
}
