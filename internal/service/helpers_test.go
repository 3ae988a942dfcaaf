package service

import (
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/testutil"

	"gorm.io/gorm"
)

type fixture struct {
	db           *gorm.DB
	interactions *InteractionService
	timeTracking *TimeTrackingService
	progress     *ProgressService
	quiz         *QuizService
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)

	f := &fixture{db: db, now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	content := repository.NewContentRepository(db)
	f.interactions = NewInteractionService(db, repository.NewInteractionRepository(db), content, nil, 3)

	f.timeTracking = NewTimeTrackingService(db, repository.NewTimeTrackingRepository(db), content, config.DefaultTimeTracking(), 3)
	f.timeTracking.Now = clock

	f.progress = NewProgressService(db,
		repository.NewLearningPathRepository(db),
		repository.NewProgressRepository(db),
		repository.NewAchievementRepository(db),
		repository.NewQuizRepository(db),
		config.DefaultProgress(),
	)
	f.progress.Now = clock
	f.quiz = NewQuizService(f.progress)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func intPtr(v int) *int { return &v }
