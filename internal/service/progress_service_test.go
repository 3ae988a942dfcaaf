package service

import (
	"context"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOrResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ann")
	path := testutil.CreatePath(t, f.db, "go basics")
	second := testutil.CreateChapter(t, f.db, path.ID, 2)
	first := testutil.CreateChapter(t, f.db, path.ID, 1)

	res, err := f.progress.StartOrResume(ctx, user.ID, path.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotNil(t, res.CurrentChapterID)
	assert.Equal(t, first.ID, *res.CurrentChapterID)
	assert.Equal(t, 1, res.Progress.Level)
	assert.Equal(t, 1, res.Progress.CurrentStreak)

	cp, err := f.progress.Progress.FindChapterProgress(user.ID, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, cp)
	cp, err = f.progress.Progress.FindChapterProgress(user.ID, second.ID)
	require.NoError(t, err)
	assert.Nil(t, cp)

	res, err = f.progress.StartOrResume(ctx, user.ID, path.ID)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 1, res.Progress.CurrentStreak)

	var rows int64
	f.db.Model(&model.UserLearningPathProgress{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestStartOrResumeInactivePath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "ben")
	path := testutil.CreatePath(t, f.db, "retired")
	require.NoError(t, f.db.Model(path).Update("is_active", false).Error)

	_, err := f.progress.StartOrResume(ctx, user.ID, path.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = f.progress.StartOrResume(ctx, user.ID, 12345)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestChapterProgressWeighting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "cleo")
	path := testutil.CreatePath(t, f.db, "weights")

	withQuiz := testutil.CreateChapter(t, f.db, path.ID, 1)
	v1 := testutil.CreateVideo(t, f.db, withQuiz.ID, 1, 100)
	testutil.CreateVideo(t, f.db, withQuiz.ID, 2, 100)
	testutil.CreateQuiz(t, f.db, withQuiz.ID, 70, 3, 0)

	noQuiz := testutil.CreateChapter(t, f.db, path.ID, 2)
	v3 := testutil.CreateVideo(t, f.db, noQuiz.ID, 1, 100)
	testutil.CreateVideo(t, f.db, noQuiz.ID, 2, 100)

	_, err := f.progress.UpdateVideoProgress(ctx, user.ID, v1.ID, VideoProgressInput{WatchedSeconds: 100})
	require.NoError(t, err)
	_, err = f.progress.UpdateVideoProgress(ctx, user.ID, v3.ID, VideoProgressInput{WatchedSeconds: 100})
	require.NoError(t, err)

	view, err := f.progress.StartChapter(ctx, user.ID, withQuiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, view.ProgressPercentage)

	view, err = f.progress.StartChapter(ctx, user.ID, noQuiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, view.ProgressPercentage)
	assert.False(t, view.IsCompleted)
}

func TestVideoCompletionThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "dina")
	path := testutil.CreatePath(t, f.db, "threshold")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)
	video := testutil.CreateVideo(t, f.db, chapter.ID, 1, 100)
	testutil.CreateVideo(t, f.db, chapter.ID, 2, 100)

	res, err := f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 89})
	require.NoError(t, err)
	assert.False(t, res.IsCompleted)
	assert.Equal(t, 89, res.ProgressPercentage)
	assert.Equal(t, 0, res.ExperiencePoints)

	res, err = f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 90})
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
	assert.True(t, res.JustCompleted)
	assert.False(t, res.ChapterCompleted)
	assert.Equal(t, 10, res.ExperiencePoints)

	// 已完成的视频再次上报不重复发放经验
	res, err = f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 150})
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
	assert.False(t, res.JustCompleted)
	assert.Equal(t, 100, res.ProgressPercentage)
	assert.Equal(t, 10, res.ExperiencePoints)

	p, err := f.progress.Progress.FindPathProgress(user.ID, path.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, p.TotalTimeSeconds)

	_, err = f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: -5})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = f.progress.UpdateVideoProgress(ctx, user.ID, 9999, VideoProgressInput{WatchedSeconds: 5})
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestMarkCompletedAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "eli")
	path := testutil.CreatePath(t, f.db, "notes")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)
	video := testutil.CreateVideo(t, f.db, chapter.ID, 1, 600)
	testutil.CreateVideo(t, f.db, chapter.ID, 2, 600)

	notes := "watch again"
	res, err := f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 30, Notes: &notes, MarkCompleted: true})
	require.NoError(t, err)
	assert.True(t, res.JustCompleted)

	var vp model.UserVideoProgress
	require.NoError(t, f.db.Where("user_id = ? AND video_id = ?", user.ID, video.ID).First(&vp).Error)
	assert.Equal(t, "watch again", vp.Notes)
	assert.NotNil(t, vp.CompletedAt)
}

func TestChapterCompletionIgnoresBonusVideos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "fay")
	path := testutil.CreatePath(t, f.db, "bonus")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)
	lesson := testutil.CreateVideo(t, f.db, chapter.ID, 1, 100)
	bonus := testutil.CreateVideo(t, f.db, chapter.ID, 2, 100)
	require.NoError(t, f.db.Model(bonus).Update("video_type", model.VideoBonus).Error)

	res, err := f.progress.UpdateVideoProgress(ctx, user.ID, lesson.ID, VideoProgressInput{WatchedSeconds: 100})
	require.NoError(t, err)
	assert.True(t, res.ChapterCompleted)
	// 视频 10 + 章节 50
	assert.Equal(t, 60, res.ExperiencePoints)
	assert.Equal(t, 1, res.Level)

	cp, err := f.progress.Progress.FindChapterProgress(user.ID, chapter.ID)
	require.NoError(t, err)
	assert.True(t, cp.IsCompleted)
	assert.NotNil(t, cp.CompletedAt)
}

func TestChapterWithQuizWaitsForPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "gus")
	path := testutil.CreatePath(t, f.db, "quiz gate")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)
	video := testutil.CreateVideo(t, f.db, chapter.ID, 1, 100)
	testutil.CreateQuiz(t, f.db, chapter.ID, 70, 3, 0)

	res, err := f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 100})
	require.NoError(t, err)
	assert.True(t, res.JustCompleted)
	assert.False(t, res.ChapterCompleted)
}

func TestLevelUpUsesReloadedRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "hugo")
	path := testutil.CreatePath(t, f.db, "rewards")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)
	video := testutil.CreateVideo(t, f.db, chapter.ID, 1, 100)

	rewards := config.DefaultProgress()
	rewards.VideoXP = 250
	rewards.ChapterXP = 0
	f.progress.SetRewards(rewards)
	assert.Equal(t, 250, f.progress.Rewards().VideoXP)

	res, err := f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 150, res.ExperiencePoints)
}

func TestPrerequisitesLockAndUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "iris")
	path := testutil.CreatePath(t, f.db, "ordered")
	first := testutil.CreateChapter(t, f.db, path.ID, 1)
	second := testutil.CreateChapter(t, f.db, path.ID, 2)
	video := testutil.CreateVideo(t, f.db, first.ID, 1, 60)
	gated := testutil.CreateVideo(t, f.db, second.ID, 1, 60)
	require.NoError(t, f.db.Create(&model.PathChapterPrerequisite{ChapterID: second.ID, PrerequisiteID: first.ID}).Error)

	_, err := f.progress.StartChapter(ctx, user.ID, second.ID)
	assert.ErrorIs(t, err, util.ErrChapterLocked)
	_, err = f.progress.UpdateVideoProgress(ctx, user.ID, gated.ID, VideoProgressInput{WatchedSeconds: 60})
	assert.ErrorIs(t, err, util.ErrChapterLocked)

	res, err := f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 60})
	require.NoError(t, err)
	assert.True(t, res.ChapterCompleted)

	cp, err := f.progress.Progress.FindChapterProgress(user.ID, second.ID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.False(t, cp.IsCompleted)

	view, err := f.progress.StartChapter(ctx, user.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, view.ID)
}

func TestStreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "jade")
	path := testutil.CreatePath(t, f.db, "daily")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)

	streak := &model.Achievement{Name: "two days", AchievementType: model.AchievementStreak, RequiredValue: 2}
	require.NoError(t, f.db.Create(streak).Error)

	_, err := f.progress.StartOrResume(ctx, user.ID, path.ID)
	require.NoError(t, err)

	f.advance(24 * time.Hour)
	_, err = f.progress.StartChapter(ctx, user.ID, chapter.ID)
	require.NoError(t, err)

	p, err := f.progress.Progress.FindPathProgress(user.ID, path.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)

	earned, err := f.progress.Achievements.CountForUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), earned)

	f.advance(48 * time.Hour)
	_, err = f.progress.StartOrResume(ctx, user.ID, path.ID)
	require.NoError(t, err)

	p, err = f.progress.Progress.FindPathProgress(user.ID, path.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)

	var days int64
	f.db.Model(&model.LearningStreak{}).Where("user_id = ?", user.ID).Count(&days)
	assert.Equal(t, int64(3), days)
}

func TestChapterAchievementsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "kim")
	path := testutil.CreatePath(t, f.db, "stats")
	first := testutil.CreateChapter(t, f.db, path.ID, 1)
	second := testutil.CreateChapter(t, f.db, path.ID, 2)
	video := testutil.CreateVideo(t, f.db, first.ID, 1, 120)
	testutil.CreateVideo(t, f.db, second.ID, 1, 120)

	other := second.ID
	require.NoError(t, f.db.Create(&model.Achievement{Name: "first chapter", AchievementType: model.AchievementChapterComplete, RelatedChapterID: &first.ID}).Error)
	require.NoError(t, f.db.Create(&model.Achievement{Name: "second chapter", AchievementType: model.AchievementChapterComplete, RelatedChapterID: &other}).Error)

	_, err := f.progress.PathStats(ctx, user.ID, path.ID)
	assert.ErrorIs(t, err, util.ErrPathNotStarted)

	_, err = f.progress.UpdateVideoProgress(ctx, user.ID, video.ID, VideoProgressInput{WatchedSeconds: 120})
	require.NoError(t, err)

	stats, err := f.progress.PathStats(ctx, user.ID, path.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stats.TotalProgress)
	assert.Equal(t, 1, stats.CompletedChapters)
	assert.Equal(t, 2, stats.TotalChapters)
	assert.Equal(t, 120, stats.TotalTimeSpent)
	assert.Equal(t, 60, stats.ExperiencePoints)
	assert.Equal(t, 100, stats.NextLevelExperience)
	assert.Nil(t, stats.QuizAverage)
	require.Len(t, stats.RecentAchievements, 1)
	assert.Equal(t, "first chapter", stats.RecentAchievements[0].Name)

	overview, err := f.progress.Overview(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, overview.PathsStarted)
	assert.Equal(t, int64(1), overview.ChaptersCompleted)
	assert.Equal(t, int64(1), overview.AchievementsEarned)
	assert.Equal(t, 1, overview.CurrentStreak)
	assert.Len(t, overview.RecentCompletedVideos, 1)

	paths, err := f.progress.MyPaths(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, path.ID, paths[0].Path.ID)
	assert.Equal(t, 50, paths[0].ProgressPercentage)
}

func TestResetBrokenStreaks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "lee")
	path := testutil.CreatePath(t, f.db, "habit")

	_, err := f.progress.StartOrResume(ctx, user.ID, path.ID)
	require.NoError(t, err)

	n, err := f.progress.ResetBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 昨天学过，还没断
	f.advance(24 * time.Hour)
	n, err = f.progress.ResetBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.advance(24 * time.Hour)
	n, err = f.progress.ResetBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	p, err := f.progress.Progress.FindPathProgress(user.ID, path.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
}
