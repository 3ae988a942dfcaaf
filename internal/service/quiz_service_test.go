package service

import (
	"context"
	"encoding/json"
	"testing"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type quizSetup struct {
	user    *model.User
	path    *model.LearningPath
	chapter *model.PathChapter
	quiz    *model.ChapterQuiz
}

func newQuizSetup(t *testing.T, f *fixture, maxAttempts int, correct ...int) quizSetup {
	t.Helper()
	user := testutil.CreateUser(t, f.db, "quizzer")
	path := testutil.CreatePath(t, f.db, "quiz path")
	chapter := testutil.CreateChapter(t, f.db, path.ID, 1)
	quiz := testutil.CreateQuiz(t, f.db, chapter.ID, 70, maxAttempts, correct...)
	return quizSetup{user: user, path: path, chapter: chapter, quiz: quiz}
}

func answersFor(quiz *model.ChapterQuiz, picks ...int) []AnswerInput {
	out := make([]AnswerInput, 0, len(picks))
	for i, p := range picks {
		out = append(out, AnswerInput{QuestionID: quiz.Questions[i].ID, SelectedIndex: intPtr(p)})
	}
	return out
}

func TestQuizPerfectSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 3, 0, 1, 2)
	require.NoError(t, f.db.Create(&model.Achievement{Name: "perfect", AchievementType: model.AchievementQuizPerfect}).Error)

	start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, start.AttemptNumber)
	require.Len(t, start.Questions, 3)
	assert.Equal(t, s.quiz.Questions[0].ID, start.Questions[0].ID)

	res, err := f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, 3, res.TotalPoints)
	assert.Equal(t, 3, res.EarnedPoints)
	assert.True(t, res.ChapterCompleted)
	require.Len(t, res.Results, 3)
	assert.Nil(t, res.Results[0].CorrectAnswerIndex)
	assert.Empty(t, res.Results[0].Explanation)

	cp, err := f.progress.Progress.FindChapterProgress(s.user.ID, s.chapter.ID)
	require.NoError(t, err)
	assert.True(t, cp.QuizPassed)
	assert.True(t, cp.IsCompleted)
	assert.Equal(t, 1, cp.QuizAttempts)
	require.NotNil(t, cp.QuizScore)
	assert.Equal(t, 100, *cp.QuizScore)

	p, err := f.progress.Progress.FindPathProgress(s.user.ID, s.path.ID)
	require.NoError(t, err)
	// 测验 30 + 章节 50
	assert.Equal(t, 80, p.ExperiencePoints)

	earned, err := f.progress.Achievements.CountForUser(s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), earned)

	stats, err := f.progress.PathStats(ctx, s.user.ID, s.path.ID)
	require.NoError(t, err)
	require.NotNil(t, stats.QuizAverage)
	assert.Equal(t, 100.0, *stats.QuizAverage)
}

func TestQuizFailingSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 3, 0, 1, 2)
	require.NoError(t, f.db.Create(&model.Achievement{Name: "perfect", AchievementType: model.AchievementQuizPerfect}).Error)

	start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)

	res, err := f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 67, res.Score)
	assert.False(t, res.Passed)
	assert.False(t, res.ChapterCompleted)
	assert.Equal(t, 2, res.EarnedPoints)

	cp, err := f.progress.Progress.FindChapterProgress(s.user.ID, s.chapter.ID)
	require.NoError(t, err)
	assert.False(t, cp.QuizPassed)
	assert.False(t, cp.IsCompleted)

	earned, err := f.progress.Achievements.CountForUser(s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), earned)

	_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0, 1, 2))
	assert.ErrorIs(t, err, util.ErrAttemptCompleted)

	second, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptNumber)
}

func TestQuizUnansweredQuestionsCountAgainst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 0, 0, 1, 2)

	start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)

	res, err := f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0))
	require.NoError(t, err)
	assert.Equal(t, 33, res.Score)
	assert.Equal(t, 3, res.TotalPoints)
	assert.Len(t, res.Results, 1)
}

func TestQuizAttemptLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 1, 0, 1)

	start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)

	_, err = f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	assert.ErrorIs(t, err, util.ErrAttemptInProgress)

	_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 3, 3))
	require.NoError(t, err)

	_, err = f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	assert.ErrorIs(t, err, util.ErrMaxAttemptsReached)
}

func TestQuizUnlimitedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 0, 2)

	for i := 1; i <= 4; i++ {
		start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
		require.NoError(t, err)
		assert.Equal(t, i, start.AttemptNumber)
		_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0))
		require.NoError(t, err)
	}
}

func TestQuizInvalidSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 3, 0, 1)

	start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)

	q0 := s.quiz.Questions[0].ID
	dup := []AnswerInput{{QuestionID: q0, SelectedIndex: intPtr(0)}, {QuestionID: q0, SelectedIndex: intPtr(1)}}
	_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, dup)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	unknown := []AnswerInput{{QuestionID: 99999, SelectedIndex: intPtr(0)}}
	_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, unknown)
	assert.ErrorIs(t, err, util.ErrNotFound)

	outOfRange := []AnswerInput{{QuestionID: q0, SelectedIndex: intPtr(4)}}
	_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, outOfRange)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	stranger := testutil.CreateUser(t, f.db, "stranger")
	_, err = f.quiz.SubmitAttempt(ctx, stranger.ID, start.AttemptID, answersFor(s.quiz, 0, 1))
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	_, err = f.quiz.SubmitAttempt(ctx, s.user.ID, "missing", answersFor(s.quiz, 0, 1))
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	// 失败的提交都已回滚，尝试仍可正常提交
	res, err := f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)

	_, err = f.quiz.StartAttempt(ctx, s.user.ID, 4242)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestQuizShuffleAndReveal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 3, 0, 1, 2)
	require.NoError(t, f.db.Model(s.quiz).Updates(map[string]interface{}{
		"shuffle_questions":    true,
		"show_correct_answers": true,
	}).Error)

	f.quiz.Shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	start, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)
	require.Len(t, start.Questions, 3)
	assert.Equal(t, s.quiz.Questions[2].ID, start.Questions[0].ID)
	assert.Equal(t, s.quiz.Questions[0].ID, start.Questions[2].ID)

	raw, err := json.Marshal(start.Questions[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "explanation")
	assert.NotContains(t, string(raw), "correct")

	res, err := f.quiz.SubmitAttempt(ctx, s.user.ID, start.AttemptID, answersFor(s.quiz, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	require.NotNil(t, res.Results[1].CorrectAnswerIndex)
	assert.Equal(t, 1, *res.Results[1].CorrectAnswerIndex)
	assert.False(t, res.Results[1].IsCorrect)
	assert.Equal(t, "answer is 1", res.Results[1].Explanation)
}

func TestScoreSubmissionMultipleChoice(t *testing.T) {
	opts, _ := json.Marshal([]string{"A", "B", "C", "D"})
	correct, _ := json.Marshal([]int{0, 2})
	questions := []model.QuizQuestion{
		{BaseModel: model.BaseModel{ID: 1}, QuestionType: model.QuestionMultiple, Options: datatypes.JSON(opts), CorrectIndexes: datatypes.JSON(correct), Points: 2},
		{BaseModel: model.BaseModel{ID: 2}, QuestionType: model.QuestionSingle, Options: datatypes.JSON(opts), CorrectAnswerIndex: 3, Points: 1},
	}

	cases := []struct {
		name     string
		selected []int
		earned   int
	}{
		{"exact set", []int{2, 0}, 3},
		{"repeated index", []int{0, 2, 2}, 3},
		{"subset", []int{0}, 1},
		{"superset", []int{0, 1, 2}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ScoreSubmission(questions, []AnswerInput{
				{QuestionID: 1, SelectedIndexes: tc.selected},
				{QuestionID: 2, SelectedIndex: intPtr(3)},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.earned, res.Earned)
			assert.Equal(t, 3, res.Total)
		})
	}

	_, err := ScoreSubmission(questions, []AnswerInput{{QuestionID: 1}})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = ScoreSubmission(questions, []AnswerInput{{QuestionID: 1, SelectedIndexes: []int{7}}})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestQuizRetakeFailureRevokesPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := newQuizSetup(t, f, 0, 0, 1, 2)
	video := testutil.CreateVideo(t, f.db, s.chapter.ID, 1, 100)

	first, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)
	res, err := f.quiz.SubmitAttempt(ctx, s.user.ID, first.AttemptID, answersFor(s.quiz, 0, 1, 2))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	// 视频还没看完
	assert.False(t, res.ChapterCompleted)

	second, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)
	res, err = f.quiz.SubmitAttempt(ctx, s.user.ID, second.AttemptID, answersFor(s.quiz, 3, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Passed)

	cp, err := f.progress.Progress.FindChapterProgress(s.user.ID, s.chapter.ID)
	require.NoError(t, err)
	assert.False(t, cp.QuizPassed)
	require.NotNil(t, cp.QuizScore)
	assert.Equal(t, 0, *cp.QuizScore)

	vp, err := f.progress.UpdateVideoProgress(ctx, s.user.ID, video.ID, VideoProgressInput{WatchedSeconds: 100})
	require.NoError(t, err)
	assert.True(t, vp.IsCompleted)
	assert.False(t, vp.ChapterCompleted)

	cp, err = f.progress.Progress.FindChapterProgress(s.user.ID, s.chapter.ID)
	require.NoError(t, err)
	assert.False(t, cp.IsCompleted)

	p, err := f.progress.Progress.FindPathProgress(s.user.ID, s.path.ID)
	require.NoError(t, err)
	// 第一次及格 30 + 视频 10，没有章节奖励
	assert.Equal(t, 40, p.ExperiencePoints)

	third, err := f.quiz.StartAttempt(ctx, s.user.ID, s.quiz.ID)
	require.NoError(t, err)
	res, err = f.quiz.SubmitAttempt(ctx, s.user.ID, third.AttemptID, answersFor(s.quiz, 0, 1, 2))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.ChapterCompleted)
}
