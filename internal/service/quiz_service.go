package service

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// QuizService 章节测验，进度与奖励复用 ProgressService 的事务
type QuizService struct {
	Progress *ProgressService
	Shuffle  func(n int, swap func(i, j int))
}

func NewQuizService(progress *ProgressService) *QuizService {
	return &QuizService{Progress: progress, Shuffle: rand.Shuffle}
}

type PublicQuestion struct {
	ID           uint               `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	QuestionText string             `json:"questionText"`
	Options      json.RawMessage    `json:"options"`
	Difficulty   string             `json:"difficulty"`
	Points       int                `json:"points"`
}

type AttemptStart struct {
	AttemptID        string           `json:"attemptId"`
	AttemptNumber    int              `json:"attemptNumber"`
	Questions        []PublicQuestion `json:"questions"`
	TimeLimitMinutes *int             `json:"timeLimitMinutes"`
}

func publicQuestion(q model.QuizQuestion) PublicQuestion {
	return PublicQuestion{
		ID:           q.ID,
		QuestionType: q.QuestionType,
		QuestionText: q.QuestionText,
		Options:      json.RawMessage(q.Options),
		Difficulty:   q.Difficulty,
		Points:       q.Points,
	}
}

// StartAttempt 锁住章节进度行，同一用户的并发开始会串行化
func (s *QuizService) StartAttempt(ctx context.Context, userID, quizID uint) (*AttemptStart, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	paths := s.Progress.Paths.WithTx(s.Progress.DB.WithContext(ctx))
	quiz, err := paths.FindQuiz(quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, util.NotFoundErr("quiz %d not found", quizID)
	}
	chapter, err := paths.FindChapter(quiz.PathChapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, util.NotFoundErr("chapter %d not found", quiz.PathChapterID)
	}

	out := &AttemptStart{TimeLimitMinutes: quiz.TimeLimitMinutes}
	err = s.Progress.transact(ctx, userID, func(pt *progressTx) error {
		p, _, err := pt.progress.GetOrCreatePathProgress(userID, chapter.LearningPathID, pt.now)
		if err != nil {
			return err
		}
		if _, err := pt.ensureChapterProgress(chapter, p); err != nil {
			return err
		}

		open, err := pt.quizzes.FindOpenAttempt(userID, quiz.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return util.ErrAttemptInProgress
		}
		used, err := pt.quizzes.CountAttempts(userID, quiz.ID)
		if err != nil {
			return err
		}
		if quiz.MaxAttempts > 0 && int(used) >= quiz.MaxAttempts {
			return util.ErrMaxAttemptsReached
		}

		attempt := &model.QuizAttempt{UserID: userID, QuizID: quiz.ID, StartedAt: pt.now}
		if err := pt.quizzes.CreateAttempt(attempt); err != nil {
			return err
		}
		out.AttemptID = attempt.ID
		out.AttemptNumber = int(used) + 1

		questions, err := pt.paths.ListQuestions(quiz.ID)
		if err != nil {
			return err
		}
		if quiz.ShuffleQuestions && s.Shuffle != nil {
			s.Shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })
		}
		out.Questions = make([]PublicQuestion, 0, len(questions))
		for _, q := range questions {
			out.Questions = append(out.Questions, publicQuestion(q))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type AnswerInput struct {
	QuestionID      uint  `json:"question_id" binding:"required"`
	SelectedIndex   *int  `json:"selected_index"`
	SelectedIndexes []int `json:"selected_indexes"`
}

type QuestionResult struct {
	QuestionID           uint   `json:"questionId"`
	IsCorrect            bool   `json:"isCorrect"`
	CorrectAnswerIndex   *int   `json:"correctAnswerIndex,omitempty"`
	CorrectAnswerIndexes []int  `json:"correctAnswerIndexes,omitempty"`
	Explanation          string `json:"explanation,omitempty"`
}

type SubmitResult struct {
	AttemptID        string           `json:"attemptId"`
	Score            int              `json:"score"`
	Passed           bool             `json:"passed"`
	TotalPoints      int              `json:"totalPoints"`
	EarnedPoints     int              `json:"earnedPoints"`
	TimeSpentSeconds int              `json:"timeSpentSeconds"`
	ChapterCompleted bool             `json:"chapterCompleted"`
	Results          []QuestionResult `json:"results"`
}

func (s *QuizService) SubmitAttempt(ctx context.Context, userID uint, attemptID string, answers []AnswerInput) (*SubmitResult, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if attemptID == "" {
		return nil, util.ErrAttemptNotFound
	}

	ctx, span := tracing.Start(ctx, "quiz.SubmitAttempt", attribute.String("attemptID", attemptID))
	out := &SubmitResult{AttemptID: attemptID}
	err := s.Progress.transact(ctx, userID, func(pt *progressTx) error {
		attempt, err := pt.quizzes.LockAttempt(attemptID)
		if err != nil {
			return err
		}
		if attempt == nil || attempt.UserID != userID {
			return util.ErrAttemptNotFound
		}
		if attempt.IsCompleted() {
			return util.ErrAttemptCompleted
		}

		quiz, err := pt.paths.FindQuiz(attempt.QuizID)
		if err != nil {
			return err
		}
		if quiz == nil {
			return util.NotFoundErr("quiz %d not found", attempt.QuizID)
		}
		questions, err := pt.paths.ListQuestions(quiz.ID)
		if err != nil {
			return err
		}

		scored, err := ScoreSubmission(questions, answers)
		if err != nil {
			return err
		}

		cp, err := pt.progress.LockChapterProgress(userID, quiz.PathChapterID)
		if err != nil {
			return err
		}
		if cp == nil {
			return util.PreconditionFailed("chapter progress not found for this quiz")
		}
		p, err := pt.progress.LockPathProgressByID(cp.PathProgressID)
		if err != nil {
			return err
		}
		if p == nil {
			return util.PreconditionFailed("learning path progress not found for this quiz")
		}

		rows := make([]model.QuizAnswer, 0, len(scored.Answers))
		for _, a := range scored.Answers {
			rows = append(rows, model.QuizAnswer{
				AttemptID:       attempt.ID,
				QuestionID:      a.QuestionID,
				SelectedIndex:   a.SelectedIndex,
				SelectedIndexes: a.SelectedIndexes,
				IsCorrect:       a.IsCorrect,
			})
		}
		if err := pt.quizzes.CreateAnswers(rows); err != nil {
			return err
		}

		percentage := scored.Percentage()
		attempt.CompletedAt = &pt.now
		attempt.Score = scored.Earned
		attempt.TotalPoints = scored.Total
		attempt.Passed = percentage >= quiz.PassingScore
		attempt.TimeSpentSeconds = int(pt.now.Sub(attempt.StartedAt) / time.Second)
		if attempt.TimeSpentSeconds < 0 {
			attempt.TimeSpentSeconds = 0
		}
		if err := pt.quizzes.SaveAttempt(attempt); err != nil {
			return err
		}

		cp.QuizScore = &percentage
		cp.QuizAttempts++
		// 以最近一次提交为准，重考不及格会撤销之前的通过状态
		cp.QuizPassed = attempt.Passed
		if err := pt.progress.SaveChapterProgress(cp); err != nil {
			return err
		}

		if attempt.Passed {
			pt.addExperience(p, pt.rewards.QuizPassXP, "quiz")

			if scored.Total > 0 && scored.Earned == scored.Total {
				perfect, err := pt.achievements.ScopedToChapter(model.AchievementQuizPerfect, quiz.PathChapterID)
				if err != nil {
					return err
				}
				for _, a := range perfect {
					if err := pt.award(a, p); err != nil {
						return err
					}
				}
			}

			chapter, err := pt.paths.FindChapter(quiz.PathChapterID)
			if err != nil {
				return err
			}
			if chapter != nil {
				if out.ChapterCompleted, err = pt.checkChapterCompletion(p, cp, chapter); err != nil {
					return err
				}
			}
		}

		p.LastActivity = pt.now
		if err := pt.progress.SavePathProgress(p); err != nil {
			return err
		}

		out.Score = percentage
		out.Passed = attempt.Passed
		out.TotalPoints = scored.Total
		out.EarnedPoints = scored.Earned
		out.TimeSpentSeconds = attempt.TimeSpentSeconds
		out.Results = scored.results(questions, quiz.ShowCorrectAnswers)
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	monitoring.RecordQuizSubmission(out.Passed)
	logger.Log.Info("quiz submitted",
		zap.Uint("userID", userID),
		zap.String("attemptID", attemptID),
		zap.Int("score", out.Score),
		zap.Bool("passed", out.Passed))
	return out, nil
}

type ScoredAnswer struct {
	QuestionID      uint
	SelectedIndex   int
	SelectedIndexes datatypes.JSON
	IsCorrect       bool
}

type ScoreResult struct {
	Earned  int
	Total   int
	Answers []ScoredAnswer
}

func (r *ScoreResult) Percentage() int {
	return model.QuizPercentage(r.Earned, r.Total)
}

// results 按题目顺序返回每题对错，答案与解析只在允许时给出
func (r *ScoreResult) results(questions []model.QuizQuestion, reveal bool) []QuestionResult {
	correct := make(map[uint]bool, len(r.Answers))
	for _, a := range r.Answers {
		correct[a.QuestionID] = a.IsCorrect
	}
	out := make([]QuestionResult, 0, len(r.Answers))
	for _, q := range questions {
		isCorrect, answered := correct[q.ID]
		if !answered {
			continue
		}
		res := QuestionResult{QuestionID: q.ID, IsCorrect: isCorrect}
		if reveal {
			if q.QuestionType == model.QuestionMultiple {
				res.CorrectAnswerIndexes = q.CorrectSet()
			} else {
				idx := q.CorrectAnswerIndex
				res.CorrectAnswerIndex = &idx
			}
			res.Explanation = q.Explanation
		}
		out = append(out, res)
	}
	return out
}

// ScoreSubmission 纯函数：总分按测验全部题目计算，未作答的题目计为错误
func ScoreSubmission(questions []model.QuizQuestion, answers []AnswerInput) (*ScoreResult, error) {
	byID := make(map[uint]*model.QuizQuestion, len(questions))
	result := &ScoreResult{}
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
		result.Total += questions[i].Points
	}

	seen := make(map[uint]bool, len(answers))
	for _, a := range answers {
		if seen[a.QuestionID] {
			return nil, util.InvalidInput("duplicate answer for question %d", a.QuestionID)
		}
		seen[a.QuestionID] = true

		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, util.NotFoundErr("question %d does not belong to this quiz", a.QuestionID)
		}

		scored, err := scoreAnswer(q, a)
		if err != nil {
			return nil, err
		}
		if scored.IsCorrect {
			result.Earned += q.Points
		}
		result.Answers = append(result.Answers, scored)
	}
	return result, nil
}

func scoreAnswer(q *model.QuizQuestion, a AnswerInput) (ScoredAnswer, error) {
	out := ScoredAnswer{QuestionID: q.ID, SelectedIndex: -1}
	options := q.OptionCount()
	inRange := func(i int) bool { return i >= 0 && (options == 0 || i < options) }

	if q.QuestionType == model.QuestionMultiple {
		selected := a.SelectedIndexes
		if len(selected) == 0 && a.SelectedIndex != nil {
			selected = []int{*a.SelectedIndex}
		}
		if len(selected) == 0 {
			return out, util.InvalidInput("question %d requires selected_indexes", q.ID)
		}
		set := make(map[int]bool, len(selected))
		for _, i := range selected {
			if !inRange(i) {
				return out, util.InvalidInput("answer index %d out of range for question %d", i, q.ID)
			}
			set[i] = true
		}
		raw, _ := json.Marshal(selected)
		out.SelectedIndexes = datatypes.JSON(raw)

		want := q.CorrectSet()
		out.IsCorrect = len(set) == len(want)
		for _, i := range want {
			if !set[i] {
				out.IsCorrect = false
				break
			}
		}
		return out, nil
	}

	if a.SelectedIndex == nil {
		return out, util.InvalidInput("question %d requires selected_index", q.ID)
	}
	if !inRange(*a.SelectedIndex) {
		return out, util.InvalidInput("answer index %d out of range for question %d", *a.SelectedIndex, q.ID)
	}
	out.SelectedIndex = *a.SelectedIndex
	out.IsCorrect = out.SelectedIndex == q.CorrectAnswerIndex
	return out, nil
}
