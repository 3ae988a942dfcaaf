package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"learnhub_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func CreateUser(tb testing.TB, db *gorm.DB, name string) *model.User {
	tb.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", Role: model.Student}
	Must(tb, db.Create(u).Error)
	return u
}

func CreateExercise(tb testing.TB, db *gorm.DB, title string) *model.Exercise {
	tb.Helper()
	e := &model.Exercise{Title: title, Difficulty: model.DifficultyEasy}
	Must(tb, db.Create(e).Error)
	return e
}

func CreateExam(tb testing.TB, db *gorm.DB, title string) *model.Exam {
	tb.Helper()
	e := &model.Exam{Title: title}
	Must(tb, db.Create(e).Error)
	return e
}

func CreatePath(tb testing.TB, db *gorm.DB, title string) *model.LearningPath {
	tb.Helper()
	p := &model.LearningPath{Title: title, IsActive: true}
	Must(tb, db.Create(p).Error)
	return p
}

func CreateChapter(tb testing.TB, db *gorm.DB, pathID uint, order int) *model.PathChapter {
	tb.Helper()
	c := &model.PathChapter{LearningPathID: pathID, Order: order, Title: fmt.Sprintf("chapter %d", order)}
	Must(tb, db.Create(c).Error)
	return c
}

func CreateVideo(tb testing.TB, db *gorm.DB, chapterID uint, order, durationSeconds int) *model.Video {
	tb.Helper()
	v := &model.Video{
		PathChapterID:   chapterID,
		Title:           fmt.Sprintf("video %d", order),
		VideoType:       model.VideoLesson,
		DurationSeconds: durationSeconds,
		Order:           order,
	}
	Must(tb, db.Create(v).Error)
	return v
}

// CreateQuiz 按 correct 生成单选题，每题 4 个选项
func CreateQuiz(tb testing.TB, db *gorm.DB, chapterID uint, passingScore, maxAttempts int, correct ...int) *model.ChapterQuiz {
	tb.Helper()
	q := &model.ChapterQuiz{
		PathChapterID: chapterID,
		Title:         "quiz",
		PassingScore:  passingScore,
		MaxAttempts:   maxAttempts,
	}
	Must(tb, db.Create(q).Error)
	// gorm 对零值使用 default 标签，0 次需要显式写回
	if maxAttempts == 0 {
		Must(tb, db.Model(q).Update("max_attempts", 0).Error)
	}

	opts, _ := json.Marshal([]string{"A", "B", "C", "D"})
	for i, idx := range correct {
		question := &model.QuizQuestion{
			QuizID:             q.ID,
			QuestionType:       model.QuestionSingle,
			QuestionText:       fmt.Sprintf("question %d", i+1),
			Options:            datatypes.JSON(opts),
			CorrectAnswerIndex: idx,
			Explanation:        fmt.Sprintf("answer is %d", idx),
			Points:             1,
			Order:              i,
		}
		Must(tb, db.Create(question).Error)
		q.Questions = append(q.Questions, *question)
	}
	return q
}
