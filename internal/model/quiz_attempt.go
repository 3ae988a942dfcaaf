package model

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	UserID           uint       `gorm:"index:idx_quiz_attempt_user_quiz;not null" json:"userId"`
	QuizID           uint       `gorm:"index:idx_quiz_attempt_user_quiz;not null" json:"quizId"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt"`
	Score            int        `gorm:"default:0" json:"score"`
	TotalPoints      int        `gorm:"default:0" json:"totalPoints"`
	Passed           bool       `gorm:"default:false" json:"passed"`
	TimeSpentSeconds int        `gorm:"default:0" json:"timeSpentSeconds"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func (a *QuizAttempt) IsCompleted() bool {
	return a.CompletedAt != nil
}

func (a *QuizAttempt) PercentageScore() int {
	return QuizPercentage(a.Score, a.TotalPoints)
}

// QuizPercentage score / 总分 * 100，四舍五入；总分为 0 时返回 0
func QuizPercentage(score, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalPoints) * 100))
}

// swagger:model QuizAnswer
type QuizAnswer struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID       string         `gorm:"uniqueIndex:idx_quiz_answer_attempt_question;size:36;not null" json:"attemptId"`
	QuestionID      uint           `gorm:"uniqueIndex:idx_quiz_answer_attempt_question;not null" json:"questionId"`
	SelectedIndex   int            `json:"selectedIndex"`
	SelectedIndexes datatypes.JSON `json:"selectedIndexes,omitempty"`
	IsCorrect       bool           `json:"isCorrect"`
	AnsweredAt      time.Time      `gorm:"autoCreateTime" json:"answeredAt"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}
