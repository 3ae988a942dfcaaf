package repository

import (
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) CountAttempts(userID, quizID uint) (int64, error) {
	var n int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&n).Error
	return n, err
}

func (r *QuizRepository) FindOpenAttempt(userID, quizID uint) (*model.QuizAttempt, error) {
	return findOne[model.QuizAttempt](r.DB.Where("user_id = ? AND quiz_id = ? AND completed_at IS NULL", userID, quizID))
}

func (r *QuizRepository) CreateAttempt(a *model.QuizAttempt) error {
	return r.DB.Create(a).Error
}

func (r *QuizRepository) LockAttempt(id string) (*model.QuizAttempt, error) {
	return findOne[model.QuizAttempt](forUpdate(r.DB).Where("id = ?", id))
}

func (r *QuizRepository) SaveAttempt(a *model.QuizAttempt) error {
	return r.DB.Model(a).
		Select("completed_at", "score", "total_points", "passed", "time_spent_seconds").
		Updates(a).Error
}

func (r *QuizRepository) CreateAnswers(answers []model.QuizAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.Create(&answers).Error
}

func (r *QuizRepository) ListAnswers(attemptID string) ([]model.QuizAnswer, error) {
	var answers []model.QuizAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Order("id").Find(&answers).Error
	return answers, err
}

// AverageScore 已完成测验的平均百分比；没有记录时返回 nil
func (r *QuizRepository) AverageScore(userID uint, quizIDs []uint) (*float64, error) {
	if len(quizIDs) == 0 {
		return nil, nil
	}
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ? AND quiz_id IN ? AND completed_at IS NOT NULL", userID, quizIDs).
		Find(&attempts).Error
	if err != nil || len(attempts) == 0 {
		return nil, err
	}
	sum := 0
	for i := range attempts {
		sum += attempts[i].PercentageScore()
	}
	avg := float64(sum) / float64(len(attempts))
	return &avg, nil
}
