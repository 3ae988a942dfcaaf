package repository

import (
	"time"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) WithTx(tx *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: tx}
}

// ForChapter 绑定到该章节的成就
func (r *AchievementRepository) ForChapter(chapterID uint, types ...model.AchievementType) ([]model.Achievement, error) {
	var rows []model.Achievement
	err := r.DB.Where("related_chapter_id = ? AND achievement_type IN ?", chapterID, types).Find(&rows).Error
	return rows, err
}

// ScopedToChapter 绑定到该章节或不绑定章节（全局）的成就
func (r *AchievementRepository) ScopedToChapter(t model.AchievementType, chapterID uint) ([]model.Achievement, error) {
	var rows []model.Achievement
	err := r.DB.Where("achievement_type = ? AND (related_chapter_id = ? OR related_chapter_id IS NULL)", t, chapterID).
		Find(&rows).Error
	return rows, err
}

// ScopedToPath 绑定到该路径或不绑定路径（全局）的成就
func (r *AchievementRepository) ScopedToPath(t model.AchievementType, pathID uint) ([]model.Achievement, error) {
	var rows []model.Achievement
	err := r.DB.Where("achievement_type = ? AND (related_path_id = ? OR related_path_id IS NULL)", t, pathID).
		Find(&rows).Error
	return rows, err
}

// Award 已获得时返回 false
func (r *AchievementRepository) Award(userID, achievementID, pathProgressID uint, now time.Time) (bool, error) {
	return insertIgnore(r.DB, &model.UserAchievement{
		UserID:         userID,
		AchievementID:  achievementID,
		PathProgressID: pathProgressID,
		EarnedAt:       now,
	})
}

func (r *AchievementRepository) Recent(userID uint, pathProgressID uint, limit int) ([]model.UserAchievement, error) {
	var rows []model.UserAchievement
	q := r.DB.Preload("Achievement").Where("user_id = ?", userID)
	if pathProgressID != 0 {
		q = q.Where("path_progress_id = ?", pathProgressID)
	}
	err := q.Order("earned_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *AchievementRepository) CountForUser(userID uint) (int64, error) {
	var n int64
	err := r.DB.Model(&model.UserAchievement{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
