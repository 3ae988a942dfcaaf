package repository

import (
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

// LearningPathRepository 路径目录（路径/章节/视频/测验），只读
type LearningPathRepository struct {
	DB *gorm.DB
}

func NewLearningPathRepository(db *gorm.DB) *LearningPathRepository {
	return &LearningPathRepository{DB: db}
}

func (r *LearningPathRepository) WithTx(tx *gorm.DB) *LearningPathRepository {
	return &LearningPathRepository{DB: tx}
}

func (r *LearningPathRepository) FindPath(id uint) (*model.LearningPath, error) {
	return findOne[model.LearningPath](r.DB.Where("id = ?", id))
}

func (r *LearningPathRepository) FindPathsByIDs(ids []uint) ([]model.LearningPath, error) {
	var paths []model.LearningPath
	if len(ids) == 0 {
		return paths, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&paths).Error
	return paths, err
}

func (r *LearningPathRepository) ListChapters(pathID uint) ([]model.PathChapter, error) {
	var chapters []model.PathChapter
	err := r.DB.Where("learning_path_id = ?", pathID).
		Order("sort_order ASC, id ASC").
		Find(&chapters).Error
	return chapters, err
}

func (r *LearningPathRepository) FirstChapter(pathID uint) (*model.PathChapter, error) {
	return findOne[model.PathChapter](r.DB.Where("learning_path_id = ?", pathID).Order("sort_order ASC, id ASC"))
}

func (r *LearningPathRepository) FindChapter(id uint) (*model.PathChapter, error) {
	return findOne[model.PathChapter](r.DB.Where("id = ?", id))
}

func (r *LearningPathRepository) CountChapters(pathID uint) (int64, error) {
	var n int64
	err := r.DB.Model(&model.PathChapter{}).Where("learning_path_id = ?", pathID).Count(&n).Error
	return n, err
}

func (r *LearningPathRepository) FindVideo(id uint) (*model.Video, error) {
	return findOne[model.Video](r.DB.Where("id = ?", id))
}

func (r *LearningPathRepository) ListVideos(chapterID uint) ([]model.Video, error) {
	var videos []model.Video
	err := r.DB.Where("path_chapter_id = ?", chapterID).
		Order("sort_order ASC, id ASC").
		Find(&videos).Error
	return videos, err
}

func (r *LearningPathRepository) FindQuiz(id uint) (*model.ChapterQuiz, error) {
	return findOne[model.ChapterQuiz](r.DB.Where("id = ?", id))
}

func (r *LearningPathRepository) FindQuizByChapter(chapterID uint) (*model.ChapterQuiz, error) {
	return findOne[model.ChapterQuiz](r.DB.Where("path_chapter_id = ?", chapterID))
}

func (r *LearningPathRepository) QuizIDsForPath(pathID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.ChapterQuiz{}).
		Joins("JOIN path_chapters ON path_chapters.id = chapter_quizzes.path_chapter_id").
		Where("path_chapters.learning_path_id = ? AND path_chapters.deleted_at IS NULL", pathID).
		Pluck("chapter_quizzes.id", &ids).Error
	return ids, err
}

func (r *LearningPathRepository) ListQuestions(quizID uint) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.DB.Where("quiz_id = ?", quizID).
		Order("sort_order ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

// Prerequisites chapterID 依赖的章节
func (r *LearningPathRepository) Prerequisites(chapterID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.PathChapterPrerequisite{}).
		Where("chapter_id = ?", chapterID).
		Pluck("prerequisite_id", &ids).Error
	return ids, err
}

// Dependents 以 chapterID 为前置的章节
func (r *LearningPathRepository) Dependents(chapterID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.PathChapterPrerequisite{}).
		Where("prerequisite_id = ?", chapterID).
		Pluck("chapter_id", &ids).Error
	return ids, err
}
