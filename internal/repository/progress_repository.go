package repository

import (
	"time"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

// ---- path progress ----

// GetOrCreatePathProgress 返回加锁后的行以及是否本次新建
func (r *ProgressRepository) GetOrCreatePathProgress(userID, pathID uint, now time.Time) (*model.UserLearningPathProgress, bool, error) {
	created, err := insertIgnore(r.DB, &model.UserLearningPathProgress{
		UserID:         userID,
		LearningPathID: pathID,
		StartedAt:      now,
		LastActivity:   now,
		Level:          1,
	})
	if err != nil {
		return nil, false, err
	}
	p, err := r.LockPathProgress(userID, pathID)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return p, created, nil
}

func (r *ProgressRepository) LockPathProgress(userID, pathID uint) (*model.UserLearningPathProgress, error) {
	return findOne[model.UserLearningPathProgress](forUpdate(r.DB).Where("user_id = ? AND learning_path_id = ?", userID, pathID))
}

func (r *ProgressRepository) LockPathProgressByID(id uint) (*model.UserLearningPathProgress, error) {
	return findOne[model.UserLearningPathProgress](forUpdate(r.DB).Where("id = ?", id))
}

func (r *ProgressRepository) FindPathProgress(userID, pathID uint) (*model.UserLearningPathProgress, error) {
	return findOne[model.UserLearningPathProgress](r.DB.Where("user_id = ? AND learning_path_id = ?", userID, pathID))
}

func (r *ProgressRepository) ListPathProgress(userID uint) ([]model.UserLearningPathProgress, error) {
	var rows []model.UserLearningPathProgress
	err := r.DB.Where("user_id = ?", userID).Order("last_activity DESC").Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) SavePathProgress(p *model.UserLearningPathProgress) error {
	return r.DB.Model(p).
		Select("last_activity", "current_streak", "longest_streak", "total_time_seconds", "experience_points", "level", "updated_at").
		Updates(p).Error
}

// ---- chapter progress ----

func (r *ProgressRepository) GetOrCreateChapterProgress(userID, chapterID, pathProgressID uint, now time.Time) (*model.UserChapterProgress, bool, error) {
	created, err := insertIgnore(r.DB, &model.UserChapterProgress{
		UserID:         userID,
		PathChapterID:  chapterID,
		PathProgressID: pathProgressID,
		StartedAt:      now,
	})
	if err != nil {
		return nil, false, err
	}
	cp, err := r.LockChapterProgress(userID, chapterID)
	if err != nil {
		return nil, false, err
	}
	if cp == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return cp, created, nil
}

func (r *ProgressRepository) LockChapterProgress(userID, chapterID uint) (*model.UserChapterProgress, error) {
	return findOne[model.UserChapterProgress](forUpdate(r.DB).Where("user_id = ? AND path_chapter_id = ?", userID, chapterID))
}

func (r *ProgressRepository) FindChapterProgress(userID, chapterID uint) (*model.UserChapterProgress, error) {
	return findOne[model.UserChapterProgress](r.DB.Where("user_id = ? AND path_chapter_id = ?", userID, chapterID))
}

func (r *ProgressRepository) SaveChapterProgress(cp *model.UserChapterProgress) error {
	return r.DB.Model(cp).
		Select("completed_at", "is_completed", "quiz_score", "quiz_attempts", "quiz_passed", "updated_at").
		Updates(cp).Error
}

// CompletedChapterIDs 在 chapterIDs 中用户已完成的章节
func (r *ProgressRepository) CompletedChapterIDs(userID uint, chapterIDs []uint) ([]uint, error) {
	var ids []uint
	if len(chapterIDs) == 0 {
		return ids, nil
	}
	err := r.DB.Model(&model.UserChapterProgress{}).
		Where("user_id = ? AND is_completed = ? AND path_chapter_id IN ?", userID, true, chapterIDs).
		Pluck("path_chapter_id", &ids).Error
	return ids, err
}

func (r *ProgressRepository) CountCompletedChapters(userID uint, pathProgressID uint) (int64, error) {
	var n int64
	q := r.DB.Model(&model.UserChapterProgress{}).Where("user_id = ? AND is_completed = ?", userID, true)
	if pathProgressID != 0 {
		q = q.Where("path_progress_id = ?", pathProgressID)
	}
	err := q.Count(&n).Error
	return n, err
}

// ---- video progress ----

func (r *ProgressRepository) GetOrCreateVideoProgress(userID, videoID, chapterProgressID uint) (*model.UserVideoProgress, error) {
	if _, err := insertIgnore(r.DB, &model.UserVideoProgress{
		UserID:            userID,
		VideoID:           videoID,
		ChapterProgressID: chapterProgressID,
	}); err != nil {
		return nil, err
	}
	vp, err := findOne[model.UserVideoProgress](forUpdate(r.DB).Where("user_id = ? AND video_id = ?", userID, videoID))
	if err != nil {
		return nil, err
	}
	if vp == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return vp, nil
}

func (r *ProgressRepository) SaveVideoProgress(vp *model.UserVideoProgress) error {
	return r.DB.Model(vp).
		Select("watched_seconds", "is_completed", "completed_at", "notes", "updated_at").
		Updates(vp).Error
}

// CompletedVideoIDs 在 videoIDs 中用户已完成的视频
func (r *ProgressRepository) CompletedVideoIDs(userID uint, videoIDs []uint) ([]uint, error) {
	var ids []uint
	if len(videoIDs) == 0 {
		return ids, nil
	}
	err := r.DB.Model(&model.UserVideoProgress{}).
		Where("user_id = ? AND is_completed = ? AND video_id IN ?", userID, true, videoIDs).
		Pluck("video_id", &ids).Error
	return ids, err
}

type CompletedVideo struct {
	VideoID     uint       `json:"videoId"`
	Title       string     `json:"title"`
	CompletedAt *time.Time `json:"completedAt"`
}

func (r *ProgressRepository) RecentCompletedVideos(userID uint, limit int) ([]CompletedVideo, error) {
	var rows []CompletedVideo
	err := r.DB.Model(&model.UserVideoProgress{}).
		Select("user_video_progress.video_id, videos.title, user_video_progress.completed_at").
		Joins("JOIN videos ON videos.id = user_video_progress.video_id").
		Where("user_video_progress.user_id = ? AND user_video_progress.is_completed = ?", userID, true).
		Order("user_video_progress.completed_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ---- streak ----

// TouchStreak 当天首次学习返回 true
func (r *ProgressRepository) TouchStreak(userID, pathID uint, day string) (bool, error) {
	return insertIgnore(r.DB, &model.LearningStreak{UserID: userID, LearningPathID: pathID, Date: day})
}

func (r *ProgressRepository) HasStreak(userID, pathID uint, day string) (bool, error) {
	var n int64
	err := r.DB.Model(&model.LearningStreak{}).
		Where("user_id = ? AND learning_path_id = ? AND date = ?", userID, pathID, day).
		Count(&n).Error
	return n > 0, err
}

func (r *ProgressRepository) AddStreakActivity(userID, pathID uint, day string, minutes, videos int) error {
	return r.DB.Model(&model.LearningStreak{}).
		Where("user_id = ? AND learning_path_id = ? AND date = ?", userID, pathID, day).
		Updates(map[string]interface{}{
			"minutes_studied": gorm.Expr("minutes_studied + ?", minutes),
			"videos_watched":  gorm.Expr("videos_watched + ?", videos),
		}).Error
}

// ResetBrokenStreaks 最近两天都没有学习记录的路径进度，连续天数清零
func (r *ProgressRepository) ResetBrokenStreaks(today, yesterday string) (int64, error) {
	active := r.DB.Model(&model.LearningStreak{}).
		Select("1").
		Where("learning_streaks.user_id = user_learning_path_progress.user_id").
		Where("learning_streaks.learning_path_id = user_learning_path_progress.learning_path_id").
		Where("learning_streaks.date IN ?", []string{today, yesterday})

	res := r.DB.Model(&model.UserLearningPathProgress{}).
		Where("current_streak > ?", 0).
		Where("NOT EXISTS (?)", active).
		UpdateColumn("current_streak", 0)
	return res.RowsAffected, res.Error
}
