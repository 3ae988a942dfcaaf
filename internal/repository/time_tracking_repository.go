package repository

import (
	"time"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type TimeTrackingRepository struct {
	DB *gorm.DB
}

func NewTimeTrackingRepository(db *gorm.DB) *TimeTrackingRepository {
	return &TimeTrackingRepository{DB: db}
}

func (r *TimeTrackingRepository) WithTx(tx *gorm.DB) *TimeTrackingRepository {
	return &TimeTrackingRepository{DB: tx}
}

// GetOrCreateForUpdate 先插入空行（冲突忽略），再加锁读取
func (r *TimeTrackingRepository) GetOrCreateForUpdate(userID uint, ref model.ContentRef) (*model.TimeSpent, error) {
	if _, err := insertIgnore(r.DB, &model.TimeSpent{UserID: userID, ContentKind: ref.Kind, ContentID: ref.ID}); err != nil {
		return nil, err
	}
	ts, err := findOne[model.TimeSpent](forUpdate(r.DB).Scopes(UserContent(userID, ref)))
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return ts, nil
}

func (r *TimeTrackingRepository) LockTimeSpent(userID uint, ref model.ContentRef) (*model.TimeSpent, error) {
	return findOne[model.TimeSpent](forUpdate(r.DB).Scopes(UserContent(userID, ref)))
}

func (r *TimeTrackingRepository) LockTimeSpentByID(id uint) (*model.TimeSpent, error) {
	return findOne[model.TimeSpent](forUpdate(r.DB).Where("id = ?", id))
}

func (r *TimeTrackingRepository) FindTimeSpent(userID uint, ref model.ContentRef) (*model.TimeSpent, error) {
	return findOne[model.TimeSpent](r.DB.Scopes(UserContent(userID, ref)))
}

func (r *TimeTrackingRepository) SaveTimeSpent(ts *model.TimeSpent) error {
	return r.DB.Model(ts).
		Select("total_seconds", "current_session_seconds", "last_session_start", "updated_at").
		Updates(ts).Error
}

func (r *TimeTrackingRepository) CreateSession(s *model.TimeSession) error {
	return r.DB.Create(s).Error
}

// ListSessions 按创建时间倒序
func (r *TimeTrackingRepository) ListSessions(userID uint, ref model.ContentRef, limit int) ([]model.TimeSession, error) {
	var sessions []model.TimeSession
	err := r.DB.Scopes(UserContent(userID, ref)).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *TimeTrackingRepository) DeleteSession(userID uint, ref model.ContentRef, sessionID string) (bool, error) {
	res := r.DB.Scopes(UserContent(userID, ref)).
		Where("id = ?", sessionID).
		Delete(&model.TimeSession{})
	return res.RowsAffected > 0, res.Error
}

// UserSessions 用户全部历史会话，按结束时间倒序，供统计使用
func (r *TimeTrackingRepository) UserSessions(userID uint, kinds ...model.ContentKind) ([]model.TimeSession, error) {
	var sessions []model.TimeSession
	q := r.DB.Where("user_id = ?", userID)
	if len(kinds) > 0 {
		q = q.Where("content_kind IN ?", kinds)
	}
	err := q.Order("ended_at DESC").Find(&sessions).Error
	return sessions, err
}

// FindStale before 之后再没有更新、且仍有未保存时长的记录
func (r *TimeTrackingRepository) FindStale(before time.Time, limit int) ([]model.TimeSpent, error) {
	var rows []model.TimeSpent
	err := r.DB.Where("current_session_seconds > 0 AND updated_at < ?", before).
		Order("updated_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
