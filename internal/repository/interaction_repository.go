package repository

import (
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InteractionRepository struct {
	DB *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{DB: db}
}

func (r *InteractionRepository) WithTx(tx *gorm.DB) *InteractionRepository {
	return &InteractionRepository{DB: tx}
}

// ---- vote ----

func (r *InteractionRepository) LockVote(userID uint, ref model.ContentRef) (*model.Vote, error) {
	return findOne[model.Vote](forUpdate(r.DB).Scopes(UserContent(userID, ref)))
}

func (r *InteractionRepository) FindVote(userID uint, ref model.ContentRef) (*model.Vote, error) {
	return findOne[model.Vote](r.DB.Scopes(UserContent(userID, ref)))
}

func (r *InteractionRepository) InsertVote(v *model.Vote) (bool, error) {
	return insertIgnore(r.DB, v)
}

func (r *InteractionRepository) UpdateVoteValue(v *model.Vote, value int) error {
	v.Value = value
	return r.DB.Model(v).Update("value", value).Error
}

func (r *InteractionRepository) DeleteVote(v *model.Vote) error {
	return r.DB.Delete(v).Error
}

// VoteCount 赞成数 - 反对数，value 只会是 +1/-1
func (r *InteractionRepository) VoteCount(ref model.ContentRef) (int64, error) {
	var total int64
	err := r.DB.Model(&model.Vote{}).
		Scopes(Content(ref)).
		Select("COALESCE(SUM(value), 0)").
		Scan(&total).Error
	return total, err
}

// ---- save ----

func (r *InteractionRepository) LockSave(userID uint, ref model.ContentRef) (*model.Save, error) {
	return findOne[model.Save](forUpdate(r.DB).Scopes(UserContent(userID, ref)))
}

func (r *InteractionRepository) InsertSave(s *model.Save) (bool, error) {
	return insertIgnore(r.DB, s)
}

func (r *InteractionRepository) DeleteSave(s *model.Save) error {
	return r.DB.Delete(s).Error
}

func (r *InteractionRepository) IsSaved(userID uint, ref model.ContentRef) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Save{}).Scopes(UserContent(userID, ref)).Count(&count).Error
	return count > 0, err
}

// ---- complete ----

var userContentColumns = []clause.Column{{Name: "user_id"}, {Name: "content_kind"}, {Name: "content_id"}}

func (r *InteractionRepository) UpsertComplete(c *model.Complete) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   userContentColumns,
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(c).Error
}

func (r *InteractionRepository) FindComplete(userID uint, ref model.ContentRef) (*model.Complete, error) {
	return findOne[model.Complete](r.DB.Scopes(UserContent(userID, ref)))
}

// DeleteComplete 返回是否删除了记录
func (r *InteractionRepository) DeleteComplete(userID uint, ref model.ContentRef) (bool, error) {
	res := r.DB.Scopes(UserContent(userID, ref)).Delete(&model.Complete{})
	return res.RowsAffected > 0, res.Error
}

type CompletionCounts struct {
	Success int64
	Review  int64
}

func (r *InteractionRepository) CompletionCounts(ref model.ContentRef) (CompletionCounts, error) {
	var rows []struct {
		Status model.CompleteStatus
		Total  int64
	}
	var out CompletionCounts
	err := r.DB.Model(&model.Complete{}).
		Scopes(Content(ref)).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return out, err
	}
	for _, row := range rows {
		switch row.Status {
		case model.CompleteSuccess:
			out.Success = row.Total
		case model.CompleteReview:
			out.Review = row.Total
		}
	}
	return out, nil
}

// ---- evaluate ----

func (r *InteractionRepository) UpsertEvaluate(e *model.Evaluate) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   userContentColumns,
		DoUpdates: clause.AssignmentColumns([]string{"rating", "updated_at"}),
	}).Create(e).Error
}

func (r *InteractionRepository) FindEvaluate(userID uint, ref model.ContentRef) (*model.Evaluate, error) {
	return findOne[model.Evaluate](r.DB.Scopes(UserContent(userID, ref)))
}

type RatingSummary struct {
	Average *float64
	Count   int64
}

func (r *InteractionRepository) RatingSummary(ref model.ContentRef) (RatingSummary, error) {
	var out RatingSummary
	err := r.DB.Model(&model.Evaluate{}).
		Scopes(Content(ref)).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Scan(&out).Error
	if out.Count == 0 {
		out.Average = nil
	}
	return out, err
}

// ---- report ----

func (r *InteractionRepository) InsertReport(rep *model.Report) (bool, error) {
	return insertIgnore(r.DB, rep)
}

// ---- per user ----

type LearningCounts struct {
	Completed int64
	InReview  int64
	Saved     int64
}

func (r *InteractionRepository) LearningCounts(userID uint) (LearningCounts, error) {
	var out LearningCounts
	if err := r.DB.Model(&model.Complete{}).
		Where("user_id = ? AND status = ?", userID, model.CompleteSuccess).
		Count(&out.Completed).Error; err != nil {
		return out, err
	}
	if err := r.DB.Model(&model.Complete{}).
		Where("user_id = ? AND status = ?", userID, model.CompleteReview).
		Count(&out.InReview).Error; err != nil {
		return out, err
	}
	err := r.DB.Model(&model.Save{}).Where("user_id = ?", userID).Count(&out.Saved).Error
	return out, err
}
