package repository

import (
	"context"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"

	"gorm.io/gorm"
)

// ContentRepository 唯一知道 kind -> 表 映射的地方
type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

type contentRow struct {
	ID        uint
	Title     string
	CreatedAt time.Time
}

func tableFor(kind model.ContentKind) (string, string, bool) {
	switch kind {
	case model.KindExercise:
		return model.Exercise{}.TableName(), "title", true
	case model.KindLesson:
		return model.Lesson{}.TableName(), "title", true
	case model.KindExam:
		return model.Exam{}.TableName(), "title", true
	case model.KindSolution:
		return model.Solution{}.TableName(), "''", true
	case model.KindComment:
		return model.Comment{}.TableName(), "''", true
	case model.KindVideo:
		return model.Video{}.TableName(), "title", true
	}
	return "", "", false
}

// Resolve 校验引用存在（未软删除），返回内容句柄
func (r *ContentRepository) Resolve(ctx context.Context, ref model.ContentRef) (*model.ContentHandle, error) {
	table, titleCol, ok := tableFor(ref.Kind)
	if !ok {
		return nil, util.InvalidInput("unknown content kind %q", ref.Kind)
	}
	if ref.ID == 0 {
		return nil, util.InvalidInput("content id is required")
	}

	var row contentRow
	res := r.DB.WithContext(ctx).Table(table).
		Select("id, "+titleCol+" AS title, created_at").
		Where("id = ? AND deleted_at IS NULL", ref.ID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, util.NotFoundErr("%s %d not found", ref.Kind, ref.ID)
	}

	return &model.ContentHandle{Ref: ref, Title: row.Title, CreatedAt: row.CreatedAt}, nil
}
