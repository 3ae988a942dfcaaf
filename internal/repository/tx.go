package repository

import (
	"context"
	"errors"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultMaxRetries = 3

// Transact 在事务中执行 fn，遇到唯一索引竞争时整体重试
func Transact(ctx context.Context, db *gorm.DB, maxRetries int, fn func(tx *gorm.DB) error) error {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = util.ConflictErr("concurrent update, please retry")
		}
		if !util.IsRetryable(err) {
			return err
		}
		logger.Log.Debug("retrying transaction after conflict", zap.Int("attempt", attempt))
	}
	return err
}

// UserContent 按 (user_id, content_kind, content_id) 过滤
func UserContent(userID uint, ref model.ContentRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? AND content_kind = ? AND content_id = ?", userID, ref.Kind, ref.ID)
	}
}

// Content 按 (content_kind, content_id) 过滤
func Content(ref model.ContentRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("content_kind = ? AND content_id = ?", ref.Kind, ref.ID)
	}
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// findOne 不存在时返回 (nil, nil)
func findOne[T any](db *gorm.DB) (*T, error) {
	var row T
	res := db.Limit(1).Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// insertIgnore INSERT ... ON CONFLICT DO NOTHING，返回是否真正插入
func insertIgnore(db *gorm.DB, row interface{}) (bool, error) {
	res := db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
