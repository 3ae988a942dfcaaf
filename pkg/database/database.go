package database

import (
	"fmt"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models 所有需要迁移的表，测试库也用这份列表
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Exercise{},
		&model.Lesson{},
		&model.Exam{},
		&model.Solution{},
		&model.Comment{},
		&model.Vote{},
		&model.Save{},
		&model.Complete{},
		&model.Evaluate{},
		&model.Report{},
		&model.TimeSpent{},
		&model.TimeSession{},
		&model.LearningPath{},
		&model.PathChapter{},
		&model.PathChapterPrerequisite{},
		&model.Video{},
		&model.ChapterQuiz{},
		&model.QuizQuestion{},
		&model.UserLearningPathProgress{},
		&model.UserChapterProgress{},
		&model.UserVideoProgress{},
		&model.QuizAttempt{},
		&model.QuizAnswer{},
		&model.Achievement{},
		&model.UserAchievement{},
		&model.LearningStreak{},
	}
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "learnhub.db"
		}
		return sqlite.Open(path + "?_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func logLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// sqlite 只有一个写者
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	logger.Log.Info("Database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return seedAchievements(db)
}

// 默认成就（表为空时插入）
func seedAchievements(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Achievement{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []model.Achievement{
		{Name: "满分答卷", Description: "在任意章节测验中获得满分", Icon: "star", AchievementType: model.AchievementQuizPerfect, Points: 20, RequiredValue: 100},
		{Name: "三日连学", Description: "连续 3 天学习同一条路径", Icon: "fire", AchievementType: model.AchievementStreak, Points: 15, RequiredValue: 3},
		{Name: "七日连学", Description: "连续 7 天学习同一条路径", Icon: "fire", AchievementType: model.AchievementStreak, Points: 40, RequiredValue: 7},
	}
	return db.Create(&defaults).Error
}
