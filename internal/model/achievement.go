package model

import "time"

type AchievementType string

const (
	AchievementChapterComplete AchievementType = "chapter_complete"
	AchievementQuizPerfect     AchievementType = "quiz_perfect"
	AchievementStreak          AchievementType = "streak"
	AchievementMilestone       AchievementType = "milestone"
)

// swagger:model Achievement
type Achievement struct {
	BaseModel
	Name             string          `gorm:"size:100;not null" json:"name"`
	Description      string          `gorm:"type:text" json:"description"`
	Icon             string          `gorm:"size:50;default:'trophy'" json:"icon"`
	AchievementType  AchievementType `gorm:"size:20;index;not null" json:"achievementType"`
	Points           int             `gorm:"default:10" json:"points"`
	RequiredValue    int             `gorm:"default:1" json:"requiredValue"`
	RelatedPathID    *uint           `gorm:"index" json:"relatedPathId,omitempty"`
	RelatedChapterID *uint           `gorm:"index" json:"relatedChapterId,omitempty"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// swagger:model UserAchievement
type UserAchievement struct {
	ID             uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint        `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	AchievementID  uint        `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievementId"`
	PathProgressID uint        `gorm:"index" json:"pathProgressId"`
	EarnedAt       time.Time   `json:"earnedAt"`
	Achievement    Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// LearningStreak 每天每条路径一行，用来计算连续学习天数
type LearningStreak struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint      `gorm:"uniqueIndex:idx_streak_user_date_path;not null" json:"userId"`
	Date           string    `gorm:"uniqueIndex:idx_streak_user_date_path;size:10;not null" json:"date"` // 2006-01-02
	LearningPathID uint      `gorm:"uniqueIndex:idx_streak_user_date_path;not null" json:"learningPathId"`
	MinutesStudied int       `gorm:"default:0" json:"minutesStudied"`
	VideosWatched  int       `gorm:"default:0" json:"videosWatched"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (LearningStreak) TableName() string {
	return "learning_streaks"
}
