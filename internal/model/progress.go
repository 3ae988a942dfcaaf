package model

import "time"

const XPPerLevel = 100

// swagger:model UserLearningPathProgress
type UserLearningPathProgress struct {
	RecordBase
	UserID           uint      `gorm:"uniqueIndex:idx_path_progress_user_path;not null" json:"userId"`
	LearningPathID   uint      `gorm:"uniqueIndex:idx_path_progress_user_path;not null" json:"learningPathId"`
	StartedAt        time.Time `json:"startedAt"`
	LastActivity     time.Time `json:"lastActivity"`
	CurrentStreak    int       `gorm:"default:0" json:"currentStreak"`
	LongestStreak    int       `gorm:"default:0" json:"longestStreak"`
	TotalTimeSeconds int       `gorm:"default:0" json:"totalTimeSeconds"`
	ExperiencePoints int       `gorm:"default:0" json:"experiencePoints"`
	Level            int       `gorm:"default:1" json:"level"`
}

func (UserLearningPathProgress) TableName() string {
	return "user_learning_path_progress"
}

// AddExperience 增加经验并逐级升级，一次大额奖励可以连升多级
func (p *UserLearningPathProgress) AddExperience(points int) int {
	if points <= 0 {
		return 0
	}
	if p.Level < 1 {
		p.Level = 1
	}
	p.ExperiencePoints += points
	gained := 0
	for p.ExperiencePoints >= p.Level*XPPerLevel {
		p.ExperiencePoints -= p.Level * XPPerLevel
		p.Level++
		gained++
	}
	return gained
}

func (p *UserLearningPathProgress) NextLevelExperience() int {
	return p.Level * XPPerLevel
}

// PathProgressPercentage 已完成章节 / 总章节
func PathProgressPercentage(completedChapters, totalChapters int) int {
	if totalChapters <= 0 {
		return 0
	}
	return completedChapters * 100 / totalChapters
}

// swagger:model UserChapterProgress
type UserChapterProgress struct {
	RecordBase
	UserID         uint       `gorm:"uniqueIndex:idx_chapter_progress_user_chapter;not null" json:"userId"`
	PathChapterID  uint       `gorm:"uniqueIndex:idx_chapter_progress_user_chapter;not null" json:"pathChapterId"`
	PathProgressID uint       `gorm:"index;not null" json:"pathProgressId"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	IsCompleted    bool       `gorm:"default:false" json:"isCompleted"`
	QuizScore      *int       `json:"quizScore"`
	QuizAttempts   int        `gorm:"default:0" json:"quizAttempts"`
	QuizPassed     bool       `gorm:"default:false" json:"quizPassed"`
}

func (UserChapterProgress) TableName() string {
	return "user_chapter_progress"
}

const (
	ChapterVideoWeight = 80
	ChapterQuizWeight  = 20
)

// ChapterStats 计算章节进度所需的输入
type ChapterStats struct {
	TotalVideos     int
	CompletedVideos int
	HasQuiz         bool
	PassingScore    int
}

// ChapterProgressPercentage 视频占 80%，测验占 20%，没有测验时测验部分直接记满
func (p *UserChapterProgress) ProgressPercentage(st ChapterStats) int {
	if st.TotalVideos == 0 {
		if p.IsCompleted {
			return 100
		}
		return 0
	}
	pct := st.CompletedVideos * ChapterVideoWeight / st.TotalVideos
	if !st.HasQuiz || (p.QuizScore != nil && *p.QuizScore >= st.PassingScore) {
		pct += ChapterQuizWeight
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// swagger:model UserVideoProgress
type UserVideoProgress struct {
	RecordBase
	UserID            uint       `gorm:"uniqueIndex:idx_video_progress_user_video;not null" json:"userId"`
	VideoID           uint       `gorm:"uniqueIndex:idx_video_progress_user_video;not null" json:"videoId"`
	ChapterProgressID uint       `gorm:"index;not null" json:"chapterProgressId"`
	WatchedSeconds    int        `gorm:"default:0" json:"watchedSeconds"`
	IsCompleted       bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt       *time.Time `json:"completedAt"`
	Notes             string     `gorm:"type:text" json:"notes"`
}

func (UserVideoProgress) TableName() string {
	return "user_video_progress"
}

func (p *UserVideoProgress) ProgressPercentage(durationSeconds int) int {
	if durationSeconds <= 0 {
		if p.IsCompleted {
			return 100
		}
		return 0
	}
	pct := p.WatchedSeconds * 100 / durationSeconds
	if pct > 100 {
		return 100
	}
	return pct
}
