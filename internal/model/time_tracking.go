package model

import (
	"math"
	"time"
)

type SessionType string

const (
	SessionStudy    SessionType = "study"
	SessionReview   SessionType = "review"
	SessionPractice SessionType = "practice"
	SessionExam     SessionType = "exam"
)

var AllSessionTypes = []SessionType{SessionStudy, SessionReview, SessionPractice, SessionExam}

func (t SessionType) Valid() bool {
	for _, known := range AllSessionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TimeSpent 每个 (用户, 内容) 一行：累计时长 + 当前未结束的会话
// swagger:model TimeSpent
type TimeSpent struct {
	RecordBase
	UserID                uint        `gorm:"uniqueIndex:idx_time_spent_user_content;not null" json:"userId"`
	ContentKind           ContentKind `gorm:"uniqueIndex:idx_time_spent_user_content;size:20;not null" json:"contentKind"`
	ContentID             uint        `gorm:"uniqueIndex:idx_time_spent_user_content;not null" json:"contentId"`
	TotalSeconds          float64     `gorm:"not null;default:0" json:"totalSeconds"`
	CurrentSessionSeconds float64     `gorm:"not null;default:0" json:"currentSessionSeconds"`
	LastSessionStart      *time.Time  `gorm:"index" json:"lastSessionStart"`
}

func (TimeSpent) TableName() string {
	return "time_spents"
}

func (t *TimeSpent) TotalTime() time.Duration {
	return secondsToDuration(t.TotalSeconds)
}

func (t *TimeSpent) CurrentSessionTime() time.Duration {
	return secondsToDuration(t.CurrentSessionSeconds)
}

func (t *TimeSpent) TotalTimeInSeconds() int {
	return int(math.Round(t.TotalSeconds))
}

func (t *TimeSpent) CurrentSessionInSeconds() int {
	return int(math.Round(t.CurrentSessionSeconds))
}

// IsActive 是否存在未保存的会话
func (t *TimeSpent) IsActive() bool {
	return t.LastSessionStart != nil || t.CurrentSessionSeconds > 0
}

// TimeSession 已结束的历史会话，只追加不修改
// swagger:model TimeSession
type TimeSession struct {
	UUIDBase
	UserID         uint        `gorm:"index:idx_time_session_user_content;not null" json:"userId"`
	ContentKind    ContentKind `gorm:"index:idx_time_session_user_content;size:20;not null" json:"contentKind"`
	ContentID      uint        `gorm:"index:idx_time_session_user_content;not null" json:"contentId"`
	SessionSeconds float64     `gorm:"not null" json:"sessionSeconds"`
	StartedAt      time.Time   `json:"startedAt"`
	EndedAt        time.Time   `json:"endedAt"`
	SessionType    SessionType `gorm:"size:20;default:'study'" json:"sessionType"`
	Notes          string      `gorm:"type:text" json:"notes"`
}

func (TimeSession) TableName() string {
	return "time_sessions"
}

func (s *TimeSession) SessionDuration() time.Duration {
	return secondsToDuration(s.SessionSeconds)
}

func (s *TimeSession) DurationInSeconds() int {
	return int(math.Round(s.SessionSeconds))
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
