package model

import "time"

const (
	VoteUp   = 1
	VoteDown = -1
)

type CompleteStatus string

const (
	CompleteSuccess CompleteStatus = "success"
	CompleteReview  CompleteStatus = "review"
)

func (s CompleteStatus) Valid() bool {
	return s == CompleteSuccess || s == CompleteReview
}

const (
	MinRating = 1
	MaxRating = 5
)

// 五张互动表共用同一个唯一索引结构 (user_id, content_kind, content_id)

// swagger:model Vote
type Vote struct {
	RecordBase
	UserID      uint        `gorm:"uniqueIndex:idx_vote_user_content;not null" json:"userId"`
	ContentKind ContentKind `gorm:"uniqueIndex:idx_vote_user_content;index:idx_vote_content;size:20;not null" json:"contentKind"`
	ContentID   uint        `gorm:"uniqueIndex:idx_vote_user_content;index:idx_vote_content;not null" json:"contentId"`
	Value       int         `gorm:"not null" json:"value"`
}

func (Vote) TableName() string {
	return "votes"
}

// swagger:model Save
type Save struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint        `gorm:"uniqueIndex:idx_save_user_content;not null" json:"userId"`
	ContentKind ContentKind `gorm:"uniqueIndex:idx_save_user_content;index:idx_save_content;size:20;not null" json:"contentKind"`
	ContentID   uint        `gorm:"uniqueIndex:idx_save_user_content;index:idx_save_content;not null" json:"contentId"`
	SavedAt     time.Time   `gorm:"autoCreateTime" json:"savedAt"`
}

func (Save) TableName() string {
	return "saves"
}

// swagger:model Complete
type Complete struct {
	RecordBase
	UserID      uint           `gorm:"uniqueIndex:idx_complete_user_content;not null" json:"userId"`
	ContentKind ContentKind    `gorm:"uniqueIndex:idx_complete_user_content;index:idx_complete_content;size:20;not null" json:"contentKind"`
	ContentID   uint           `gorm:"uniqueIndex:idx_complete_user_content;index:idx_complete_content;not null" json:"contentId"`
	Status      CompleteStatus `gorm:"size:10;not null" json:"status"`
}

func (Complete) TableName() string {
	return "completes"
}

// swagger:model Evaluate
type Evaluate struct {
	RecordBase
	UserID      uint        `gorm:"uniqueIndex:idx_evaluate_user_content;not null" json:"userId"`
	ContentKind ContentKind `gorm:"uniqueIndex:idx_evaluate_user_content;index:idx_evaluate_content;size:20;not null" json:"contentKind"`
	ContentID   uint        `gorm:"uniqueIndex:idx_evaluate_user_content;index:idx_evaluate_content;not null" json:"contentId"`
	Rating      int         `gorm:"not null" json:"rating"`
}

func (Evaluate) TableName() string {
	return "evaluates"
}

// swagger:model Report
type Report struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint        `gorm:"uniqueIndex:idx_report_user_content;not null" json:"userId"`
	ContentKind ContentKind `gorm:"uniqueIndex:idx_report_user_content;index:idx_report_content;size:20;not null" json:"contentKind"`
	ContentID   uint        `gorm:"uniqueIndex:idx_report_user_content;index:idx_report_content;not null" json:"contentId"`
	Reason      string      `gorm:"type:text;not null" json:"reason"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (Report) TableName() string {
	return "reports"
}
