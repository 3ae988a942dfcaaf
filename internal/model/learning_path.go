package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// swagger:model LearningPath
type LearningPath struct {
	BaseModel
	Title          string        `gorm:"size:200;not null" json:"title"`
	Description    string        `gorm:"type:text" json:"description"`
	EstimatedHours float64       `gorm:"default:0" json:"estimatedHours"`
	IsActive       bool          `gorm:"default:true" json:"isActive"`
	Chapters       []PathChapter `gorm:"foreignKey:LearningPathID" json:"chapters,omitempty"`
}

func (LearningPath) TableName() string {
	return "learning_paths"
}

// swagger:model PathChapter
type PathChapter struct {
	BaseModel
	LearningPathID   uint   `gorm:"index;not null" json:"learningPathId"`
	Order            int    `gorm:"column:sort_order;default:0" json:"order"`
	Title            string `gorm:"size:200;not null" json:"title"`
	Description      string `gorm:"type:text" json:"description"`
	EstimatedMinutes int    `gorm:"default:120" json:"estimatedMinutes"`
	IsMilestone      bool   `gorm:"default:false" json:"isMilestone"`
}

func (PathChapter) TableName() string {
	return "path_chapters"
}

// PathChapterPrerequisite 章节前置依赖：ChapterID 需要先完成 PrerequisiteID
type PathChapterPrerequisite struct {
	ChapterID      uint `gorm:"primaryKey" json:"chapterId"`
	PrerequisiteID uint `gorm:"primaryKey;index" json:"prerequisiteId"`
}

func (PathChapterPrerequisite) TableName() string {
	return "path_chapter_prerequisites"
}

type VideoType string

const (
	VideoLesson   VideoType = "lesson"
	VideoSummary  VideoType = "summary"
	VideoExercise VideoType = "exercise"
	VideoBonus    VideoType = "bonus"
)

// swagger:model Video
type Video struct {
	BaseModel
	PathChapterID   uint      `gorm:"index;not null" json:"pathChapterId"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	URL             string    `gorm:"size:500" json:"url"`
	VideoType       VideoType `gorm:"size:20;default:'lesson'" json:"videoType"`
	DurationSeconds int       `gorm:"not null" json:"durationSeconds"`
	Order           int       `gorm:"column:sort_order;default:0" json:"order"`
}

func (Video) TableName() string {
	return "videos"
}

// IsRequired bonus 视频不计入章节完成条件
func (v *Video) IsRequired() bool {
	return v.VideoType != VideoBonus
}

// swagger:model ChapterQuiz
type ChapterQuiz struct {
	BaseModel
	PathChapterID      uint           `gorm:"uniqueIndex;not null" json:"pathChapterId"`
	Title              string         `gorm:"size:200" json:"title"`
	PassingScore       int            `gorm:"default:70" json:"passingScore"`
	TimeLimitMinutes   *int           `json:"timeLimitMinutes,omitempty"`
	MaxAttempts        int            `gorm:"default:3" json:"maxAttempts"` // 0 表示不限次数
	ShuffleQuestions   bool           `json:"shuffleQuestions"`
	ShowCorrectAnswers bool           `json:"showCorrectAnswers"`
	Questions          []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (ChapterQuiz) TableName() string {
	return "chapter_quizzes"
}

type QuestionType string

const (
	QuestionSingle   QuestionType = "single_choice"
	QuestionMultiple QuestionType = "multiple_choice"
)

// swagger:model QuizQuestion
type QuizQuestion struct {
	BaseModel
	QuizID             uint           `gorm:"index;not null" json:"quizId"`
	QuestionType       QuestionType   `gorm:"size:20;default:'single_choice'" json:"questionType"`
	QuestionText       string         `gorm:"type:text;not null" json:"questionText"`
	Options            datatypes.JSON `json:"options"`
	CorrectAnswerIndex int            `json:"-"`
	CorrectIndexes     datatypes.JSON `json:"-"` // 多选题的正确选项集合
	Explanation        string         `gorm:"type:text" json:"-"`
	Difficulty         string         `gorm:"size:10;default:'medium'" json:"difficulty"`
	Points             int            `gorm:"default:1" json:"points"`
	Order              int            `gorm:"column:sort_order;default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// OptionCount 选项个数，解析失败时返回 0
func (q *QuizQuestion) OptionCount() int {
	var opts []json.RawMessage
	if len(q.Options) == 0 {
		return 0
	}
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return 0
	}
	return len(opts)
}

// CorrectSet 返回正确选项集合；单选题即 {CorrectAnswerIndex}
func (q *QuizQuestion) CorrectSet() []int {
	if q.QuestionType == QuestionMultiple && len(q.CorrectIndexes) > 0 {
		var idx []int
		if err := json.Unmarshal(q.CorrectIndexes, &idx); err == nil {
			return idx
		}
	}
	return []int{q.CorrectAnswerIndex}
}
