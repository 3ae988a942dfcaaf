package model

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind 标识可被互动的内容类型
type ContentKind string

const (
	KindExercise ContentKind = "exercise"
	KindLesson   ContentKind = "lesson"
	KindExam     ContentKind = "exam"
	KindSolution ContentKind = "solution"
	KindComment  ContentKind = "comment"
	KindVideo    ContentKind = "video"
)

var AllContentKinds = []ContentKind{KindExercise, KindLesson, KindExam, KindSolution, KindComment, KindVideo}

func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllContentKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// ContentRef 多态引用 (kind, id)，所有互动表都以它代替外键
type ContentRef struct {
	Kind ContentKind `json:"kind"`
	ID   uint        `json:"id"`
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

type ExerciseDifficulty string

const (
	DifficultyEasy   ExerciseDifficulty = "easy"
	DifficultyMedium ExerciseDifficulty = "medium"
	DifficultyHard   ExerciseDifficulty = "hard"
)

// swagger:model Exercise
type Exercise struct {
	BaseModel
	Title      string             `gorm:"size:200;not null" json:"title"`
	Content    string             `gorm:"type:text" json:"content"`
	Difficulty ExerciseDifficulty `gorm:"size:10" json:"difficulty"`
	AuthorID   uint               `gorm:"index" json:"authorId"`
	ViewCount  int                `gorm:"default:0" json:"viewCount"`
}

func (Exercise) TableName() string {
	return "exercises"
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	Title     string `gorm:"size:200;not null" json:"title"`
	Content   string `gorm:"type:text" json:"content"`
	AuthorID  uint   `gorm:"index" json:"authorId"`
	ViewCount int    `gorm:"default:0" json:"viewCount"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// swagger:model Exam
type Exam struct {
	BaseModel
	Title     string `gorm:"size:200;not null" json:"title"`
	Content   string `gorm:"type:text" json:"content"`
	AuthorID  uint   `gorm:"index" json:"authorId"`
	ViewCount int    `gorm:"default:0" json:"viewCount"`
}

func (Exam) TableName() string {
	return "exams"
}

type Solution struct {
	BaseModel
	ExerciseID uint   `gorm:"uniqueIndex" json:"exerciseId"`
	Content    string `gorm:"type:text" json:"content"`
	AuthorID   uint   `gorm:"index" json:"authorId"`
}

func (Solution) TableName() string {
	return "solutions"
}

type Comment struct {
	BaseModel
	ExerciseID uint   `gorm:"index" json:"exerciseId"`
	ParentID   *uint  `gorm:"index" json:"parentId,omitempty"`
	Content    string `gorm:"type:text" json:"content"`
	AuthorID   uint   `gorm:"index" json:"authorId"`
}

func (Comment) TableName() string {
	return "comments"
}

// ContentHandle 解析后的内容句柄，只暴露互动模块需要的字段
type ContentHandle struct {
	Ref       ContentRef `json:"ref"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"createdAt"`
}
