package models

import "time"

// Comment is a task discussion entry. A row with IsNewTopic set is the
// topic's auto-generated description echo, never a real comment for sync.
type Comment struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TaskID        uint   `gorm:"index;not null"`
	AuthorID      uint
	AuthorName    string `gorm:"size:128"`
	AuthorEmail   string `gorm:"size:255"`
	Body          string `gorm:"type:text"`
	BodyHTML      string `gorm:"type:text"`
	IsNewTopic    bool   `gorm:"default:false"`
	JiraCommentID *int64 `gorm:"index"`
	EditorName    string `gorm:"size:128"`
	EditorEmail   string `gorm:"size:255"`
	PostedAt      time.Time
	EditedAt      *time.Time

	Task *Task `gorm:"foreignKey:TaskID"`
}
