package models

import "time"

// Worklog is a local elapsed-time record attached to a task.
type Worklog struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	TaskID      uint   `gorm:"index;not null"`
	UserID      uint   `gorm:"index"`
	Seconds     int64  `gorm:"not null"`
	CommentText string `gorm:"type:text"`
	CreatedAt   time.Time
	StartedAt   time.Time

	Task *Task `gorm:"foreignKey:TaskID"`
	User *User `gorm:"foreignKey:UserID"`
}

// WorklogIntegration is the join record proving a local worklog has a
// remote counterpart. Its presence, not the worklog row itself, decides
// whether an incoming remote worklog is new.
type WorklogIntegration struct {
	ID            uint  `gorm:"primaryKey;autoIncrement"`
	WorklogID     uint  `gorm:"uniqueIndex;not null"`
	JiraWorklogID *int64 `gorm:"index"`
	CreatedAt     time.Time

	Worklog *Worklog `gorm:"foreignKey:WorklogID"`
}
