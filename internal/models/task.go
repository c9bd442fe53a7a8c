package models

import "time"

// Task statuses mirroring the host task store's state machine. Only the
// terminal state matters to sync: completed tasks are never updated from
// the remote side.
const (
	TaskStatusNew        = 1
	TaskStatusInProgress = 3
	TaskStatusCompleted  = 5
)

// Task is the local issue record. JiraID links it to its counterpart in
// the remote tracker and is unique within a project.
type Task struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	Title             string `gorm:"size:255;not null"`
	Description       string `gorm:"type:text"`
	GroupID           uint   `gorm:"index;not null"`
	ResponsibleID     uint   `gorm:"index"`
	CreatedBy         uint
	ParentID          *uint  `gorm:"index"`
	JiraID            *int64 `gorm:"index"`
	Status            int    `gorm:"default:1;index"`
	Zombie            bool   `gorm:"default:false"`
	TimeEstimate      int64  `gorm:"default:0"`
	AllowTimeTracking bool   `gorm:"default:false"`
	Deadline          *time.Time
	CreatedAt         time.Time
	ChangedAt         time.Time `gorm:"index"`
	ChangedBy         uint

	// WebdavFileList is the delimited attachment-id list maintained by the
	// host store. Ids prefixed with "n" are pending bindings.
	WebdavFileList string `gorm:"size:1024"`

	// JiraChecklistCommentID tracks the single remote comment that mirrors
	// this task's checklist tree.
	JiraChecklistCommentID *int64

	Project     *Project  `gorm:"foreignKey:GroupID"`
	Parent      *Task     `gorm:"foreignKey:ParentID"`
	Responsible *User     `gorm:"foreignKey:ResponsibleID"`
	Comments    []Comment `gorm:"foreignKey:TaskID"`
}

// Completed reports whether the task reached its terminal state locally.
func (t *Task) Completed() bool {
	return t.Status == TaskStatusCompleted
}
