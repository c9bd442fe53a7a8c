package models

import "time"

// Import session states. Exactly one active session may exist at a time;
// sessions whose heartbeat goes stale are expired by the next acquirer.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusExpired   = "expired"
)

// ImportSession is the database-backed import lock. A row in the active
// state means an import run holds the lock; LastHeartbeat is refreshed
// while the run progresses.
type ImportSession struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Status        string `gorm:"size:16;index;not null"`
	Hostname      string `gorm:"size:128"`
	PID           int
	StartedAt     time.Time
	LastHeartbeat time.Time `gorm:"index"`
	CompletedAt   *time.Time
	TasksImported int `gorm:"default:0"`
	ErrorCount    int `gorm:"default:0"`
}
