package sync

import (
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/ktlab/jirabridge/internal/models"
)

// DefaultHeartbeatTimeout is the duration after which an import session's
// heartbeat is considered stale and the lock can be reclaimed.
const DefaultHeartbeatTimeout = 15 * time.Minute

// AcquireImportLock attempts to acquire the global import lock. It first
// expires any stale active sessions (heartbeat older than timeout), then
// checks for an existing active session. If none exists, a new one is
// created.
//
// Returns the new ImportSession on success, or an error if an active
// session already holds the lock.
func AcquireImportLock(db *gorm.DB, timeout time.Duration) (*models.ImportSession, error) {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}

	var session *models.ImportSession

	err := db.Transaction(func(tx *gorm.DB) error {
		cutoff := time.Now().Add(-timeout)

		// Expire stale active sessions.
		if err := tx.Model(&models.ImportSession{}).
			Where("status = ? AND last_heartbeat < ?", models.SessionStatusActive, cutoff).
			Updates(map[string]interface{}{
				"status":       models.SessionStatusExpired,
				"completed_at": time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("expire stale sessions: %w", err)
		}

		// Check for an existing active session.
		var existing models.ImportSession
		result := tx.Where("status = ?", models.SessionStatusActive).First(&existing)
		if result.Error == nil {
			return fmt.Errorf("import lock held by %s pid %d (session %d)",
				existing.Hostname, existing.PID, existing.ID)
		}
		if result.Error != gorm.ErrRecordNotFound {
			return fmt.Errorf("check existing session: %w", result.Error)
		}

		hostname, _ := os.Hostname()
		now := time.Now()
		session = &models.ImportSession{
			Status:        models.SessionStatusActive,
			Hostname:      hostname,
			PID:           os.Getpid(),
			StartedAt:     now,
			LastHeartbeat: now,
		}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync: acquire import lock: %w", err)
	}
	return session, nil
}

// ReleaseImportLock marks the session as completed and records counters.
func ReleaseImportLock(db *gorm.DB, sessionID uint, tasksImported, errorCount int) error {
	now := time.Now()
	result := db.Model(&models.ImportSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":         models.SessionStatusCompleted,
			"completed_at":   now,
			"tasks_imported": tasksImported,
			"error_count":    errorCount,
		})
	if result.Error != nil {
		return fmt.Errorf("sync: release import lock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sync: release import lock: session %d not found or not active", sessionID)
	}
	return nil
}

// Heartbeat refreshes the LastHeartbeat timestamp for an active session.
func Heartbeat(db *gorm.DB, sessionID uint) error {
	result := db.Model(&models.ImportSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
		Update("last_heartbeat", time.Now())
	if result.Error != nil {
		return fmt.Errorf("sync: heartbeat: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sync: heartbeat: session %d not found or not active", sessionID)
	}
	return nil
}

// ImportInProgress reports whether an active import session with a fresh
// heartbeat exists. Event handlers check this before exporting so that
// local writes made by the import itself are not pushed back out.
func ImportInProgress(db *gorm.DB, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	cutoff := time.Now().Add(-timeout)

	var count int64
	err := db.Model(&models.ImportSession{}).
		Where("status = ? AND last_heartbeat >= ?", models.SessionStatusActive, cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("sync: check import lock: %w", err)
	}
	return count > 0, nil
}
