package models

import "time"

// AttachedObject binds a stored file to a task. Ownership checks go
// through EntityID, never through the webdav list on the task row.
type AttachedObject struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	FileID    uint `gorm:"index;not null"`
	EntityID  uint `gorm:"index;not null"`
	CreatedAt time.Time

	File *FileObject `gorm:"foreignKey:FileID"`
}

// FileObject is a file stored in one of the host storages.
type FileObject struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	StorageID uint   `gorm:"index;not null"`
	Name      string `gorm:"size:255;not null"`
	Path      string `gorm:"size:1024"`
	Size      int64  `gorm:"default:0"`
	CreatedBy uint
	CreatedAt time.Time
}

// Storage is a file root owned by either a group or a user.
type Storage struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	GroupID  *uint  `gorm:"index"`
	UserID   *uint  `gorm:"index"`
	RootPath string `gorm:"size:1024;not null"`
}

// AttachmentIntegration records that a local attachment binding has a
// remote counterpart, keyed by the remote attachment id.
type AttachmentIntegration struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	AttachedObjectID uint   `gorm:"uniqueIndex;not null"`
	JiraAttachmentID *int64 `gorm:"index"`
	CreatedAt        time.Time
}
