package models

// ChecklistItem is a node in a task's checklist tree. ParentID of zero
// marks a top-level group heading.
type ChecklistItem struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TaskID    uint   `gorm:"index;not null"`
	ParentID  uint   `gorm:"index;default:0"`
	Title     string `gorm:"size:255;not null"`
	Checked   bool   `gorm:"default:false"`
	SortIndex int    `gorm:"default:0"`
}
