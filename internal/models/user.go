package models

import "strings"

// User is a local account that remote assignees and authors are matched
// against by email.
type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Login    string `gorm:"size:64;uniqueIndex"`
	Email    string `gorm:"size:255;index"`
	Name     string `gorm:"size:64"`
	LastName string `gorm:"size:64"`
}

// FormattedName returns "Name LastName", falling back to the login.
func (u *User) FormattedName() string {
	full := strings.TrimSpace(u.Name + " " + u.LastName)
	if full == "" {
		return u.Login
	}
	return full
}
