package models

import "time"

// ActiveRun marks a thread chat as currently executing. The unique index on
// UserID is the one-running-per-user mutual-exclusion primitive: a second
// insert for the same user fails at the database, which is what keeps the
// invariant across concurrent service instances.
type ActiveRun struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	UserID       string    `gorm:"size:64;not null;uniqueIndex"`
	ThreadChatID string    `gorm:"size:64;not null;uniqueIndex"`
	InstanceID   string    `gorm:"size:64"`
	StartedAt    time.Time `gorm:"index"`
}
