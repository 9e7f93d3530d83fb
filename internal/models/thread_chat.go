package models

import "time"

// ThreadChat status values. Completed and failed are terminal; no transition
// leaves a terminal state.
const (
	ChatScheduled = "scheduled"
	ChatQueued    = "queued"
	ChatRunning   = "running"
	ChatCompleted = "completed"
	ChatFailed    = "failed"
)

// ThreadChat is one executable unit of agent work within a thread. Chats are
// created queued or scheduled by collaborators; only the dispatcher moves
// them to running, and only the execution runner moves them out of running.
type ThreadChat struct {
	ID          string `gorm:"primaryKey;size:64"`
	ThreadID    string `gorm:"size:64;not null;index"`
	UserID      string `gorm:"size:64;not null;index"`
	Status      string `gorm:"size:16;default:queued;index"`
	ScheduledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Thread   Thread        `gorm:"foreignKey:ThreadID"`
	Messages []ChatMessage `gorm:"foreignKey:ThreadChatID"`
}

// Terminal reports whether the chat has reached a terminal status.
func (c *ThreadChat) Terminal() bool {
	return c.Status == ChatCompleted || c.Status == ChatFailed
}

// ChatMessage stores a single message in a thread chat's ordered history.
type ChatMessage struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ThreadChatID string `gorm:"size:64;not null;index"`
	Sequence     int    `gorm:"not null"`
	Role         string `gorm:"size:16;not null"` // "user", "assistant", "system"
	Content      string `gorm:"type:mediumtext;not null"`
	CreatedAt    time.Time

	ThreadChat ThreadChat `gorm:"foreignKey:ThreadChatID"`
}
