package models

import "time"

// Dispatch trigger and outcome values recorded in DispatchLog.
const (
	TriggerScheduled = "scheduled"
	TriggerDrain     = "drain"

	OutcomeAdmitted = "admitted"
	OutcomeDeferred = "deferred"
	OutcomeNoop     = "noop"
)

// DispatchLog records every admitted, deferred, or no-op dispatch decision
// for operational monitoring.
type DispatchLog struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Trigger      string `gorm:"size:16;not null;index"`
	UserID       string `gorm:"size:64;not null;index"`
	ThreadID     string `gorm:"size:64"`
	ThreadChatID string `gorm:"size:64;index"`
	Outcome      string `gorm:"size:16;not null"`
	InstanceID   string `gorm:"size:64"`
	CreatedAt    time.Time
}
