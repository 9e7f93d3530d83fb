package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Thread{},
		&models.ThreadChat{},
		&models.ChatMessage{},
		&models.ActiveRun{},
		&models.DispatchLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDemo creates a demo user with one thread and a few queued chats so a
// fresh local install has something to dispatch.
func SeedDemo(db *gorm.DB) (string, error) {
	user := models.User{ID: "demo", Name: "Demo User"}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if result.Error != nil {
		return "", fmt.Errorf("db: seed demo user: %w", result.Error)
	}

	thread := models.Thread{ID: uuid.NewString(), UserID: user.ID, Title: "Demo thread"}
	if err := db.Create(&thread).Error; err != nil {
		return "", fmt.Errorf("db: seed demo thread: %w", err)
	}

	for i := 0; i < 3; i++ {
		chat := models.ThreadChat{
			ID:       uuid.NewString(),
			ThreadID: thread.ID,
			UserID:   user.ID,
			Status:   models.ChatQueued,
		}
		if err := db.Create(&chat).Error; err != nil {
			return "", fmt.Errorf("db: seed demo chat %d: %w", i, err)
		}
		msg := models.ChatMessage{
			ThreadChatID: chat.ID,
			Sequence:     1,
			Role:         "user",
			Content:      fmt.Sprintf("Demo task %d created at %s", i+1, time.Now().Format(time.RFC3339)),
		}
		if err := db.Create(&msg).Error; err != nil {
			return "", fmt.Errorf("db: seed demo message %d: %w", i, err)
		}
	}

	return user.ID, nil
}
