package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// ReleaseRun reverts a running chat after a failed handoff: the ActiveRun row
// is deleted and the chat goes back to a non-running state so a future drain
// or schedule attempt can retry it. A chat must never sit in running with no
// runner attached.
func (s *Store) ReleaseRun(chatID, backTo string) error {
	if backTo != models.ChatQueued && backTo != models.ChatScheduled {
		return fmt.Errorf("store: release target %q is not queued or scheduled", backTo)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ThreadChat{}).
			Where("id = ? AND status = ?", chatID, models.ChatRunning).
			Updates(map[string]interface{}{
				"status":     backTo,
				"started_at": nil,
			})
		if result.Error != nil {
			return fmt.Errorf("store: release chat %s: %w", chatID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("thread_chat_id = ?", chatID).Delete(&models.ActiveRun{}).Error; err != nil {
			return fmt.Errorf("store: delete active run for %s: %w", chatID, err)
		}
		return nil
	})
}

// CompleteRun finishes a running chat with the given terminal outcome and
// frees the user's active-run slot. Idempotent: completing a chat that
// already carries the requested outcome is a no-op.
func (s *Store) CompleteRun(chatID, outcome string) error {
	if outcome != models.ChatCompleted && outcome != models.ChatFailed {
		return fmt.Errorf("store: outcome %q is not completed or failed", outcome)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var chat models.ThreadChat
		err := tx.Where("id = ?", chatID).First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: load chat %s: %w", chatID, err)
		}

		if chat.Status == outcome {
			return nil
		}
		if chat.Status != models.ChatRunning {
			return fmt.Errorf("store: chat %s is %s, not running: %w", chatID, chat.Status, ErrNotFound)
		}

		now := time.Now()
		if err := tx.Model(&models.ThreadChat{}).Where("id = ?", chatID).Updates(map[string]interface{}{
			"status":       outcome,
			"completed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("store: complete chat %s: %w", chatID, err)
		}

		if err := tx.Where("thread_chat_id = ?", chatID).Delete(&models.ActiveRun{}).Error; err != nil {
			return fmt.Errorf("store: delete active run for %s: %w", chatID, err)
		}
		return nil
	})
}
