package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// ClaimNextQueued atomically selects the oldest queued chat for the user and
// transitions it to running. The ActiveRun insert and the status flip happen
// in one transaction; the unique index on active_runs.user_id rejects a
// second concurrent claim even across service instances.
//
// Returns ErrAlreadyRunning when the user holds an active run, ErrNoWork when
// the queue is empty.
func (s *Store) ClaimNextQueued(userID, instanceID string) (*models.ThreadChat, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: userID is required")
	}

	var claimed models.ThreadChat

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var running int64
		if err := tx.Model(&models.ActiveRun{}).Where("user_id = ?", userID).Count(&running).Error; err != nil {
			return fmt.Errorf("store: check active run: %w", err)
		}
		if running > 0 {
			return ErrAlreadyRunning
		}

		result := lockForUpdate(tx).
			Where("user_id = ? AND status = ?", userID, models.ChatQueued).
			Order("created_at ASC, id ASC").
			Limit(1).
			Find(&claimed)
		if result.Error != nil {
			return fmt.Errorf("store: find queued chat: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNoWork
		}

		return s.markRunning(tx, &claimed, instanceID)
	})
	if err != nil {
		// The unique index is the backstop for races the pre-check missed.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	return &claimed, nil
}

// ScheduledClaim is the outcome of ClaimScheduled.
type ScheduledClaim struct {
	Chat     *models.ThreadChat
	Deferred bool
}

// ClaimScheduled atomically transitions one named chat to running. If the
// user already holds an active run, the chat is re-queued instead of started
// so a later drain picks it up; scheduled work is deferred, never dropped.
//
// Returns ErrNotFound when the (user, thread, chat) triple does not match,
// ErrAlreadyRunning when this same chat is in flight, ErrFinished when it has
// already reached a terminal state. Both of the latter are benign under retry.
func (s *Store) ClaimScheduled(userID, threadID, chatID, instanceID string) (*ScheduledClaim, error) {
	if userID == "" || threadID == "" || chatID == "" {
		return nil, fmt.Errorf("store: userID, threadID and chatID are required")
	}

	var outcome ScheduledClaim

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var chat models.ThreadChat
		result := lockForUpdate(tx).
			Where("id = ? AND thread_id = ? AND user_id = ?", chatID, threadID, userID).
			Limit(1).
			Find(&chat)
		if result.Error != nil {
			return fmt.Errorf("store: find scheduled chat: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		switch {
		case chat.Status == models.ChatRunning:
			return ErrAlreadyRunning
		case chat.Terminal():
			return ErrFinished
		}

		var running int64
		if err := tx.Model(&models.ActiveRun{}).Where("user_id = ?", userID).Count(&running).Error; err != nil {
			return fmt.Errorf("store: check active run: %w", err)
		}
		if running > 0 {
			// Defer: park the chat on the queue for the next drain.
			if err := tx.Model(&models.ThreadChat{}).Where("id = ?", chat.ID).
				Update("status", models.ChatQueued).Error; err != nil {
				return fmt.Errorf("store: defer chat %s: %w", chat.ID, err)
			}
			chat.Status = models.ChatQueued
			outcome = ScheduledClaim{Chat: &chat, Deferred: true}
			return nil
		}

		if err := s.markRunning(tx, &chat, instanceID); err != nil {
			return err
		}
		outcome = ScheduledClaim{Chat: &chat}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	return &outcome, nil
}

// markRunning inserts the ActiveRun row and flips the chat to running inside
// the caller's transaction.
func (s *Store) markRunning(tx *gorm.DB, chat *models.ThreadChat, instanceID string) error {
	now := time.Now()

	run := models.ActiveRun{
		UserID:       chat.UserID,
		ThreadChatID: chat.ID,
		InstanceID:   instanceID,
		StartedAt:    now,
	}
	if err := tx.Create(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return gorm.ErrDuplicatedKey
		}
		return fmt.Errorf("store: create active run for %s: %w", chat.ID, err)
	}

	if err := tx.Model(&models.ThreadChat{}).Where("id = ?", chat.ID).Updates(map[string]interface{}{
		"status":     models.ChatRunning,
		"started_at": now,
	}).Error; err != nil {
		return fmt.Errorf("store: mark chat %s running: %w", chat.ID, err)
	}
	chat.Status = models.ChatRunning
	chat.StartedAt = &now
	return nil
}
