// Package store implements the work item store: queries and atomic state
// transitions for thread chats. All mutual exclusion lives here, at the
// database, so multiple service instances can share the one-running-per-user
// invariant.
package store

import (
	"errors"
	"fmt"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors returned by store operations. AlreadyRunning and NoWork are
// expected outcomes, not failures; callers treat them as benign.
var (
	ErrAlreadyRunning = errors.New("store: user already has a running chat")
	ErrNoWork         = errors.New("store: no eligible queued chat")
	ErrNotFound       = errors.New("store: not found")
	ErrFinished       = errors.New("store: chat already finished")
)

// Store wraps a GORM connection with dispatcher-facing operations.
type Store struct {
	db *gorm.DB
}

// New creates a Store over the given database connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// lockForUpdate applies a row lock where the dialect supports it. SQLite has
// no FOR UPDATE; its single-writer transactions serialize claims instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}

// UserExists reports whether the user is known.
func (s *Store) UserExists(userID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: look up user %s: %w", userID, err)
	}
	return count > 0, nil
}

// ChatExists reports whether the chat exists under the given thread and user.
// The full triple is matched so one tenant can never address another's chats.
func (s *Store) ChatExists(userID, threadID, chatID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.ThreadChat{}).
		Where("id = ? AND thread_id = ? AND user_id = ?", chatID, threadID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: look up chat %s: %w", chatID, err)
	}
	return count > 0, nil
}

// ChatByID loads a chat by its id alone, for runner callbacks that only
// carry the chat id.
func (s *Store) ChatByID(chatID string) (*models.ThreadChat, error) {
	var chat models.ThreadChat
	err := s.db.Where("id = ?", chatID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load chat %s: %w", chatID, err)
	}
	return &chat, nil
}

// IsUserRunning reports whether the user currently holds an active run.
func (s *Store) IsUserRunning(userID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.ActiveRun{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: check active run for %s: %w", userID, err)
	}
	return count > 0, nil
}

// RunningChat returns the user's active run, or ErrNotFound.
func (s *Store) RunningChat(userID string) (*models.ActiveRun, error) {
	var run models.ActiveRun
	err := s.db.Where("user_id = ?", userID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load active run for %s: %w", userID, err)
	}
	return &run, nil
}

// NextQueued returns the oldest queued chat for the user without claiming it.
// FIFO order: creation time, ties broken by id for determinism.
func (s *Store) NextQueued(userID string) (*models.ThreadChat, error) {
	var chat models.ThreadChat
	err := s.db.Where("user_id = ? AND status = ?", userID, models.ChatQueued).
		Order("created_at ASC, id ASC").
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoWork
	}
	if err != nil {
		return nil, fmt.Errorf("store: next queued for %s: %w", userID, err)
	}
	return &chat, nil
}

// QueuedChats returns the user's queue in dispatch order.
func (s *Store) QueuedChats(userID string) ([]models.ThreadChat, error) {
	var chats []models.ThreadChat
	err := s.db.Where("user_id = ? AND status = ?", userID, models.ChatQueued).
		Order("created_at ASC, id ASC").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("store: queued chats for %s: %w", userID, err)
	}
	return chats, nil
}

// UsersWithQueuedWork returns the distinct users that have at least one
// queued chat, for the periodic sweep.
func (s *Store) UsersWithQueuedWork() ([]string, error) {
	var users []string
	err := s.db.Model(&models.ThreadChat{}).
		Where("status = ?", models.ChatQueued).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("store: users with queued work: %w", err)
	}
	return users, nil
}

// LogDispatch records a dispatch decision. Best-effort observability; the
// caller decides whether a write failure matters.
func (s *Store) LogDispatch(entry *models.DispatchLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("store: log dispatch: %w", err)
	}
	return nil
}
