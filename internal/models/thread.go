package models

import "time"

// Thread is a conversation owned by a user. Thread IDs are unique within
// their owning user.
type Thread struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"size:64;not null;index"`
	Title     string `gorm:"size:256"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User  User         `gorm:"foreignKey:UserID"`
	Chats []ThreadChat `gorm:"foreignKey:ThreadID"`
}
