package models

import "time"

// User is the tenancy boundary. Every dispatch operation is scoped to exactly
// one user; no handler may read or mutate rows belonging to another user.
type User struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time

	Threads []Thread `gorm:"foreignKey:UserID"`
}
