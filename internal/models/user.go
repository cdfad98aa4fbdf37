package models

import "time"

// User is a marketplace participant. Identity is owned by the session
// provider; this row only carries what negotiations display.
type User struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256"`
	CreatedAt time.Time
}
