package models

import "time"

// Offer is a seller's listing.
type Offer struct {
	ID        string  `gorm:"primaryKey;size:32"`
	UserID    string  `gorm:"size:32;not null;index"`
	Title     string  `gorm:"size:256;not null"`
	Price     float64 `gorm:"not null"`
	Quantity  float64 `gorm:"not null"`
	Unit      string  `gorm:"size:16"`
	Location  string  `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

// Demand is a buyer's listing.
type Demand struct {
	ID        string  `gorm:"primaryKey;size:32"`
	UserID    string  `gorm:"size:32;not null;index"`
	Title     string  `gorm:"size:256;not null"`
	MaxPrice  float64 `gorm:"not null"`
	Quantity  float64 `gorm:"not null"`
	Unit      string  `gorm:"size:16"`
	Location  string  `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}
