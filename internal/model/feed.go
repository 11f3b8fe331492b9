package model

import "time"

type Feed struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	URL       string    `gorm:"size:500;uniqueIndex;not null" json:"url"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  bool      `gorm:"index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
