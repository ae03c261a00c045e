package model

import "time"

// User owns plan instances and carries the cumulative points balance.
// Points may go negative after penalties.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	TelegramID *int64 `gorm:"uniqueIndex" json:"telegramId,omitempty"`
	Username   string `json:"username"`
	Email      string `gorm:"index" json:"email,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Points     int    `gorm:"not null;default:0" json:"points"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
