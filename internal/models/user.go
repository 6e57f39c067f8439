package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50" json:"username"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password;size:255;not null" json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"created_at"`
	Avatar       *string   `gorm:"size:255" json:"avatar"`
	RefreshToken *string   `gorm:"size:512" json:"-"`
	Confirmed    bool      `gorm:"not null;default:false" json:"confirmed"`
}

// TableName pins the table name.
func (User) TableName() string { return "users" }
