package user

import (
	"time"

	"github.com/google/uuid"
)

// User is created on the first authenticated request for an unseen email.
// Only IsActive is ever mutated afterwards.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	IsActive bool      `gorm:"column:is_active;not null;default:false" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// UserInfo is the resolved caller identity handed to the story engine.
type UserInfo struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Locale string    `json:"locale,omitempty"`
}
