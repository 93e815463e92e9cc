package story

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusOver   Status = "OVER"
)

type Story struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	// Title is chapter 1's narration, truncated. Set once by init.
	Title  *string `gorm:"column:title;type:text" json:"title,omitempty"`
	IsOver bool    `gorm:"column:is_over;not null;default:false" json:"is_over"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Story) TableName() string { return "stories" }

func (s *Story) Status() Status {
	if s.IsOver {
		return StatusOver
	}
	return StatusActive
}
