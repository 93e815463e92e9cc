package story

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry of the conversation fed back to the narrator,
// ordered by Seq within a story.
type Message struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_message_story_seq,priority:1" json:"story_id"`
	Story   *Story    `gorm:"constraint:OnDelete:CASCADE;foreignKey:StoryID;references:ID" json:"-"`
	Seq     int64     `gorm:"column:seq;not null;uniqueIndex:idx_message_story_seq,priority:2" json:"seq"`

	Role    string `gorm:"column:role;not null" json:"role"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
