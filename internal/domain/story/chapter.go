package story

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Chapter is one committed turn. Numbers are contiguous from 1 per story.
// Everything but Summary is immutable once written.
type Chapter struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_chapter_story_number,priority:1" json:"story_id"`
	Story   *Story    `gorm:"constraint:OnDelete:CASCADE;foreignKey:StoryID;references:ID" json:"-"`
	Number  int       `gorm:"column:number;not null;uniqueIndex:idx_chapter_story_number,priority:2" json:"number"`

	Narration string         `gorm:"column:narration;type:text;not null" json:"narration"`
	Situation string         `gorm:"column:situation;type:text;not null" json:"situation"`
	Choices   datatypes.JSON `gorm:"column:choices;type:jsonb;not null" json:"choices"`
	Action    string         `gorm:"column:action;type:text;not null" json:"action"`
	Outcome   string         `gorm:"column:outcome;type:text;not null" json:"outcome"`
	Summary   *string        `gorm:"column:summary;type:text" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Chapter) TableName() string { return "chapters" }

// ChoiceList decodes Choices. Malformed rows decode to nil.
func (c *Chapter) ChoiceList() []string {
	if c == nil || len(c.Choices) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(c.Choices, &out); err != nil {
		return nil
	}
	return out
}

func EncodeChoices(choices []string) datatypes.JSON {
	if choices == nil {
		choices = []string{}
	}
	b, _ := json.Marshal(choices)
	return datatypes.JSON(b)
}
