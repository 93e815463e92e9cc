package domain

import (
	"github.com/yungbote/quest-backend/internal/domain/story"
	"github.com/yungbote/quest-backend/internal/domain/user"
)

const (
	StoryStatusActive = story.StatusActive
	StoryStatusOver   = story.StatusOver

	RoleUser      = story.RoleUser
	RoleAssistant = story.RoleAssistant
	RoleSystem    = story.RoleSystem
)

type (
	User     = user.User
	UserInfo = user.UserInfo

	Story       = story.Story
	StoryStatus = story.Status
	Chapter     = story.Chapter
	Message     = story.Message
)

var EncodeChoices = story.EncodeChoices

// Models lists every persisted type, in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Story{},
		&Chapter{},
		&Message{},
	}
}
