package processor

import (
	"github.com/MikeSquared-Agency/studyplan/internal/prompt"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

// Session is the per-user conversation state a Processor works on. A
// session is owned by one caller at a time; callers serialize turns.
type Session struct {
	ID             string
	ConversationID string
	History        []store.Message
	Settings       prompt.Settings
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}
