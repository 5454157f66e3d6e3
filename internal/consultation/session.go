package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/astro-bot/internal/models"
)

// NewSession creates a session in the initial stage whose transcript starts
// with the assistant's welcome message.
func NewSession(welcome string, now time.Time) *models.Session {
	session := &models.Session{
		ID:        uuid.New().String(),
		Stage:     models.StageInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if welcome != "" {
		session.Append(NewMessage(models.SenderAssistant, welcome, now))
	}
	return session
}

func NewMessage(sender models.Sender, text string, now time.Time) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		CreatedAt: now,
	}
}
