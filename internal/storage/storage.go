// Package storage keeps consultation sessions and their transcripts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/astro-bot/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type Storage interface {
	SessionStorage
	MessageStorage

	Ping(ctx context.Context) error
	Close() error
}

type SessionStorage interface {
	// CreateSession stores a new session together with any messages it holds.
	CreateSession(ctx context.Context, session *models.Session) error
	// GetSession returns the session with its full transcript.
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// UpdateSession writes profile, stage, question count and updated_at.
	UpdateSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, id string) error
	// DeleteIdleSessions removes sessions not updated since before.
	DeleteIdleSessions(ctx context.Context, before time.Time) (int64, error)
}

type MessageStorage interface {
	// AppendMessage adds msg to the end of its session's transcript.
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
}
