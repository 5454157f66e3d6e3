package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/models"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	sqliteStore, err := OpenSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqliteStore,
	}
}

func newSession(at time.Time) *models.Session {
	s := &models.Session{
		ID:        uuid.New().String(),
		Stage:     models.StageInitial,
		CreatedAt: at,
		UpdatedAt: at,
	}
	s.Append(models.ChatMessage{
		ID:        uuid.New().String(),
		Sender:    models.SenderAssistant,
		Text:      "Welcome",
		CreatedAt: at,
	})
	return s
}

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			session := newSession(base)
			require.NoError(t, store.CreateSession(ctx, session))

			for i, text := range []string{"first", "second", "third"} {
				require.NoError(t, store.AppendMessage(ctx, &models.ChatMessage{
					ID:        uuid.New().String(),
					SessionID: session.ID,
					Sender:    models.SenderUser,
					Text:      text,
					CreatedAt: base.Add(time.Duration(i+1) * time.Second),
				}))
			}

			session.Profile = models.UserProfile{Name: "Asha", BirthPlace: "Pune"}
			session.Stage = models.StageGathering
			session.QuestionCount = 2
			session.UpdatedAt = base.Add(time.Minute)
			require.NoError(t, store.UpdateSession(ctx, session))

			got, err := store.GetSession(ctx, session.ID)
			require.NoError(t, err)

			assert.Equal(t, session.ID, got.ID)
			assert.Equal(t, models.StageGathering, got.Stage)
			assert.Equal(t, 2, got.QuestionCount)
			assert.Equal(t, "Asha", got.Profile.Name)
			assert.Equal(t, "Pune", got.Profile.BirthPlace)
			assert.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))

			require.Len(t, got.Messages, 4)
			texts := make([]string, 0, len(got.Messages))
			for _, m := range got.Messages {
				assert.Equal(t, session.ID, m.SessionID)
				texts = append(texts, m.Text)
			}
			assert.Equal(t, []string{"Welcome", "first", "second", "third"}, texts)
			assert.Equal(t, models.SenderAssistant, got.Messages[0].Sender)
		})
	}
}

func TestStorageNotFound(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetSession(ctx, "missing")
			assert.ErrorIs(t, err, ErrSessionNotFound)

			err = store.UpdateSession(ctx, &models.Session{ID: "missing", Stage: models.StageInitial})
			assert.ErrorIs(t, err, ErrSessionNotFound)

			err = store.AppendMessage(ctx, &models.ChatMessage{ID: uuid.New().String(), SessionID: "missing", Sender: models.SenderUser})
			assert.ErrorIs(t, err, ErrSessionNotFound)

			assert.ErrorIs(t, store.DeleteSession(ctx, "missing"), ErrSessionNotFound)
		})
	}
}

func TestStorageDeleteIdleSessions(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			stale := newSession(base)
			fresh := newSession(base.Add(2 * time.Hour))
			require.NoError(t, store.CreateSession(ctx, stale))
			require.NoError(t, store.CreateSession(ctx, fresh))

			deleted, err := store.DeleteIdleSessions(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted)

			_, err = store.GetSession(ctx, stale.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
			_, err = store.GetSession(ctx, fresh.ID)
			assert.NoError(t, err)

			require.NoError(t, store.DeleteSession(ctx, fresh.ID))
			_, err = store.GetSession(ctx, fresh.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	session := newSession(time.Now())
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	got.Messages[0].Text = "changed"
	got.Stage = models.StageReport

	again, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", again.Messages[0].Text)
	assert.Equal(t, models.StageInitial, again.Stage)
}
