package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/models"
)

// SQLStorage implements Storage on top of sqlx. The same queries serve
// PostgreSQL and SQLite; placeholders are rebound per driver.
type SQLStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSQLStorage(db *sqlx.DB, logger *zap.Logger) *SQLStorage {
	return &SQLStorage{db: db, logger: logger}
}

type sessionRow struct {
	ID            string    `db:"id"`
	Profile       string    `db:"profile"`
	Stage         string    `db:"stage"`
	QuestionCount int       `db:"question_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s *SQLStorage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (s *SQLStorage) CreateSession(ctx context.Context, session *models.Session) error {
	profile, err := json.Marshal(session.Profile)
	if err != nil {
		return fmt.Errorf("error encoding profile: %w", err)
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO sessions (id, profile, stage, question_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, query,
			session.ID,
			string(profile),
			string(session.Stage),
			session.QuestionCount,
			session.CreatedAt.UTC(),
			session.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("error creating session: %w", err)
		}

		for i := range session.Messages {
			msg := session.Messages[i]
			msg.SessionID = session.ID
			if err := insertMessage(ctx, tx, &msg); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMessage(ctx context.Context, tx *sqlx.Tx, msg *models.ChatMessage) error {
	query := tx.Rebind(`
		INSERT INTO messages (id, session_id, seq, sender, text, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?), ?, ?, ?)`)

	if _, err := tx.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.SessionID,
		string(msg.Sender),
		msg.Text,
		msg.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}
	return nil
}

func (s *SQLStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var row sessionRow
	query := s.db.Rebind(`
		SELECT id, profile, stage, question_count, created_at, updated_at
		FROM sessions
		WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("error querying session: %w", err)
	}

	session := &models.Session{
		ID:            row.ID,
		Stage:         models.Stage(row.Stage),
		QuestionCount: row.QuestionCount,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Profile), &session.Profile); err != nil {
		return nil, fmt.Errorf("error decoding profile: %w", err)
	}

	query = s.db.Rebind(`
		SELECT id, session_id, sender, text, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC`)
	if err := s.db.SelectContext(ctx, &session.Messages, query, id); err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}

	return session, nil
}

func (s *SQLStorage) UpdateSession(ctx context.Context, session *models.Session) error {
	profile, err := json.Marshal(session.Profile)
	if err != nil {
		return fmt.Errorf("error encoding profile: %w", err)
	}

	query := s.db.Rebind(`
		UPDATE sessions
		SET profile = ?, stage = ?, question_count = ?, updated_at = ?
		WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query,
		string(profile),
		string(session.Stage),
		session.QuestionCount,
		session.UpdatedAt.UTC(),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}

	return requireAffected(result)
}

func (s *SQLStorage) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE sessions SET updated_at = ? WHERE id = ?`)
		result, err := tx.ExecContext(ctx, query, msg.CreatedAt.UTC(), msg.SessionID)
		if err != nil {
			return fmt.Errorf("error touching session: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		return insertMessage(ctx, tx, msg)
	})
}

func (s *SQLStorage) DeleteSession(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM messages WHERE session_id = ?`), id); err != nil {
			return fmt.Errorf("error deleting messages: %w", err)
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("error deleting session: %w", err)
		}
		return requireAffected(result)
	})
}

func (s *SQLStorage) DeleteIdleSessions(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			DELETE FROM messages
			WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)`)
		if _, err := tx.ExecContext(ctx, query, before.UTC()); err != nil {
			return fmt.Errorf("error deleting idle messages: %w", err)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sessions WHERE updated_at < ?`), before.UTC())
		if err != nil {
			return fmt.Errorf("error deleting idle sessions: %w", err)
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("error getting rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
