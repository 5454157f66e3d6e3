// Package consultation runs the astrology consultation dialogue: it keeps the
// session state, asks the resolver for each reply and advances the stage.
package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/models"
	"github.com/xaenox/astro-bot/internal/resolver"
	"github.com/xaenox/astro-bot/internal/storage"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrInvalidForm    = errors.New("invalid intake form")
)

// Exchange is the outcome of one resolved user turn.
type Exchange struct {
	SessionID     string             `json:"session_id"`
	UserMessage   models.ChatMessage `json:"user_message"`
	Reply         models.ChatMessage `json:"reply"`
	Source        string             `json:"source"`
	Rule          string             `json:"rule,omitempty"`
	Stage         models.Stage       `json:"stage"`
	QuestionCount int                `json:"question_count"`
}

type Options struct {
	Welcome        string
	MaxMessageSize int
	Advancer       Advancer
	Now            func() time.Time
}

type Service struct {
	store          storage.Storage
	resolver       resolver.Resolver
	reporter       resolver.Reporter
	fallback       *resolver.CannedResolver
	advancer       Advancer
	welcome        string
	maxMessageSize int
	now            func() time.Time
	validate       *validator.Validate
	locks          *keyedMutex
	logger         *zap.Logger
}

func NewService(store storage.Storage, res resolver.Resolver, reporter resolver.Reporter, opts Options, logger *zap.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Advancer.Threshold < 1 {
		opts.Advancer = Advancer{Threshold: 5, Target: models.StageAnalysis}
	}

	return &Service{
		store:          store,
		resolver:       res,
		reporter:       reporter,
		fallback:       resolver.NewCannedResolver(),
		advancer:       opts.Advancer,
		welcome:        opts.Welcome,
		maxMessageSize: opts.MaxMessageSize,
		now:            opts.Now,
		validate:       validator.New(),
		locks:          newKeyedMutex(),
		logger:         logger,
	}
}

func (s *Service) checkMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if s.maxMessageSize > 0 && utf8.RuneCountInString(text) > s.maxMessageSize {
		return "", fmt.Errorf("%w: %d characters allowed", ErrMessageTooLong, s.maxMessageSize)
	}
	return text, nil
}

// Start opens a new session. A non-empty seed is submitted as the first user
// message before Start returns.
func (s *Service) Start(ctx context.Context, seed string) (*models.Session, *Exchange, error) {
	hasSeed := strings.TrimSpace(seed) != ""
	if hasSeed {
		if _, err := s.checkMessage(seed); err != nil {
			return nil, nil, err
		}
	}

	session := NewSession(s.welcome, s.now())
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("Consultation started", zap.String("session_id", session.ID), zap.Bool("seeded", hasSeed))

	if !hasSeed {
		return session, nil, nil
	}

	exchange, err := s.Submit(ctx, session.ID, seed)
	if err != nil {
		if derr := s.store.DeleteSession(context.WithoutCancel(ctx), session.ID); derr != nil && !errors.Is(derr, storage.ErrSessionNotFound) {
			s.logger.Warn("Failed to discard seeded session",
				zap.Error(derr),
				zap.String("session_id", session.ID))
		}
		return nil, nil, err
	}

	session, err = s.store.GetSession(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload session: %w", err)
	}
	return session, exchange, nil
}

// Submit records a user message, resolves the reply and advances the stage.
// The session is not locked while the resolver runs, so several turns of one
// session may be in flight; replies are recorded in completion order.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (*Exchange, error) {
	text, err := s.checkMessage(text)
	if err != nil {
		return nil, err
	}

	pending, err := s.recordUserMessage(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}

	reply, err := s.resolver.Resolve(ctx, pending.turn)
	if err != nil || strings.TrimSpace(reply.Text) == "" {
		s.logger.Warn("Resolver gave no usable reply",
			zap.Error(err),
			zap.String("session_id", sessionID))
		reply = s.fallback.Match(pending.turn)
	}

	return s.recordReply(ctx, sessionID, pending, reply)
}

// pendingTurn is a user message that has been saved but not yet answered.
type pendingTurn struct {
	turn    resolver.Turn
	userMsg models.ChatMessage
	// position counts the user messages saved before this one. It equals
	// turn.QuestionCount unless earlier turns were still unanswered.
	position int
}

func (s *Service) recordUserMessage(ctx context.Context, sessionID, text string) (pendingTurn, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return pendingTurn{}, err
	}

	position := 0
	for _, m := range session.Messages {
		if m.Sender == models.SenderUser {
			position++
		}
	}

	turn := resolver.Turn{
		Input:         text,
		History:       session.History(),
		Profile:       session.Profile,
		Stage:         session.Stage,
		QuestionCount: session.QuestionCount,
	}

	msg := NewMessage(models.SenderUser, text, s.now())
	msg.SessionID = sessionID
	if err := s.store.AppendMessage(ctx, &msg); err != nil {
		return pendingTurn{}, fmt.Errorf("failed to save user message: %w", err)
	}

	return pendingTurn{turn: turn, userMsg: msg, position: position}, nil
}

func (s *Service) recordReply(ctx context.Context, sessionID string, pending pendingTurn, reply resolver.Reply) (*Exchange, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msg := NewMessage(models.SenderAssistant, reply.Text, s.now())
	msg.SessionID = sessionID
	if err := s.store.AppendMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	previous := session.Stage
	// The opening fields belong to the first message the user sent, whichever
	// reply finishes first.
	session.Profile = ExtractProfile(session.Profile, pending.turn.Input, pending.position)
	session.Stage, session.QuestionCount = s.advancer.Advance(session.Stage, session.QuestionCount)
	session.UpdatedAt = msg.CreatedAt

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if session.Stage != previous {
		s.logger.Info("Consultation stage advanced",
			zap.String("session_id", sessionID),
			zap.String("from", previous.String()),
			zap.String("to", session.Stage.String()),
			zap.Int("question_count", session.QuestionCount))
	}

	return &Exchange{
		SessionID:     sessionID,
		UserMessage:   pending.userMsg,
		Reply:         msg,
		Source:        reply.Source,
		Rule:          reply.Rule,
		Stage:         session.Stage,
		QuestionCount: session.QuestionCount,
	}, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// Report validates an intake form and produces its one-shot report.
func (s *Service) Report(ctx context.Context, form models.IntakeForm) (resolver.Reply, error) {
	if err := s.validate.Struct(form); err != nil {
		return resolver.Reply{}, fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}

	reply, err := s.reporter.Report(ctx, form)
	if err != nil {
		return resolver.Reply{}, fmt.Errorf("failed to generate report: %w", err)
	}

	s.logger.Info("Intake report generated", zap.String("source", reply.Source))
	return reply, nil
}

// SweepIdle deletes sessions that have not been updated within ttl.
func (s *Service) SweepIdle(ctx context.Context, ttl time.Duration) (int64, error) {
	deleted, err := s.store.DeleteIdleSessions(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle sessions: %w", err)
	}
	return deleted, nil
}

// Ping checks that the session store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
