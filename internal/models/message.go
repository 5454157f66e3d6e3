package models

import "time"

// Sender identifies who wrote a chat message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one entry of a consultation transcript. Messages are only
// ever appended to a session.
type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Sender    Sender    `json:"sender" db:"sender"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// Session is a single consultation conversation with its accumulated state
type Session struct {
	ID            string        `json:"id"`
	Messages      []ChatMessage `json:"messages"`
	Profile       UserProfile   `json:"profile"`
	Stage         Stage         `json:"stage"`
	QuestionCount int           `json:"question_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Append adds a message to the end of the transcript.
func (s *Session) Append(msg ChatMessage) {
	msg.SessionID = s.ID
	s.Messages = append(s.Messages, msg)
	if msg.CreatedAt.After(s.UpdatedAt) {
		s.UpdatedAt = msg.CreatedAt
	}
}

// History returns a copy of the transcript.
func (s *Session) History() []ChatMessage {
	out := make([]ChatMessage, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// LastMessage returns the most recent message, if any.
func (s *Session) LastMessage() (ChatMessage, bool) {
	if len(s.Messages) == 0 {
		return ChatMessage{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = s.History()
	return &c
}

// Stage is the coarse consultation progress label.
type Stage string

const (
	StageInitial   Stage = "initial"
	StageGathering Stage = "gathering"
	StageAnalysis  Stage = "analysis"
	StageReport    Stage = "report"
)

var stageRanks = map[Stage]int{
	StageInitial:   0,
	StageGathering: 1,
	StageAnalysis:  2,
	StageReport:    3,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageRanks[s]
	return ok
}

// Rank orders stages so that transitions can be checked to only move forward.
// Unknown stages rank below initial.
func (s Stage) Rank() int {
	if r, ok := stageRanks[s]; ok {
		return r
	}
	return -1
}

func (s Stage) String() string {
	return string(s)
}
