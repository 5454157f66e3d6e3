// Package resolver produces the astrologer's next message for a consultation
// turn, either from a remote completion service or from canned templates.
package resolver

import (
	"context"
	"errors"

	"github.com/xaenox/astro-bot/internal/models"
)

// ErrCompletionUnavailable covers every way the remote completion can fail:
// transport errors, error statuses, malformed bodies and empty answers.
var ErrCompletionUnavailable = errors.New("completion unavailable")

const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// Turn is everything a resolver may look at to answer the latest message.
type Turn struct {
	Input         string
	History       []models.ChatMessage
	Profile       models.UserProfile
	Stage         models.Stage
	QuestionCount int
}

// Reply is the resolved assistant text and where it came from. Rule names
// the fallback rule that matched and is empty for remote replies.
type Reply struct {
	Text   string
	Source string
	Rule   string
}

type Resolver interface {
	Resolve(ctx context.Context, turn Turn) (Reply, error)
}

// Reporter turns a completed intake form into a single report.
type Reporter interface {
	Report(ctx context.Context, form models.IntakeForm) (Reply, error)
}
