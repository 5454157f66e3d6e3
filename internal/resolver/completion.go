package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/models"
)

type CompletionConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	ReportMaxTokens int
	Temperature     float64
	TopP            float64
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// CompletionResolver asks an OpenAI-compatible chat completion endpoint for
// the reply and drops to the canned ladder whenever that fails.
type CompletionResolver struct {
	client          *openai.Client
	model           string
	maxTokens       int
	reportMaxTokens int
	temperature     float64
	topP            float64
	timeout         time.Duration
	fallback        *CannedResolver
	logger          *zap.Logger
}

func NewCompletionResolver(cfg CompletionConfig, fallback *CannedResolver, logger *zap.Logger) *CompletionResolver {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	if fallback == nil {
		fallback = NewCannedResolver()
	}
	if cfg.ReportMaxTokens <= 0 {
		cfg.ReportMaxTokens = cfg.MaxTokens
	}

	return &CompletionResolver{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           cfg.Model,
		maxTokens:       cfg.MaxTokens,
		reportMaxTokens: cfg.ReportMaxTokens,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		timeout:         cfg.Timeout,
		fallback:        fallback,
		logger:          logger,
	}
}

func (c *CompletionResolver) Resolve(ctx context.Context, turn Turn) (Reply, error) {
	text, err := c.Complete(ctx, buildConsultationPrompt(turn), turn.Input, c.maxTokens)
	if err != nil {
		reply := c.fallback.Match(turn)
		c.logger.Warn("Using fallback reply",
			zap.Error(err),
			zap.String("stage", turn.Stage.String()),
			zap.Int("question_count", turn.QuestionCount),
			zap.String("rule", reply.Rule))
		return reply, nil
	}

	return Reply{Text: text, Source: SourceRemote}, nil
}

func (c *CompletionResolver) Report(ctx context.Context, form models.IntakeForm) (Reply, error) {
	text, err := c.Complete(ctx, reportSystemPrompt, buildReportPrompt(form), c.reportMaxTokens)
	if err != nil {
		c.logger.Warn("Using fallback report", zap.Error(err))
		return c.fallback.Report(ctx, form)
	}

	return Reply{Text: text, Source: SourceRemote}, nil
}

// Complete sends one system + user exchange and returns the first choice
// verbatim. Every failure is reported as ErrCompletionUnavailable.
func (c *CompletionResolver) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: user,
				},
			},
			MaxTokens:   maxTokens,
			Temperature: float32(c.temperature),
			TopP:        float32(c.topP),
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrCompletionUnavailable)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrCompletionUnavailable)
	}

	return content, nil
}
