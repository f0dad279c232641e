// Package coach is a thin client for an OpenAI-compatible chat endpoint.
// It turns a prompt into text and nothing more.
package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sadopc/pomodash/internal/errors"
)

const systemPrompt = "You are a concise productivity coach for someone using the Pomodoro technique. " +
	"Answer in a few short sentences."

// Model is the subset of llms.Model the coach needs.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Config selects the endpoint.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
}

type Coach struct {
	model       Model
	logger      zerolog.Logger
	temperature float64
}

type Option func(*Coach)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coach) { c.logger = l.With().Str("component", "coach").Logger() }
}

func WithTemperature(t float64) Option {
	return func(c *Coach) { c.temperature = t }
}

// New builds a coach over an OpenAI-compatible endpoint. A missing API key
// returns ErrCoachUnavailable.
func New(cfg Config, opts ...Option) (*Coach, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrCoachUnavailable, "no API key configured")
	}
	llmOpts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		llmOpts = append(llmOpts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewWithModel(llm, opts...), nil
}

// NewWithModel wraps an existing model.
func NewWithModel(m Model, opts ...Option) *Coach {
	c := &Coach{model: m, logger: zerolog.Nop(), temperature: 0.7}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends prompt and returns the first choice's text.
func (c *Coach) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.Wrap(errors.ErrCoachUnavailable, "empty prompt")
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
	if err != nil {
		c.logger.Warn().Err(err).Msg("generate failed")
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.Wrap(errors.ErrCoachUnavailable, "no content generated")
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	if out == "" {
		return "", errors.Wrap(errors.ErrCoachUnavailable, "no content generated")
	}
	c.logger.Debug().Int("prompt_len", len(prompt)).Int("reply_len", len(out)).Msg("generated")
	return out, nil
}
