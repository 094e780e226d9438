package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

// Options configures the OpenAI assessor.
type Options struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float32
	MaxAttempts     int
	RequestTimeout  time.Duration
	InitialInterval time.Duration
	Logger          *slog.Logger
}

// DefaultOptions returns gpt-4o at temperature 0.2 with three attempts.
func DefaultOptions() Options {
	return Options{
		Model:           openai.GPT4o,
		Temperature:     0.2,
		MaxAttempts:     3,
		RequestTimeout:  5 * time.Minute,
		InitialInterval: 2 * time.Second,
	}
}

// OpenAIAssessor calls an OpenAI compatible chat completion endpoint.
type OpenAIAssessor struct {
	client *openai.Client
	opts   Options
	log    *slog.Logger
}

// NewOpenAIAssessor creates an assessor. An empty BaseURL uses the public OpenAI API.
func NewOpenAIAssessor(opts Options) *OpenAIAssessor {
	defaults := DefaultOptions()
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaults.InitialInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIAssessor{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		log:    opts.Logger.With("component", "assess", "model", opts.Model),
	}
}

// Assess sends the prompt as a single user message. Rate limits, server errors and
// network failures are retried with exponential backoff; other failures return
// immediately.
func (a *OpenAIAssessor) Assess(ctx context.Context, prompt string) (string, error) {
	var content string

	op := func() error {
		text, err := a.complete(ctx, prompt)
		if err != nil {
			if IsTransient(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		content = text
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.opts.InitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.opts.MaxAttempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		a.log.Warn("assessment failed, retrying", "error", err, "backoff", wait)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var transient *TransientError
		if errors.As(err, &transient) {
			err = transient.err
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

func (a *OpenAIAssessor) complete(ctx context.Context, prompt string) (string, error) {
	if a.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.RequestTimeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("response has empty content")
	}
	return content, nil
}

// classify marks rate limits, 5xx responses and transport failures as transient.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return NewTransientError(err)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if retryableStatus(reqErr.HTTPStatusCode) {
			return NewTransientError(err)
		}
		return err
	}

	return NewTransientError(err)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
