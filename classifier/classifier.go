// Package classifier judges listing descriptions with a language model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aluiziolira/autotrader-watch/models"
)

// Classifier maps a description to a Verdict.
type Classifier interface {
	Classify(ctx context.Context, description string) (models.Verdict, error)
}

const systemPrompt = "You are an assistant helping to evaluate car listings in Canada. " +
	"Based on the description provided, respond with one of the following words exactly: 'good', 'bad', or 'maybe ok'. " +
	"Consider if the car might be a scam, if it has issues with the engine or transmission, " +
	"if it needs a lot of repairs, or if it can pass a road test. " +
	"Respond only with 'good', 'bad', or 'maybe ok', and nothing else."

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("classifier: empty response")

// ParseVerdict normalises a model reply. Anything but the three expected
// answers is VerdictError.
func ParseVerdict(reply string) models.Verdict {
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "good":
		return models.VerdictGood
	case "bad":
		return models.VerdictBad
	case "maybe ok":
		return models.VerdictMaybe
	default:
		return models.VerdictError
	}
}

// Config configures the OpenAI classifier.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL string
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// OpenAI classifies through the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a classifier for cfg.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("classifier: api key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), model: model}, nil
}

// Classify asks the model for a one-word judgement. Transport and API
// failures are returned as errors; an unexpected reply is VerdictError with
// a nil error.
func (o *OpenAI) Classify(ctx context.Context, description string) (models.Verdict, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: description},
		},
		MaxTokens:   3,
		Temperature: 0,
		N:           1,
	})
	if err != nil {
		return models.VerdictError, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.VerdictError, ErrEmptyResponse
	}

	reply := resp.Choices[0].Message.Content
	verdict := ParseVerdict(reply)
	if verdict == models.VerdictError {
		slog.Warn("unexpected classifier reply", slog.String("reply", reply))
	} else {
		slog.Debug("classifier reply", slog.String("verdict", string(verdict)))
	}
	return verdict, nil
}
