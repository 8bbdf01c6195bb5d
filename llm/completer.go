// Package llm provides the text generation backends used to rewrite prompts
// before they are sent to the image service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ideobatch/core"
)

// DefaultTemperature is used by the rewriter when none is configured.
const DefaultTemperature float32 = 0.8

// ErrEmptyCompletion is returned when a backend answers without any text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)

	// Name identifies the backend and model in logs.
	Name() string
}

// FromSettings returns the completer selected by settings. The OpenAI
// compatible backend wins when both keys are present.
//
// Example:
//
//	completer, err := llm.FromSettings(ctx, settings)
//	if err != nil {
//	    return err
//	}
//	rewriter := llm.NewRewriter(completer)
func FromSettings(ctx context.Context, settings *core.Settings) (Completer, error) {
	switch {
	case strings.TrimSpace(settings.OpenAIAPIKey) != "":
		return NewOpenAICompleter(OpenAIConfig{
			APIKey:     settings.OpenAIAPIKey,
			BaseURL:    settings.OpenAIBaseURL,
			Model:      settings.RewriteModel,
			HTTPClient: settings.HTTPClient(),
		}), nil
	case strings.TrimSpace(settings.GeminiAPIKey) != "":
		completer, err := NewGeminiCompleter(ctx, GeminiConfig{
			APIKey:     settings.GeminiAPIKey,
			Model:      settings.GeminiModel,
			HTTPClient: settings.HTTPClient(),
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create gemini client: %w", err)
		}
		return completer, nil
	default:
		return nil, core.ErrMissingAuth("rewrite")
	}
}
