package llm

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"ideobatch/logging"
)

// PromptPlaceholder is replaced by the source prompt in a rewrite template.
const PromptPlaceholder = "{prompt}"

// DefaultRewriteTemplate asks for a single richer prompt and nothing else.
const DefaultRewriteTemplate = `Rewrite the following image generation prompt so it is vivid and specific.
Keep the subject and intent. Describe composition, lighting and style in one paragraph.
Reply with the rewritten prompt only, without quotes or commentary.

Prompt: {prompt}`

// DefaultCacheSize is how many rewrites a Rewriter remembers.
const DefaultCacheSize = 256

// Rewriter expands a cleaned prompt through a Completer. It satisfies
// pipeline.Rewriter.
//
// Distinct source lines often clean to the same prompt ("a fox -hd" and
// "a fox"), so completed rewrites are kept in an LRU cache keyed by the
// cleaned prompt and repeats cost no completion. Failures are not cached.
type Rewriter struct {
	completer   Completer
	template    string
	temperature float32
	cacheSize   int
	cache       *lru.Cache[string, string]
	logger      *logging.Logger
}

// RewriterOption configures a Rewriter.
type RewriterOption func(*Rewriter)

// WithTemplate sets the instruction template. It must contain
// PromptPlaceholder; otherwise the prompt is appended on its own line.
func WithTemplate(template string) RewriterOption {
	return func(r *Rewriter) {
		if strings.TrimSpace(template) != "" {
			r.template = template
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) RewriterOption {
	return func(r *Rewriter) { r.temperature = t }
}

// WithCacheSize sets how many rewrites are remembered. Zero or less
// disables the cache.
func WithCacheSize(n int) RewriterOption {
	return func(r *Rewriter) { r.cacheSize = n }
}

// WithRewriteLogger sets the logger.
func WithRewriteLogger(l *logging.Logger) RewriterOption {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRewriter creates a Rewriter over completer.
func NewRewriter(completer Completer, opts ...RewriterOption) *Rewriter {
	r := &Rewriter{
		completer:   completer,
		template:    DefaultRewriteTemplate,
		temperature: DefaultTemperature,
		cacheSize:   DefaultCacheSize,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		// lru.New only fails for a non-positive size
		r.cache, _ = lru.New[string, string](r.cacheSize)
	}
	return r
}

// Instruction renders the template for prompt.
func (r *Rewriter) Instruction(prompt string) string {
	if strings.Contains(r.template, PromptPlaceholder) {
		return strings.ReplaceAll(r.template, PromptPlaceholder, prompt)
	}
	return r.template + "\n\n" + prompt
}

// Rewrite returns the rewritten prompt.
func (r *Rewriter) Rewrite(ctx context.Context, prompt string) (string, error) {
	if r.cache != nil {
		if hit, ok := r.cache.Get(prompt); ok {
			r.logger.Debug("prompt rewrite cache hit", zap.Int("source_chars", len(prompt)))
			return hit, nil
		}
	}

	out, err := r.completer.Complete(ctx, r.Instruction(prompt), r.temperature)
	if err != nil {
		return "", fmt.Errorf("llm: rewrite with %s: %w", r.completer.Name(), err)
	}

	out = tidyCompletion(out)
	if out == "" {
		return "", ErrEmptyCompletion
	}

	if r.cache != nil {
		r.cache.Add(prompt, out)
	}
	r.logger.Debug("prompt rewritten",
		zap.String("backend", r.completer.Name()),
		zap.Int("source_chars", len(prompt)),
		zap.Int("rewritten_chars", len(out)))
	return out, nil
}

// Cached returns the number of remembered rewrites.
func (r *Rewriter) Cached() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// tidyCompletion flattens a completion to one line and strips the quotes
// and labels models like to add.
func tidyCompletion(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for _, label := range []string{"Rewritten prompt:", "Prompt:"} {
		if len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
			s = strings.TrimSpace(s[len(label):])
		}
	}
	return strings.Trim(s, "\"'` ")
}
