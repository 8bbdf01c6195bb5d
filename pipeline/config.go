// Package pipeline expands a prompt list into the flat list of generation
// jobs for one batch run.
package pipeline

import (
	"context"
	"fmt"

	"ideobatch/ideogram"
	"ideobatch/prompts"
)

// Rewriter turns a cleaned prompt into the prompt actually sent. It is
// called once per admitted prompt, before copies and variants are crossed.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// RunConfig describes one batch. Build it once, validate it, then treat it
// as read-only.
type RunConfig struct {
	RandomizeOrder bool
	Clean          prompts.CleanFunc
	Filter         prompts.FilterFunc

	// CreationLimit caps the number of jobs minted across the whole run.
	CreationLimit int

	// CopiesPer is how many times each (prompt, variant) pair is generated.
	CopiesPer int

	// Variants are appended to every prompt in order. "" runs the prompt
	// as given. At least one entry is required.
	Variants []string

	PermanentPrefix string
	PermanentSuffix string

	// Params is copied onto every job.
	Params ideogram.Params

	// Seed drives the shuffle. 0 picks a time-based seed.
	Seed int64

	// Rewriter is optional.
	Rewriter Rewriter
}

// ValidationError reports a malformed RunConfig field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline: invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the config before any job is minted.
func (c RunConfig) Validate() error {
	switch {
	case len(c.Variants) == 0:
		return &ValidationError{Field: "Variants", Reason: `at least one variant is required (use "" to run prompts as given)`}
	case c.CreationLimit <= 0:
		return &ValidationError{Field: "CreationLimit", Reason: fmt.Sprintf("must be positive, got %d", c.CreationLimit)}
	case c.CopiesPer < 1:
		return &ValidationError{Field: "CopiesPer", Reason: fmt.Sprintf("must be at least 1, got %d", c.CopiesPer)}
	case c.Clean == nil:
		return &ValidationError{Field: "Clean", Reason: "is nil (use prompts.Identity to keep prompts as given)"}
	case c.Filter == nil:
		return &ValidationError{Field: "Filter", Reason: "is nil (use prompts.AcceptAll to keep every prompt)"}
	case c.Params.Size.IsZero():
		return &ValidationError{Field: "Params.Size", Reason: "an aspect ratio or resolution is required"}
	}
	return nil
}

// TitleVariant asks the model to invent and render a title.
const TitleVariant = " (((You MUST choose a short, funny and clear TITLE and include a description of how it appears integrated into the description, including the exact wording in quotes, the font, and the location it will appear in the image.)))"

// DefaultSuffix is the steering appended to every prompt by the stock run.
const DefaultSuffix = " (((Based on the preceding subject, here is additional guidance: first, add lots of details and expand the idea into something concrete and specific. " +
	"Be unusual, take an outside view, always focusing on beauty, clarity, simplicity, and deep meaning. " +
	"Be creative and choose unusual composition styles, layouts, artistic styles such as individual styles of photograph, line drawing, clay painting, folded paper, brutalist architecture, watercolors, asian art, matte paintings, as you describe the image you imagine based on this theme. " +
	"There are NO limits but the image must be SHARP and clear, high resolution. " +
	"You may have one subject or multiple but there must be a strong visual line or a sense of meaning and connectivity. " +
	"Extensively add many details and choices, particularly paying attention to the implied requirements or interests of the prompt including references.)))"

// DefaultRunConfig returns the stock batch: shuffled, default clean and
// filter rules, 50 images, two copies of a plain and a titled variant.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		RandomizeOrder:  true,
		Clean:           prompts.DefaultCleaner(),
		Filter:          prompts.DefaultFilter(),
		CreationLimit:   50,
		CopiesPer:       2,
		Variants:        []string{"", TitleVariant},
		PermanentSuffix: DefaultSuffix,
		Params:          ideogram.DefaultParams(),
	}
}
