package pipeline

import (
	"strings"

	"ideobatch/ideogram"
)

// Separator joins the visible prompt and the steering text in the single
// string the service accepts. SeparatorMark is what PruneSteering looks for,
// since the service may alter the surrounding spaces when it echoes.
const (
	Separator     = " ___ "
	SeparatorMark = "___"
)

// PromptText keeps user-visible prompt text apart from steering text that
// must never surface in annotations or logs.
type PromptText struct {
	// Visible is PermanentPrefix + the cleaned (or rewritten) prompt.
	Visible string

	// Steering is the variant text + PermanentSuffix.
	Steering string
}

// FinalText is the string sent to the service.
func (p PromptText) FinalText() string {
	return p.Visible + Separator + p.Steering
}

// Annotation is one labelled provenance line carried with a job.
type Annotation struct {
	Label string
	Value string
}

// Job is one generation request. Jobs are created by Expand and consumed
// exactly once by the dispatcher.
type Job struct {
	// Index is the 0-based mint order.
	Index int

	// Source is the prompt line the job came from, before cleaning.
	Source string

	// Copy and Variant are 0-based positions within the expansion loops.
	Copy    int
	Variant int

	Prompt      PromptText
	Params      ideogram.Params
	Annotations []Annotation
}

// Request builds the ideogram request for the job.
func (j Job) Request() ideogram.Request {
	return j.Params.Request(j.Prompt.FinalText())
}

// Annotation returns the value for label and whether it was present.
func (j Job) Annotation(label string) (string, bool) {
	for _, a := range j.Annotations {
		if a.Label == label {
			return a.Value, true
		}
	}
	return "", false
}

// PruneSteering cuts echo at the first occurrence of mark and trims the
// trailing whitespace, so the steering text the service echoes back never
// leaks into user-visible output. echo is returned trimmed when mark is
// absent.
func PruneSteering(echo, mark string) string {
	if mark != "" {
		if i := strings.Index(echo, mark); i >= 0 {
			echo = echo[:i]
		}
	}
	return strings.TrimSpace(echo)
}
