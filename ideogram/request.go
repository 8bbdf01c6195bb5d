package ideogram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Params is the per-run parameter snapshot copied onto every request.
type Params struct {
	Size           Size
	Model          Model
	MagicPrompt    MagicPrompt
	StyleType      StyleType
	NegativePrompt string

	// Seed pins the sampler. Nil lets the service choose.
	Seed *int
}

// DefaultParams returns the parameters of the stock batch run: square
// images from V_2 with magic prompt on and the general style.
func DefaultParams() Params {
	return Params{
		Size:        AspectRatio(Aspect1x1),
		Model:       ModelV2,
		MagicPrompt: MagicPromptOn,
		StyleType:   StyleGeneral,
	}
}

// Request builds a generation request for prompt with these parameters.
func (p Params) Request(prompt string) Request {
	return Request{
		Prompt:         prompt,
		Size:           p.Size,
		Model:          p.Model,
		MagicPrompt:    p.MagicPrompt,
		Seed:           p.Seed,
		StyleType:      p.StyleType,
		NegativePrompt: p.NegativePrompt,
	}
}

// Request is the body of one /generate call.
type Request struct {
	Prompt         string
	Size           Size
	Model          Model
	MagicPrompt    MagicPrompt
	Seed           *int
	StyleType      StyleType
	NegativePrompt string
}

// Sentinel validation errors.
var (
	ErrEmptyPrompt = errors.New("ideogram: prompt cannot be empty")
	ErrNoSize      = errors.New("ideogram: an aspect ratio or resolution is required")
)

// Validate rejects requests the service would refuse.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if r.Size.IsZero() {
		return ErrNoSize
	}
	return nil
}

// requestWire mirrors the JSON accepted inside "image_request".
type requestWire struct {
	Prompt         string           `json:"prompt"`
	AspectRatio    AspectRatioValue `json:"aspect_ratio,omitempty"`
	Resolution     ResolutionValue  `json:"resolution,omitempty"`
	Model          Model            `json:"model,omitempty"`
	MagicPrompt    MagicPrompt      `json:"magic_prompt_option,omitempty"`
	Seed           *int             `json:"seed,omitempty"`
	StyleType      StyleType        `json:"style_type,omitempty"`
	NegativePrompt string           `json:"negative_prompt,omitempty"`
}

// MarshalJSON flattens Size into exactly one of aspect_ratio/resolution.
func (r Request) MarshalJSON() ([]byte, error) {
	size := r.Size.wire()
	return json.Marshal(requestWire{
		Prompt:         r.Prompt,
		AspectRatio:    size.AspectRatio,
		Resolution:     size.Resolution,
		Model:          r.Model,
		MagicPrompt:    r.MagicPrompt,
		Seed:           r.Seed,
		StyleType:      r.StyleType,
		NegativePrompt: r.NegativePrompt,
	})
}

// UnmarshalJSON decodes a request, rejecting a payload with both size keys.
func (r *Request) UnmarshalJSON(data []byte) error {
	var w requestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("ideogram: decode request: %w", err)
	}
	size, err := sizeFromWire(sizeWire{AspectRatio: w.AspectRatio, Resolution: w.Resolution})
	if err != nil {
		return err
	}
	*r = Request{
		Prompt:         w.Prompt,
		Size:           size,
		Model:          w.Model,
		MagicPrompt:    w.MagicPrompt,
		Seed:           w.Seed,
		StyleType:      w.StyleType,
		NegativePrompt: w.NegativePrompt,
	}
	return nil
}

// envelope is the top-level POST body.
type envelope struct {
	ImageRequest Request `json:"image_request"`
}
