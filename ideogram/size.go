package ideogram

import (
	"encoding/json"
	"errors"
	"fmt"
)

type sizeKind uint8

const (
	sizeUnset sizeKind = iota
	sizeAspect
	sizeResolution
)

// Size is either an aspect ratio or an explicit resolution, never both.
// The zero value is unset; construct one with AspectRatio or Resolution.
type Size struct {
	kind       sizeKind
	aspect     AspectRatioValue
	resolution ResolutionValue
}

// AspectRatio returns a Size fixed to ratio r.
func AspectRatio(r AspectRatioValue) Size {
	return Size{kind: sizeAspect, aspect: r}
}

// Resolution returns a Size fixed to resolution r.
func Resolution(r ResolutionValue) Size {
	return Size{kind: sizeResolution, resolution: r}
}

// IsZero reports whether no size has been chosen.
func (s Size) IsZero() bool { return s.kind == sizeUnset }

// AspectRatio returns the ratio and true when s is an aspect ratio.
func (s Size) AspectRatio() (AspectRatioValue, bool) {
	return s.aspect, s.kind == sizeAspect
}

// Resolution returns the resolution and true when s is a resolution.
func (s Size) Resolution() (ResolutionValue, bool) {
	return s.resolution, s.kind == sizeResolution
}

// Describe renders the size for annotations: "AspectRatio: 1x1" or
// "Resolution: RESOLUTION_1024_1024". Unset sizes render as "".
func (s Size) Describe() string {
	switch s.kind {
	case sizeAspect:
		return "AspectRatio: " + s.aspect.Short()
	case sizeResolution:
		return "Resolution: " + string(s.resolution)
	default:
		return ""
	}
}

func (s Size) String() string {
	switch s.kind {
	case sizeAspect:
		return string(s.aspect)
	case sizeResolution:
		return string(s.resolution)
	default:
		return "unset"
	}
}

// sizeWire is the JSON shape: exactly one key is emitted.
type sizeWire struct {
	AspectRatio AspectRatioValue `json:"aspect_ratio,omitempty"`
	Resolution  ResolutionValue  `json:"resolution,omitempty"`
}

// ErrConflictingSize is returned when decoding a payload that carries both
// an aspect ratio and a resolution.
var ErrConflictingSize = errors.New("ideogram: aspect_ratio and resolution cannot be used together")

func (s Size) wire() sizeWire {
	switch s.kind {
	case sizeAspect:
		return sizeWire{AspectRatio: s.aspect}
	case sizeResolution:
		return sizeWire{Resolution: s.resolution}
	default:
		return sizeWire{}
	}
}

func sizeFromWire(w sizeWire) (Size, error) {
	switch {
	case w.AspectRatio != "" && w.Resolution != "":
		return Size{}, ErrConflictingSize
	case w.AspectRatio != "":
		return AspectRatio(w.AspectRatio), nil
	case w.Resolution != "":
		return Resolution(w.Resolution), nil
	default:
		return Size{}, nil
	}
}

// MarshalJSON encodes a standalone Size as {"aspect_ratio": ...} or
// {"resolution": ...}.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// UnmarshalJSON rejects payloads that set both keys.
func (s *Size) UnmarshalJSON(data []byte) error {
	var w sizeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("ideogram: decode size: %w", err)
	}
	decoded, err := sizeFromWire(w)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
