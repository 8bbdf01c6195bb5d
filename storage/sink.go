// Package storage persists generated artifacts: the raw image, its
// annotated copy and the JSON record of the request and response.
//
// Sinks are best-effort. A failed write never aborts a run; the caller logs
// it and moves on.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Kind selects the artifact type being saved.
type Kind int

const (
	KindRaw Kind = iota
	KindAnnotated
	KindJSON
)

// AnnotatedDir is the subfolder (or key segment) for annotated images.
const AnnotatedDir = "annotated"

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindAnnotated:
		return "annotated"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ContentType returns the MIME type of the artifact.
func (k Kind) ContentType() string {
	if k == KindJSON {
		return "application/json"
	}
	return "image/png"
}

// RelativePath maps an artifact base name to its slash-separated location
// under a sink root:
//
//	raw:       {name}.png
//	annotated: annotated/{name}_annotated.png
//	json:      {name}.json
func (k Kind) RelativePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid artifact name %q", name)
	}

	switch k {
	case KindRaw:
		return name + ".png", nil
	case KindAnnotated:
		return path.Join(AnnotatedDir, name+"_annotated.png"), nil
	case KindJSON:
		return name + ".json", nil
	default:
		return "", fmt.Errorf("storage: unknown kind %v", k)
	}
}

// ErrEmptyName is returned for a blank artifact name.
var ErrEmptyName = errors.New("storage: artifact name is required")

// Sink saves one artifact and returns where it was written.
// Implementations must be safe for concurrent use.
type Sink interface {
	Save(ctx context.Context, kind Kind, data []byte, name string) (string, error)
}

// MultiSink writes every artifact to each of its sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks, skipping nil entries.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// Save writes to every sink. Locations of successful writes are joined
// with ", "; errors of failed writes are joined with errors.Join. One
// failing sink does not stop the others.
func (m *MultiSink) Save(ctx context.Context, kind Kind, data []byte, name string) (string, error) {
	var locations []string
	var errs []error
	for _, s := range m.sinks {
		loc, err := s.Save(ctx, kind, data, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	return strings.Join(locations, ", "), errors.Join(errs...)
}

var _ Sink = (*MultiSink)(nil)
