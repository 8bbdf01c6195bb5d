package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSink writes artifacts below a root folder.
type LocalSink struct {
	root string
}

// NewLocalSink creates a sink rooted at root. The folder is created on
// first write.
func NewLocalSink(root string) (*LocalSink, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: local root is required")
	}
	return &LocalSink{root: root}, nil
}

// Root returns the sink folder.
func (s *LocalSink) Root() string { return s.root }

// Save writes data and returns the file path.
func (s *LocalSink) Save(ctx context.Context, kind Kind, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := kind.RelativePath(name)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("storage: create folder for %s: %w", kind, err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", target, err)
	}
	return target, nil
}

var _ Sink = (*LocalSink)(nil)
