package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaticCamera returns the same file on every capture.
type StaticCamera struct {
	path string
}

// NewStaticCamera creates a camera backed by one image file.
func NewStaticCamera(path string) *StaticCamera {
	return &StaticCamera{path: path}
}

// Permission implements Camera.
func (s *StaticCamera) Permission(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return nil
}

// CapturePhoto implements Camera.
func (s *StaticCamera) CapturePhoto(ctx context.Context, quality float64) (*Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	data, err := Reencode(raw, quality)
	if err != nil {
		return nil, err
	}
	return &Photo{
		URI:        fileURI(s.path),
		Data:       data,
		MIME:       "image/jpeg",
		CapturedAt: time.Now(),
	}, nil
}

func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

var _ Camera = (*StaticCamera)(nil)
