//go:build !gocv

package capture

import (
	"context"
	"fmt"
)

// Webcam is unavailable in builds without the gocv tag.
type Webcam struct {
	device int
}

// NewWebcam returns a webcam that always denies permission.
func NewWebcam(device int) *Webcam {
	return &Webcam{device: device}
}

// Permission implements Camera.
func (w *Webcam) Permission(ctx context.Context) error {
	return fmt.Errorf("%w: built without gocv", ErrPermissionDenied)
}

// CapturePhoto implements Camera.
func (w *Webcam) CapturePhoto(ctx context.Context, quality float64) (*Photo, error) {
	return nil, w.Permission(ctx)
}

// Close is a no-op.
func (w *Webcam) Close() error { return nil }

var _ Camera = (*Webcam)(nil)
