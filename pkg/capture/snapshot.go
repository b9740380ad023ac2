package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teslashibe/recycleeye/internal/httpc"
)

const maxSnapshotBytes = 16 << 20

// SnapshotCamera fetches a JPEG from an IP camera's snapshot URL.
type SnapshotCamera struct {
	url    string
	client *http.Client
}

// NewSnapshotCamera creates a camera that GETs url on every capture.
// A nil client uses the shared client.
func NewSnapshotCamera(url string, client *http.Client) *SnapshotCamera {
	if client == nil {
		client = httpc.Client
	}
	return &SnapshotCamera{url: url, client: client}
}

// Permission implements Camera.
func (s *SnapshotCamera) Permission(ctx context.Context) error {
	if s.url == "" {
		return fmt.Errorf("%w: no snapshot url", ErrPermissionDenied)
	}
	return nil
}

// CapturePhoto implements Camera.
func (s *SnapshotCamera) CapturePhoto(ctx context.Context, quality float64) (*Photo, error) {
	if err := s.Permission(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch snapshot: HTTP %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoFrame
	}

	data, err := Reencode(raw, quality)
	if err != nil {
		return nil, err
	}
	return &Photo{
		URI:        s.url,
		Data:       data,
		MIME:       "image/jpeg",
		CapturedAt: time.Now(),
	}, nil
}

var _ Camera = (*SnapshotCamera)(nil)
