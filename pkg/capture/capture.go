// Package capture provides the photo sources RecycleEye classifies: a phone
// pushing frames over a websocket, an IP-camera snapshot URL, a local webcam,
// a fixed file, and a directory standing in for the photo library.
package capture

import (
	"context"
	"net/http"
	"time"
)

// Default quality hints, matching the mobile application.
const (
	DefaultCameraQuality  = 0.2
	DefaultLibraryQuality = 0.5
)

// Photo is one captured or selected image.
type Photo struct {
	URI        string    `json:"uri"`
	Data       []byte    `json:"-"`
	MIME       string    `json:"mime"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewPhoto wraps image bytes that came from elsewhere, such as an upload.
func NewPhoto(uri string, data []byte) *Photo {
	return &Photo{
		URI:        uri,
		Data:       data,
		MIME:       sniff(data),
		CapturedAt: time.Now(),
	}
}

// Camera takes photos on demand.
type Camera interface {
	// CapturePhoto returns one JPEG re-encoded at quality (0..1].
	CapturePhoto(ctx context.Context, quality float64) (*Photo, error)

	// Permission returns nil when the camera may be used and
	// ErrPermissionDenied otherwise.
	Permission(ctx context.Context) error
}

// Library lets the user pick an existing photo.
type Library interface {
	// PickFromLibrary returns ErrCancelled when nothing was picked.
	PickFromLibrary(ctx context.Context) (*Photo, error)
}

func sniff(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return http.DetectContentType(data)
}
