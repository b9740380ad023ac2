package capture

import "errors"

var (
	// ErrPermissionDenied means the camera capability is not available.
	ErrPermissionDenied = errors.New("capture: camera permission denied")

	// ErrCancelled means the user picked nothing.
	ErrCancelled = errors.New("capture: cancelled")

	// ErrNoFrame means no recent frame is available.
	ErrNoFrame = errors.New("capture: no frame available")

	// ErrInvalidQuality is returned for a quality hint outside (0, 1].
	ErrInvalidQuality = errors.New("capture: quality must be in (0, 1]")
)
