//go:build gocv

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Webcam captures from a local camera through OpenCV.
type Webcam struct {
	device int

	mu  sync.Mutex
	cap *gocv.VideoCapture
}

// NewWebcam creates a webcam for the given device index. The device is
// opened lazily.
func NewWebcam(device int) *Webcam {
	return &Webcam{device: device}
}

func (w *Webcam) open() error {
	if w.cap != nil {
		return nil
	}
	vc, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return fmt.Errorf("%w: open device %d: %v", ErrPermissionDenied, w.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: device %d not available", ErrPermissionDenied, w.device)
	}
	w.cap = vc
	return nil
}

// Permission implements Camera.
func (w *Webcam) Permission(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open()
}

// CapturePhoto implements Camera.
func (w *Webcam) CapturePhoto(ctx context.Context, quality float64) (*Photo, error) {
	if !ValidQuality(quality) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuality, quality)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.open(); err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := w.cap.Read(&img); !ok || img.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, QualityPercent(quality)})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return &Photo{
		URI:        fmt.Sprintf("webcam://%d/%d", w.device, time.Now().UnixMilli()),
		Data:       data,
		MIME:       "image/jpeg",
		CapturedAt: time.Now(),
	}, nil
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.cap = nil
	return err
}

var _ Camera = (*Webcam)(nil)
