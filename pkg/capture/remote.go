package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// DefaultMaxFrameAge bounds how old a pushed frame may be when captured.
const DefaultMaxFrameAge = 3 * time.Second

// deviceHello is the optional text message a phone sends after connecting.
type deviceHello struct {
	Type   string `json:"type"`
	Device string `json:"device"`
}

// Device is a connected phone.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Connected time.Time `json:"connected"`
	LastFrame time.Time `json:"last_frame,omitempty"`
	Frames    uint64    `json:"frames"`
}

type frame struct {
	deviceID string
	data     []byte
	at       time.Time
}

// RemoteCamera receives JPEG frames pushed by phones over a websocket.
// Permission is granted while at least one device is connected.
type RemoteCamera struct {
	mu      sync.RWMutex
	devices map[string]*Device
	latest  *frame
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger

	onDevice func(connected int)
	onFrame  func(deviceID string, data []byte)

	framesReceived atomic.Uint64
}

// RemoteOption configures a RemoteCamera.
type RemoteOption func(*RemoteCamera)

// WithMaxFrameAge sets how stale a frame may be.
func WithMaxFrameAge(d time.Duration) RemoteOption {
	return func(r *RemoteCamera) { r.maxAge = d }
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(r *RemoteCamera) { r.logger = l }
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) RemoteOption {
	return func(r *RemoteCamera) { r.now = now }
}

// NewRemoteCamera creates an empty remote camera.
func NewRemoteCamera(opts ...RemoteOption) *RemoteCamera {
	r := &RemoteCamera{
		devices: make(map[string]*Device),
		maxAge:  DefaultMaxFrameAge,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "capture.remote")
	return r
}

// OnDeviceChange sets a callback fired with the device count after every
// connect and disconnect.
func (r *RemoteCamera) OnDeviceChange(fn func(connected int)) {
	r.mu.Lock()
	r.onDevice = fn
	r.mu.Unlock()
}

// OnFrame sets a callback fired with every accepted frame. The data must not
// be modified.
func (r *RemoteCamera) OnFrame(fn func(deviceID string, data []byte)) {
	r.mu.Lock()
	r.onFrame = fn
	r.mu.Unlock()
}

// SetMaxAge changes the frame age limit at runtime.
func (r *RemoteCamera) SetMaxAge(d time.Duration) {
	r.mu.Lock()
	r.maxAge = d
	r.mu.Unlock()
}

// RegisterRoutes mounts the device endpoint. The caller is expected to have
// installed the websocket upgrade check for /ws.
func (r *RemoteCamera) RegisterRoutes(app fiber.Router) {
	app.Get("/ws/device", websocket.New(r.handleDevice))
	app.Get("/ws/device/:id", websocket.New(r.handleDevice))
}

func (r *RemoteCamera) handleDevice(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()[:8]
	}

	r.Connect(id)
	defer r.Disconnect(id)

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			r.logger.Debug("device read ended", "device", id, "error", err)
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			r.PushFrame(id, data)
		case websocket.TextMessage:
			var hello deviceHello
			if err := json.Unmarshal(data, &hello); err != nil || hello.Type != "hello" {
				r.logger.Debug("ignoring device message", "device", id)
				continue
			}
			r.mu.Lock()
			if d, ok := r.devices[id]; ok {
				d.Name = hello.Device
			}
			r.mu.Unlock()
			r.logger.Info("device identified", "device", id, "name", hello.Device)
		}
	}
}

// Connect registers a device.
func (r *RemoteCamera) Connect(id string) {
	r.mu.Lock()
	r.devices[id] = &Device{ID: id, Connected: r.now()}
	count := len(r.devices)
	cb := r.onDevice
	r.mu.Unlock()

	r.logger.Info("device connected", "device", id, "total", count)
	if cb != nil {
		cb(count)
	}
}

// Disconnect removes a device. Its last frame stays usable until it ages out.
func (r *RemoteCamera) Disconnect(id string) {
	r.mu.Lock()
	delete(r.devices, id)
	count := len(r.devices)
	cb := r.onDevice
	r.mu.Unlock()

	r.logger.Info("device disconnected", "device", id, "total", count)
	if cb != nil {
		cb(count)
	}
}

// PushFrame stores a frame from a device.
func (r *RemoteCamera) PushFrame(id string, data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	r.mu.Lock()
	at := r.now()
	r.latest = &frame{deviceID: id, data: buf, at: at}
	if d, ok := r.devices[id]; ok {
		d.LastFrame = at
		d.Frames++
	}
	cb := r.onFrame
	r.mu.Unlock()

	r.framesReceived.Add(1)
	if cb != nil {
		cb(id, buf)
	}
}

// Permission implements Camera.
func (r *RemoteCamera) Permission(ctx context.Context) error {
	if r.DeviceCount() == 0 {
		return fmt.Errorf("%w: no device connected", ErrPermissionDenied)
	}
	return nil
}

// CapturePhoto implements Camera.
func (r *RemoteCamera) CapturePhoto(ctx context.Context, quality float64) (*Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	f := r.latest
	maxAge := r.maxAge
	now := r.now()
	r.mu.RUnlock()

	if f == nil {
		return nil, ErrNoFrame
	}
	if maxAge > 0 && now.Sub(f.at) > maxAge {
		return nil, fmt.Errorf("%w: newest frame is %v old", ErrNoFrame, now.Sub(f.at).Round(time.Millisecond))
	}

	data, err := Reencode(f.data, quality)
	if err != nil {
		return nil, err
	}
	return &Photo{
		URI:        "device://" + f.deviceID + "/" + f.at.UTC().Format("20060102T150405.000"),
		Data:       data,
		MIME:       "image/jpeg",
		CapturedAt: f.at,
	}, nil
}

// DeviceCount returns the number of connected devices.
func (r *RemoteCamera) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Devices returns a snapshot of connected devices.
func (r *RemoteCamera) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// FramesReceived returns the total number of frames pushed.
func (r *RemoteCamera) FramesReceived() uint64 {
	return r.framesReceived.Load()
}

var _ Camera = (*RemoteCamera)(nil)
