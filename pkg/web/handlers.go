package web

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/camera"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
	"github.com/teslashibe/recycleeye/pkg/hub"
)

// ResultResponse is the JSON form of a classification result.
type ResultResponse struct {
	RequestID  string        `json:"request_id,omitempty"`
	Label      string        `json:"label,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Kind       classify.Kind `json:"kind"`
	Error      string        `json:"error,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	LatencyMs  int64         `json:"latency_ms"`
	State      app.State     `json:"state"`
}

func (s *Server) resultResponse(res *classify.Result) ResultResponse {
	out := ResultResponse{
		RequestID:  res.RequestID,
		Label:      res.Label,
		Confidence: res.Confidence,
		Kind:       res.Kind,
		Provider:   res.Provider,
		LatencyMs:  res.Latency().Milliseconds(),
		State:      s.orch.State(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// statusFor maps orchestrator errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrWrongMode):
		return fiber.StatusConflict
	case errors.Is(err, app.ErrUnknownMode), errors.Is(err, classify.ErrEmptyImage):
		return fiber.StatusBadRequest
	case errors.Is(err, app.ErrNoLibrary):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
		"state": s.orch.State(),
	})
}

// StreamStats describes one dashboard websocket stream.
type StreamStats struct {
	Running bool   `json:"running"`
	Clients int    `json:"clients"`
	Dropped uint64 `json:"dropped"`
}

// StatusResponse is the orchestrator state plus dashboard stream counters.
type StatusResponse struct {
	app.State
	Streams map[string]StreamStats `json:"streams"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	streams := make(map[string]StreamStats, 3)
	for name, h := range map[string]*hub.Hub{
		"status": s.statusHub,
		"logs":   s.logHub,
		"frames": s.framesHub,
	} {
		streams[name] = StreamStats{
			Running: h.IsRunning(),
			Clients: h.ClientCount(),
			Dropped: h.Dropped(),
		}
	}
	return c.JSON(StatusResponse{State: s.orch.State(), Streams: streams})
}

// handleImage serves the bytes of the selected or last captured photo.
func (s *Server) handleImage(c *fiber.Ctx) error {
	photo, ok := s.orch.SelectedPhoto()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no image selected"})
	}
	mime := photo.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, mime)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(photo.Data)
}

func (s *Server) handlePermission(c *fiber.Ctx) error {
	if err := s.orch.RequestPermission(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.orch.State())
}

func (s *Server) handleMode(c *fiber.Ctx) error {
	mode, err := app.ParseMode(c.Params("mode"))
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.orch.SetMode(c.UserContext(), mode); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.orch.State())
}

func (s *Server) handleToggleLive(c *fiber.Ctx) error {
	if err := s.orch.ToggleLive(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.orch.State())
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	res, err := s.orch.Capture(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.resultResponse(res))
}

// handleUpload analyses an image posted as the multipart "file" field.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "multipart field \"file\" is required",
		})
	}
	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, err)
	}

	res, err := s.orch.Analyze(c.UserContext(), capture.NewPhoto("upload://"+fh.Filename, data))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.resultResponse(res))
}

func (s *Server) handlePick(c *fiber.Ctx) error {
	res, err := s.orch.PickFromGallery(c.UserContext())
	if errors.Is(err, capture.ErrCancelled) {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.resultResponse(res))
}

func (s *Server) handleDismiss(c *fiber.Ctx) error {
	s.orch.DismissAlert()
	return c.JSON(s.orch.State())
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.orch.Tuning().GetConfigJSON())
}

func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.orch.Tuning().UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.orch.Tuning().GetConfigJSON())
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": camera.PresetNames()})
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

func (s *Server) handleDevices(c *fiber.Ctx) error {
	if s.remote == nil {
		return c.JSON([]capture.Device{})
	}
	return c.JSON(s.remote.Devices())
}
