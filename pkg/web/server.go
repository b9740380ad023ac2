// Package web serves the RecycleEye dashboard: a REST API over the mode
// orchestrator, websocket status and log streams, and the remote device
// endpoint phones use to stream frames.
package web

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/hub"
)

//go:embed static
var static embed.FS

// maxLogs bounds the in-memory log buffer.
const maxLogs = 500

// LogEntry is one line of the dashboard activity log.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // mode, result, error, device
	Message string `json:"message"`
}

// Server is the dashboard server. It renders app state as an app.Sink.
type Server struct {
	app    *fiber.App
	port   string
	orch   *app.App
	remote *capture.RemoteCamera
	logger *slog.Logger

	// last rendered state, for the activity log
	last   app.State
	lastMu sync.Mutex

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub *hub.Hub
	logHub    *hub.Hub
	framesHub *hub.Hub

	removeSink func()

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithPort sets the listen port.
func WithPort(port string) Option {
	return func(s *Server) { s.port = port }
}

// WithRemoteCamera mounts the device endpoint of a remote camera.
func WithRemoteCamera(r *capture.RemoteCamera) Option {
	return func(s *Server) { s.remote = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the dashboard for orch and registers it as a sink.
func NewServer(orch *app.App, opts ...Option) *Server {
	s := &Server{
		port:   "8080",
		orch:   orch,
		logger: slog.Default(),
		logs:   make([]LogEntry, 0, maxLogs),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.statusHub = hub.New("status", s.logger)
	s.logHub = hub.New("logs", s.logger)
	s.framesHub = hub.New("frames", s.logger)

	fa := fiber.New(fiber.Config{
		AppName:               "RecycleEye",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})

	fa.Use(recover.New())
	fa.Use(cors.New())

	fa.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := fa.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/image", s.handleImage)
	api.Post("/permission", s.handlePermission)
	api.Post("/mode/:mode", s.handleMode)
	api.Post("/live/toggle", s.handleToggleLive)
	api.Post("/capture", s.handleCapture)
	api.Post("/gallery", s.handleUpload)
	api.Post("/gallery/pick", s.handlePick)
	api.Post("/alert/dismiss", s.handleDismiss)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handlePresets)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/devices", s.handleDevices)

	// WebSocket upgrade middleware
	fa.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	fa.Get("/ws/status", websocket.New(s.handleStatusWS))
	fa.Get("/ws/logs", websocket.New(s.handleLogsWS))
	fa.Get("/ws/frames", websocket.New(s.handleFramesWS))
	if s.remote != nil {
		s.remote.RegisterRoutes(fa)
		s.remote.OnDeviceChange(func(connected int) {
			s.AddLog("device", fmt.Sprintf("%d device(s) connected", connected))
		})
		s.remote.OnFrame(func(_ string, data []byte) {
			s.framesHub.BroadcastBinary(data)
		})
	}

	fa.Get("/", s.handleIndex)

	s.app = fa
	s.removeSink = orch.AddSink(s)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.framesHub.Run(ctx)
	go func() {
		<-ctx.Done()
		s.app.ShutdownWithTimeout(5 * time.Second)
	}()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil {
		cancel()
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown detaches from the orchestrator and stops the server.
func (s *Server) Shutdown() error {
	s.removeSink()
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMu.Unlock()
	return s.app.Shutdown()
}

// Render implements app.Sink. It must not call back into the orchestrator.
func (s *Server) Render(st app.State) {
	if err := s.statusHub.BroadcastState(st); err != nil {
		s.logger.Warn("encode state", "error", err)
	}

	s.lastMu.Lock()
	prev := s.last
	s.last = st
	s.lastMu.Unlock()

	if st.Mode != prev.Mode {
		s.AddLog("mode", "mode "+string(st.Mode))
	}
	if st.Label != "" && (st.Label != prev.Label || st.Mode != prev.Mode) {
		s.AddLog("result", st.Label)
	}
	if st.Alert != "" && st.Alert != prev.Alert {
		s.AddLog("error", st.Alert)
	}
}

// AddLog appends an entry to the activity log and broadcasts it.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Logs returns a copy of the activity log.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		return err
	}
	c.Type("html")
	return c.Send(page)
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}

func (s *Server) handleLogsWS(c *websocket.Conn) {
	hub.NewClient(s.logHub, c).Run()
}

func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.NewClient(s.framesHub, c).Run()
}
