package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/teslashibe/recycleeye/internal/config"
	"github.com/teslashibe/recycleeye/internal/log"
	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/camera"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
	"github.com/teslashibe/recycleeye/pkg/telegram"
)

// stack is everything a command needs, built from configuration.
type stack struct {
	cfg        *config.Config
	classifier classify.Classifier
	camera     capture.Camera
	remote     *capture.RemoteCamera
	library    capture.Library
	tuning     *camera.Manager
	logger     *slog.Logger

	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildStack wires the classifier chain, capture sources and tuning.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	s := &stack{cfg: cfg, logger: log.L()}

	tuning, err := camera.NewManagerWithPreset(cfg.Camera.Preset)
	if err != nil {
		return nil, err
	}
	s.tuning = tuning

	classifier, err := s.buildClassifier(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.classifier = classifier

	cam, err := s.buildCamera()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.camera = cam

	if cfg.Library.Dir != "" {
		lib := capture.NewDirectoryLibrary(cfg.Library.Dir, tuning.LibraryQuality)
		s.logger.Debug("photo library", "dir", lib.Dir())
		s.library = lib
	}
	return s, nil
}

func (s *stack) buildClassifier(ctx context.Context) (classify.Classifier, error) {
	cfg := s.cfg
	var backends []classify.Classifier

	for _, ep := range []struct {
		name string
		cfg  config.EndpointConfig
	}{
		{"primary", cfg.Endpoint},
		{"fallback", cfg.Fallback},
	} {
		if !ep.cfg.Enabled() {
			continue
		}
		client, err := classify.NewClient(
			classify.WithEndpoint(ep.cfg.URL),
			classify.WithAPIKey(ep.cfg.APIKey),
			classify.WithEncoding(ep.cfg.Encoding),
			classify.WithTimeout(ep.cfg.Timeout),
			classify.WithUnrecognizedLabel(cfg.UnrecognizedLabel),
			classify.WithName(ep.name),
			classify.WithLogger(s.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("%s endpoint: %w", ep.name, err)
		}
		s.logger.Debug("endpoint configured",
			"name", ep.name,
			"encoding", client.Encoding().Name(),
			"timeout", ep.cfg.Timeout,
		)
		s.closers = append(s.closers, client)
		backends = append(backends, client)
	}

	if cfg.Gemini.APIKey != "" {
		g, err := classify.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
			classify.WithTimeout(cfg.Endpoint.Timeout),
			classify.WithUnrecognizedLabel(cfg.UnrecognizedLabel),
			classify.WithLogger(s.logger),
		)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, g)
		backends = append(backends, g)
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return classify.NewChainWithLogger(s.logger, backends...)
}

func (s *stack) buildCamera() (capture.Camera, error) {
	cfg := s.cfg.Camera
	switch cfg.Source {
	case "remote":
		s.remote = capture.NewRemoteCamera(
			capture.WithMaxFrameAge(s.tuning.GetConfig().MaxAge()),
			capture.WithRemoteLogger(s.logger),
		)
		remote := s.remote
		s.tuning.OnConfigChange = func(c camera.Config) error {
			remote.SetMaxAge(c.MaxAge())
			return nil
		}
		return remote, nil
	case "snapshot":
		return capture.NewSnapshotCamera(cfg.SnapshotURL, nil), nil
	case "webcam":
		w := capture.NewWebcam(cfg.Device)
		s.closers = append(s.closers, w)
		return w, nil
	case "static":
		return capture.NewStaticCamera(cfg.StaticFile), nil
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}
}

// newApp creates the orchestrator over the stack.
func (s *stack) newApp(opts ...app.Option) *app.App {
	base := []app.Option{
		app.WithInterval(s.cfg.Scan.Interval),
		app.WithSuppressErrors(s.cfg.Scan.SuppressErrors),
		app.WithTuning(s.tuning),
		app.WithLogger(s.logger),
	}
	return app.New(s.camera, s.library, s.classifier, append(base, opts...)...)
}

// botOptions configures the Telegram bot from the stack.
func (s *stack) botOptions() []telegram.Option {
	return []telegram.Option{
		telegram.WithQuality(s.tuning.LibraryQuality),
		telegram.WithLogger(s.logger),
	}
}

// Close releases clients and devices.
func (s *stack) Close() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}
	return nil
}

// setup loads configuration and builds the stack for a command.
func setup(ctx context.Context) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildStack(ctx, cfg)
}
