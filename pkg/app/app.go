// Package app is the mode orchestrator. It switches between the home,
// single-shot camera, gallery and live-scan modes, gates camera modes on
// permission and fans state out to display sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/recycleeye/pkg/camera"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
	"github.com/teslashibe/recycleeye/pkg/scan"
)

// App coordinates capture, classification and display.
type App struct {
	camera     capture.Camera
	library    capture.Library
	classifier classify.Classifier
	tuning     *camera.Manager
	interval   time.Duration
	logger     *slog.Logger

	controller *scan.Controller

	// transition serialises mode changes so scan sessions never overlap.
	transition sync.Mutex

	mu      sync.Mutex // guards state, modeGen, photo
	state   State
	modeGen uint64
	photo   *capture.Photo

	renderMu sync.Mutex
	sinksMu  sync.RWMutex
	sinks    map[int]Sink
	nextSink int
}

type options struct {
	interval time.Duration
	suppress bool
	tuning   *camera.Manager
	logger   *slog.Logger
	scanOpts []scan.Option
	sinks    []Sink
}

// Option configures an App.
type Option func(*options)

// WithInterval sets the live-scan interval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithSuppressErrors sets the live-scan error policy.
func WithSuppressErrors(suppress bool) Option {
	return func(o *options) { o.suppress = suppress }
}

// WithTuning sets the capture tuning manager.
func WithTuning(m *camera.Manager) Option {
	return func(o *options) { o.tuning = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScanOptions passes extra options to the scan controller.
func WithScanOptions(opts ...scan.Option) Option {
	return func(o *options) { o.scanOpts = append(o.scanOpts, opts...) }
}

// WithSink registers a sink at construction.
func WithSink(s Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// New creates an App in home mode. library may be nil.
func New(cam capture.Camera, library capture.Library, classifier classify.Classifier, opts ...Option) *App {
	o := &options{
		interval: scan.DefaultInterval,
		suppress: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tuning == nil {
		o.tuning = camera.NewManager()
	}

	a := &App{
		camera:     cam,
		library:    library,
		classifier: classifier,
		tuning:     o.tuning,
		interval:   o.interval,
		logger:     o.logger.With("component", "app"),
		sinks:      make(map[int]Sink),
		state:      State{Mode: ModeHome},
	}

	scanOpts := []scan.Option{
		scan.WithQuality(o.tuning.Quality),
		scan.WithSuppressErrors(o.suppress),
		scan.WithLogger(o.logger),
	}
	a.controller = scan.New(cam, classifier, scan.SinkFunc(a.onScanStatus), append(scanOpts, o.scanOpts...)...)

	for _, s := range o.sinks {
		a.AddSink(s)
	}
	return a
}

// AddSink registers a sink and renders the current state to it. The returned
// function removes it.
func (a *App) AddSink(s Sink) func() {
	a.sinksMu.Lock()
	id := a.nextSink
	a.nextSink++
	a.sinks[id] = s
	a.sinksMu.Unlock()

	s.Render(a.State())

	return func() {
		a.sinksMu.Lock()
		delete(a.sinks, id)
		a.sinksMu.Unlock()
	}
}

// State returns a snapshot of the current state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// SelectedPhoto returns the photo behind State.SelectedImage, if any.
func (a *App) SelectedPhoto() (*capture.Photo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.photo, a.photo != nil
}

// Tuning returns the capture tuning manager.
func (a *App) Tuning() *camera.Manager { return a.tuning }

// Controller returns the live-scan controller.
func (a *App) Controller() *scan.Controller { return a.controller }

// RequestPermission asks the camera for permission and records the answer.
func (a *App) RequestPermission(ctx context.Context) error {
	err := a.checkPermission(ctx)
	a.update(func(s *State) {
		s.PermissionGranted = err == nil
		if err != nil {
			s.Alert = AlertPermission
		} else if s.Alert == AlertPermission {
			s.Alert = ""
		}
	})
	return err
}

func (a *App) checkPermission(ctx context.Context) error {
	err := a.camera.Permission(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, capture.ErrPermissionDenied) {
		return err
	}
	return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
}

// SetMode switches modes. Entering camera or live mode requires permission;
// entering live starts a scan session and leaving it stops the session.
// Leaving a mode clears the label.
func (a *App) SetMode(ctx context.Context, mode Mode) error {
	switch mode {
	case ModeHome, ModeCamera, ModeGallery, ModeLive:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	a.transition.Lock()
	defer a.transition.Unlock()
	return a.setMode(ctx, mode)
}

// setMode must be called with transition held. Staying in the current mode
// is a no-op and does not re-check permission.
func (a *App) setMode(ctx context.Context, mode Mode) error {
	a.mu.Lock()
	prev := a.state.Mode
	a.mu.Unlock()
	if prev == mode {
		return nil
	}

	if mode.NeedsCamera() {
		if err := a.RequestPermission(ctx); err != nil {
			a.logger.Info("mode refused", "mode", mode, "error", err)
			return err
		}
	}

	a.mu.Lock()
	a.modeGen++
	a.state.Mode = mode
	a.state.Busy = false
	a.state.Label = ""
	a.state.Kind = classify.KindOK
	a.state.Alert = ""
	a.state.SelectedImage = ""
	a.photo = nil
	a.state.SessionID = ""
	a.state.Scan = nil
	a.mu.Unlock()

	// The scan sink takes a.mu, so the controller is driven without it.
	if prev == ModeLive {
		a.controller.Stop()
	}

	a.logger.Info("mode changed", "from", prev, "to", mode)

	if mode == ModeLive {
		id, err := a.controller.Start(a.interval)
		if err != nil {
			a.logger.Error("scan start failed", "error", err)
			a.mu.Lock()
			a.modeGen++
			a.state.Mode = ModeHome
			a.state.Alert = err.Error()
			a.mu.Unlock()
			a.render()
			return fmt.Errorf("start scan: %w", err)
		}
		a.mu.Lock()
		if a.state.Mode == ModeLive && a.state.SessionID == "" {
			a.state.SessionID = id
		}
		a.mu.Unlock()
	}

	a.render()
	return nil
}

// ToggleLive enters live mode from any other mode, or returns home.
func (a *App) ToggleLive(ctx context.Context) error {
	if a.State().Mode == ModeLive {
		return a.SetMode(ctx, ModeHome)
	}
	return a.SetMode(ctx, ModeLive)
}

// Capture takes and classifies one photo in camera mode. Failures are shown
// as an alert; the returned error only reports why no attempt was made.
func (a *App) Capture(ctx context.Context) (*classify.Result, error) {
	a.mu.Lock()
	if a.state.Mode != ModeCamera {
		a.mu.Unlock()
		return nil, ErrWrongMode
	}
	if a.state.Busy {
		a.mu.Unlock()
		return nil, ErrBusy
	}
	a.state.Busy = true
	a.state.Alert = ""
	gen := a.modeGen
	a.mu.Unlock()
	a.render()

	photo, err := a.camera.CapturePhoto(ctx, a.tuning.Quality())
	if err != nil {
		a.logger.Warn("capture failed", "error", err)
		res := classify.NewFailure(nil, "capture", err)
		a.finish(gen, func(s *State) { s.Alert = AlertCaptureFailed })
		return res, nil
	}

	res := a.classifier.Classify(ctx, classify.NewRequest(photo.URI, photo.Data))
	a.finish(gen, func(s *State) {
		s.SelectedImage = photo.URI
		a.photo = photo
		a.applyResult(s, res)
	})
	return res, nil
}

// PickFromGallery picks a photo from the library and analyses it. A cancelled
// pick returns capture.ErrCancelled and changes nothing.
func (a *App) PickFromGallery(ctx context.Context) (*classify.Result, error) {
	if a.library == nil {
		return nil, ErrNoLibrary
	}
	if a.State().Busy {
		return nil, ErrBusy
	}

	photo, err := a.library.PickFromLibrary(ctx)
	if errors.Is(err, capture.ErrCancelled) {
		return nil, err
	}
	if err != nil {
		a.logger.Warn("library pick failed", "error", err)
		a.update(func(s *State) { s.Alert = AlertPickFailed })
		return nil, err
	}
	return a.Analyze(ctx, photo)
}

// Analyze switches to gallery mode, shows photo and classifies it.
func (a *App) Analyze(ctx context.Context, photo *capture.Photo) (*classify.Result, error) {
	if photo == nil || len(photo.Data) == 0 {
		return nil, classify.ErrEmptyImage
	}

	a.transition.Lock()
	if err := a.setMode(ctx, ModeGallery); err != nil {
		a.transition.Unlock()
		return nil, err
	}

	a.mu.Lock()
	if a.state.Busy {
		a.mu.Unlock()
		a.transition.Unlock()
		return nil, ErrBusy
	}
	a.state.Busy = true
	a.state.Alert = ""
	a.state.Label = ""
	a.state.SelectedImage = photo.URI
	a.photo = photo
	gen := a.modeGen
	a.mu.Unlock()
	a.transition.Unlock()
	a.render()

	res := a.classifier.Classify(ctx, classify.NewRequest(photo.URI, photo.Data))
	a.finish(gen, func(s *State) { a.applyResult(s, res) })
	return res, nil
}

// ClassifyPhoto classifies a photo without touching mode or state.
func (a *App) ClassifyPhoto(ctx context.Context, photo *capture.Photo) *classify.Result {
	return a.classifier.Classify(ctx, classify.NewRequest(photo.URI, photo.Data))
}

func (a *App) applyResult(s *State, res *classify.Result) {
	if res.Failed() {
		a.logger.Warn("classification failed", "error", res.Err)
		s.Alert = AlertAnalysisFailed
		return
	}
	s.Label = res.Label
	s.Kind = res.Kind
}

// finish clears busy and applies a single-shot outcome unless the mode
// changed since the attempt started.
func (a *App) finish(gen uint64, apply func(*State)) {
	a.mu.Lock()
	if a.modeGen != gen {
		a.mu.Unlock()
		a.logger.Debug("stale result discarded", "generation", gen)
		return
	}
	a.state.Busy = false
	apply(&a.state)
	a.state.UpdatedAt = time.Now()
	a.mu.Unlock()
	a.render()
}

// onScanStatus receives live-scan updates from the controller.
func (a *App) onScanStatus(st scan.Status) {
	a.mu.Lock()
	if a.state.Mode != ModeLive {
		a.mu.Unlock()
		return
	}
	switch a.state.SessionID {
	case "":
		a.state.SessionID = st.SessionID
	case st.SessionID:
	default:
		a.mu.Unlock()
		return
	}

	a.state.Busy = st.Busy
	if st.Label != "" {
		a.state.Label = st.Label
		a.state.Kind = st.Kind
	}
	a.state.Alert = st.Error
	a.state.Scan = &st
	a.state.UpdatedAt = time.Now()
	a.mu.Unlock()

	a.render()
}

// DismissAlert clears the alert.
func (a *App) DismissAlert() {
	a.update(func(s *State) { s.Alert = "" })
}

func (a *App) update(fn func(*State)) {
	a.mu.Lock()
	fn(&a.state)
	a.state.UpdatedAt = time.Now()
	a.mu.Unlock()
	a.render()
}

// snapshot must be called with a.mu held.
func (a *App) snapshot() State {
	st := a.state
	if st.Scan != nil {
		sc := *st.Scan
		st.Scan = &sc
	}
	return st
}

func (a *App) render() {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()

	a.mu.Lock()
	st := a.snapshot()
	a.mu.Unlock()

	a.sinksMu.RLock()
	defer a.sinksMu.RUnlock()
	for _, s := range a.sinks {
		s.Render(st)
	}
}

// Close stops live scanning and waits for outstanding requests.
func (a *App) Close() error {
	a.transition.Lock()
	defer a.transition.Unlock()
	return a.controller.Close()
}
