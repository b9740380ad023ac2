// Package scan runs the live-scan loop: on every tick it captures a frame and
// classifies it, with at most one classification in flight per session.
//
// Ticks that arrive while a request is pending are dropped, never queued.
// Stop ends the session at once; a request already in flight is allowed to
// finish but its result is discarded.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
)

// DefaultInterval is the live-scan period of the mobile application.
const DefaultInterval = 1500 * time.Millisecond

// DefaultCycleTimeout bounds one capture plus classification.
const DefaultCycleTimeout = 2 * classify.DefaultTimeout

// session is the controller-private state of one activation.
type session struct {
	id       string
	gen      uint64
	interval time.Duration
	started  time.Time

	active   atomic.Bool
	inFlight atomic.Bool

	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

// Controller owns the scan ticker and the in-flight guard.
type Controller struct {
	camera     capture.Camera
	classifier classify.Classifier
	sink       Sink
	clock      Clock
	quality    func() float64
	timeout    time.Duration
	suppress   bool
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards current
	current *session
	gen     atomic.Uint64

	// publishMu serialises sink calls; Stop takes it as a barrier.
	publishMu sync.Mutex

	statusMu sync.RWMutex
	status   Status

	requestsIssued   atomic.Uint64
	ticksDropped     atomic.Uint64
	resultsDiscarded atomic.Uint64

	workers sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithQuality sets the capture quality hint, read on every tick.
func WithQuality(fn func() float64) Option {
	return func(ctl *Controller) { ctl.quality = fn }
}

// WithCycleTimeout sets the deadline shared by the capture and the
// classification of one tick. A cycle that overruns it fails with a
// request error and frees the session for the next tick.
func WithCycleTimeout(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.timeout = d
		}
	}
}

// WithSuppressErrors controls whether failed cycles are published. When true
// (the default) a failure only clears the busy flag.
func WithSuppressErrors(suppress bool) Option {
	return func(ctl *Controller) { ctl.suppress = suppress }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// New creates an idle controller. A nil sink discards status updates.
func New(camera capture.Camera, classifier classify.Classifier, sink Sink, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		camera:     camera,
		classifier: classifier,
		sink:       sink,
		clock:      RealClock(),
		quality:    func() float64 { return capture.DefaultCameraQuality },
		timeout:    DefaultCycleTimeout,
		suppress:   true,
		logger:     slog.Default(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = SinkFunc(func(Status) {})
	}
	c.logger = c.logger.With("component", "scan")
	return c
}

// Start begins a session: one tick now, then one per interval until Stop.
func (c *Controller) Start(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", ErrInvalidInterval
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return "", context.Canceled
	}

	s := &session{
		id:       uuid.NewString(),
		gen:      c.gen.Add(1),
		interval: interval,
		started:  c.clock.Now(),
		ticker:   c.clock.NewTicker(interval),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.active.Store(true)
	c.current = s
	c.mu.Unlock()

	c.logger.Info("scan started", "session", s.id, "interval", interval)

	c.publish(s, func(st *Status) {
		*st = Status{SessionID: s.id, Active: true, Kind: classify.KindOK}
	})

	c.tick(s)
	go c.loop(s)

	return s.id, nil
}

// Stop ends the running session. After Stop returns nothing from that session
// reaches the sink. Stop on an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.active.Store(false)
	s.ticker.Stop()
	close(s.stop)

	// Barrier: a publish that passed the liveness check completes before
	// this point, and every later one sees the session inactive.
	c.publishMu.Lock()
	c.statusMu.Lock()
	c.status.Active = false
	c.status.Busy = false
	c.status.UpdatedAt = c.clock.Now()
	c.statusMu.Unlock()
	c.publishMu.Unlock()

	<-s.done

	c.logger.Info("scan stopped", "session", s.id, "in_flight", s.inFlight.Load())
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Session returns the active session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()

	if s == nil {
		return Session{}, false
	}
	return Session{
		ID:         s.id,
		Active:     s.active.Load(),
		Interval:   s.interval,
		InFlight:   s.inFlight.Load(),
		Generation: s.gen,
		StartedAt:  s.started,
	}, true
}

// Status returns the latest status with current counters.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	st := c.status
	c.statusMu.RUnlock()
	c.fillCounters(&st)
	return st
}

// Wait blocks until every issued request has finished.
func (c *Controller) Wait() {
	c.workers.Wait()
}

// Close stops the session, cancels in-flight requests and waits for them.
func (c *Controller) Close() error {
	c.Stop()
	c.cancel()
	c.workers.Wait()
	return nil
}

func (c *Controller) loop(s *session) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C():
			c.tick(s)
		}
	}
}

// tick issues one request unless one is already pending.
func (c *Controller) tick(s *session) {
	if !s.active.Load() {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		c.ticksDropped.Add(1)
		c.logger.Debug("tick dropped, request in flight", "session", s.id)
		return
	}
	c.requestsIssued.Add(1)

	c.publish(s, func(st *Status) { st.Busy = true })

	c.workers.Add(1)
	go c.cycle(s)
}

// cycle captures and classifies one frame.
func (c *Controller) cycle(s *session) {
	defer c.workers.Done()

	res := c.capture(s)

	if res.Failed() {
		c.logger.Debug("scan cycle failed",
			"session", s.id,
			"request_id", res.RequestID,
			"error", res.Err,
		)
	}

	applied := c.publish(s, func(st *Status) {
		st.Busy = false
		st.LatencyMs = res.Latency().Milliseconds()
		if res.Failed() {
			if !c.suppress {
				st.Kind = res.Kind
				st.Error = res.Err.Error()
			}
			return
		}
		st.Label = res.Label
		st.Kind = res.Kind
		st.Error = ""
	})
	s.inFlight.Store(false)

	if !applied {
		c.resultsDiscarded.Add(1)
		c.logger.Debug("result discarded, session ended",
			"session", s.id,
			"request_id", res.RequestID,
			"label", res.Label,
		)
	}
}

func (c *Controller) capture(s *session) *classify.Result {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	photo, err := c.camera.CapturePhoto(ctx, c.quality())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", classify.ErrTimeout, err)
		}
		return classify.NewFailure(nil, "capture", err)
	}
	req := classify.NewRequest(photo.URI, photo.Data)
	return c.classifier.Classify(ctx, req)
}

// publish applies mutate and sends the status if s is still live. It reports
// whether the update was delivered.
func (c *Controller) publish(s *session, mutate func(*Status)) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	if !s.active.Load() {
		return false
	}

	c.statusMu.Lock()
	mutate(&c.status)
	c.status.UpdatedAt = c.clock.Now()
	st := c.status
	c.statusMu.Unlock()

	c.fillCounters(&st)
	c.sink.Publish(st)
	return true
}

func (c *Controller) fillCounters(st *Status) {
	st.RequestsIssued = c.requestsIssued.Load()
	st.TicksDropped = c.ticksDropped.Load()
	st.ResultsDiscarded = c.resultsDiscarded.Load()
}
