package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/recycleeye/internal/log"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
)

const (
	waitFor = 2 * time.Second
	pollAt  = 5 * time.Millisecond
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeCamera struct {
	err      error
	captures atomic.Int32
}

func (f *fakeCamera) Permission(ctx context.Context) error { return nil }

func (f *fakeCamera) CapturePhoto(ctx context.Context, quality float64) (*capture.Photo, error) {
	f.captures.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &capture.Photo{URI: "test://frame", Data: []byte{0xff, 0xd8, 0xff}, MIME: "image/jpeg"}, nil
}

// gatedClassifier blocks every call until the test releases it.
type gatedClassifier struct {
	release  chan *classify.Result
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newGated() *gatedClassifier {
	return &gatedClassifier{release: make(chan *classify.Result)}
}

func (g *gatedClassifier) Name() string { return "gated" }

func (g *gatedClassifier) Classify(ctx context.Context, req *classify.Request) *classify.Result {
	g.calls.Add(1)
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case res := <-g.release:
		res.RequestID = req.ID
		return res
	case <-ctx.Done():
		return classify.NewFailure(req, g.Name(), ctx.Err())
	}
}

func (g *gatedClassifier) answer(t *testing.T, label string) {
	t.Helper()
	select {
	case g.release <- &classify.Result{Label: label, Kind: classify.KindOK}:
	case <-time.After(waitFor):
		t.Fatal("no request waiting for an answer")
	}
}

func (g *gatedClassifier) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case g.release <- classify.NewFailure(nil, "gated", err):
	case <-time.After(waitFor):
		t.Fatal("no request waiting for an answer")
	}
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recordingSink) Publish(s Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func (r *recordingSink) last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}
	}
	return r.statuses[len(r.statuses)-1]
}

type harness struct {
	ctl    *Controller
	clock  *ManualClock
	camera *fakeCamera
	cls    *gatedClassifier
	sink   *recordingSink
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:  NewManualClock(t0),
		camera: &fakeCamera{},
		cls:    newGated(),
		sink:   &recordingSink{},
	}
	base := []Option{
		WithClock(h.clock),
		WithLogger(log.Discard()),
	}
	h.ctl = New(h.camera, h.cls, h.sink, append(base, opts...)...)
	t.Cleanup(func() { h.ctl.Close() })
	return h
}

// advance moves the clock and waits until the loop has handled the tick.
func (h *harness) advance(t *testing.T, d time.Duration, wantHandled uint64) {
	t.Helper()
	h.clock.Advance(d)
	require.Eventually(t, func() bool {
		st := h.ctl.Status()
		return st.RequestsIssued+st.TicksDropped == wantHandled
	}, waitFor, pollAt)
}

// waitIdle waits until the in-flight request has been fully handled.
func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		sess, ok := h.ctl.Session()
		return ok && !sess.InFlight
	}, waitFor, pollAt)
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t)
	for _, d := range []time.Duration{0, -time.Second} {
		_, err := h.ctl.Start(d)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
	assert.False(t, h.ctl.Running())
	assert.Zero(t, h.cls.calls.Load())
}

func TestStartTwiceRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)

	_, err = h.ctl.Start(DefaultInterval)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestImmediateFirstTick(t *testing.T) {
	h := newHarness(t)
	id, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	st := h.ctl.Status()
	assert.Equal(t, uint64(1), st.RequestsIssued)
	assert.True(t, st.Busy)
	assert.True(t, st.Active)
	assert.Equal(t, id, st.SessionID)

	require.Eventually(t, func() bool { return h.cls.calls.Load() == 1 }, waitFor, pollAt)

	sess, ok := h.ctl.Session()
	require.True(t, ok)
	assert.True(t, sess.InFlight)
	assert.Equal(t, DefaultInterval, sess.Interval)
}

// Start at t=0 with a 1500ms period; the first request resolves at t=2000.
// The t=1500 tick is dropped and a new request is issued at t=3000.
func TestTickDroppedWhileInFlight(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Start(1500 * time.Millisecond)
	require.NoError(t, err)

	h.advance(t, 1500*time.Millisecond, 2)
	assert.Equal(t, uint64(1), h.ctl.Status().TicksDropped)

	h.clock.Advance(500 * time.Millisecond)
	h.cls.answer(t, "plastic")
	h.waitIdle(t)
	assert.Equal(t, "plastic", h.ctl.Status().Label)
	assert.False(t, h.ctl.Status().Busy)

	h.advance(t, 1000*time.Millisecond, 3)

	st := h.ctl.Status()
	assert.Equal(t, uint64(2), st.RequestsIssued)
	assert.Equal(t, uint64(1), st.TicksDropped)
	require.Eventually(t, func() bool { return h.cls.calls.Load() == 2 }, waitFor, pollAt)
}

func TestAtMostOneInFlight(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Start(100 * time.Millisecond)
	require.NoError(t, err)

	handled := uint64(1)
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			handled++
			h.advance(t, 100*time.Millisecond, handled)
		}
		h.cls.answer(t, "glass")
		h.waitIdle(t)

		handled++
		h.advance(t, 100*time.Millisecond, handled)
	}

	assert.Equal(t, int32(1), h.cls.maxSeen.Load())
	st := h.ctl.Status()
	assert.Equal(t, uint64(6), st.RequestsIssued)
	assert.Equal(t, uint64(20), st.TicksDropped)
}

func TestStopDiscardsLateResult(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.cls.calls.Load() == 1 }, waitFor, pollAt)

	h.ctl.Stop()
	assert.False(t, h.ctl.Running())
	published := h.sink.count()

	h.cls.answer(t, "metal")
	h.ctl.Wait()

	assert.Equal(t, published, h.sink.count(), "nothing may be published after Stop")
	st := h.ctl.Status()
	assert.Equal(t, uint64(1), st.ResultsDiscarded)
	assert.Empty(t, st.Label)
	assert.False(t, st.Active)
	assert.False(t, st.Busy)
}

func TestStopCancelsTicker(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)
	assert.Equal(t, 1, h.clock.ActiveTickers())

	h.ctl.Stop()
	assert.Equal(t, 0, h.clock.ActiveTickers())

	h.clock.Advance(10 * DefaultInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), h.ctl.Status().RequestsIssued)
}

func TestStopIdleIsNoop(t *testing.T) {
	h := newHarness(t)
	h.ctl.Stop()
	h.ctl.Stop()
	assert.Zero(t, h.sink.count())
}

func TestRestartIssuesImmediately(t *testing.T) {
	h := newHarness(t)
	first, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.cls.calls.Load() == 1 }, waitFor, pollAt)
	h.ctl.Stop()

	second, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, uint64(2), h.ctl.Status().RequestsIssued)

	sess, ok := h.ctl.Session()
	require.True(t, ok)
	assert.Equal(t, uint64(2), sess.Generation)

	// The old answer lands on the stopped session and is thrown away.
	h.cls.answer(t, "paper")
	h.cls.answer(t, "glass")
	h.ctl.Wait()

	st := h.ctl.Status()
	assert.Equal(t, uint64(1), st.ResultsDiscarded)
	assert.Equal(t, second, st.SessionID)
	assert.NotEmpty(t, st.Label)
}

func TestSuppressedFailureKeepsLabel(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)

	h.cls.answer(t, "plastic")
	h.waitIdle(t)

	h.advance(t, DefaultInterval, 2)
	h.cls.fail(t, errors.New("connection reset"))
	h.waitIdle(t)
	assert.False(t, h.ctl.Status().Busy)

	st := h.sink.last()
	assert.Equal(t, "plastic", st.Label)
	assert.Empty(t, st.Error)
	assert.Equal(t, classify.KindOK, st.Kind)
}

func TestPublishedFailureKeepsLabel(t *testing.T) {
	h := newHarness(t, WithSuppressErrors(false))
	_, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)

	h.cls.answer(t, "glass")
	h.waitIdle(t)

	h.advance(t, DefaultInterval, 2)
	h.cls.fail(t, errors.New("HTTP 502"))
	h.waitIdle(t)

	st := h.ctl.Status()
	assert.Equal(t, "glass", st.Label)
	assert.Equal(t, classify.KindRequestFailed, st.Kind)
	assert.Contains(t, st.Error, "HTTP 502")
	assert.False(t, st.Busy)
}

func TestCaptureFailureCountsAsRequestFailed(t *testing.T) {
	h := newHarness(t, WithSuppressErrors(false))
	h.camera.err = capture.ErrNoFrame

	_, err := h.ctl.Start(DefaultInterval)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.ctl.Status().Error != "" }, waitFor, pollAt)
	st := h.ctl.Status()
	assert.Equal(t, classify.KindRequestFailed, st.Kind)
	assert.Zero(t, h.cls.calls.Load())

	sess, ok := h.ctl.Session()
	require.True(t, ok)
	assert.False(t, sess.InFlight)
}

func TestHungCaptureTimesOut(t *testing.T) {
	var captures atomic.Int32
	cam := cameraFunc(func(ctx context.Context, q float64) (*capture.Photo, error) {
		captures.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	clock := NewManualClock(t0)
	ctl := New(cam, classify.NewMock("paper"), nil,
		WithClock(clock),
		WithSuppressErrors(false),
		WithCycleTimeout(30*time.Millisecond),
		WithLogger(log.Discard()),
	)
	defer ctl.Close()

	_, err := ctl.Start(DefaultInterval)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ctl.Status().Error != "" }, waitFor, pollAt)
	st := ctl.Status()
	assert.Equal(t, classify.KindRequestFailed, st.Kind)
	assert.Contains(t, st.Error, classify.ErrTimeout.Error())
	assert.False(t, st.Busy)

	sess, ok := ctl.Session()
	require.True(t, ok)
	assert.False(t, sess.InFlight)

	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return captures.Load() == 2 }, waitFor, pollAt)
	assert.Equal(t, uint64(2), ctl.Status().RequestsIssued)
	assert.Zero(t, ctl.Status().TicksDropped)
}

// A hanging endpoint is cut off by the client deadline and the next tick
// goes out as a fresh request.
func TestHungEndpointFreesSession(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := classify.NewClient(
		classify.WithEndpoint(server.URL),
		classify.WithAPIKey("test-key"),
		classify.WithTimeout(50*time.Millisecond),
		classify.WithLogger(log.Discard()),
	)
	require.NoError(t, err)
	defer client.Close()

	clock := NewManualClock(t0)
	sink := &recordingSink{}
	ctl := New(&fakeCamera{}, client, sink,
		WithClock(clock),
		WithSuppressErrors(false),
		WithLogger(log.Discard()),
	)
	defer ctl.Close()

	_, err = ctl.Start(DefaultInterval)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, ok := ctl.Session()
		return ok && !sess.InFlight && ctl.Status().Error != ""
	}, waitFor, pollAt)

	st := ctl.Status()
	assert.Equal(t, classify.KindRequestFailed, st.Kind)
	assert.Contains(t, st.Error, classify.ErrTimeout.Error())
	assert.Empty(t, st.Label)
	assert.False(t, sink.last().Busy)

	clock.Advance(DefaultInterval)
	require.Eventually(t, func() bool { return hits.Load() == 2 }, waitFor, pollAt)
	st = ctl.Status()
	assert.Equal(t, uint64(2), st.RequestsIssued)
	assert.Zero(t, st.TicksDropped)
}

func TestQualityHintPassedToCamera(t *testing.T) {
	var got atomic.Value
	cam := cameraFunc(func(ctx context.Context, q float64) (*capture.Photo, error) {
		got.Store(q)
		return &capture.Photo{URI: "x", Data: []byte{1}}, nil
	})
	ctl := New(cam, classify.NewMock("paper"), nil,
		WithClock(NewManualClock(t0)),
		WithQuality(func() float64 { return 0.35 }),
	)
	defer ctl.Close()

	_, err := ctl.Start(DefaultInterval)
	require.NoError(t, err)
	ctl.Wait()
	assert.Equal(t, 0.35, got.Load())
}

func TestRealClockLoop(t *testing.T) {
	sink := &recordingSink{}
	ctl := New(&fakeCamera{}, classify.NewMock("cardboard"), sink)

	_, err := ctl.Start(10 * time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ctl.Status().RequestsIssued >= 3 }, waitFor, pollAt)

	require.NoError(t, ctl.Close())
	n := sink.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, sink.count())
	assert.Equal(t, "cardboard", ctl.Status().Label)

	_, err = ctl.Start(10 * time.Millisecond)
	assert.Error(t, err, "closed controller must not restart")
}

type cameraFunc func(ctx context.Context, q float64) (*capture.Photo, error)

func (f cameraFunc) Permission(ctx context.Context) error { return nil }

func (f cameraFunc) CapturePhoto(ctx context.Context, q float64) (*capture.Photo, error) {
	return f(ctx, q)
}
