package classify

import (
	"context"
	"sync"
	"time"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, req *Request) *Result

	// MockName is returned by Name; defaults to "mock".
	MockName string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one Classify invocation.
type MockCall struct {
	RequestID string
	ImageRef  string
	Time      time.Time
}

// NewMock returns a mock that answers every request with label.
func NewMock(label string) *Mock {
	m := &Mock{}
	m.ClassifyFunc = func(ctx context.Context, req *Request) *Result {
		res := newResult(req, m.Name())
		return res.predicted(&Prediction{Label: label, Confidence: 1}, DefaultUnrecognizedLabel)
	}
	return m
}

// WithError makes every call fail with err.
func (m *Mock) WithError(err error) *Mock {
	m.ClassifyFunc = func(ctx context.Context, req *Request) *Result {
		return newResult(req, m.Name()).fail(err)
	}
	return m
}

// WithNoPrediction makes every call return the unrecognized label.
func (m *Mock) WithNoPrediction() *Mock {
	m.ClassifyFunc = func(ctx context.Context, req *Request) *Result {
		return newResult(req, m.Name()).predicted(nil, DefaultUnrecognizedLabel)
	}
	return m
}

// Name implements Classifier.
func (m *Mock) Name() string {
	if m.MockName != "" {
		return m.MockName
	}
	return "mock"
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, req *Request) *Result {
	call := MockCall{Time: time.Now()}
	if req != nil {
		call.RequestID = req.ID
		call.ImageRef = req.ImageRef
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		if res := fn(ctx, req); res != nil {
			return res
		}
	}
	return newResult(req, m.Name()).predicted(nil, DefaultUnrecognizedLabel)
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Classify calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Classifier = (*Mock)(nil)
