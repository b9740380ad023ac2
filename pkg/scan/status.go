package scan

import (
	"time"

	"github.com/teslashibe/recycleeye/pkg/classify"
)

// Status is what the controller publishes to its sink.
type Status struct {
	SessionID string        `json:"session_id,omitempty"`
	Active    bool          `json:"active"`
	Busy      bool          `json:"busy"`
	Label     string        `json:"label,omitempty"`
	Kind      classify.Kind `json:"kind"`
	Error     string        `json:"error,omitempty"`

	RequestsIssued   uint64 `json:"requests_issued"`
	TicksDropped     uint64 `json:"ticks_dropped"`
	ResultsDiscarded uint64 `json:"results_discarded"`

	LatencyMs int64     `json:"latency_ms,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sink receives status updates. Publish is called from controller goroutines
// and must not block or call back into the controller's Start or Stop.
type Sink interface {
	Publish(Status)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Status)

// Publish implements Sink.
func (f SinkFunc) Publish(s Status) { f(s) }

// Session describes one live-scan activation.
type Session struct {
	ID         string        `json:"id"`
	Active     bool          `json:"active"`
	Interval   time.Duration `json:"interval"`
	InFlight   bool          `json:"in_flight"`
	Generation uint64        `json:"generation"`
	StartedAt  time.Time     `json:"started_at"`
}
