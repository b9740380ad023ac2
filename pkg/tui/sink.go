package tui

import "github.com/teslashibe/recycleeye/pkg/app"

// Sink is an app.Sink that hands the newest state to the program. Render
// never blocks: an unread state is replaced by the next one.
type Sink struct {
	ch chan app.State
}

// NewSink creates a Sink.
func NewSink() *Sink {
	return &Sink{ch: make(chan app.State, 1)}
}

// Render implements app.Sink.
func (s *Sink) Render(st app.State) {
	for {
		select {
		case s.ch <- st:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Updates returns the channel the model reads from.
func (s *Sink) Updates() <-chan app.State { return s.ch }
