package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/recycleeye/pkg/classify"
	"github.com/teslashibe/recycleeye/pkg/scan"
)

// Mode is the screen the application is on.
type Mode string

// Modes
const (
	ModeHome    Mode = "home"
	ModeCamera  Mode = "camera"
	ModeGallery Mode = "gallery"
	ModeLive    Mode = "live"
)

// Modes returns every mode in display order.
func Modes() []Mode {
	return []Mode{ModeHome, ModeCamera, ModeGallery, ModeLive}
}

// ParseMode converts a name to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeHome, ModeCamera, ModeGallery, ModeLive:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// NeedsCamera reports whether entering the mode requires camera permission.
func (m Mode) NeedsCamera() bool {
	return m == ModeCamera || m == ModeLive
}

// Alert texts shown to the user.
const (
	AlertPermission     = "Camera permission is required."
	AlertCaptureFailed  = "Could not take the photo."
	AlertAnalysisFailed = "Something went wrong during analysis."
	AlertPickFailed     = "Could not open the photo library."
)

// State is everything a display sink renders.
type State struct {
	Mode              Mode          `json:"mode"`
	Busy              bool          `json:"busy"`
	Label             string        `json:"label,omitempty"`
	Kind              classify.Kind `json:"kind"`
	Alert             string        `json:"alert,omitempty"`
	SelectedImage     string        `json:"selected_image,omitempty"`
	PermissionGranted bool          `json:"permission_granted"`
	SessionID         string        `json:"session_id,omitempty"`
	Scan              *scan.Status  `json:"scan,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Sink renders state. Render is called for every change and must not block.
type Sink interface {
	Render(State)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(State)

// Render implements Sink.
func (f SinkFunc) Render(s State) { f(s) }
