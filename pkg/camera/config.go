// Package camera provides runtime-configurable capture settings.
// Values can be changed through the dashboard API while a scan is running;
// the next capture picks them up.
package camera

import "time"

// Config holds all capture tuning parameters.
type Config struct {
	// Quality is the JPEG quality hint for camera captures (0..1].
	Quality float64 `json:"quality"`

	// LibraryQuality is the quality hint for library picks (0..1].
	LibraryQuality float64 `json:"library_quality"`

	// MaxFrameAgeMs bounds how old a pushed device frame may be.
	// 0 accepts any age.
	MaxFrameAgeMs int `json:"max_frame_age_ms"`
}

// Limits
const (
	MinQuality       = 0.05
	MaxQuality       = 1.0
	MaxFrameAgeLimit = 60000 // ms
)

// DefaultConfig returns the settings of the mobile application: a low
// camera quality for fast uploads and a medium library quality.
func DefaultConfig() Config {
	return Config{
		Quality:        0.2,
		LibraryQuality: 0.5,
		MaxFrameAgeMs:  3000,
	}
}

// MaxAge returns the frame age limit as a duration.
func (c Config) MaxAge() time.Duration {
	return time.Duration(c.MaxFrameAgeMs) * time.Millisecond
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Quality < MinQuality || c.Quality > MaxQuality {
		errors = append(errors, "quality must be between 0.05 and 1.0")
	}
	if c.LibraryQuality < MinQuality || c.LibraryQuality > MaxQuality {
		errors = append(errors, "library_quality must be between 0.05 and 1.0")
	}
	if c.MaxFrameAgeMs < 0 || c.MaxFrameAgeMs > MaxFrameAgeLimit {
		errors = append(errors, "max_frame_age_ms must be between 0 and 60000")
	}

	return errors
}
