// Package config loads recycleeye configuration from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (RECYCLEEYE_ENDPOINT_URL, ...).
const EnvPrefix = "RECYCLEEYE"

// Default configuration values.
const (
	DefaultEndpoint          = "https://serverless.roboflow.com/recycleye/2"
	DefaultEncoding          = "base64"
	DefaultTimeout           = 5 * time.Second
	DefaultScanInterval      = 1500 * time.Millisecond
	DefaultCameraSource      = "remote"
	DefaultCameraPreset      = "default"
	DefaultWebPort           = "8080"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultUnrecognizedLabel = "unrecognized"
)

// Config holds all configuration for recycleeye commands.
type Config struct {
	Endpoint EndpointConfig
	Fallback EndpointConfig
	Gemini   GeminiConfig
	Scan     ScanConfig
	Camera   CameraConfig
	Library  LibraryConfig
	Web      WebConfig
	Telegram TelegramConfig
	Logging  LoggingConfig

	// UnrecognizedLabel is shown when the endpoint answers without a prediction.
	UnrecognizedLabel string
}

// EndpointConfig describes one inference endpoint.
type EndpointConfig struct {
	URL      string
	APIKey   string
	Encoding string // "base64" or "multipart"
	Timeout  time.Duration
}

// Enabled reports whether the endpoint has a URL.
func (e EndpointConfig) Enabled() bool { return e.URL != "" }

// GeminiConfig configures the optional Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// ScanConfig configures the live-scan loop.
type ScanConfig struct {
	Interval       time.Duration
	SuppressErrors bool
}

// CameraConfig selects and configures the capture source.
type CameraConfig struct {
	Source      string // "remote", "snapshot", "webcam", "static"
	SnapshotURL string
	Device      int
	StaticFile  string
	Preset      string
}

// LibraryConfig configures the directory-backed gallery.
type LibraryConfig struct {
	Dir string
}

// WebConfig configures the dashboard server.
type WebConfig struct {
	Port string
}

// TelegramConfig configures the bot front-end.
type TelegramConfig struct {
	Token string
}

// LoggingConfig configures internal/log.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.url", DefaultEndpoint)
	v.SetDefault("endpoint.encoding", DefaultEncoding)
	v.SetDefault("endpoint.timeout", DefaultTimeout)
	v.SetDefault("fallback.encoding", "multipart")
	v.SetDefault("fallback.timeout", DefaultTimeout)
	v.SetDefault("gemini.model", DefaultGeminiModel)
	v.SetDefault("scan.interval", DefaultScanInterval)
	v.SetDefault("scan.suppress_errors", true)
	v.SetDefault("camera.source", DefaultCameraSource)
	v.SetDefault("camera.preset", DefaultCameraPreset)
	v.SetDefault("web.port", DefaultWebPort)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("unrecognized_label", DefaultUnrecognizedLabel)
}

// Setup prepares v to read the config file and environment.
// An empty path searches $HOME/.config/recycleeye and the working directory.
func Setup(v *viper.Viper, path string) error {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "recycleeye"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("recycleeye")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load reads a Config out of v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Endpoint: EndpointConfig{
			URL:      v.GetString("endpoint.url"),
			APIKey:   v.GetString("endpoint.api_key"),
			Encoding: v.GetString("endpoint.encoding"),
			Timeout:  v.GetDuration("endpoint.timeout"),
		},
		Fallback: EndpointConfig{
			URL:      v.GetString("fallback.url"),
			APIKey:   v.GetString("fallback.api_key"),
			Encoding: v.GetString("fallback.encoding"),
			Timeout:  v.GetDuration("fallback.timeout"),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("gemini.api_key"),
			Model:  v.GetString("gemini.model"),
		},
		Scan: ScanConfig{
			Interval:       v.GetDuration("scan.interval"),
			SuppressErrors: v.GetBool("scan.suppress_errors"),
		},
		Camera: CameraConfig{
			Source:      v.GetString("camera.source"),
			SnapshotURL: v.GetString("camera.snapshot_url"),
			Device:      v.GetInt("camera.device"),
			StaticFile:  v.GetString("camera.static_file"),
			Preset:      v.GetString("camera.preset"),
		},
		Library: LibraryConfig{
			Dir: ExpandPath(v.GetString("library.dir")),
		},
		Web: WebConfig{
			Port: v.GetString("web.port"),
		},
		Telegram: TelegramConfig{
			Token: v.GetString("telegram.token"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		UnrecognizedLabel: v.GetString("unrecognized_label"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.Endpoint.Enabled() && c.Gemini.APIKey == "" {
		return &Error{Field: "endpoint.url", Message: "an endpoint URL or a Gemini API key is required"}
	}
	if err := validateEndpoint("endpoint", c.Endpoint); err != nil {
		return err
	}
	if err := validateEndpoint("fallback", c.Fallback); err != nil {
		return err
	}
	if c.Scan.Interval <= 0 {
		return &Error{Field: "scan.interval", Message: "must be positive"}
	}
	switch c.Camera.Source {
	case "remote", "webcam":
	case "snapshot":
		if c.Camera.SnapshotURL == "" {
			return &Error{Field: "camera.snapshot_url", Message: "required for the snapshot source"}
		}
	case "static":
		if c.Camera.StaticFile == "" {
			return &Error{Field: "camera.static_file", Message: "required for the static source"}
		}
	default:
		return &Error{Field: "camera.source", Message: fmt.Sprintf("unknown source %q", c.Camera.Source)}
	}
	return nil
}

func validateEndpoint(name string, e EndpointConfig) error {
	if !e.Enabled() {
		return nil
	}
	switch e.Encoding {
	case "base64", "multipart":
	default:
		return &Error{Field: name + ".encoding", Message: fmt.Sprintf("unknown encoding %q", e.Encoding)}
	}
	if e.Timeout <= 0 {
		return &Error{Field: name + ".timeout", Message: "must be positive"}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
