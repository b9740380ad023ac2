package classify

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Default values for a Client.
const (
	DefaultTimeout           = 5 * time.Second
	DefaultUnrecognizedLabel = "unrecognized"
)

// Config holds classifier configuration.
type Config struct {
	// Connection
	Endpoint string // full endpoint URL
	APIKey   string // optional for local servers
	Encoding string // "base64" or "multipart"

	// Timeout bounds one round trip, connection included.
	Timeout time.Duration

	// UnrecognizedLabel is shown when nothing was recognised.
	UnrecognizedLabel string

	// Name overrides the provider name (defaults to the encoding name).
	Name string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Option is a functional option for configuring classifiers.
type Option func(*Config)

// WithEndpoint sets the endpoint URL.
// Examples: "https://serverless.roboflow.com/recycleye/2", "http://192.168.1.20:8000/predict"
func WithEndpoint(url string) Option {
	return func(c *Config) { c.Endpoint = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithEncoding selects the request encoding by name.
func WithEncoding(name string) Option {
	return func(c *Config) { c.Encoding = name }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithUnrecognizedLabel sets the label used when nothing was recognised.
func WithUnrecognizedLabel(label string) Option {
	return func(c *Config) { c.UnrecognizedLabel = label }
}

// WithName overrides the provider name.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Config) { c.HTTPClient = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for the hosted base64 endpoint.
func DefaultConfig() *Config {
	return &Config{
		Encoding:          EncodingBase64,
		Timeout:           DefaultTimeout,
		UnrecognizedLabel: DefaultUnrecognizedLabel,
		Logger:            slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("classify: timeout must be positive, got %v", c.Timeout)
	}
	if _, err := EncodingByName(c.Encoding); err != nil {
		return err
	}
	return nil
}
