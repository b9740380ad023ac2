package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teslashibe/recycleeye/internal/httpc"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Client is the HTTP-based classifier. It works with any endpoint speaking
// one of the supported encodings.
type Client struct {
	endpoint     string
	apiKey       string
	encoding     Encoding
	config       *Config
	http         *http.Client
	logger       *slog.Logger
	name         string
	unrecognized string
}

// NewClient creates a new classification client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	enc, err := EncodingByName(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = enc.Name()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		// Deadlines come from the per-request context.
		hc = httpc.NewClient(0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:     strings.TrimSpace(cfg.Endpoint),
		apiKey:       cfg.APIKey,
		encoding:     enc,
		config:       cfg,
		http:         hc,
		logger:       logger.With("component", "classify.client", "provider", name),
		name:         name,
		unrecognized: cfg.UnrecognizedLabel,
	}, nil
}

// Name implements Classifier.
func (c *Client) Name() string { return c.name }

// Encoding returns the configured encoding.
func (c *Client) Encoding() Encoding { return c.encoding }

// Classify sends one request and maps the answer. It is safe for concurrent use.
func (c *Client) Classify(ctx context.Context, req *Request) *Result {
	res := newResult(req, c.name)

	if req == nil || len(req.Data) == 0 {
		return res.fail(ErrEmptyImage)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := c.encoding.NewRequest(ctx, c.endpoint, c.apiKey, req.Data)
	if err != nil {
		return res.fail(err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %v: %w", ErrTimeout, c.config.Timeout, err)
		}
		c.logger.Debug("request failed", "request_id", req.ID, "error", err)
		return res.fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w while reading body: %w", ErrTimeout, err)
		}
		return res.fail(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), 200),
			Provider:   c.name,
		}
		if apiErr.IsServerError() {
			c.logger.Warn("endpoint error", "request_id", req.ID, "status", resp.StatusCode)
		} else {
			c.logger.Debug("endpoint rejected request", "request_id", req.ID, "status", resp.StatusCode)
		}
		return res.fail(apiErr)
	}

	pred, err := c.encoding.Decode(body)
	if err != nil {
		return res.fail(err)
	}

	res.predicted(pred, c.unrecognized)
	c.logger.Debug("classified",
		"request_id", req.ID,
		"label", res.Label,
		"kind", res.Kind,
		"latency_ms", res.Latency().Milliseconds(),
	)
	return res
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// truncate shortens a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Verify Client implements Classifier at compile time.
var _ Classifier = (*Client)(nil)
