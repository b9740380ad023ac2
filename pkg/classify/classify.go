// Package classify sends one photo to an image-classification endpoint and
// maps the answer to a waste-category label.
//
// A Classifier never returns a Go error from Classify. Failures are reported
// as a tagged Result so callers such as the live-scan loop can keep going:
//
//	client, _ := classify.NewClient(
//	    classify.WithEndpoint("https://serverless.roboflow.com/recycleye/2"),
//	    classify.WithAPIKey(os.Getenv("RECYCLEEYE_ENDPOINT_API_KEY")),
//	    classify.WithEncoding(classify.EncodingBase64),
//	)
//
//	res := client.Classify(ctx, classify.NewRequest("file:///tmp/bottle.jpg", jpeg))
//	switch res.Kind {
//	case classify.KindOK, classify.KindNoPrediction:
//	    fmt.Println(res.Label)
//	case classify.KindRequestFailed:
//	    fmt.Println("no result this cycle:", res.Err)
//	}
package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Classifier classifies one image per call. Implementations hold no state
// between calls: no caching and no retry.
type Classifier interface {
	// Classify returns a non-nil Result for every call.
	Classify(ctx context.Context, req *Request) *Result

	// Name identifies the backend in logs and results.
	Name() string
}

// Kind tags the outcome of a classification.
type Kind int

const (
	// KindOK means the endpoint returned a label.
	KindOK Kind = iota

	// KindRequestFailed covers network errors, non-2xx answers, undecodable
	// bodies and timeouts. No label is attached.
	KindRequestFailed

	// KindNoPrediction means the endpoint answered but recognised nothing.
	// The result carries the unrecognized label.
	KindNoPrediction
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRequestFailed:
		return "request_failed"
	case KindNoPrediction:
		return "no_prediction"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind as its string form in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the string form written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*k = KindOK
	case "request_failed":
		*k = KindRequestFailed
	case "no_prediction":
		*k = KindNoPrediction
	default:
		return fmt.Errorf("classify: unknown kind %q", text)
	}
	return nil
}

// Request is one outbound classification attempt.
type Request struct {
	// ID uniquely identifies the attempt in logs.
	ID string

	// ImageRef is an opaque handle to the image (URI or path).
	ImageRef string

	// Data holds the encoded image bytes (JPEG).
	Data []byte

	// SubmittedAt is when the attempt was created.
	SubmittedAt time.Time
}

// NewRequest creates a request stamped with a fresh ID and the current time.
func NewRequest(imageRef string, data []byte) *Request {
	return &Request{
		ID:          uuid.NewString(),
		ImageRef:    imageRef,
		Data:        data,
		SubmittedAt: time.Now(),
	}
}

// Result is the outcome of one classification.
type Result struct {
	RequestID  string
	Label      string // empty when absent
	Confidence float64
	Kind       Kind
	Err        error // set only for KindRequestFailed
	Provider   string

	SubmittedAt time.Time
	ReceivedAt  time.Time
}

// Failed reports whether the request produced no usable answer.
func (r *Result) Failed() bool {
	return r.Kind == KindRequestFailed
}

// HasLabel reports whether a label should be shown.
func (r *Result) HasLabel() bool {
	return r.Kind != KindRequestFailed && r.Label != ""
}

// Latency is the round-trip duration.
func (r *Result) Latency() time.Duration {
	if r.SubmittedAt.IsZero() || r.ReceivedAt.IsZero() {
		return 0
	}
	return r.ReceivedAt.Sub(r.SubmittedAt)
}

// Prediction is the primary predicted category decoded from a response body.
type Prediction struct {
	Label      string
	Confidence float64
}

// NewFailure returns a KindRequestFailed result for an attempt that failed
// before or outside a classifier, such as a capture error.
func NewFailure(req *Request, provider string, err error) *Result {
	return newResult(req, provider).fail(err)
}

func newResult(req *Request, provider string) *Result {
	res := &Result{Provider: provider}
	if req != nil {
		res.RequestID = req.ID
		res.SubmittedAt = req.SubmittedAt
	}
	if res.SubmittedAt.IsZero() {
		res.SubmittedAt = time.Now()
	}
	return res
}

func (r *Result) fail(err error) *Result {
	r.Kind = KindRequestFailed
	r.Label = ""
	r.Err = WrapError(r.Provider, markFailed(err))
	r.ReceivedAt = time.Now()
	return r
}

func (r *Result) predicted(p *Prediction, unrecognized string) *Result {
	r.ReceivedAt = time.Now()
	if p == nil || p.Label == "" {
		r.Kind = KindNoPrediction
		r.Label = unrecognized
		return r
	}
	r.Kind = KindOK
	r.Label = p.Label
	r.Confidence = p.Confidence
	return r
}
