package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/recycleeye/internal/log"
)

var testJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xff, 0xd9}

func newTestClient(t *testing.T, url, encoding string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithEndpoint(url),
		WithAPIKey("test-key"),
		WithEncoding(encoding),
		WithLogger(log.Discard()),
	}
	client, err := NewClient(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBase64Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("Expected api_key=test-key, got %q", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Expected form content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != base64.StdEncoding.EncodeToString(testJPEG) {
			t.Errorf("Body is not the base64 image: %q", body)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"predictions":[{"class":"plastic","confidence":0.91},{"class":"glass","confidence":0.05}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, EncodingBase64)
	req := NewRequest("file:///bottle.jpg", testJPEG)
	res := client.Classify(context.Background(), req)

	if res.Kind != KindOK {
		t.Fatalf("Expected KindOK, got %s (%v)", res.Kind, res.Err)
	}
	if res.Label != "plastic" {
		t.Errorf("Expected label plastic, got %q", res.Label)
	}
	if res.Confidence != 0.91 {
		t.Errorf("Expected confidence 0.91, got %v", res.Confidence)
	}
	if res.RequestID != req.ID {
		t.Errorf("Expected request id %s, got %s", req.ID, res.RequestID)
	}
	if res.Err != nil {
		t.Errorf("Expected no error, got %v", res.Err)
	}
}

func TestBase64KeepsExistingQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confidence") != "40" || r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("Unexpected query %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"predictions":[{"class":"metal"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/recycleye/2?confidence=40", EncodingBase64)
	res := client.Classify(context.Background(), NewRequest("", testJPEG))
	if res.Label != "metal" {
		t.Errorf("Expected metal, got %q", res.Label)
	}
}

func TestBase64EmptyPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"predictions":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, EncodingBase64)
	res := client.Classify(context.Background(), NewRequest("", testJPEG))

	if res.Kind != KindNoPrediction {
		t.Fatalf("Expected KindNoPrediction, got %s", res.Kind)
	}
	if res.Label != "unrecognized" {
		t.Errorf("Expected unrecognized label, got %q", res.Label)
	}
	if !res.HasLabel() {
		t.Error("No-prediction result should still show a label")
	}
}

func TestCustomUnrecognizedLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, EncodingMultipart, WithUnrecognizedLabel("Tanınmadı"))
	res := client.Classify(context.Background(), NewRequest("", testJPEG))
	if res.Kind != KindNoPrediction || res.Label != "Tanınmadı" {
		t.Errorf("Expected custom unrecognized label, got %s %q", res.Kind, res.Label)
	}
}

func TestMultipartClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("Multipart request should carry no query, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected bearer key, got %q", r.Header.Get("Authorization"))
		}
		file, header, err := r.FormFile(MultipartField)
		if err != nil {
			t.Fatalf("Expected file field: %v", err)
		}
		defer file.Close()
		if header.Filename != "photo.jpg" {
			t.Errorf("Expected filename photo.jpg, got %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image/jpeg part, got %q", ct)
		}
		data, _ := io.ReadAll(file)
		if string(data) != string(testJPEG) {
			t.Error("Uploaded bytes differ from the image")
		}

		io.WriteString(w, `{"atik_turu":"glass"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/predict", EncodingMultipart)
	res := client.Classify(context.Background(), NewRequest("", testJPEG))

	if res.Kind != KindOK || res.Label != "glass" {
		t.Fatalf("Expected glass, got %s %q (%v)", res.Kind, res.Label, res.Err)
	}
	if res.Provider != EncodingMultipart {
		t.Errorf("Expected provider %q, got %q", EncodingMultipart, res.Provider)
	}
}

func TestClassifyTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, EncodingBase64, WithTimeout(50*time.Millisecond))

	start := time.Now()
	res := client.Classify(context.Background(), NewRequest("", testJPEG))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout not honoured, took %v", elapsed)
	}

	if res.Kind != KindRequestFailed {
		t.Fatalf("Expected KindRequestFailed, got %s", res.Kind)
	}
	if res.Label != "" {
		t.Errorf("Failed result must not carry a label, got %q", res.Label)
	}
	if !errors.Is(res.Err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", res.Err)
	}
	if !errors.Is(res.Err, ErrRequestFailed) {
		t.Errorf("Expected ErrRequestFailed, got %v", res.Err)
	}
}

func TestClassifyNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"invalid api key"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, EncodingBase64)
	res := client.Classify(context.Background(), NewRequest("", testJPEG))

	if res.Kind != KindRequestFailed {
		t.Fatalf("Expected KindRequestFailed, got %s", res.Kind)
	}
	var apiErr *APIError
	if !errors.As(res.Err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", res.Err, res.Err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("Expected unauthorized, got %d", apiErr.StatusCode)
	}
}

func TestClassifyServerErrorLoggedAsWarning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := newTestClient(t, server.URL, EncodingMultipart, WithLogger(logger))

	if got := client.Encoding().Name(); got != EncodingMultipart {
		t.Errorf("Expected encoding %q, got %q", EncodingMultipart, got)
	}

	res := client.Classify(context.Background(), NewRequest("", testJPEG))
	var apiErr *APIError
	if !errors.As(res.Err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", res.Err, res.Err)
	}
	if !apiErr.IsServerError() || apiErr.IsUnauthorized() {
		t.Errorf("Expected a server error, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(buf.String(), "endpoint error") {
		t.Errorf("Expected a warning for HTTP 502, got %q", buf.String())
	}
}

func TestClassifyMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>gateway</html>`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, EncodingMultipart)
	res := client.Classify(context.Background(), NewRequest("", testJPEG))
	if res.Kind != KindRequestFailed {
		t.Errorf("Expected KindRequestFailed for undecodable body, got %s", res.Kind)
	}
}

func TestClassifyNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url, EncodingBase64)
	res := client.Classify(context.Background(), NewRequest("", testJPEG))
	if res.Kind != KindRequestFailed {
		t.Errorf("Expected KindRequestFailed, got %s", res.Kind)
	}
	var cerr *ClassifierError
	if !errors.As(res.Err, &cerr) || cerr.Provider != EncodingBase64 {
		t.Errorf("Expected ClassifierError from base64, got %v", res.Err)
	}
}

func TestClassifyEmptyImage(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", EncodingBase64)
	res := client.Classify(context.Background(), NewRequest("", nil))
	if !errors.Is(res.Err, ErrEmptyImage) {
		t.Errorf("Expected ErrEmptyImage, got %v", res.Err)
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want error
	}{
		{"no endpoint", nil, ErrNoEndpoint},
		{"bad encoding", []Option{WithEndpoint("http://x"), WithEncoding("protobuf")}, ErrUnknownEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := NewClient(WithEndpoint("http://x"), WithTimeout(0)); err == nil {
		t.Error("Expected error for zero timeout")
	}
}

func TestEncodingByName(t *testing.T) {
	for name, want := range map[string]string{
		"":          EncodingBase64,
		"base64":    EncodingBase64,
		"MULTIPART": EncodingMultipart,
	} {
		enc, err := EncodingByName(name)
		if err != nil {
			t.Fatalf("EncodingByName(%q): %v", name, err)
		}
		if enc.Name() != want {
			t.Errorf("EncodingByName(%q) = %s, want %s", name, enc.Name(), want)
		}
	}
}
