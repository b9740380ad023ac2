package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// Encoding names accepted by EncodingByName and WithEncoding.
const (
	EncodingBase64    = "base64"
	EncodingMultipart = "multipart"
)

// Multipart upload field layout expected by the local inference server.
const (
	MultipartField     = "file"
	MultipartFilename  = "photo.jpg"
	MultipartImageType = "image/jpeg"
)

// Encoding builds the HTTP request for one image and decodes the endpoint's
// answer. Each encoding pairs a wire format with its service's response shape.
type Encoding interface {
	// Name is the configuration name of the encoding.
	Name() string

	// NewRequest builds the outbound request.
	NewRequest(ctx context.Context, endpoint, apiKey string, image []byte) (*http.Request, error)

	// Decode extracts the primary prediction. A nil prediction with a nil
	// error means the service recognised nothing.
	Decode(body []byte) (*Prediction, error)
}

// EncodingByName returns the encoding registered under name.
func EncodingByName(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingBase64, "":
		return Base64Form{}, nil
	case EncodingMultipart:
		return Multipart{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// Base64Form posts the base64 image as a form-urlencoded body with the API key
// in the query string, and reads predictions[0].class (Roboflow hosted models).
type Base64Form struct{}

// Name implements Encoding.
func (Base64Form) Name() string { return EncodingBase64 }

// NewRequest implements Encoding.
func (Base64Form) NewRequest(ctx context.Context, endpoint, apiKey string, image []byte) (*http.Request, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("api_key", apiKey)
		u.RawQuery = q.Encode()
	}

	body := base64.StdEncoding.EncodeToString(image)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

type predictionsResponse struct {
	Predictions []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
	} `json:"predictions"`
}

// Decode implements Encoding.
func (Base64Form) Decode(body []byte) (*Prediction, error) {
	var out predictionsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Predictions) == 0 || out.Predictions[0].Class == "" {
		return nil, nil
	}
	return &Prediction{
		Label:      out.Predictions[0].Class,
		Confidence: out.Predictions[0].Confidence,
	}, nil
}

// Multipart uploads the image as a multipart file field and reads the
// atik_turu field (the local inference server).
type Multipart struct{}

// Name implements Encoding.
func (Multipart) Name() string { return EncodingMultipart }

// NewRequest implements Encoding. The API key, when set, is sent as a bearer token.
func (Multipart) NewRequest(ctx context.Context, endpoint, apiKey string, image []byte) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, MultipartField, MultipartFilename))
	h.Set("Content-Type", MultipartImageType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

type wasteTypeResponse struct {
	WasteType string `json:"atik_turu"`
}

// Decode implements Encoding.
func (Multipart) Decode(body []byte) (*Prediction, error) {
	var out wasteTypeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	label := strings.TrimSpace(out.WasteType)
	if label == "" {
		return nil, nil
	}
	return &Prediction{Label: label}, nil
}
