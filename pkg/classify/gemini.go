package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// DefaultCategories are the labels the multimodal backend may answer with.
var DefaultCategories = []string{
	"plastic", "glass", "metal", "paper", "cardboard", "organic", "battery", "textile",
}

const geminiInstruction = `You sort household waste for recycling.
Look at the photo and answer with exactly one word naming the waste category of
the main object. Allowed words: %s.
If there is no recognisable object, answer "none".`

// generator sends one prompt plus image and returns the text answer.
type generator interface {
	Generate(ctx context.Context, image []byte, mime string) (string, error)
	Close() error
}

// Gemini classifies with a multimodal Gemini model.
type Gemini struct {
	gen          generator
	categories   []string
	timeout      time.Duration
	unrecognized string
	logger       *slog.Logger
}

// NewGemini creates a Gemini-backed classifier. Only the timeout, logger and
// unrecognized label options apply.
func NewGemini(ctx context.Context, apiKey, model string, opts ...Option) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultGeminiModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	m := cl.GenerativeModel(model)
	m.SetTemperature(0)
	m.SetCandidateCount(1)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{
			genai.Text(fmt.Sprintf(geminiInstruction, strings.Join(DefaultCategories, ", "))),
		},
	}

	return newGemini(&genaiGenerator{client: cl, model: m}, opts...), nil
}

func newGemini(gen generator, opts ...Option) *Gemini {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		gen:          gen,
		categories:   DefaultCategories,
		timeout:      cfg.Timeout,
		unrecognized: cfg.UnrecognizedLabel,
		logger:       logger.With("component", "classify.gemini"),
	}
}

// Name implements Classifier.
func (g *Gemini) Name() string { return "gemini" }

// Classify implements Classifier.
func (g *Gemini) Classify(ctx context.Context, req *Request) *Result {
	res := newResult(req, g.Name())
	if req == nil || len(req.Data) == 0 {
		return res.fail(ErrEmptyImage)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.gen.Generate(ctx, req.Data, SniffMIME(req.Data))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w after %v: %w", ErrTimeout, g.timeout, err)
		}
		return res.fail(err)
	}

	res.predicted(g.parse(text), g.unrecognized)
	g.logger.Debug("classified", "request_id", req.ID, "label", res.Label, "kind", res.Kind)
	return res
}

// parse reduces a free-text answer to a single category.
func (g *Gemini) parse(text string) *Prediction {
	var word string
	if fields := strings.Fields(strings.ToLower(text)); len(fields) > 0 {
		word = strings.Trim(fields[0], ".,!:;\"'`*")
	}
	if word == "" || word == "none" {
		return nil
	}
	for _, c := range g.categories {
		if word == c {
			return &Prediction{Label: c, Confidence: 1}
		}
	}
	// Answers outside the list are still shown as-is.
	return &Prediction{Label: word}
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.gen.Close()
}

type genaiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func (g *genaiGenerator) Generate(ctx context.Context, image []byte, mime string) (string, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.Text("Which waste category is this?"),
		&genai.Blob{MIMEType: mime, Data: image},
	)
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

func (g *genaiGenerator) Close() error {
	return g.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

var _ Classifier = (*Gemini)(nil)
