package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/recycleeye/internal/log"
)

type fakeGenerator struct {
	answer string
	err    error
	mime   string
	delay  time.Duration
	closed bool
}

func (f *fakeGenerator) Generate(ctx context.Context, image []byte, mime string) (string, error) {
	f.mime = mime
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.answer, f.err
}

func (f *fakeGenerator) Close() error {
	f.closed = true
	return nil
}

func TestGeminiParse(t *testing.T) {
	g := newGemini(&fakeGenerator{}, WithLogger(log.Discard()))

	tests := []struct {
		answer string
		label  string
		kind   Kind
	}{
		{"plastic", "plastic", KindOK},
		{"  Glass.\n", "glass", KindOK},
		{"**metal** bottle cap", "metal", KindOK},
		{"none", DefaultUnrecognizedLabel, KindNoPrediction},
		{"", DefaultUnrecognizedLabel, KindNoPrediction},
		{"styrofoam", "styrofoam", KindOK},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			g.gen = &fakeGenerator{answer: tt.answer}
			res := g.Classify(context.Background(), NewRequest("", testJPEG))
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.label, res.Label)
		})
	}
}

func TestGeminiSniffsMIME(t *testing.T) {
	gen := &fakeGenerator{answer: "paper"}
	g := newGemini(gen, WithLogger(log.Discard()))
	g.Classify(context.Background(), NewRequest("", testJPEG))
	assert.Equal(t, "image/jpeg", gen.mime)
}

func TestGeminiFailure(t *testing.T) {
	g := newGemini(&fakeGenerator{err: errors.New("quota exceeded")}, WithLogger(log.Discard()))
	res := g.Classify(context.Background(), NewRequest("", testJPEG))
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrRequestFailed)
}

func TestGeminiTimeout(t *testing.T) {
	g := newGemini(&fakeGenerator{answer: "glass", delay: time.Second},
		WithLogger(log.Discard()), WithTimeout(20*time.Millisecond))
	res := g.Classify(context.Background(), NewRequest("", testJPEG))
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrTimeout)
}

func TestGeminiClose(t *testing.T) {
	gen := &fakeGenerator{}
	g := newGemini(gen)
	require.NoError(t, g.Close())
	assert.True(t, gen.closed)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
