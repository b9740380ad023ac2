package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/recycleeye/internal/log"
)

func TestNewChainEmpty(t *testing.T) {
	_, err := NewChain()
	assert.ErrorIs(t, err, ErrNoClassifiers)
}

func TestChainFirstSucceeds(t *testing.T) {
	primary := NewMock("plastic")
	fallback := NewMock("glass")

	chain, err := NewChainWithLogger(log.Discard(), primary, fallback)
	require.NoError(t, err)

	res := chain.Classify(context.Background(), NewRequest("", testJPEG))
	assert.Equal(t, KindOK, res.Kind)
	assert.Equal(t, "plastic", res.Label)
	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, 0, fallback.CallCount())
}

func TestChainFallsBackOnFailure(t *testing.T) {
	boom := errors.New("connection refused")
	primary := NewMock("").WithError(boom)
	primary.MockName = "hosted"
	fallback := NewMock("metal")
	fallback.MockName = "local"

	chain, err := NewChainWithLogger(log.Discard(), primary, fallback)
	require.NoError(t, err)
	assert.Equal(t, "hosted>local", chain.Name())

	res := chain.Classify(context.Background(), NewRequest("", testJPEG))
	assert.Equal(t, "metal", res.Label)
	assert.Equal(t, "local", res.Provider)
	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, 1, fallback.CallCount())
}

func TestChainNoPredictionStops(t *testing.T) {
	primary := NewMock("").WithNoPrediction()
	fallback := NewMock("paper")

	chain, err := NewChainWithLogger(log.Discard(), primary, fallback)
	require.NoError(t, err)

	res := chain.Classify(context.Background(), NewRequest("", testJPEG))
	assert.Equal(t, KindNoPrediction, res.Kind)
	assert.Equal(t, DefaultUnrecognizedLabel, res.Label)
	assert.Equal(t, 0, fallback.CallCount())
}

func TestChainAllFail(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	chain, err := NewChainWithLogger(log.Discard(), NewMock("").WithError(errA), NewMock("").WithError(errB))
	require.NoError(t, err)

	res := chain.Classify(context.Background(), NewRequest("", testJPEG))
	require.True(t, res.Failed())
	assert.Empty(t, res.Label)

	var chainErr *ChainError
	require.ErrorAs(t, res.Err, &chainErr)
	assert.Len(t, chainErr.Errors, 2)
	assert.ErrorIs(t, res.Err, errA)
	assert.ErrorIs(t, res.Err, errB)
	assert.ErrorIs(t, res.Err, ErrRequestFailed)
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := NewMock("")
	primary.ClassifyFunc = func(ctx context.Context, req *Request) *Result {
		cancel()
		return newResult(req, "primary").fail(ctx.Err())
	}
	fallback := NewMock("glass")

	chain, err := NewChainWithLogger(log.Discard(), primary, fallback)
	require.NoError(t, err)

	res := chain.Classify(ctx, NewRequest("", testJPEG))
	assert.True(t, res.Failed())
	assert.Equal(t, 0, fallback.CallCount())
}
