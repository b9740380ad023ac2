package classify

import (
	"context"
	"log/slog"
	"strings"
)

// Chain asks a fallback classifier when the primary one fails. Each member is
// called at most once per Classify, so a chain never retries a backend.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain creates a classifier chain.
// At least one classifier is required.
func NewChain(classifiers ...Classifier) (*Chain, error) {
	if len(classifiers) == 0 {
		return nil, ErrNoClassifiers
	}
	return &Chain{
		classifiers: classifiers,
		logger:      slog.Default().With("component", "classify.chain"),
	}, nil
}

// NewChainWithLogger creates a classifier chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, classifiers ...Classifier) (*Chain, error) {
	chain, err := NewChain(classifiers...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "classify.chain")
	return chain, nil
}

// Name joins the member names.
func (c *Chain) Name() string {
	names := make([]string, len(c.classifiers))
	for i, cl := range c.classifiers {
		names[i] = cl.Name()
	}
	return strings.Join(names, ">")
}

// Classify tries each classifier until one produces an answer. A
// KindNoPrediction result counts as an answer and stops the chain.
func (c *Chain) Classify(ctx context.Context, req *Request) *Result {
	var errs []error
	var last *Result

	for i, cl := range c.classifiers {
		res := cl.Classify(ctx, req)
		if !res.Failed() {
			if i > 0 {
				c.logger.Info("fallback classifier succeeded",
					"classifier_index", i,
					"provider", res.Provider,
				)
			}
			return res
		}

		last = res
		errs = append(errs, res.Err)
		c.logger.Warn("classifier failed, trying next",
			"classifier_index", i,
			"error", res.Err,
		)

		if ctx.Err() != nil {
			break
		}
	}

	last.Err = &ChainError{Errors: errs}
	return last
}

// Close closes every member that has a Close method.
func (c *Chain) Close() error {
	var first error
	for _, cl := range c.classifiers {
		if closer, ok := cl.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

var _ Classifier = (*Chain)(nil)
