// Package llm adapts model provider APIs to the two request primitives the
// evaluation needs: greedy generation up to a stop sequence, and the total
// log-probability of a fixed continuation.
package llm

import (
	"context"
	"errors"
)

// ErrLoglikelihoodUnsupported marks backends whose API exposes no token
// log-probabilities. Callers can match it with errors.Is to fail a run with a
// useful message instead of a transport error.
var ErrLoglikelihoodUnsupported = errors.New("llm: loglikelihood not supported by this backend")

type Backend interface {
	Name() string

	// GreedyUntil generates greedily from prompt, stopping at the first stop
	// sequence or after maxTokens tokens.
	GreedyUntil(ctx context.Context, prompt string, stop []string, maxTokens int) (string, error)

	// Loglikelihood returns the total log-probability of continuation given
	// prompt, and whether the continuation is the model's greedy decode.
	Loglikelihood(ctx context.Context, prompt, continuation string) (float64, bool, error)
}
