package engine

import (
	"context"
	"slices"
)

// Input is the authorization question: does a caller holding Scopes (granted by
// Role) satisfy Required?
type Input struct {
	Role     string   `json:"role"`
	Scopes   []string `json:"scopes"`
	Required string   `json:"required"`
}

// Evaluator decides scope authorization. Implementations must be safe for concurrent use.
type Evaluator interface {
	Allowed(ctx context.Context, in Input) (bool, error)
}

// ScopeSetEvaluator allows a request iff the caller's scopes contain the required scope.
type ScopeSetEvaluator struct{}

// Allowed implements Evaluator.
func (ScopeSetEvaluator) Allowed(_ context.Context, in Input) (bool, error) {
	return in.Required != "" && slices.Contains(in.Scopes, in.Required), nil
}
