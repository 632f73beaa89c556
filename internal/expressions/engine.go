package expressions

import "context"

// Engine evaluates expressions against a data map.
// Implemented by Expr and CEL for record filters.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
