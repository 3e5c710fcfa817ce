// Package callback hosts the user-supplied predicate and transform logic a
// bulk job applies per record. Callbacks are opaque, potentially fallible
// capabilities: the engine hands them key and value as text and treats any
// error as a per-record failure. Two hosts are provided, in-process CEL
// expressions and external subprocess scripts, plus plain function adapters.
package callback

import "context"

// Predicate decides whether a record is processed. Implementations must be
// safe to call sequentially for the lifetime of one job.
type Predicate interface {
	Accepts(ctx context.Context, key, value string) (bool, error)
}

// Transform produces the new value for a record. It must behave as a pure
// function of (key, value) from the engine's perspective.
type Transform interface {
	Apply(ctx context.Context, key, value string) (string, error)
}

// PredicateFunc adapts an ordinary function to the Predicate interface.
type PredicateFunc func(ctx context.Context, key, value string) (bool, error)

func (f PredicateFunc) Accepts(ctx context.Context, key, value string) (bool, error) {
	return f(ctx, key, value)
}

// TransformFunc adapts an ordinary function to the Transform interface.
type TransformFunc func(ctx context.Context, key, value string) (string, error)

func (f TransformFunc) Apply(ctx context.Context, key, value string) (string, error) {
	return f(ctx, key, value)
}
