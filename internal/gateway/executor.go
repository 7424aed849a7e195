package gateway

import (
	"context"
	"net/http"

	dErrors "schemagate/pkg/domain-errors"
)

// Executor runs the admitted request against the compiled schema. The
// execution engine lives outside this core; the gateway only produces the
// Handoff it consumes.
type Executor interface {
	Execute(ctx context.Context, w http.ResponseWriter, r *http.Request, h Handoff) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, h Handoff) error

func (f ExecutorFunc) Execute(ctx context.Context, w http.ResponseWriter, r *http.Request, h Handoff) error {
	return f(ctx, w, r, h)
}

// UnconfiguredExecutor rejects execution. It stands in until a real engine
// is wired, which keeps the admission pipeline exercisable end to end.
func UnconfiguredExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request, h Handoff) error {
		return dErrors.New(dErrors.CodeConfiguration, "no execution engine configured")
	})
}
