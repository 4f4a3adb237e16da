package reduce

import (
	"context"
	"log/slog"

	"github.com/funvibe/typefun/internal/config"
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/typegraph"
)

// Solver is the collaborator interface back into the constraint solver.
// A reducer that synthesizes a new instance (union of distributed
// results) hands it to the solver for future scheduling.
type Solver interface {
	HasUnresolvedConstraints(t *typegraph.Type) bool
	PushConstraint(instance *typegraph.Type)
	InheritBlocking(from, to *typegraph.Type)
}

// UserRuntime is the collaborator interface to the user-defined
// function runtime. Invoke runs the instance's user function and maps
// every failure mode into an Outcome, never a panic.
type UserRuntime interface {
	Invoke(ctx *Context, instance *typegraph.Type, fi *typegraph.FunctionInstance) Outcome
}

// Context is the shared bundle threaded through one reduction pass and
// into every reducer.
type Context struct {
	Ctx context.Context

	Arena      *typegraph.Arena
	Builtins   *typegraph.Builtins
	Normalizer *normalize.Normalizer
	Runtime    UserRuntime
	Solver     Solver
	Limits     config.Limits

	// Location pins diagnostics to the site the pass was started for.
	Location string

	// Logger, when set, receives trace events for each step. Nil means
	// no tracing.
	Logger *slog.Logger
}

func (c *Context) context() context.Context {
	if c.Ctx != nil {
		return c.Ctx
	}
	return context.Background()
}

func (c *Context) trace(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Debug(msg, args...)
	}
}

// pushConstraint hands a synthesized instance to the solver when one is
// attached; without a solver the instance is left for the current pass
// to discover.
func (c *Context) pushConstraint(instance *typegraph.Type) {
	if c.Solver != nil {
		c.Solver.PushConstraint(instance)
	}
}
