// Package typefun is the embedding surface of the type function engine.
// Host programs create an Engine, bind user-defined type functions, and
// evaluate type expressions without touching the internal packages.
package typefun

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/funvibe/typefun/internal/config"
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/reduce"
	"github.com/funvibe/typefun/internal/typeexpr"
	"github.com/funvibe/typefun/internal/typegraph"
	"github.com/funvibe/typefun/internal/userfunc"
)

// Engine owns an arena, a builtin registry, and a user-function runtime.
// It is not safe for concurrent use; create one Engine per goroutine.
type Engine struct {
	arena      *typegraph.Arena
	builtins   *typegraph.Builtins
	normalizer *normalize.Normalizer
	runtime    *userfunc.Runtime
	limits     config.Limits
	logger     *slog.Logger

	funcs map[string]*typegraph.FunctionDefinition
}

// New creates an Engine with the default limits.
func New() *Engine {
	return NewWithLimits(config.DefaultLimits())
}

// NewWithLimits creates an Engine bounded by the given limits. Zero
// fields fall back to the defaults.
func NewWithLimits(limits config.Limits) *Engine {
	limits = limits.Normalize()
	builtins := typegraph.NewBuiltins()
	arena := typegraph.NewArena()
	return &Engine{
		arena:      arena,
		builtins:   builtins,
		normalizer: normalize.NewNormalizer(builtins, arena),
		runtime:    userfunc.NewRuntime(limits),
		limits:     limits,
		funcs:      map[string]*typegraph.FunctionDefinition{},
	}
}

// SetLogger attaches a trace logger. Nil disables tracing.
func (e *Engine) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Bind registers a user-defined type function under name. The source is
// a script body receiving its type arguments as varargs and returning a
// type. Bound functions may call each other by name.
func (e *Engine) Bind(name, source string) error {
	if _, builtin := reduce.LookupOperator(name); builtin {
		return fmt.Errorf("%q is a builtin type function and cannot be rebound", name)
	}
	def := &typegraph.FunctionDefinition{Name: name, Source: source}
	if err := e.runtime.Register(def); err != nil {
		return err
	}
	e.funcs[name] = def
	return nil
}

// Eval parses expr, reduces every type function application in it, and
// returns the rendered result. Diagnostics produced by the pass are
// collected into the returned error.
func (e *Engine) Eval(expr string) (string, error) {
	entry, err := typeexpr.Parse(expr, e.arena, e.builtins)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", expr, err)
	}
	if err := e.resolveUserOperators(entry); err != nil {
		return "", err
	}

	ctx := &reduce.Context{
		Arena:      e.arena,
		Builtins:   e.builtins,
		Normalizer: e.normalizer,
		Runtime:    e.runtime,
		Limits:     e.limits,
		Location:   expr,
		Logger:     e.logger,
	}
	report := reduce.Reduce(entry, ctx, false)

	rendered := typegraph.Follow(entry).String()
	if len(report.Errors) > 0 {
		msgs := make([]string, 0, len(report.Errors))
		for _, d := range report.Errors {
			msgs = append(msgs, d.String())
		}
		return rendered, fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return rendered, nil
}

// resolveUserOperators rewrites applications of bound function names
// into user-function dispatch nodes. Names that are neither builtin nor
// bound are rejected before reduction starts.
func (e *Engine) resolveUserOperators(entry *typegraph.Type) error {
	var unknown []string
	_ = typegraph.VisitType(entry, e.limits.TraversalLimit, typegraph.VisitFuncs{
		Type: func(t *typegraph.Type) bool {
			fi, isInstance := t.Instance()
			if !isInstance {
				return true
			}
			if _, builtin := reduce.LookupOperator(fi.Operator); builtin {
				return true
			}
			def, bound := e.funcs[fi.Operator]
			if !bound {
				unknown = append(unknown, fi.Operator)
				return true
			}
			fi.UserFunc = &typegraph.UserFuncData{
				Definition:   def,
				EnvFunctions: e.envFunctions(def),
			}
			fi.Operator = reduce.OpUser
			return true
		},
	})
	if len(unknown) > 0 {
		return fmt.Errorf("unknown type function(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (e *Engine) envFunctions(self *typegraph.FunctionDefinition) []typegraph.EnvFunction {
	env := make([]typegraph.EnvFunction, 0, len(e.funcs))
	for name, def := range e.funcs {
		if def == self {
			continue
		}
		env = append(env, typegraph.EnvFunction{Name: name, Definition: def})
	}
	return env
}
