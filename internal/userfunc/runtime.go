package userfunc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/funvibe/typefun/internal/config"
	"github.com/funvibe/typefun/internal/reduce"
	"github.com/funvibe/typefun/internal/typegraph"
)

// Runtime executes user-authored type-level functions inside isolated
// Lua states. Definitions compile once, keyed by identity; every
// invocation gets a fresh state with only its scope-visible environment
// copied in, so calls never observe each other's globals.
type Runtime struct {
	mu       sync.Mutex
	compiled map[*typegraph.FunctionDefinition]*lua.FunctionProto

	limits config.Limits
}

func NewRuntime(limits config.Limits) *Runtime {
	return &Runtime{
		compiled: map[*typegraph.FunctionDefinition]*lua.FunctionProto{},
		limits:   limits.Normalize(),
	}
}

// Register compiles a definition into executable form. Registration
// failures are reported, never fatal; a definition that failed the
// frontend is rejected outright.
func (r *Runtime) Register(def *typegraph.FunctionDefinition) error {
	if def.HasErrors {
		return fmt.Errorf("type function %q has syntax errors and cannot be registered", def.Name)
	}
	_, err := r.protoFor(def)
	return err
}

func (r *Runtime) protoFor(def *typegraph.FunctionDefinition) (*lua.FunctionProto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if proto, cached := r.compiled[def]; cached {
		return proto, nil
	}
	chunk, err := parse.Parse(strings.NewReader(def.Source), def.Name)
	if err != nil {
		return nil, fmt.Errorf("compile type function %q: %w", def.Name, err)
	}
	proto, err := lua.Compile(chunk, def.Name)
	if err != nil {
		return nil, fmt.Errorf("compile type function %q: %w", def.Name, err)
	}
	r.compiled[def] = proto
	return proto, nil
}

// Invoke runs the instance's user function over its type arguments.
// It implements reduce.UserRuntime.
func (r *Runtime) Invoke(rctx *reduce.Context, instance *typegraph.Type, fi *typegraph.FunctionInstance) reduce.Outcome {
	def := fi.UserFunc.Definition
	if def == nil {
		return failure("user-defined type function instance has no definition")
	}
	proto, err := r.protoFor(def)
	if err != nil {
		return failure(err.Error())
	}

	// The sandbox must never see a partial type: re-scan arguments and
	// any alias dependencies for unresolved nodes before entering.
	for _, arg := range fi.TypeArgs {
		if blocked := findUnresolved(arg); blocked != nil {
			return reduce.Outcome{Status: reduce.StatusMaybeBlocked, BlockedOn: []*typegraph.Type{blocked}}
		}
	}
	for _, dep := range fi.UserFunc.EnvAliases {
		if dep.Alias == nil || len(dep.Alias.TypeParams) > 0 {
			continue
		}
		if blocked := findUnresolved(dep.Alias.Type); blocked != nil {
			return reduce.Outcome{Status: reduce.StatusMaybeBlocked, BlockedOn: []*typegraph.Type{blocked}}
		}
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	baseCtx := rctx.Ctx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	// The interrupt hook: the VM checks this context at instruction
	// granularity and aborts on deadline or external cancellation.
	callCtx, cancel := context.WithTimeout(baseCtx, r.limits.UserFuncTimeout)
	defer cancel()
	L.SetContext(callCtx)

	openSafeLibraries(L)
	installTypeLibrary(L)
	if err := r.installEnvironment(L, rctx, def, fi.UserFunc); err != nil {
		return failure(err.Error())
	}

	args := make([]lua.LValue, 0, len(fi.TypeArgs))
	for _, arg := range fi.TypeArgs {
		v, serr := serialize(arg, 0)
		if serr != nil {
			return failure(fmt.Sprintf("type function %q: %s", def.Name, serr))
		}
		args = append(args, wrap(L, v))
	}

	fn := L.NewFunctionFromProto(proto)
	L.Push(fn)
	for _, a := range args {
		L.Push(a)
	}
	if err := L.PCall(len(args), 1, nil); err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return reduce.Outcome{
				Status:    reduce.StatusErroneous,
				Cancelled: true,
				Messages:  []string{fmt.Sprintf("type function %q exceeded its time limit", def.Name)},
			}
		}
		if errors.Is(callCtx.Err(), context.Canceled) {
			return reduce.Outcome{
				Status:    reduce.StatusErroneous,
				Cancelled: true,
				Messages:  []string{fmt.Sprintf("type function %q was cancelled", def.Name)},
			}
		}
		return failure(fmt.Sprintf("type function %q errored at runtime: %s", def.Name, err))
	}

	ret := unwrap(L.Get(-1))
	if ret == nil {
		return failure(fmt.Sprintf("type function %q returned a non-type value", def.Name))
	}
	result, err := deserialize(ret, rctx.Arena, rctx.Builtins)
	if err != nil {
		return failure(fmt.Sprintf("type function %q: %s", def.Name, err))
	}
	return reduce.Outcome{Result: result, Status: reduce.StatusOk}
}

// installEnvironment copies the scope-visible dependencies into the
// fresh state. A dependency is visible when it was declared at or
// outside the calling definition's scope.
func (r *Runtime) installEnvironment(L *lua.LState, rctx *reduce.Context, def *typegraph.FunctionDefinition, data *typegraph.UserFuncData) error {
	for _, dep := range data.EnvFunctions {
		if dep.ScopeDepth > def.ScopeDepth || dep.Definition == nil {
			continue
		}
		if dep.Definition.HasErrors {
			continue
		}
		proto, err := r.protoFor(dep.Definition)
		if err != nil {
			return err
		}
		L.SetGlobal(dep.Name, L.NewFunctionFromProto(proto))
	}

	for _, dep := range data.EnvAliases {
		if dep.ScopeDepth > def.ScopeDepth || dep.Alias == nil {
			continue
		}
		if len(dep.Alias.TypeParams) == 0 {
			v, err := serialize(dep.Alias.Type, 0)
			if err != nil {
				return fmt.Errorf("type alias %q: %w", dep.Name, err)
			}
			L.SetGlobal(dep.Name, wrap(L, v))
			continue
		}
		// A parameterized alias becomes a callable that instantiates
		// the alias and resolves it through the ordinary reduction
		// pipeline (which rejects nested passes, so an alias that
		// itself needs reduction stays blocked).
		alias := dep.Alias
		name := dep.Name
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			result, err := r.instantiateAlias(L, rctx, name, alias)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(result)
			return 1
		}))
	}
	return nil
}

func (r *Runtime) instantiateAlias(L *lua.LState, rctx *reduce.Context, name string, alias *typegraph.TypeAlias) (lua.LValue, error) {
	if L.GetTop() != len(alias.TypeParams) {
		return nil, fmt.Errorf("type alias %q expects %d arguments, got %d", name, len(alias.TypeParams), L.GetTop())
	}
	subst := make(map[*typegraph.Type]*typegraph.Type, len(alias.TypeParams))
	for i, param := range alias.TypeParams {
		v := unwrap(L.Get(i + 1))
		if v == nil {
			return nil, fmt.Errorf("type alias %q: argument %d is not a type", name, i+1)
		}
		arg, err := deserialize(v, rctx.Arena, rctx.Builtins)
		if err != nil {
			return nil, err
		}
		subst[typegraph.Follow(param)] = arg
	}

	instantiated := substituteAlias(alias.Type, subst, rctx.Arena)
	reduce.Reduce(instantiated, rctx, false)
	if blocked := findUnresolved(instantiated); blocked != nil {
		return nil, fmt.Errorf("type alias %q is not yet fully resolved", name)
	}
	out, err := serialize(instantiated, 0)
	if err != nil {
		return nil, err
	}
	return wrap(L, out), nil
}

// substituteAlias replaces alias parameters with the provided argument
// types, copying only the containers on the path to a substitution.
func substituteAlias(t *typegraph.Type, subst map[*typegraph.Type]*typegraph.Type, arena *typegraph.Arena) *typegraph.Type {
	t = typegraph.Follow(t)
	if replacement, hit := subst[t]; hit {
		return replacement
	}
	switch c := t.Content().(type) {
	case typegraph.Union:
		options := make([]*typegraph.Type, len(c.Options))
		changed := false
		for i, opt := range c.Options {
			options[i] = substituteAlias(opt, subst, arena)
			changed = changed || options[i] != typegraph.Follow(opt)
		}
		if changed {
			return arena.AddUnion(options)
		}
	case typegraph.Intersection:
		parts := make([]*typegraph.Type, len(c.Parts))
		changed := false
		for i, part := range c.Parts {
			parts[i] = substituteAlias(part, subst, arena)
			changed = changed || parts[i] != typegraph.Follow(part)
		}
		if changed {
			return arena.AddIntersection(parts)
		}
	case typegraph.Table:
		props := make(map[string]typegraph.Prop, len(c.Props))
		changed := false
		for key, prop := range c.Props {
			ty := prop.Type()
			if ty == nil {
				props[key] = prop
				continue
			}
			replaced := substituteAlias(ty, subst, arena)
			changed = changed || replaced != typegraph.Follow(ty)
			props[key] = typegraph.Prop{ReadType: replaced, WriteType: replaced}
		}
		if changed {
			return arena.AddType(typegraph.Table{Props: props, Indexer: c.Indexer})
		}
	}
	return t
}

// findUnresolved locates a node the sandbox must not observe.
func findUnresolved(t *typegraph.Type) *typegraph.Type {
	var found *typegraph.Type
	_ = typegraph.VisitType(t, 0, typegraph.VisitFuncs{
		Type: func(node *typegraph.Type) bool {
			if found != nil {
				return false
			}
			switch c := node.Content().(type) {
			case typegraph.Blocked, typegraph.PendingExpansion:
				found = node
				return false
			case *typegraph.FunctionInstance:
				if c.State == typegraph.StateUnsolved {
					found = node
					return false
				}
			case typegraph.Extern:
				return false
			}
			return true
		},
	})
	return found
}

func failure(message string) reduce.Outcome {
	return reduce.Outcome{Status: reduce.StatusErroneous, Messages: []string{message}}
}

// openSafeLibraries loads the side-effect-free subset of the standard
// libraries. No io, no os, no debug: the sandbox cannot touch host
// state.
func openSafeLibraries(L *lua.LState) {
	for _, entry := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(entry.fn))
		L.Push(lua.LString(entry.name))
		L.Call(1, 0)
	}
	// Base brings in escape hatches the sandbox must not expose.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "collectgarbage", "print"} {
		L.SetGlobal(name, lua.LNil)
	}
}
