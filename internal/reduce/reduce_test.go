package reduce

import (
	"strings"
	"testing"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/config"
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/typeexpr"
	"github.com/funvibe/typefun/internal/typegraph"
)

// fakeSolver stands in for an attached constraint solver. The nodes in
// unresolved still carry constraints from its point of view.
type fakeSolver struct {
	unresolved *set.Set[*typegraph.Type]
	pushed     []*typegraph.Type
}

func newFakeSolver(unresolved ...*typegraph.Type) *fakeSolver {
	return &fakeSolver{unresolved: set.From(unresolved)}
}

func (s *fakeSolver) HasUnresolvedConstraints(t *typegraph.Type) bool {
	return s.unresolved.Contains(t)
}

func (s *fakeSolver) PushConstraint(instance *typegraph.Type) {
	s.pushed = append(s.pushed, instance)
}

func (s *fakeSolver) InheritBlocking(from, to *typegraph.Type) {}

type testEnv struct {
	arena    *typegraph.Arena
	builtins *typegraph.Builtins
	ctx      *Context
}

func newTestEnv() *testEnv {
	arena := typegraph.NewArena()
	builtins := typegraph.NewBuiltins()
	return &testEnv{
		arena:    arena,
		builtins: builtins,
		ctx: &Context{
			Arena:      arena,
			Builtins:   builtins,
			Normalizer: normalize.NewNormalizer(builtins, arena),
			Limits:     config.DefaultLimits(),
			Location:   "test",
		},
	}
}

func (e *testEnv) parse(t *testing.T, expr string) *typegraph.Type {
	t.Helper()
	ty, err := typeexpr.Parse(expr, e.arena, e.builtins)
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	return ty
}

func TestReduceScenarios(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		expected string
	}{
		{"len of string", `len<string>`, "number"},
		{"add numbers", `add<number, number>`, "number"},
		{"sub numbers", `sub<number, number>`, "number"},
		{"unm number", `unm<number>`, "number"},
		{"concat strings", `concat<string, string>`, "string"},
		{"concat string and number", `concat<string, number>`, "string"},
		{"index table property", `index<{ name: string }, "name">`, "string"},
		{"index through indexer", `index<{ [string]: boolean }, "anything">`, "boolean"},
		{"rawget table property", `rawget<{ id: number }, "id">`, "number"},
		{"refine unknown with falsy", `refine<unknown, false | nil>`, "false | nil"},
		{"refine union drops nil", `refine<string | nil, ~(false | nil)>`, "string"},
		{"not of false", `not<false>`, "true"},
		{"not widens", `not<string | number>`, "boolean"},
		{"lt numbers", `lt<number, number>`, "boolean"},
		{"le strings", `le<string, string>`, "boolean"},
		{"eq overlapping", `eq<string, string>`, "boolean"},
		{"eq disjoint singletons", `eq<"a", "b">`, "false"},
		{"keyof single table", `keyof<{ a: string, b: number }>`, `"a" | "b"`},
		{"keyof string indexer", `keyof<{ [string]: number }>`, "string"},
		{"rawkeyof table", `rawkeyof<{ x: number }>`, `"x"`},
		{"union collapses", `union<string, string, number>`, "string | number"},
		{"intersect with unknown", `intersect<unknown, number>`, "number"},
		{"singleton of singleton", `singleton<"hi">`, `"hi"`},
		{"singleton widens", `singleton<string>`, "unknown"},
		{"weakoptional inhabited", `weakoptional<number>`, "number | nil"},
		{"weakoptional of never", `weakoptional<never>`, "nil"},
		{"getmetatable of plain table", `getmetatable<{ x: number }>`, "nil"},
		{"and with concrete operands", `and<number, string>`, "string"},
		{"or keeps truthy lhs", `or<number, string>`, "number | string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			entry := env.parse(t, tt.expr)

			report := Reduce(entry, env.ctx, false)
			for _, diag := range report.Errors {
				t.Fatalf("unexpected diagnostic: %s", diag)
			}
			got := typegraph.Follow(entry).String()
			if got != tt.expected {
				t.Errorf("reduced to %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReduceErroneous(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"add strings has no overload", `add<string, string>`},
		{"len of number", `len<number>`},
		{"keyof number", `keyof<number>`},
		{"index missing property", `index<{ name: string }, "nope">`},
		{"rawget on primitive", `rawget<number, "x">`},
		{"setmetatable on number", `setmetatable<number, { x: number }>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			entry := env.parse(t, tt.expr)

			report := Reduce(entry, env.ctx, false)
			if len(report.Errors) == 0 {
				t.Fatalf("expected diagnostics, got none; reduced to %s", typegraph.Follow(entry))
			}
			if report.IrreducibleTypes.Empty() {
				t.Errorf("expected the instance to be recorded irreducible")
			}
			fi, isInstance := entry.Instance()
			if !isInstance {
				t.Fatalf("erroneous instance should not be rebound, got %s", typegraph.Follow(entry))
			}
			if fi.State != typegraph.StateStuck {
				t.Errorf("state = %s, want stuck", fi.State)
			}
		})
	}
}

func TestReduceMetamethodOverload(t *testing.T) {
	env := newTestEnv()

	// Vector with an __add metamethod declared as (Vector, Vector) -> Vector.
	props := map[string]typegraph.Prop{
		"x": {ReadType: env.builtins.Number},
		"y": {ReadType: env.builtins.Number},
	}
	inner := env.arena.AddType(typegraph.Table{Props: props})
	vector := env.arena.AddType(typegraph.Table{Props: props})

	params := env.arena.AddTypePack(typegraph.PackList{Head: []*typegraph.Type{vector, vector}})
	returns := env.arena.AddTypePack(typegraph.PackList{Head: []*typegraph.Type{vector}})
	addFn := env.arena.AddType(typegraph.Function{Params: params, Returns: returns})

	mt := env.arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
		"__add": {ReadType: addFn},
	}})
	vector.SetContent(typegraph.Metatable{Table: inner, Metatable: mt})

	entry := env.arena.AddInstance(OpAdd, []*typegraph.Type{vector, vector}, nil)
	report := Reduce(entry, env.ctx, false)
	for _, diag := range report.Errors {
		t.Fatalf("unexpected diagnostic: %s", diag)
	}
	if typegraph.Follow(entry) != vector {
		t.Errorf("add over metamethod reduced to %s, want the declared return type", typegraph.Follow(entry))
	}
}

func TestReduceCyclicInstance(t *testing.T) {
	env := newTestEnv()

	// T = and<T, number> must degenerate to the non-self operand.
	inst := env.arena.AddInstance(OpAnd, nil, nil)
	fi, _ := inst.Instance()
	fi.TypeArgs = []*typegraph.Type{inst, env.builtins.Number}

	report := Reduce(inst, env.ctx, false)
	for _, diag := range report.Errors {
		t.Fatalf("unexpected diagnostic: %s", diag)
	}
	if got := typegraph.Follow(inst).String(); got != "number" {
		t.Errorf("cyclic and reduced to %q, want %q", got, "number")
	}
}

func TestReduceUnionDistribution(t *testing.T) {
	t.Run("all branches reduce", func(t *testing.T) {
		env := newTestEnv()
		entry := env.parse(t, `unm<number | number>`)
		report := Reduce(entry, env.ctx, false)
		for _, diag := range report.Errors {
			t.Fatalf("unexpected diagnostic: %s", diag)
		}
		if got := typegraph.Follow(entry).String(); got != "number" {
			t.Errorf("reduced to %q, want %q", got, "number")
		}
	})

	t.Run("failing branch fails the application", func(t *testing.T) {
		env := newTestEnv()
		entry := env.parse(t, `add<number | string, number>`)
		report := Reduce(entry, env.ctx, false)
		if len(report.Errors) == 0 {
			t.Fatalf("string branch has no numeric overload; expected a diagnostic, got result %s",
				typegraph.Follow(entry))
		}
	})

	t.Run("cartesian guard", func(t *testing.T) {
		env := newTestEnv()
		env.ctx.Limits.CartesianProductLimit = 3
		entry := env.parse(t, `add<number | string | never | unknown, number | string>`)
		report := Reduce(entry, env.ctx, false)
		found := false
		for _, diag := range report.Errors {
			if strings.Contains(diag.Message, "exceeding the limit") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected the cartesian product guard to fire, diagnostics: %v", report.Errors)
		}
	})
}

func TestReduceIdempotence(t *testing.T) {
	env := newTestEnv()
	entry := env.parse(t, `add<number, number>`)

	first := Reduce(entry, env.ctx, false)
	if first.ReducedTypes.Empty() {
		t.Fatalf("first pass should reduce the instance")
	}

	second := Reduce(entry, env.ctx, false)
	if !second.Empty() {
		t.Errorf("second pass over a reduced graph must be a no-op, got %+v", second)
	}
}

func TestReduceStepBudget(t *testing.T) {
	env := newTestEnv()
	env.ctx.Limits.MaxSteps = 1
	entry := env.parse(t, `add<add<number, number>, number>`)

	report := Reduce(entry, env.ctx, false)
	found := false
	for _, diag := range report.Errors {
		if diag.Kind == DiagTooComplex {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a too-complex diagnostic when the step budget runs out, got %v", report.Errors)
	}
}

func TestReduceBlocking(t *testing.T) {
	env := newTestEnv()
	blocked := env.arena.AddType(typegraph.Blocked{})
	entry := env.arena.AddInstance(OpAdd, []*typegraph.Type{blocked, env.builtins.Number}, nil)

	t.Run("blocked argument defers", func(t *testing.T) {
		report := Reduce(entry, env.ctx, false)
		if !report.BlockedTypes.Contains(blocked) {
			t.Errorf("expected the blocked node to be reported")
		}
		if len(report.Errors) != 0 {
			t.Errorf("blocking is not an error, got %v", report.Errors)
		}
		fi, _ := entry.Instance()
		if fi.State != typegraph.StateUnsolved {
			t.Errorf("state = %s, want unsolved", fi.State)
		}
	})

	t.Run("force makes blocked terminal", func(t *testing.T) {
		report := Reduce(entry, env.ctx, true)
		fi, isInstance := entry.Instance()
		if !isInstance {
			t.Fatalf("instance should not be rebound")
		}
		if fi.State != typegraph.StateStuck {
			t.Errorf("state = %s, want stuck under force", fi.State)
		}
		if len(report.Errors) == 0 {
			t.Errorf("forced blocking should surface a diagnostic")
		}
	})
}

func TestReduceDeferredInnerInstance(t *testing.T) {
	env := newTestEnv()
	entry := env.parse(t, `len<index<{ name: string }, "name">>`)

	report := Reduce(entry, env.ctx, false)
	for _, diag := range report.Errors {
		t.Fatalf("unexpected diagnostic: %s", diag)
	}
	if got := typegraph.Follow(entry).String(); got != "number" {
		t.Errorf("nested reduction produced %q, want %q", got, "number")
	}
	if report.ReducedTypes.Size() != 2 {
		t.Errorf("expected both instances reduced, got %d", report.ReducedTypes.Size())
	}
}

func TestReduceReentrancyRejected(t *testing.T) {
	env := newTestEnv()
	env.ctx.Normalizer.Shared.ReentrantReduction = true
	entry := env.parse(t, `add<number, number>`)

	report := Reduce(entry, env.ctx, false)
	if !report.Empty() {
		t.Errorf("nested reduction must short-circuit to an empty report")
	}
	if _, isInstance := entry.Instance(); !isInstance {
		t.Errorf("nested reduction must not mutate the graph")
	}
}

func TestReduceProtectedMetatable(t *testing.T) {
	env := newTestEnv()

	inner := env.arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}})
	lock := env.arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: "locked"}})
	mt := env.arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
		"__metatable": {ReadType: lock},
	}})
	protected := env.arena.AddType(typegraph.Metatable{Table: inner, Metatable: mt})

	t.Run("setmetatable refuses", func(t *testing.T) {
		replacement := env.arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}})
		entry := env.arena.AddInstance(OpSetMetatable, []*typegraph.Type{protected, replacement}, nil)
		report := Reduce(entry, env.ctx, false)
		if len(report.Errors) == 0 {
			t.Errorf("changing a protected metatable must error")
		}
	})

	t.Run("getmetatable reads the lock", func(t *testing.T) {
		entry := env.arena.AddInstance(OpGetMetatable, []*typegraph.Type{protected}, nil)
		report := Reduce(entry, env.ctx, false)
		for _, diag := range report.Errors {
			t.Fatalf("unexpected diagnostic: %s", diag)
		}
		if typegraph.Follow(entry) != lock {
			t.Errorf("getmetatable = %s, want the lock entry", typegraph.Follow(entry))
		}
	})
}

func TestReduceGenericRetirement(t *testing.T) {
	env := newTestEnv()
	generic := env.arena.AddType(typegraph.Generic{Name: "T"})
	entry := env.arena.AddInstance(OpLen, []*typegraph.Type{generic}, nil)

	report := Reduce(entry, env.ctx, false)
	if len(report.Errors) != 0 {
		t.Fatalf("generic retirement is not an error, got %v", report.Errors)
	}
	fi, isInstance := entry.Instance()
	if !isInstance {
		t.Fatalf("instance should not be rebound")
	}
	if fi.State != typegraph.StateSolved {
		t.Errorf("state = %s, want solved (retired on generic)", fi.State)
	}
}

func TestReduceFreeComparison(t *testing.T) {
	t.Run("no solver leaves the free variable alone", func(t *testing.T) {
		env := newTestEnv()
		free := env.arena.AddType(typegraph.Free{Name: "a"})
		entry := env.arena.AddInstance(OpLt, []*typegraph.Type{free, env.builtins.Number}, nil)

		report := Reduce(entry, env.ctx, false)
		if len(report.Errors) == 0 {
			t.Errorf("comparing an unconstrained free variable cannot resolve without a solver")
		}
		if _, isFree := free.Content().(typegraph.Free); !isFree {
			t.Errorf("free operand was rebound to %s with no solver attached", typegraph.Follow(free))
		}
	})

	t.Run("attached solver binds the free operand to number", func(t *testing.T) {
		env := newTestEnv()
		env.ctx.Solver = newFakeSolver()
		free := env.arena.AddType(typegraph.Free{Name: "a"})
		entry := env.arena.AddInstance(OpLt, []*typegraph.Type{free, env.builtins.Number}, nil)

		report := Reduce(entry, env.ctx, false)
		for _, diag := range report.Errors {
			t.Fatalf("unexpected diagnostic: %s", diag)
		}
		if got := typegraph.Follow(entry).String(); got != "boolean" {
			t.Errorf("lt reduced to %q, want %q", got, "boolean")
		}
		if typegraph.Follow(free) != env.builtins.Number {
			t.Errorf("free operand = %s, want bound to number", typegraph.Follow(free))
		}
	})
}

func TestReduceStuckInstanceRetired(t *testing.T) {
	env := newTestEnv()
	entry := env.parse(t, `add<string, string>`)

	first := Reduce(entry, env.ctx, false)
	if len(first.Errors) == 0 {
		t.Fatalf("add over strings must fail")
	}
	fi, _ := entry.Instance()
	if fi.State != typegraph.StateStuck {
		t.Fatalf("state = %s, want stuck", fi.State)
	}

	second := Reduce(entry, env.ctx, false)
	if !second.Empty() {
		t.Errorf("second pass over a stuck graph must be a no-op, got %d diagnostics", len(second.Errors))
	}
}

func TestReduceSolverPendingConstraints(t *testing.T) {
	t.Run("unresolved constraints block the operand", func(t *testing.T) {
		env := newTestEnv()
		env.ctx.Solver = newFakeSolver(env.builtins.Number)
		entry := env.parse(t, `add<number, number>`)

		report := Reduce(entry, env.ctx, false)
		if len(report.Errors) != 0 {
			t.Fatalf("blocking on solver constraints is not an error, got %v", report.Errors)
		}
		if !report.BlockedTypes.Contains(env.builtins.Number) {
			t.Errorf("expected the constrained operand to be reported blocked")
		}
		fi, _ := entry.Instance()
		if fi.State != typegraph.StateUnsolved {
			t.Errorf("state = %s, want unsolved", fi.State)
		}
	})

	t.Run("resolved constraints let the pass proceed", func(t *testing.T) {
		env := newTestEnv()
		env.ctx.Solver = newFakeSolver()
		entry := env.parse(t, `add<number, number>`)

		report := Reduce(entry, env.ctx, false)
		for _, diag := range report.Errors {
			t.Fatalf("unexpected diagnostic: %s", diag)
		}
		if got := typegraph.Follow(entry).String(); got != "number" {
			t.Errorf("reduced to %q, want %q", got, "number")
		}
	})
}

func TestCollectorGuessThreshold(t *testing.T) {
	env := newTestEnv()
	inner := env.arena.AddInstance(OpAdd, []*typegraph.Type{env.builtins.Number, env.builtins.Number}, nil)
	outer := env.arena.AddInstance(OpAdd, []*typegraph.Type{inner, env.builtins.Number}, nil)

	t.Run("candidates must nest deeper than the threshold", func(t *testing.T) {
		col := collectInstances(outer, nil, 0, 0)
		if col.guessCandidates.Contains(outer) {
			t.Errorf("outermost instance has no enclosing instance and must not be a candidate")
		}
		if !col.guessCandidates.Contains(inner) {
			t.Errorf("instance nested one level deep exceeds a zero threshold")
		}
	})

	t.Run("nesting equal to the threshold is not a candidate", func(t *testing.T) {
		col := collectInstances(outer, nil, 1, 0)
		if !col.guessCandidates.Empty() {
			t.Errorf("no instance nests deeper than one level, got %d candidates", col.guessCandidates.Size())
		}
	})
}

func TestCollectorRecursionLimit(t *testing.T) {
	env := newTestEnv()
	env.ctx.Limits.TraversalLimit = 4

	// Deep nesting beyond the traversal limit is recoverable: nothing to
	// reduce, no error.
	entry := env.parse(t, `add<add<add<add<add<number, number>, number>, number>, number>, number>`)
	report := Reduce(entry, env.ctx, false)
	if len(report.Errors) != 0 {
		t.Errorf("traversal exhaustion must be silent, got %v", report.Errors)
	}
	if !report.ReducedTypes.Empty() {
		t.Errorf("traversal exhaustion must reduce nothing")
	}
}
