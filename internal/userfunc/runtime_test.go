package userfunc

import (
	"strings"
	"testing"
	"time"

	"github.com/funvibe/typefun/internal/config"
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/reduce"
	"github.com/funvibe/typefun/internal/typegraph"
)

func newRuntimeEnv(t *testing.T, limits config.Limits) (*Runtime, *reduce.Context) {
	t.Helper()
	arena := typegraph.NewArena()
	builtins := typegraph.NewBuiltins()
	runtime := NewRuntime(limits)
	ctx := &reduce.Context{
		Arena:      arena,
		Builtins:   builtins,
		Normalizer: normalize.NewNormalizer(builtins, arena),
		Runtime:    runtime,
		Limits:     limits.Normalize(),
		Location:   "test",
	}
	return runtime, ctx
}

func userInstance(ctx *reduce.Context, def *typegraph.FunctionDefinition, args ...*typegraph.Type) (*typegraph.Type, *typegraph.FunctionInstance) {
	instance := ctx.Arena.AddInstance(reduce.OpUser, args, nil)
	fi, _ := instance.Instance()
	fi.UserFunc = &typegraph.UserFuncData{Definition: def}
	return instance, fi
}

func TestInvokeScenarios(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		args     func(b *typegraph.Builtins, arena *typegraph.Arena) []*typegraph.Type
		expected string
	}{
		{
			"constant result",
			"return types.number",
			nil,
			"number",
		},
		{
			"inspect the argument tag",
			"local t = ...\nif t:is('string') then return types.boolean end\nreturn types.never",
			func(b *typegraph.Builtins, _ *typegraph.Arena) []*typegraph.Type {
				return []*typegraph.Type{b.String}
			},
			"boolean",
		},
		{
			"singleton value round trip",
			"local t = ...\nreturn types.singleton(t:value() .. '!')",
			func(_ *typegraph.Builtins, arena *typegraph.Arena) []*typegraph.Type {
				return []*typegraph.Type{arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: "hi"}})}
			},
			`"hi!"`,
		},
		{
			"union construction",
			"local a, b = ...\nreturn types.unionof(a, b)",
			func(b *typegraph.Builtins, _ *typegraph.Arena) []*typegraph.Type {
				return []*typegraph.Type{b.Number, b.String}
			},
			"number | string",
		},
		{
			"read a table property",
			"local t = ...\nreturn t:readproperty('name')",
			func(b *typegraph.Builtins, arena *typegraph.Arena) []*typegraph.Type {
				return []*typegraph.Type{arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
					"name": {ReadType: b.String},
				}})}
			},
			"string",
		},
		{
			"build a table",
			"return types.newtable({ x = types.number }, { index = types.string, readresult = types.boolean })",
			nil,
			"{ x: number, [string]: boolean }",
		},
		{
			"optional helper",
			"local t = ...\nreturn types.optional(t)",
			func(b *typegraph.Builtins, _ *typegraph.Arena) []*typegraph.Type {
				return []*typegraph.Type{b.Number}
			},
			"number | nil",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
			def := &typegraph.FunctionDefinition{Name: "f", Source: tt.source}
			if err := runtime.Register(def); err != nil {
				t.Fatalf("register: %v", err)
			}
			var args []*typegraph.Type
			if tt.args != nil {
				args = tt.args(ctx.Builtins, ctx.Arena)
			}
			instance, fi := userInstance(ctx, def, args...)

			out := runtime.Invoke(ctx, instance, fi)
			if out.Status != reduce.StatusOk {
				t.Fatalf("status = %v, messages = %v", out.Status, out.Messages)
			}
			if got := out.Result.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestInvokeRuntimeError(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	def := &typegraph.FunctionDefinition{Name: "boom", Source: "error('unsupported operand')"}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	instance, fi := userInstance(ctx, def)

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusErroneous {
		t.Fatalf("status = %v", out.Status)
	}
	if len(out.Messages) == 0 || !strings.Contains(out.Messages[0], "unsupported operand") {
		t.Errorf("script error should surface in the message, got %v", out.Messages)
	}
}

func TestInvokeNonTypeReturn(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	def := &typegraph.FunctionDefinition{Name: "notype", Source: "return 42"}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	instance, fi := userInstance(ctx, def)

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusErroneous {
		t.Fatalf("status = %v, want erroneous", out.Status)
	}
}

func TestInvokeTimeout(t *testing.T) {
	limits := config.DefaultLimits()
	limits.UserFuncTimeout = 50 * time.Millisecond
	runtime, ctx := newRuntimeEnv(t, limits)
	def := &typegraph.FunctionDefinition{Name: "spin", Source: "while true do end"}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	instance, fi := userInstance(ctx, def)

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusErroneous || !out.Cancelled {
		t.Fatalf("expected a cancelled erroneous outcome, got %+v", out)
	}
}

func TestInvokeBlockedArgument(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	def := &typegraph.FunctionDefinition{Name: "f", Source: "return types.number"}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	blocked := ctx.Arena.AddType(typegraph.Blocked{})
	instance, fi := userInstance(ctx, def, blocked)

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusMaybeBlocked {
		t.Fatalf("status = %v, want maybe-blocked", out.Status)
	}
	if len(out.BlockedOn) != 1 || out.BlockedOn[0] != blocked {
		t.Errorf("the blocked node should be cited, got %v", out.BlockedOn)
	}
}

func TestInvokeIsolatedGlobals(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	writer := &typegraph.FunctionDefinition{Name: "writer", Source: "leak = types.number\nreturn types.string"}
	reader := &typegraph.FunctionDefinition{Name: "reader", Source: "if leak ~= nil then return leak end\nreturn types.boolean"}
	for _, def := range []*typegraph.FunctionDefinition{writer, reader} {
		if err := runtime.Register(def); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	wInst, wFi := userInstance(ctx, writer)
	if out := runtime.Invoke(ctx, wInst, wFi); out.Status != reduce.StatusOk {
		t.Fatalf("writer failed: %+v", out)
	}
	rInst, rFi := userInstance(ctx, reader)
	out := runtime.Invoke(ctx, rInst, rFi)
	if out.Status != reduce.StatusOk {
		t.Fatalf("reader failed: %+v", out)
	}
	if got := out.Result.String(); got != "boolean" {
		t.Errorf("globals leaked across invocations: got %q", got)
	}
}

func TestInvokeSandboxBlocksEscapes(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	def := &typegraph.FunctionDefinition{Name: "escape", Source: "return load('return 1')"}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	instance, fi := userInstance(ctx, def)

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusErroneous {
		t.Fatalf("calling load must fail in the sandbox, got %+v", out)
	}
}

func TestInvokeEnvironmentAliases(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	def := &typegraph.FunctionDefinition{Name: "useAlias", Source: "return MyAlias", ScopeDepth: 1}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	instance, fi := userInstance(ctx, def)
	fi.UserFunc.EnvAliases = []typegraph.EnvAlias{
		{Name: "MyAlias", Alias: &typegraph.TypeAlias{Type: ctx.Builtins.Number}, ScopeDepth: 0},
	}

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusOk {
		t.Fatalf("invoke failed: %+v", out)
	}
	if got := out.Result.String(); got != "number" {
		t.Errorf("got %q, want %q", got, "number")
	}
}

func TestInvokeAliasOutOfScope(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	def := &typegraph.FunctionDefinition{Name: "noAlias", Source: "if Hidden == nil then return types.never end\nreturn Hidden"}
	if err := runtime.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	instance, fi := userInstance(ctx, def)
	// Declared deeper than the caller: must not be visible.
	fi.UserFunc.EnvAliases = []typegraph.EnvAlias{
		{Name: "Hidden", Alias: &typegraph.TypeAlias{Type: ctx.Builtins.Number}, ScopeDepth: 5},
	}

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusOk {
		t.Fatalf("invoke failed: %+v", out)
	}
	if got := out.Result.String(); got != "never" {
		t.Errorf("an alias from a deeper scope leaked in: got %q", got)
	}
}

func TestInvokeEnvironmentFunctions(t *testing.T) {
	runtime, ctx := newRuntimeEnv(t, config.DefaultLimits())
	helper := &typegraph.FunctionDefinition{Name: "helper", Source: "return types.string"}
	def := &typegraph.FunctionDefinition{Name: "caller", Source: "return helper()", ScopeDepth: 1}
	for _, d := range []*typegraph.FunctionDefinition{helper, def} {
		if err := runtime.Register(d); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	instance, fi := userInstance(ctx, def)
	fi.UserFunc.EnvFunctions = []typegraph.EnvFunction{
		{Name: "helper", Definition: helper, ScopeDepth: 0},
	}

	out := runtime.Invoke(ctx, instance, fi)
	if out.Status != reduce.StatusOk {
		t.Fatalf("invoke failed: %+v", out)
	}
	if got := out.Result.String(); got != "string" {
		t.Errorf("got %q, want %q", got, "string")
	}
}

func TestRegisterRejectsBadDefinitions(t *testing.T) {
	runtime, _ := newRuntimeEnv(t, config.DefaultLimits())
	t.Run("frontend errors", func(t *testing.T) {
		def := &typegraph.FunctionDefinition{Name: "bad", Source: "return types.never", HasErrors: true}
		if err := runtime.Register(def); err == nil {
			t.Errorf("definitions with frontend errors must not register")
		}
	})
	t.Run("syntax errors", func(t *testing.T) {
		def := &typegraph.FunctionDefinition{Name: "syntax", Source: "return return"}
		if err := runtime.Register(def); err == nil {
			t.Errorf("unparseable source must not register")
		}
	})
}

func TestSerializeRoundTrip(t *testing.T) {
	arena := typegraph.NewArena()
	builtins := typegraph.NewBuiltins()

	table := arena.AddType(typegraph.Table{
		Props: map[string]typegraph.Prop{
			"id":   {ReadType: builtins.Number},
			"name": {ReadType: builtins.String},
		},
		Indexer: &typegraph.Indexer{IndexType: builtins.String, IndexResultType: builtins.Boolean},
	})
	wrapped := arena.AddType(typegraph.Metatable{
		Table:     table,
		Metatable: arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}}),
	})

	v, err := serialize(wrapped, 0)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	back, err := deserialize(v, arena, builtins)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	want := "setmetatable({ id: number, name: string, [string]: boolean }, {  })"
	if got := back.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSerializeRejectsUnresolved(t *testing.T) {
	arena := typegraph.NewArena()
	blocked := arena.AddType(typegraph.Blocked{})
	if _, err := serialize(blocked, 0); err == nil {
		t.Errorf("unresolved nodes must not serialize")
	}
}
