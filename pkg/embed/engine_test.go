package typefun_test

import (
	"strings"
	"testing"

	typefun "github.com/funvibe/typefun/pkg/embed"
)

func TestEngineBuiltins(t *testing.T) {
	e := typefun.New()

	tests := []struct {
		name     string
		expr     string
		expected string
	}{
		{"arithmetic", "add<number, number>", "number"},
		{"property lookup", `index<{ name: string }, "name">`, "string"},
		{"length", "len<string>", "number"},
		{"plain type passes through", "number | string", "number | string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEngineBind(t *testing.T) {
	e := typefun.New()
	if err := e.Bind("tagged", "local t = ...\nreturn types.unionof(t, types.singleton('tag'))"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	got, err := e.Eval("tagged<number>")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != `number | "tag"` {
		t.Errorf("got %q", got)
	}
}

func TestEngineBoundFunctionsSeeEachOther(t *testing.T) {
	e := typefun.New()
	if err := e.Bind("base", "return types.string"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := e.Bind("caller", "return base()"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	got, err := e.Eval("caller<never>")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != "string" {
		t.Errorf("got %q, want %q", got, "string")
	}
}

func TestEngineUnknownFunction(t *testing.T) {
	e := typefun.New()
	_, err := e.Eval("frobnicate<number>")
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("unknown names must be rejected before reduction, got %v", err)
	}
}

func TestEngineBindRejectsBuiltinNames(t *testing.T) {
	e := typefun.New()
	if err := e.Bind("add", "return types.number"); err == nil {
		t.Errorf("builtin operator names must not be rebindable")
	}
}

func TestEngineDiagnosticsBecomeErrors(t *testing.T) {
	e := typefun.New()
	if _, err := e.Eval("add<string, string>"); err == nil {
		t.Errorf("an unreducible application must surface as an error")
	}
}
