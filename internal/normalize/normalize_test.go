package normalize

import (
	"testing"

	"github.com/funvibe/typefun/internal/typegraph"
)

func newTestNormalizer() (*Normalizer, *typegraph.Arena, *typegraph.Builtins) {
	arena := typegraph.NewArena()
	builtins := typegraph.NewBuiltins()
	return NewNormalizer(builtins, arena), arena, builtins
}

func TestNormalizeFacets(t *testing.T) {
	n, arena, b := newTestNormalizer()

	table := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}})
	stringOrNumber := arena.AddUnion([]*typegraph.Type{b.String, b.Number})

	tests := []struct {
		name  string
		ty    *typegraph.Type
		check func(nf *NormalForm) bool
	}{
		{"number is exactly number", b.Number, func(nf *NormalForm) bool { return nf.IsExactlyNumber() }},
		{"string is subtype of string", b.String, func(nf *NormalForm) bool { return nf.IsSubtypeOfString() }},
		{"union is neither", stringOrNumber, func(nf *NormalForm) bool {
			return !nf.IsExactlyNumber() && !nf.IsSubtypeOfString()
		}},
		{"any suppresses errors", b.Any, func(nf *NormalForm) bool { return nf.ShouldSuppressErrors() }},
		{"table component collected", table, func(nf *NormalForm) bool {
			return nf.HasTables() && !nf.HasNonTableParts()
		}},
		{"true is only true", b.True, func(nf *NormalForm) bool { return nf.Booleans == BoolOnlyTrue }},
		{"boolean is all booleans", b.Boolean, func(nf *NormalForm) bool { return nf.Booleans == BoolAll }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nf := n.Normalize(tt.ty)
			if nf == nil {
				t.Fatalf("normalization failed")
			}
			if !tt.check(nf) {
				t.Errorf("facet check failed for %s: %+v", tt.ty, nf)
			}
		})
	}
}

func TestNormalizeUnresolvedFails(t *testing.T) {
	n, arena, _ := newTestNormalizer()
	blocked := arena.AddType(typegraph.Blocked{})
	if nf := n.Normalize(blocked); nf != nil {
		t.Errorf("a blocked node must not normalize")
	}
}

func TestIsSubtype(t *testing.T) {
	n, arena, b := newTestNormalizer()

	aSingleton := arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: "a"}})
	named := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
		"name": {ReadType: b.String},
	}})
	namedAndAged := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
		"name": {ReadType: b.String},
		"age":  {ReadType: b.Number},
	}})

	tests := []struct {
		name     string
		sub, sup *typegraph.Type
		expected bool
	}{
		{"never below everything", b.Never, b.Number, true},
		{"everything below unknown", named, b.Unknown, true},
		{"singleton below its primitive", aSingleton, b.String, true},
		{"primitive not below singleton", b.String, aSingleton, false},
		{"number not below string", b.Number, b.String, false},
		{"wider table below narrower", namedAndAged, named, true},
		{"narrower table not below wider", named, namedAndAged, false},
		{"union below when all options are", arena.AddUnion([]*typegraph.Type{b.True, b.False}), b.Boolean, true},
		{"into union when one option fits", b.Number, arena.AddUnion([]*typegraph.Type{b.Number, b.String}), true},
		{"table below top table primitive", named, b.Table, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.IsSubtype(tt.sub, tt.sup); got != tt.expected {
				t.Errorf("IsSubtype(%s, %s) = %t, want %t", tt.sub, tt.sup, got, tt.expected)
			}
		})
	}
}

func TestSimplifyIntersection(t *testing.T) {
	n, arena, b := newTestNormalizer()

	tests := []struct {
		name     string
		build    func() (*typegraph.Type, *typegraph.Type)
		expected string
	}{
		{"identity", func() (*typegraph.Type, *typegraph.Type) { return b.Number, b.Number }, "number"},
		{"never annihilates", func() (*typegraph.Type, *typegraph.Type) { return b.Never, b.String }, "never"},
		{"unknown is neutral", func() (*typegraph.Type, *typegraph.Type) { return b.Unknown, b.String }, "string"},
		{"disjoint primitives", func() (*typegraph.Type, *typegraph.Type) { return b.Number, b.String }, "never"},
		{"truthy filters union", func() (*typegraph.Type, *typegraph.Type) {
			return arena.AddUnion([]*typegraph.Type{b.String, b.Nil}), b.Truthy
		}, "string"},
		{"falsy filters boolean", func() (*typegraph.Type, *typegraph.Type) {
			return b.Boolean, b.Falsy
		}, "false"},
		{"truthy over unknown", func() (*typegraph.Type, *typegraph.Type) {
			return b.Unknown, b.Truthy
		}, "~(false | nil)"},
		{"table props merge", func() (*typegraph.Type, *typegraph.Type) {
			left := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
				"name": {ReadType: b.String},
			}})
			right := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
				"age": {ReadType: b.Number},
			}})
			return left, right
		}, "{ age: number, name: string }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, bb := tt.build()
			r := n.SimplifyIntersection(a, bb)
			if len(r.Blocked) != 0 {
				t.Fatalf("unexpected blocking: %v", r.Blocked)
			}
			if got := r.Result.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSimplifyIntersectionBlocked(t *testing.T) {
	n, arena, b := newTestNormalizer()
	blocked := arena.AddType(typegraph.Blocked{})
	r := n.SimplifyIntersection(blocked, b.Number)
	if len(r.Blocked) != 1 || r.Blocked[0] != blocked {
		t.Errorf("expected the blocked node to be cited, got %v", r.Blocked)
	}
}

func TestSimplifyUnion(t *testing.T) {
	n, arena, b := newTestNormalizer()

	tests := []struct {
		name     string
		a, b     *typegraph.Type
		expected string
	}{
		{"dedup identical", b.Number, b.Number, "number"},
		{"never drops out", b.Never, b.String, "string"},
		{"any swallows", b.Any, b.String, "any"},
		{"singleton absorbed by primitive", arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: "x"}}), b.String, "string"},
		{"distinct kept", b.Number, b.String, "number | string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := n.SimplifyUnion(tt.a, tt.b)
			if len(r.Blocked) != 0 {
				t.Fatalf("unexpected blocking: %v", r.Blocked)
			}
			if got := r.Result.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsIntersectionInhabited(t *testing.T) {
	n, arena, b := newTestNormalizer()

	aSingleton := arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: "a"}})
	bSingleton := arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: "b"}})

	tests := []struct {
		name     string
		a, b     *typegraph.Type
		expected Inhabitance
	}{
		{"overlapping strings", b.String, b.String, Inhabited},
		{"disjoint singletons", aSingleton, bSingleton, Uninhabited},
		{"number and string", b.Number, b.String, Uninhabited},
		{"singleton in its primitive", aSingleton, b.String, Inhabited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.IsIntersectionInhabited(tt.a, tt.b); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFindMetatableEntry(t *testing.T) {
	n, arena, _ := newTestNormalizer()

	lenFn := arena.AddType(typegraph.Function{})
	mt := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
		"__len": {ReadType: lenFn},
	}})
	wrapped := arena.AddType(typegraph.Metatable{
		Table:     arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}}),
		Metatable: mt,
	})

	t.Run("direct entry", func(t *testing.T) {
		entry, found := n.FindMetatableEntry(wrapped, "__len")
		if !found || entry != lenFn {
			t.Errorf("expected the __len entry, found=%t", found)
		}
	})
	t.Run("missing entry", func(t *testing.T) {
		if _, found := n.FindMetatableEntry(wrapped, "__add"); found {
			t.Errorf("absent entries must not be found")
		}
	})
	t.Run("plain table has no metatable", func(t *testing.T) {
		plain := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}})
		if _, found := n.FindMetatableEntry(plain, "__len"); found {
			t.Errorf("plain tables carry no metatable")
		}
	})
	t.Run("index chain", func(t *testing.T) {
		base := arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
			"__concat": {ReadType: lenFn},
		}})
		chained := arena.AddType(typegraph.Metatable{
			Table: arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{}}),
			Metatable: arena.AddType(typegraph.Table{Props: map[string]typegraph.Prop{
				"__index": {ReadType: base},
			}}),
		})
		entry, found := n.FindMetatableEntry(chained, "__concat")
		if !found || entry != lenFn {
			t.Errorf("expected the inherited __concat entry, found=%t", found)
		}
	})
}
