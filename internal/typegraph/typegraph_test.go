package typegraph

import (
	"testing"
)

func TestFollow(t *testing.T) {
	arena := NewArena()
	target := arena.AddType(Primitive{Kind: KindNumber})
	middle := arena.AddType(Bound{To: target})
	outer := arena.AddType(Bound{To: middle})

	if Follow(outer) != target {
		t.Errorf("Follow should chase bound chains to the canonical node")
	}
	if Follow(target) != target {
		t.Errorf("Follow of an unbound node is the node itself")
	}
}

func TestArenaDegenerateSets(t *testing.T) {
	arena := NewArena()
	number := arena.AddType(Primitive{Kind: KindNumber})

	tests := []struct {
		name     string
		build    func() *Type
		expected string
	}{
		{"empty union is never", func() *Type { return arena.AddUnion(nil) }, "never"},
		{"single union is itself", func() *Type { return arena.AddUnion([]*Type{number}) }, "number"},
		{"empty intersection is unknown", func() *Type { return arena.AddIntersection(nil) }, "unknown"},
		{"single intersection is itself", func() *Type { return arena.AddIntersection([]*Type{number}) }, "number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build().String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestArenaOwnership(t *testing.T) {
	a := NewArena()
	b := NewArena()
	if a.ID == b.ID {
		t.Fatalf("arenas must have distinct identities")
	}
	ty := a.AddType(Primitive{Kind: KindString})
	if !a.Owns(ty) {
		t.Errorf("a should own its node")
	}
	if b.Owns(ty) {
		t.Errorf("b should not own a's node")
	}
}

func TestVisitCycleDetection(t *testing.T) {
	arena := NewArena()

	// u = number | u
	number := arena.AddType(Primitive{Kind: KindNumber})
	u := arena.AddType(Union{})
	u.SetContent(Union{Options: []*Type{number, u}})

	var cycles []*Type
	err := VisitType(u, 0, VisitFuncs{
		Cycle: func(t *Type) { cycles = append(cycles, t) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cycles) != 1 || cycles[0] != u {
		t.Errorf("expected exactly the union node to be reported cyclic, got %v", cycles)
	}
}

func TestVisitSharingIsNotACycle(t *testing.T) {
	arena := NewArena()
	shared := arena.AddType(Primitive{Kind: KindString})
	u := arena.AddType(Union{Options: []*Type{shared, arena.AddType(Negation{Inner: shared})}})

	cycleFired := false
	if err := VisitType(u, 0, VisitFuncs{
		Cycle: func(*Type) { cycleFired = true },
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cycleFired {
		t.Errorf("a shared node reached twice off-stack is not a cycle")
	}
}

func TestVisitRecursionLimit(t *testing.T) {
	arena := NewArena()
	leaf := arena.AddType(Primitive{Kind: KindNumber})
	deep := leaf
	for i := 0; i < 20; i++ {
		deep = arena.AddType(Negation{Inner: deep})
	}
	if err := VisitType(deep, 5, VisitFuncs{}); err != ErrRecursionLimit {
		t.Errorf("expected ErrRecursionLimit, got %v", err)
	}
}

func TestStringRendering(t *testing.T) {
	arena := NewArena()
	b := NewBuiltins()

	table := arena.AddType(Table{
		Props: map[string]Prop{
			"name": {ReadType: b.String},
			"age":  {ReadType: b.Number},
		},
	})
	inst := arena.AddInstance("keyof", []*Type{table}, nil)

	tests := []struct {
		name     string
		ty       *Type
		expected string
	}{
		{"sorted table keys", table, "{ age: number, name: string }"},
		{"operator instance", inst, "keyof<{ age: number, name: string }>"},
		{"falsy union", b.Falsy, "false | nil"},
		{"truthy negation", b.Truthy, "~(false | nil)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ty.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDiscriminantShapes(t *testing.T) {
	b := NewBuiltins()
	if !IsFalsyDiscriminant(b.Falsy) {
		t.Errorf("the canonical falsy union should be recognized")
	}
	if !IsTruthyDiscriminant(b.Truthy) {
		t.Errorf("the canonical truthy negation should be recognized")
	}
	if IsFalsyDiscriminant(b.Boolean) {
		t.Errorf("boolean is not the falsy discriminant")
	}
}
