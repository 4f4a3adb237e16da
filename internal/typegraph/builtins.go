package typegraph

// Builtins is the registry of canonical nodes for types that appear
// constantly during reduction. All of them live in a dedicated arena so
// that they are shared across reduction passes without copying.
type Builtins struct {
	Arena *Arena

	Never   *Type
	Unknown *Type
	Any     *Type
	Error   *Type

	Nil      *Type
	Boolean  *Type
	Number   *Type
	String   *Type
	Function *Type
	Table    *Type

	True  *Type
	False *Type

	// Truthy is ~(false?), the refinement discriminant for truthiness;
	// Falsy is false? itself.
	Truthy *Type
	Falsy  *Type

	NoRefine *Type
}

func NewBuiltins() *Builtins {
	a := NewArena()
	b := &Builtins{
		Arena:    a,
		Never:    a.AddType(Never{}),
		Unknown:  a.AddType(Unknown{}),
		Any:      a.AddType(Any{}),
		Error:    a.AddType(ErrorType{}),
		Nil:      a.AddType(Primitive{Kind: KindNil}),
		Boolean:  a.AddType(Primitive{Kind: KindBoolean}),
		Number:   a.AddType(Primitive{Kind: KindNumber}),
		String:   a.AddType(Primitive{Kind: KindString}),
		Function: a.AddType(Primitive{Kind: KindFunction}),
		Table:    a.AddType(Primitive{Kind: KindTable}),
		True:     a.AddType(Singleton{Value: BoolSingleton{Value: true}}),
		False:    a.AddType(Singleton{Value: BoolSingleton{Value: false}}),
	}
	b.Falsy = a.AddType(Union{Options: []*Type{b.False, b.Nil}})
	b.Truthy = a.AddType(Negation{Inner: b.Falsy})
	b.NoRefine = a.AddType(NoRefine{})
	return b
}

// WithStringMetatable installs mt as the metatable of the string
// primitive, returning b for chaining. Tests use this to model the
// standard string library shape.
func (b *Builtins) WithStringMetatable(mt *Type) *Builtins {
	b.String.SetContent(Primitive{Kind: KindString, Metatable: mt})
	return b
}

// IsTruthyDiscriminant reports whether t is the canonical truthy
// discriminant shape: a negation of false?.
func IsTruthyDiscriminant(t *Type) bool {
	n, ok := Follow(t).content.(Negation)
	if !ok {
		return false
	}
	return IsFalsyDiscriminant(n.Inner)
}

// IsFalsyDiscriminant reports whether t is the canonical falsy
// discriminant shape: a union of the false singleton and nil.
func IsFalsyDiscriminant(t *Type) bool {
	u, ok := Follow(t).content.(Union)
	if !ok || len(u.Options) != 2 {
		return false
	}
	var sawFalse, sawNil bool
	for _, opt := range u.Options {
		opt = Follow(opt)
		if s, ok := opt.content.(Singleton); ok {
			if bs, ok := s.Value.(BoolSingleton); ok && !bs.Value {
				sawFalse = true
				continue
			}
		}
		if IsNil(opt) {
			sawNil = true
		}
	}
	return sawFalse && sawNil
}
