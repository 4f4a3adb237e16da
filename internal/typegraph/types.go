package typegraph

// Content is the interface implemented by every type node variant.
// A Type holds exactly one Content value at a time; rebinding a node
// replaces its content with a Bound pointing at the canonical result.
type Content interface {
	typeContent()
}

// PrimitiveKind enumerates the irreducible base types.
type PrimitiveKind int

const (
	KindNil PrimitiveKind = iota
	KindBoolean
	KindNumber
	KindString
	KindTable
	KindFunction
)

func (k PrimitiveKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindFunction:
		return "function"
	}
	return "unknown-primitive"
}

// Primitive is a base type such as number or string. The optional
// Metatable mirrors the runtime metatable of the primitive (strings
// carry one).
type Primitive struct {
	Kind      PrimitiveKind
	Metatable *Type
}

// Singleton is a type inhabited by exactly one value.
type Singleton struct {
	Value SingletonValue
}

type SingletonValue interface {
	singletonValue()
}

type BoolSingleton struct {
	Value bool
}

type StringSingleton struct {
	Value string
}

func (BoolSingleton) singletonValue()   {}
func (StringSingleton) singletonValue() {}

// Prop is a single table or extern property. Read and write types may
// differ; a property with neither carries no usable type.
type Prop struct {
	ReadType  *Type
	WriteType *Type
}

// Type returns the property type preferred for reading, or nil.
func (p Prop) Type() *Type {
	if p.ReadType != nil {
		return p.ReadType
	}
	return p.WriteType
}

// Indexer describes `[K]: V` access on a table-like type.
type Indexer struct {
	IndexType       *Type
	IndexResultType *Type
}

// Table is a structural table type.
type Table struct {
	Props   map[string]Prop
	Indexer *Indexer
}

// Function is a structural function type. Generics and GenericPacks
// list the type parameters scoped to this function.
type Function struct {
	Generics     []*Type
	GenericPacks []*TypePack
	Params       *TypePack
	Returns      *TypePack
}

// Union is a set type of alternatives. Invariant: at least two options.
type Union struct {
	Options []*Type
}

// Intersection is a set type of requirements. Invariant: at least two parts.
type Intersection struct {
	Parts []*Type
}

// Metatable pairs a table type with its metatable.
type Metatable struct {
	Table     *Type
	Metatable *Type
}

// Negation is the complement of its inner type.
type Negation struct {
	Inner *Type
}

// Extern is an opaque host-defined structural type. Traversals must not
// descend into it. Parent forms a single-inheritance chain.
type Extern struct {
	Name      string
	Props     map[string]Prop
	Indexer   *Indexer
	Parent    *Type
	Metatable *Type
}

// Generic is a quantified type parameter.
type Generic struct {
	Name string
}

// Free is an unification variable owned by the constraint solver.
type Free struct {
	Name string
}

// Blocked is a placeholder for a type the solver has not produced yet.
type Blocked struct{}

// PendingExpansion is a type alias application that has not been
// expanded yet.
type PendingExpansion struct {
	Name string
}

// Bound aliases this node to another. All consumers resolve through
// Follow before inspecting content.
type Bound struct {
	To *Type
}

// Never is the bottom type.
type Never struct{}

// Unknown is the top type.
type Unknown struct{}

// Any is the error-suppressing top type.
type Any struct{}

// ErrorType is the error-suppressing bottom type.
type ErrorType struct{}

// NoRefine is a discriminant that carries no refinement information.
type NoRefine struct{}

// InstanceState tracks the reduction lifecycle of a function instance.
type InstanceState int

const (
	// StateUnsolved means the engine has not produced a terminal answer.
	StateUnsolved InstanceState = iota
	// StateSolved means the instance reduced, or was retired as a
	// dependency of a generic that an operator cannot act on.
	StateSolved
	// StateStuck means no valid reduction exists for this instance.
	StateStuck
)

func (s InstanceState) String() string {
	switch s {
	case StateUnsolved:
		return "unsolved"
	case StateSolved:
		return "solved"
	case StateStuck:
		return "stuck"
	}
	return "invalid-state"
}

// FunctionInstance is an unresolved application of a named type-level
// operator to type and pack arguments. The operator is identified by
// name; the reduction engine owns the name-to-reducer table.
type FunctionInstance struct {
	Operator string
	TypeArgs []*Type
	PackArgs []*TypePack
	State    InstanceState

	// UserFunc is set when Operator is the user-defined dispatch marker.
	UserFunc *UserFuncData
}

func (Primitive) typeContent()        {}
func (Singleton) typeContent()        {}
func (Table) typeContent()            {}
func (Function) typeContent()         {}
func (Union) typeContent()            {}
func (Intersection) typeContent()     {}
func (Metatable) typeContent()        {}
func (Negation) typeContent()         {}
func (Extern) typeContent()           {}
func (Generic) typeContent()          {}
func (Free) typeContent()             {}
func (Blocked) typeContent()          {}
func (PendingExpansion) typeContent() {}
func (Bound) typeContent()            {}
func (Never) typeContent()            {}
func (Unknown) typeContent()          {}
func (Any) typeContent()              {}
func (ErrorType) typeContent()        {}
func (NoRefine) typeContent()         {}
func (FunctionInstance) typeContent() {}

// Type is a node in the type graph. Nodes are created by an Arena,
// compared by identity, and mutated in place only by the reduction
// engine under its single-writer rule.
type Type struct {
	content Content
	owner   *Arena
}

// Content returns the node's current content without following bounds.
func (t *Type) Content() Content {
	return t.content
}

// Owner returns the arena that allocated this node.
func (t *Type) Owner() *Arena {
	return t.owner
}

// SetContent replaces the node content in place. Callers are expected
// to hold the single active reduction pass.
func (t *Type) SetContent(c Content) {
	t.content = c
}

// Instance returns the function instance content, following bounds first.
func (t *Type) Instance() (*FunctionInstance, bool) {
	fi, ok := Follow(t).content.(*FunctionInstance)
	return fi, ok
}

// Follow chases Bound links to the canonical representative of t.
// Bound chains are expected to be short; a defensive cap turns a
// malformed bound cycle into the last node seen rather than a hang.
func Follow(t *Type) *Type {
	for i := 0; i < maxBoundChain; i++ {
		b, ok := t.content.(Bound)
		if !ok {
			return t
		}
		t = b.To
	}
	return t
}

const maxBoundChain = 1 << 16

// IsNever reports whether t is the bottom type.
func IsNever(t *Type) bool {
	_, ok := Follow(t).content.(Never)
	return ok
}

// IsNil reports whether t is the nil primitive.
func IsNil(t *Type) bool {
	p, ok := Follow(t).content.(Primitive)
	return ok && p.Kind == KindNil
}

// IsNumber reports whether t is the number primitive.
func IsNumber(t *Type) bool {
	p, ok := Follow(t).content.(Primitive)
	return ok && p.Kind == KindNumber
}

// IsString reports whether t is the string primitive.
func IsString(t *Type) bool {
	p, ok := Follow(t).content.(Primitive)
	return ok && p.Kind == KindString
}
