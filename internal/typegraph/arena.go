package typegraph

import "github.com/google/uuid"

// Arena owns the storage of type and pack nodes. Node lifetime is tied
// to the arena; the reduction engine mutates nodes but never owns them.
// Each arena carries a UUID so that cross-arena mutation attempts can be
// reported precisely.
type Arena struct {
	ID    uuid.UUID
	types []*Type
	packs []*TypePack
}

func NewArena() *Arena {
	return &Arena{ID: uuid.New()}
}

// AddType allocates a new node holding c.
func (a *Arena) AddType(c Content) *Type {
	t := &Type{content: c, owner: a}
	a.types = append(a.types, t)
	return t
}

// AddTypePack allocates a new pack node holding c.
func (a *Arena) AddTypePack(c PackContent) *TypePack {
	p := &TypePack{content: c, owner: a}
	a.packs = append(a.packs, p)
	return p
}

// AddInstance allocates an unsolved function instance node.
func (a *Arena) AddInstance(operator string, typeArgs []*Type, packArgs []*TypePack) *Type {
	return a.AddType(&FunctionInstance{
		Operator: operator,
		TypeArgs: typeArgs,
		PackArgs: packArgs,
		State:    StateUnsolved,
	})
}

// AddUnion builds a union node, collapsing the degenerate cases.
func (a *Arena) AddUnion(options []*Type) *Type {
	switch len(options) {
	case 0:
		return a.AddType(Never{})
	case 1:
		return options[0]
	}
	return a.AddType(Union{Options: options})
}

// AddIntersection builds an intersection node, collapsing the
// degenerate cases.
func (a *Arena) AddIntersection(parts []*Type) *Type {
	switch len(parts) {
	case 0:
		return a.AddType(Unknown{})
	case 1:
		return parts[0]
	}
	return a.AddType(Intersection{Parts: parts})
}

// Owns reports whether t was allocated by this arena.
func (a *Arena) Owns(t *Type) bool {
	return t.owner == a
}

// OwnsPack reports whether p was allocated by this arena.
func (a *Arena) OwnsPack(p *TypePack) bool {
	return p.owner == a
}

// Size returns the number of type nodes allocated so far.
func (a *Arena) Size() int {
	return len(a.types)
}
