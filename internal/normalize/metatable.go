package normalize

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

// FindMetatableEntry resolves a metamethod entry (such as "__add" or
// "__index") on t. It understands metatable-wrapped tables, extern
// parent chains, and primitives that carry a runtime metatable. The
// second return is false when t has no metatable or the entry is absent.
func (n *Normalizer) FindMetatableEntry(t *typegraph.Type, name string) (*typegraph.Type, bool) {
	mt, ok := n.MetatableOf(t)
	if !ok {
		return nil, false
	}
	return n.lookupEntry(mt, name, 0)
}

// MetatableOf returns the metatable type attached to t, if any.
func (n *Normalizer) MetatableOf(t *typegraph.Type) (*typegraph.Type, bool) {
	t = typegraph.Follow(t)
	switch c := t.Content().(type) {
	case typegraph.Metatable:
		return typegraph.Follow(c.Metatable), true
	case typegraph.Primitive:
		if c.Metatable != nil {
			return typegraph.Follow(c.Metatable), true
		}
	case typegraph.Singleton:
		// String singletons share the string primitive's metatable.
		if _, ok := c.Value.(typegraph.StringSingleton); ok {
			if p, ok := typegraph.Follow(n.Builtins.String).Content().(typegraph.Primitive); ok && p.Metatable != nil {
				return typegraph.Follow(p.Metatable), true
			}
		}
	case typegraph.Extern:
		if c.Metatable != nil {
			return typegraph.Follow(c.Metatable), true
		}
		if c.Parent != nil {
			return n.MetatableOf(c.Parent)
		}
	case typegraph.Intersection:
		for _, part := range c.Parts {
			if mt, ok := n.MetatableOf(part); ok {
				return mt, true
			}
		}
	}
	return nil, false
}

const metatableChainLimit = 100

func (n *Normalizer) lookupEntry(mt *typegraph.Type, name string, depth int) (*typegraph.Type, bool) {
	if depth > metatableChainLimit {
		return nil, false
	}
	mt = typegraph.Follow(mt)

	switch c := mt.Content().(type) {
	case typegraph.Table:
		if prop, ok := c.Props[name]; ok {
			if ty := prop.Type(); ty != nil {
				return typegraph.Follow(ty), true
			}
		}
		// __index chains extend the search when the entry is missing.
		if prop, ok := c.Props["__index"]; ok && name != "__index" {
			if ty := prop.Type(); ty != nil {
				return n.lookupEntry(ty, name, depth+1)
			}
		}
	case typegraph.Metatable:
		return n.lookupEntry(c.Table, name, depth+1)
	case typegraph.Extern:
		if prop, ok := c.Props[name]; ok {
			if ty := prop.Type(); ty != nil {
				return typegraph.Follow(ty), true
			}
		}
		if c.Parent != nil {
			return n.lookupEntry(c.Parent, name, depth+1)
		}
	case typegraph.Intersection:
		for _, part := range c.Parts {
			if entry, ok := n.lookupEntry(part, name, depth+1); ok {
				return entry, true
			}
		}
	}
	return nil, false
}
