package normalize

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

const subtypeDepthLimit = 64

// IsSubtype reports whether every inhabitant of sub is an inhabitant of
// sup. Conservative: false whenever the structural rules here cannot
// prove the relation.
func (n *Normalizer) IsSubtype(sub, sup *typegraph.Type) bool {
	return n.isSubtype(sub, sup, 0)
}

func (n *Normalizer) isSubtype(sub, sup *typegraph.Type, depth int) bool {
	if depth > subtypeDepthLimit {
		return false
	}
	sub, sup = typegraph.Follow(sub), typegraph.Follow(sup)

	if sub == sup {
		return true
	}
	if typegraph.IsNever(sub) {
		return true
	}
	switch sup.Content().(type) {
	case typegraph.Unknown, typegraph.Any:
		return true
	}
	switch sub.Content().(type) {
	case typegraph.Any, typegraph.ErrorType:
		// Error suppression runs both ways; treat as related.
		return true
	}

	// Unions and intersections decompose before anything structural.
	if u, ok := sub.Content().(typegraph.Union); ok {
		for _, opt := range u.Options {
			if !n.isSubtype(opt, sup, depth+1) {
				return false
			}
		}
		return true
	}
	if i, ok := sup.Content().(typegraph.Intersection); ok {
		for _, part := range i.Parts {
			if !n.isSubtype(sub, part, depth+1) {
				return false
			}
		}
		return true
	}
	if u, ok := sup.Content().(typegraph.Union); ok {
		for _, opt := range u.Options {
			if n.isSubtype(sub, opt, depth+1) {
				return true
			}
		}
		return false
	}
	if i, ok := sub.Content().(typegraph.Intersection); ok {
		for _, part := range i.Parts {
			if n.isSubtype(part, sup, depth+1) {
				return true
			}
		}
		return false
	}

	if neg, ok := sup.Content().(typegraph.Negation); ok {
		inner := typegraph.Follow(neg.Inner)
		return n.disjoint(sub, inner)
	}

	switch supC := sup.Content().(type) {
	case typegraph.Primitive:
		switch subC := sub.Content().(type) {
		case typegraph.Primitive:
			return subC.Kind == supC.Kind
		case typegraph.Singleton:
			return singletonOfKind(subC, supC.Kind)
		case typegraph.Table, typegraph.Metatable:
			return supC.Kind == typegraph.KindTable
		case typegraph.Function:
			return supC.Kind == typegraph.KindFunction
		}
		return false
	case typegraph.Singleton:
		subC, ok := sub.Content().(typegraph.Singleton)
		return ok && subC.Value == supC.Value
	case typegraph.Table:
		return n.isSubtypeOfTable(sub, supC, depth)
	case typegraph.Extern:
		return n.isSubtypeOfExtern(sub, sup, depth)
	case typegraph.Function:
		// Function subtyping beyond identity is out of scope for the
		// structural engine.
		return false
	}
	return false
}

func (n *Normalizer) isSubtypeOfTable(sub *typegraph.Type, sup typegraph.Table, depth int) bool {
	var props map[string]typegraph.Prop
	switch subC := sub.Content().(type) {
	case typegraph.Table:
		props = subC.Props
	case typegraph.Metatable:
		return n.isSubtype(subC.Table, n.Arena.AddType(sup), depth+1)
	default:
		return false
	}

	for name, supProp := range sup.Props {
		subProp, ok := props[name]
		if !ok {
			return false
		}
		st, pt := subProp.Type(), supProp.Type()
		if st == nil || pt == nil {
			return false
		}
		if !n.isSubtype(st, pt, depth+1) {
			return false
		}
	}
	// Indexer width checking is intentionally omitted; absence of an
	// indexer on the supertype is enough for the engine's uses.
	return sup.Indexer == nil
}

func (n *Normalizer) isSubtypeOfExtern(sub, sup *typegraph.Type, depth int) bool {
	// Extern subtyping is nominal through the parent chain.
	cur := typegraph.Follow(sub)
	for i := 0; i < subtypeDepthLimit; i++ {
		if cur == sup {
			return true
		}
		ext, ok := cur.Content().(typegraph.Extern)
		if !ok || ext.Parent == nil {
			return false
		}
		cur = typegraph.Follow(ext.Parent)
	}
	return false
}
