package typegraph

import (
	"errors"

	set "github.com/hashicorp/go-set/v3"
)

// ErrRecursionLimit is returned when a traversal exceeds its depth
// budget. Callers treat this as recoverable: the graph was too deep to
// inspect, not malformed.
var ErrRecursionLimit = errors.New("typegraph: traversal recursion limit exceeded")

// DefaultTraversalLimit bounds visitor depth when the caller does not
// supply a limit.
const DefaultTraversalLimit = 512

// VisitFuncs configures a once-traversal of the graph. Each node is
// visited at most once. The Type/Pack callbacks return whether to
// descend into the node's children; a nil callback descends always.
//
// Cycle fires when a node is reached again while it is still on the
// active traversal stack. Revisits of finished nodes do not fire it:
// sharing is not a cycle.
//
// Visitors descend into Extern children unless the Type callback
// declines; collectors over user-visible structure are expected to
// treat extern types as opaque.
type VisitFuncs struct {
	Type  func(*Type) bool
	Pack  func(*TypePack) bool
	Cycle func(*Type)
}

// VisitType walks the graph rooted at t depth-first.
func VisitType(t *Type, limit int, fns VisitFuncs) error {
	return newVisitor(limit, fns).visitType(t, 0)
}

// VisitPack walks the graph rooted at p depth-first.
func VisitPack(p *TypePack, limit int, fns VisitFuncs) error {
	return newVisitor(limit, fns).visitPack(p, 0)
}

type visitor struct {
	fns   VisitFuncs
	limit int

	seenTypes *set.Set[*Type]
	seenPacks *set.Set[*TypePack]
	stack     *set.Set[*Type]
}

func newVisitor(limit int, fns VisitFuncs) *visitor {
	if limit <= 0 {
		limit = DefaultTraversalLimit
	}
	return &visitor{
		fns:       fns,
		limit:     limit,
		seenTypes: set.New[*Type](16),
		seenPacks: set.New[*TypePack](4),
		stack:     set.New[*Type](16),
	}
}

func (v *visitor) visitType(t *Type, depth int) error {
	if depth > v.limit {
		return ErrRecursionLimit
	}

	t = Follow(t)

	if v.stack.Contains(t) {
		if v.fns.Cycle != nil {
			v.fns.Cycle(t)
		}
		return nil
	}
	if !v.seenTypes.Insert(t) {
		return nil
	}

	if v.fns.Type != nil && !v.fns.Type(t) {
		return nil
	}

	v.stack.Insert(t)
	defer v.stack.Remove(t)

	childTypes, childPacks := TypeChildren(t.content)
	for _, c := range childTypes {
		if err := v.visitType(c, depth+1); err != nil {
			return err
		}
	}
	for _, c := range childPacks {
		if err := v.visitPack(c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (v *visitor) visitPack(p *TypePack, depth int) error {
	if depth > v.limit {
		return ErrRecursionLimit
	}

	p = FollowPack(p)

	if !v.seenPacks.Insert(p) {
		return nil
	}

	if v.fns.Pack != nil && !v.fns.Pack(p) {
		return nil
	}

	childTypes, childPacks := PackChildren(p.content)
	for _, c := range childTypes {
		if err := v.visitType(c, depth+1); err != nil {
			return err
		}
	}
	for _, c := range childPacks {
		if err := v.visitPack(c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// TypeChildren enumerates the direct child nodes of a content value.
func TypeChildren(c Content) ([]*Type, []*TypePack) {
	switch ct := c.(type) {
	case Table:
		var ts []*Type
		for _, prop := range ct.Props {
			if prop.ReadType != nil {
				ts = append(ts, prop.ReadType)
			}
			if prop.WriteType != nil && prop.WriteType != prop.ReadType {
				ts = append(ts, prop.WriteType)
			}
		}
		if ct.Indexer != nil {
			ts = append(ts, ct.Indexer.IndexType, ct.Indexer.IndexResultType)
		}
		return ts, nil
	case Function:
		var ps []*TypePack
		if ct.Params != nil {
			ps = append(ps, ct.Params)
		}
		if ct.Returns != nil {
			ps = append(ps, ct.Returns)
		}
		return ct.Generics, append(append([]*TypePack{}, ct.GenericPacks...), ps...)
	case Union:
		return ct.Options, nil
	case Intersection:
		return ct.Parts, nil
	case Metatable:
		return []*Type{ct.Table, ct.Metatable}, nil
	case Negation:
		return []*Type{ct.Inner}, nil
	case Extern:
		var ts []*Type
		for _, prop := range ct.Props {
			if prop.ReadType != nil {
				ts = append(ts, prop.ReadType)
			}
		}
		if ct.Indexer != nil {
			ts = append(ts, ct.Indexer.IndexType, ct.Indexer.IndexResultType)
		}
		if ct.Parent != nil {
			ts = append(ts, ct.Parent)
		}
		if ct.Metatable != nil {
			ts = append(ts, ct.Metatable)
		}
		return ts, nil
	case *FunctionInstance:
		return ct.TypeArgs, ct.PackArgs
	case Bound:
		return []*Type{ct.To}, nil
	}
	return nil, nil
}

// PackChildren enumerates the direct child nodes of a pack content value.
func PackChildren(c PackContent) ([]*Type, []*TypePack) {
	switch ct := c.(type) {
	case PackList:
		if ct.Tail != nil {
			return ct.Head, []*TypePack{ct.Tail}
		}
		return ct.Head, nil
	case PackVariadic:
		return []*Type{ct.Type}, nil
	case *PackFunctionInstance:
		return ct.TypeArgs, ct.PackArgs
	case PackBound:
		return nil, []*TypePack{ct.To}
	}
	return nil, nil
}
