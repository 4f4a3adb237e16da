package normalize

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

// SimplifyResult carries the simplified type plus any nodes whose
// unresolved state prevented a definite answer. A non-empty Blocked
// list means Result is provisional.
type SimplifyResult struct {
	Result  *typegraph.Type
	Blocked []*typegraph.Type
}

func isUnresolved(t *typegraph.Type) bool {
	switch typegraph.Follow(t).Content().(type) {
	case typegraph.Blocked, typegraph.PendingExpansion, *typegraph.FunctionInstance:
		return true
	}
	return false
}

// SimplifyUnion computes a simplified form of a | b.
func (n *Normalizer) SimplifyUnion(a, b *typegraph.Type) SimplifyResult {
	a, b = typegraph.Follow(a), typegraph.Follow(b)

	if isUnresolved(a) {
		return SimplifyResult{Result: a, Blocked: []*typegraph.Type{a}}
	}
	if isUnresolved(b) {
		return SimplifyResult{Result: b, Blocked: []*typegraph.Type{b}}
	}

	options := append(flattenUnion(a, nil), flattenUnion(b, nil)...)

	var kept []*typegraph.Type
	for _, opt := range options {
		opt = typegraph.Follow(opt)
		switch opt.Content().(type) {
		case typegraph.Never:
			continue
		case typegraph.Any:
			return SimplifyResult{Result: n.Builtins.Any}
		case typegraph.Unknown:
			return SimplifyResult{Result: n.Builtins.Unknown}
		}
		absorbed := false
		for i, existing := range kept {
			if n.IsSubtype(opt, existing) {
				absorbed = true
				break
			}
			if n.IsSubtype(existing, opt) {
				kept[i] = opt
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, opt)
		}
	}

	return SimplifyResult{Result: n.Arena.AddUnion(kept)}
}

func flattenUnion(t *typegraph.Type, acc []*typegraph.Type) []*typegraph.Type {
	t = typegraph.Follow(t)
	if u, ok := t.Content().(typegraph.Union); ok {
		for _, opt := range u.Options {
			acc = flattenUnion(opt, acc)
		}
		return acc
	}
	return append(acc, t)
}

// SimplifyIntersection computes a simplified form of a & b. It prefers
// structural rules (tables, truthy/falsy discriminants, negations) and
// degrades to an explicit intersection node when it cannot decide.
func (n *Normalizer) SimplifyIntersection(a, b *typegraph.Type) SimplifyResult {
	return n.simplifyIntersection(a, b, 0)
}

const simplifyDepthLimit = 64

func (n *Normalizer) simplifyIntersection(a, b *typegraph.Type, depth int) SimplifyResult {
	a, b = typegraph.Follow(a), typegraph.Follow(b)

	if depth > simplifyDepthLimit {
		return SimplifyResult{Result: n.Arena.AddIntersection([]*typegraph.Type{a, b})}
	}

	if a == b {
		return SimplifyResult{Result: a}
	}
	if isUnresolved(a) {
		return SimplifyResult{Result: a, Blocked: []*typegraph.Type{a}}
	}
	if isUnresolved(b) {
		return SimplifyResult{Result: b, Blocked: []*typegraph.Type{b}}
	}
	if typegraph.IsNever(a) || typegraph.IsNever(b) {
		return SimplifyResult{Result: n.Builtins.Never}
	}

	switch a.Content().(type) {
	case typegraph.Unknown, typegraph.Any, typegraph.NoRefine:
		return SimplifyResult{Result: b}
	}
	switch b.Content().(type) {
	case typegraph.Unknown, typegraph.Any, typegraph.NoRefine:
		return SimplifyResult{Result: a}
	}

	// Truthy/falsy discriminants get a dedicated filter since they are
	// the hot path coming out of refinement.
	if typegraph.IsTruthyDiscriminant(b) {
		return n.filterTruthiness(a, true, depth)
	}
	if typegraph.IsFalsyDiscriminant(b) {
		return n.filterTruthiness(a, false, depth)
	}
	if typegraph.IsTruthyDiscriminant(a) {
		return n.filterTruthiness(b, true, depth)
	}
	if typegraph.IsFalsyDiscriminant(a) {
		return n.filterTruthiness(b, false, depth)
	}

	// A union on either side distributes over the intersection.
	if u, ok := a.Content().(typegraph.Union); ok {
		return n.distributeIntersection(u.Options, b, depth)
	}
	if u, ok := b.Content().(typegraph.Union); ok {
		return n.distributeIntersection(u.Options, a, depth)
	}

	if neg, ok := b.Content().(typegraph.Negation); ok {
		return n.subtractType(a, typegraph.Follow(neg.Inner), depth)
	}
	if neg, ok := a.Content().(typegraph.Negation); ok {
		return n.subtractType(b, typegraph.Follow(neg.Inner), depth)
	}

	if r, ok := n.intersectStructural(a, b, depth); ok {
		return r
	}
	if r, ok := n.intersectStructural(b, a, depth); ok {
		return r
	}

	if n.IsSubtype(a, b) {
		return SimplifyResult{Result: a}
	}
	if n.IsSubtype(b, a) {
		return SimplifyResult{Result: b}
	}
	if n.disjoint(a, b) {
		return SimplifyResult{Result: n.Builtins.Never}
	}

	return SimplifyResult{Result: n.Arena.AddIntersection([]*typegraph.Type{a, b})}
}

func (n *Normalizer) distributeIntersection(options []*typegraph.Type, other *typegraph.Type, depth int) SimplifyResult {
	var kept []*typegraph.Type
	var blocked []*typegraph.Type
	for _, opt := range options {
		r := n.simplifyIntersection(opt, other, depth+1)
		blocked = append(blocked, r.Blocked...)
		if !typegraph.IsNever(r.Result) {
			kept = append(kept, r.Result)
		}
	}
	return SimplifyResult{Result: n.Arena.AddUnion(kept), Blocked: blocked}
}

// filterTruthiness narrows t to its truthy (or falsy) inhabitants.
func (n *Normalizer) filterTruthiness(t *typegraph.Type, truthy bool, depth int) SimplifyResult {
	t = typegraph.Follow(t)

	switch c := t.Content().(type) {
	case typegraph.Unknown, typegraph.Any:
		if truthy {
			return SimplifyResult{Result: n.Builtins.Truthy}
		}
		return SimplifyResult{Result: n.Builtins.Falsy}
	case typegraph.Union:
		var kept []*typegraph.Type
		var blocked []*typegraph.Type
		for _, opt := range c.Options {
			r := n.filterTruthiness(opt, truthy, depth+1)
			blocked = append(blocked, r.Blocked...)
			if !typegraph.IsNever(r.Result) {
				kept = append(kept, r.Result)
			}
		}
		return SimplifyResult{Result: n.Arena.AddUnion(kept), Blocked: blocked}
	case typegraph.Primitive:
		switch c.Kind {
		case typegraph.KindNil:
			if truthy {
				return SimplifyResult{Result: n.Builtins.Never}
			}
			return SimplifyResult{Result: t}
		case typegraph.KindBoolean:
			if truthy {
				return SimplifyResult{Result: n.Builtins.True}
			}
			return SimplifyResult{Result: n.Builtins.False}
		}
		return n.keepIf(t, truthy)
	case typegraph.Singleton:
		if bs, ok := c.Value.(typegraph.BoolSingleton); ok {
			if bs.Value == truthy {
				return SimplifyResult{Result: t}
			}
			return SimplifyResult{Result: n.Builtins.Never}
		}
		return n.keepIf(t, truthy)
	}
	if isUnresolved(t) {
		return SimplifyResult{Result: t, Blocked: []*typegraph.Type{t}}
	}
	// Everything else (tables, functions, numbers, strings, externs) is
	// truthy.
	return n.keepIf(t, truthy)
}

func (n *Normalizer) keepIf(t *typegraph.Type, keep bool) SimplifyResult {
	if keep {
		return SimplifyResult{Result: t}
	}
	return SimplifyResult{Result: n.Builtins.Never}
}

// subtractType computes t & ~sub.
func (n *Normalizer) subtractType(t, sub *typegraph.Type, depth int) SimplifyResult {
	t = typegraph.Follow(t)

	if u, ok := t.Content().(typegraph.Union); ok {
		var kept []*typegraph.Type
		var blocked []*typegraph.Type
		for _, opt := range u.Options {
			r := n.subtractType(typegraph.Follow(opt), sub, depth+1)
			blocked = append(blocked, r.Blocked...)
			if !typegraph.IsNever(r.Result) {
				kept = append(kept, r.Result)
			}
		}
		return SimplifyResult{Result: n.Arena.AddUnion(kept), Blocked: blocked}
	}

	switch t.Content().(type) {
	case typegraph.Unknown, typegraph.Any:
		// ~nil over the top type is common enough to special-case.
		if typegraph.IsNil(sub) {
			neg := n.Arena.AddType(typegraph.Negation{Inner: sub})
			return SimplifyResult{Result: neg}
		}
		return SimplifyResult{Result: t}
	}

	if n.IsSubtype(t, sub) {
		return SimplifyResult{Result: n.Builtins.Never}
	}
	return SimplifyResult{Result: t}
}

// intersectStructural handles table-against-table refinement shapes.
// The second return is false when the pair is not structural.
func (n *Normalizer) intersectStructural(a, b *typegraph.Type, depth int) (SimplifyResult, bool) {
	bTable, ok := b.Content().(typegraph.Table)
	if !ok {
		return SimplifyResult{}, false
	}

	switch c := a.Content().(type) {
	case typegraph.Table:
		props := make(map[string]typegraph.Prop, len(c.Props))
		for k, v := range c.Props {
			props[k] = v
		}
		var blocked []*typegraph.Type
		for k, v := range bTable.Props {
			existing, ok := props[k]
			if !ok {
				props[k] = v
				continue
			}
			et, vt := existing.Type(), v.Type()
			if et == nil || vt == nil {
				continue
			}
			r := n.simplifyIntersection(et, vt, depth+1)
			blocked = append(blocked, r.Blocked...)
			if typegraph.IsNever(r.Result) && !typegraph.IsNever(typegraph.Follow(et)) {
				// A required property with no inhabitants voids the table.
				return SimplifyResult{Result: n.Builtins.Never, Blocked: blocked}, true
			}
			props[k] = typegraph.Prop{ReadType: r.Result, WriteType: r.Result}
		}
		result := n.Arena.AddType(typegraph.Table{Props: props, Indexer: c.Indexer})
		return SimplifyResult{Result: result, Blocked: blocked}, true
	case typegraph.Metatable:
		inner := n.simplifyIntersection(c.Table, b, depth+1)
		if typegraph.IsNever(inner.Result) {
			return SimplifyResult{Result: n.Builtins.Never, Blocked: inner.Blocked}, true
		}
		result := n.Arena.AddType(typegraph.Metatable{Table: inner.Result, Metatable: c.Metatable})
		return SimplifyResult{Result: result, Blocked: inner.Blocked}, true
	}
	return SimplifyResult{}, false
}

// disjoint reports whether a and b certainly share no inhabitants.
// Conservative: false when unsure.
func (n *Normalizer) disjoint(a, b *typegraph.Type) bool {
	ac, bc := a.Content(), b.Content()

	ap, aIsPrim := ac.(typegraph.Primitive)
	bp, bIsPrim := bc.(typegraph.Primitive)
	if aIsPrim && bIsPrim {
		return ap.Kind != bp.Kind
	}

	as, aIsSing := ac.(typegraph.Singleton)
	bs, bIsSing := bc.(typegraph.Singleton)
	if aIsSing && bIsSing {
		return as.Value != bs.Value
	}
	if aIsSing && bIsPrim {
		return !singletonOfKind(as, bp.Kind)
	}
	if bIsSing && aIsPrim {
		return !singletonOfKind(bs, ap.Kind)
	}

	// A primitive or singleton never inhabits a structural table,
	// function, or extern type.
	if (aIsPrim || aIsSing) && isStructural(bc) {
		return true
	}
	if (bIsPrim || bIsSing) && isStructural(ac) {
		return true
	}
	return false
}

func singletonOfKind(s typegraph.Singleton, kind typegraph.PrimitiveKind) bool {
	switch s.Value.(type) {
	case typegraph.BoolSingleton:
		return kind == typegraph.KindBoolean
	case typegraph.StringSingleton:
		return kind == typegraph.KindString
	}
	return false
}

func isStructural(c typegraph.Content) bool {
	switch c.(type) {
	case typegraph.Table, typegraph.Metatable, typegraph.Function, typegraph.Extern:
		return true
	}
	return false
}
