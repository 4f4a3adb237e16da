package normalize

import (
	"sort"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

// SharedState is reduction-pass state shared between the normalizer and
// the reduction engine. The reentrancy flag rejects nested reduction
// passes: a reducer may call into subtyping, which may ask for further
// reduction, and that inner request must short-circuit.
type SharedState struct {
	ReentrantReduction bool
}

// Normalizer computes NormalForm values and answers inhabitance
// questions. It is a deliberately modest structural engine standing in
// for a full semantic normalizer; the reduction engine only depends on
// the interface surface here.
type Normalizer struct {
	Builtins *typegraph.Builtins
	Arena    *typegraph.Arena
	Shared   *SharedState
}

func NewNormalizer(builtins *typegraph.Builtins, arena *typegraph.Arena) *Normalizer {
	return &Normalizer{
		Builtins: builtins,
		Arena:    arena,
		Shared:   &SharedState{},
	}
}

const normalizeDepthLimit = 128

// Normalize decomposes t, returning nil when the decomposition cannot
// complete (unresolved components, unsupported negations, or depth
// exhaustion). A nil result says nothing about inhabitance.
func (n *Normalizer) Normalize(t *typegraph.Type) *NormalForm {
	nf := &NormalForm{Strings: StringFacet{Singletons: map[string]struct{}{}}}
	if !n.accumulate(nf, t, set.New[*typegraph.Type](8), 0) {
		return nil
	}
	return nf
}

func (n *Normalizer) accumulate(nf *NormalForm, t *typegraph.Type, seen *set.Set[*typegraph.Type], depth int) bool {
	if depth > normalizeDepthLimit {
		return false
	}
	t = typegraph.Follow(t)
	if !seen.Insert(t) {
		// Revisiting a node on this path contributes nothing new.
		return true
	}
	defer seen.Remove(t)

	switch c := t.Content().(type) {
	case typegraph.Never:
		return true
	case typegraph.Unknown:
		nf.HasUnknown = true
		return true
	case typegraph.Any:
		nf.HasAny = true
		return true
	case typegraph.ErrorType:
		nf.HasError = true
		return true
	case typegraph.NoRefine:
		return true
	case typegraph.Primitive:
		switch c.Kind {
		case typegraph.KindNil:
			nf.HasNil = true
		case typegraph.KindBoolean:
			nf.Booleans = BoolAll
		case typegraph.KindNumber:
			nf.HasNumber = true
		case typegraph.KindString:
			nf.Strings.All = true
		case typegraph.KindFunction:
			nf.HasFunctionPrim = true
		case typegraph.KindTable:
			nf.HasPrimitiveTable = true
		}
		return true
	case typegraph.Singleton:
		switch v := c.Value.(type) {
		case typegraph.BoolSingleton:
			nf.Booleans = mergeBoolFacet(nf.Booleans, v.Value)
		case typegraph.StringSingleton:
			if !nf.Strings.All {
				nf.Strings.Singletons[v.Value] = struct{}{}
			}
		}
		return true
	case typegraph.Union:
		for _, opt := range c.Options {
			if !n.accumulate(nf, opt, seen, depth+1) {
				return false
			}
		}
		return true
	case typegraph.Intersection:
		folded, blocked := n.foldIntersection(c.Parts)
		if folded == nil || len(blocked) > 0 {
			return false
		}
		if _, still := typegraph.Follow(folded).Content().(typegraph.Intersection); still {
			// An intersection we could not discharge is kept opaque as a
			// table component when it is made of table-like parts; anything
			// else is beyond this normalizer.
			if allTableLike(folded) {
				nf.Tables = append(nf.Tables, folded)
				return true
			}
			return false
		}
		return n.accumulate(nf, folded, seen, depth+1)
	case typegraph.Table, typegraph.Metatable:
		nf.Tables = append(nf.Tables, t)
		return true
	case typegraph.Extern:
		nf.Externs = append(nf.Externs, t)
		return true
	case typegraph.Function:
		nf.Functions = append(nf.Functions, t)
		return true
	case typegraph.Generic, typegraph.Free:
		nf.HasTyvars = true
		return true
	case typegraph.Negation:
		// Only the canonical truthy discriminant has a usable
		// decomposition; general negations do not normalize here.
		return false
	default:
		// Blocked, PendingExpansion, unreduced function instances.
		return false
	}
}

func mergeBoolFacet(f BoolFacet, value bool) BoolFacet {
	switch f {
	case BoolNone:
		if value {
			return BoolOnlyTrue
		}
		return BoolOnlyFalse
	case BoolOnlyTrue:
		if value {
			return BoolOnlyTrue
		}
		return BoolAll
	case BoolOnlyFalse:
		if !value {
			return BoolOnlyFalse
		}
		return BoolAll
	}
	return BoolAll
}

func (n *Normalizer) foldIntersection(parts []*typegraph.Type) (*typegraph.Type, []*typegraph.Type) {
	result := n.Builtins.Unknown
	for _, part := range parts {
		r := n.SimplifyIntersection(result, part)
		if len(r.Blocked) > 0 {
			return nil, r.Blocked
		}
		result = r.Result
	}
	return result, nil
}

func allTableLike(t *typegraph.Type) bool {
	switch c := typegraph.Follow(t).Content().(type) {
	case typegraph.Table, typegraph.Metatable:
		return true
	case typegraph.Intersection:
		for _, part := range c.Parts {
			if !allTableLike(part) {
				return false
			}
		}
		return true
	}
	return false
}

// IsInhabited answers whether nf has at least one inhabitant. A nil
// form means normalization hit its limits and the answer is unknown.
func (n *Normalizer) IsInhabited(nf *NormalForm) Inhabitance {
	if nf == nil {
		return InhabitanceUnknown
	}
	if nf.HasUnknown || nf.HasAny || nf.HasError ||
		nf.HasNil || nf.Booleans != BoolNone || nf.HasNumber || !nf.Strings.empty() ||
		nf.HasFunctionPrim || nf.HasPrimitiveTable ||
		len(nf.Functions) > 0 || len(nf.Tables) > 0 || len(nf.Externs) > 0 {
		return Inhabited
	}
	if nf.HasTyvars {
		return InhabitanceUnknown
	}
	return Uninhabited
}

// IsIntersectionInhabited answers whether a & b has any inhabitant.
func (n *Normalizer) IsIntersectionInhabited(a, b *typegraph.Type) Inhabitance {
	r := n.SimplifyIntersection(a, b)
	if len(r.Blocked) > 0 {
		return InhabitanceUnknown
	}
	if typegraph.IsNever(r.Result) {
		return Uninhabited
	}
	if _, still := typegraph.Follow(r.Result).Content().(typegraph.Intersection); still {
		return InhabitanceUnknown
	}
	return n.IsInhabited(n.Normalize(r.Result))
}

// TypeFromNormal rebuilds a graph node denoting nf. Structural
// components are reused by reference; primitive facets come from the
// builtin registry.
func (n *Normalizer) TypeFromNormal(nf *NormalForm) *typegraph.Type {
	if nf.HasAny {
		return n.Builtins.Any
	}
	if nf.HasUnknown {
		return n.Builtins.Unknown
	}

	var options []*typegraph.Type
	if nf.HasError {
		options = append(options, n.Builtins.Error)
	}
	if nf.HasNil {
		options = append(options, n.Builtins.Nil)
	}
	switch nf.Booleans {
	case BoolOnlyTrue:
		options = append(options, n.Builtins.True)
	case BoolOnlyFalse:
		options = append(options, n.Builtins.False)
	case BoolAll:
		options = append(options, n.Builtins.Boolean)
	}
	if nf.HasNumber {
		options = append(options, n.Builtins.Number)
	}
	if nf.Strings.All {
		options = append(options, n.Builtins.String)
	} else {
		// Sorted for deterministic output.
		keys := make([]string, 0, len(nf.Strings.Singletons))
		for s := range nf.Strings.Singletons {
			keys = append(keys, s)
		}
		sort.Strings(keys)
		for _, s := range keys {
			options = append(options, n.Arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: s}}))
		}
	}
	if nf.HasFunctionPrim {
		options = append(options, n.Builtins.Function)
	}
	if nf.HasPrimitiveTable {
		options = append(options, n.Builtins.Table)
	}
	options = append(options, nf.Functions...)
	options = append(options, nf.Tables...)
	options = append(options, nf.Externs...)

	if len(options) == 0 {
		return n.Builtins.Never
	}
	return n.Arena.AddUnion(options)
}
