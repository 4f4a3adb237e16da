package reduce

import (
	"fmt"

	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpIndex, Reduce: indexReducer(false)})
	register(&Operator{Name: OpRawGet, Reduce: indexReducer(true)})
}

func indexReducer(raw bool) ReducerFn {
	name := OpIndex
	if raw {
		name = OpRawGet
	}
	return func(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
		if len(typeArgs) != 2 {
			return badArity(name, 2, len(typeArgs))
		}
		indexee := typegraph.Follow(typeArgs[0])
		key := typegraph.Follow(typeArgs[1])
		self := typegraph.Follow(instance)
		if indexee == self || key == self {
			return ok(ctx.Builtins.Never)
		}
		if p := pendingNode(indexee, ctx); p != nil {
			return blockedOn(p)
		}
		if p := pendingNode(key, ctx); p != nil {
			return blockedOn(p)
		}

		nf := ctx.Normalizer.Normalize(indexee)
		if nf == nil {
			return blockedUnknown()
		}
		if nf.ShouldSuppressErrors() {
			return ok(ctx.Builtins.Any)
		}
		if nf.HasNonTableParts() || nf.HasNil || nf.HasTopTable() {
			return erroneous(fmt.Sprintf("type %s cannot be indexed, so %s<%s, %s> is invalid", indexee, name, indexee, key))
		}
		if raw && nf.HasExternTypes() {
			return erroneous(fmt.Sprintf("%s cannot access properties of external type %s", name, indexee))
		}
		if len(nf.Tables) == 0 && len(nf.Externs) == 0 {
			return erroneous(fmt.Sprintf("type %s cannot be indexed, so %s<%s, %s> is invalid", indexee, name, indexee, key))
		}

		// A union key resolves each option independently; every option
		// must resolve on every component.
		keys := []*typegraph.Type{key}
		if u, isUnion := key.Content().(typegraph.Union); isUnion {
			keys = u.Options
		}

		var results []*typegraph.Type
		var components []*typegraph.Type
		components = append(components, nf.Tables...)
		components = append(components, nf.Externs...)
		for _, component := range components {
			for _, k := range keys {
				k = typegraph.Follow(k)
				if p := pendingNode(k, ctx); p != nil {
					return blockedOn(p)
				}
				outcome := indexInto(component, k, raw, ctx, 0)
				if outcome.Status != StatusOk {
					return outcome
				}
				if outcome.Result != nil {
					results = append(results, outcome.Result)
				}
			}
		}
		if len(results) == 0 {
			return erroneous(fmt.Sprintf("type %s does not have a property matching %s", indexee, key))
		}

		result := results[0]
		for _, r := range results[1:] {
			simplified := ctx.Normalizer.SimplifyUnion(result, r)
			if len(simplified.Blocked) > 0 {
				return blockedOn(simplified.Blocked...)
			}
			result = simplified.Result
		}
		return ok(result)
	}
}

const indexChainLimit = 100

// indexInto resolves one key on one table-like component, chasing
// __index chains unless raw access was requested.
func indexInto(component, key *typegraph.Type, raw bool, ctx *Context, depth int) Outcome {
	if depth > indexChainLimit {
		return erroneous("__index chain is too long to resolve")
	}
	component = typegraph.Follow(component)

	switch c := component.Content().(type) {
	case typegraph.Table:
		if result, found := searchPropsAndIndexer(c.Props, c.Indexer, key, ctx); found {
			return result
		}
	case typegraph.Metatable:
		inner := indexInto(c.Table, key, raw, ctx, depth+1)
		if inner.Status != StatusOk || inner.Result != nil {
			return inner
		}
		if !raw {
			if idx, found := ctx.Normalizer.FindMetatableEntry(component, "__index"); found {
				return resolveIndexMetamethod(idx, component, key, ctx, depth)
			}
		}
		return Outcome{Status: StatusOk}
	case typegraph.Extern:
		cur := component
		for i := 0; i < indexChainLimit; i++ {
			ext, isExtern := typegraph.Follow(cur).Content().(typegraph.Extern)
			if !isExtern {
				break
			}
			if result, found := searchPropsAndIndexer(ext.Props, ext.Indexer, key, ctx); found {
				return result
			}
			if ext.Parent == nil {
				break
			}
			cur = ext.Parent
		}
		if !raw {
			if idx, found := ctx.Normalizer.FindMetatableEntry(component, "__index"); found {
				return resolveIndexMetamethod(idx, component, key, ctx, depth)
			}
		}
		return Outcome{Status: StatusOk}
	case typegraph.Intersection:
		for _, part := range c.Parts {
			outcome := indexInto(part, key, raw, ctx, depth+1)
			if outcome.Status != StatusOk || outcome.Result != nil {
				return outcome
			}
		}
		return Outcome{Status: StatusOk}
	}

	if !raw {
		if idx, found := ctx.Normalizer.FindMetatableEntry(component, "__index"); found {
			return resolveIndexMetamethod(idx, component, key, ctx, depth)
		}
	}
	// No result and no error: the caller decides whether absence is
	// fatal.
	return Outcome{Status: StatusOk}
}

// searchPropsAndIndexer looks the key up in a property map, then
// against an indexer. The second return is false when neither matched.
func searchPropsAndIndexer(props map[string]typegraph.Prop, indexer *typegraph.Indexer, key *typegraph.Type, ctx *Context) (Outcome, bool) {
	if s, isSingleton := key.Content().(typegraph.Singleton); isSingleton {
		if str, isString := s.Value.(typegraph.StringSingleton); isString {
			if prop, present := props[str.Value]; present {
				ty := prop.Type()
				if ty == nil {
					return erroneous(fmt.Sprintf("property %q is write-only", str.Value)), true
				}
				if p := pendingNode(ty, ctx); p != nil {
					return blockedOn(p), true
				}
				return ok(typegraph.Follow(ty)), true
			}
		}
	}
	if indexer != nil && ctx.Normalizer.IsSubtype(key, indexer.IndexType) {
		if p := pendingNode(indexer.IndexResultType, ctx); p != nil {
			return blockedOn(p), true
		}
		return ok(typegraph.Follow(indexer.IndexResultType)), true
	}
	return Outcome{}, false
}

// resolveIndexMetamethod follows one __index hop: a table-typed entry
// is indexed recursively, a function-typed one is solved as a call of
// (indexee, key).
func resolveIndexMetamethod(idx, indexee, key *typegraph.Type, ctx *Context, depth int) Outcome {
	idx = typegraph.Follow(idx)
	if p := pendingNode(idx, ctx); p != nil {
		return blockedOn(p)
	}
	switch idx.Content().(type) {
	case typegraph.Function:
		return solveMetamethodCall(idx, []*typegraph.Type{indexee, key}, ctx)
	case typegraph.Table, typegraph.Metatable, typegraph.Extern, typegraph.Intersection:
		return indexInto(idx, key, false, ctx, depth+1)
	}
	return erroneous("__index metamethod is neither a table nor a function")
}
