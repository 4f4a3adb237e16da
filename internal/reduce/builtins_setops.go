package reduce

import (
	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpUnion, CanReduceGenerics: true, Reduce: reduceUnion})
	register(&Operator{Name: OpIntersect, CanReduceGenerics: true, Reduce: reduceIntersect})
}

// collectUnionOptions flattens nested unions and already-solved union
// instances into a single option list, deduplicated by identity. A
// pending node aborts collection, returned as the blocker.
func collectUnionOptions(instance *typegraph.Type, args []*typegraph.Type, ctx *Context) (options []*typegraph.Type, blocker *typegraph.Type) {
	seen := set.New[*typegraph.Type](len(args))
	self := typegraph.Follow(instance)

	var walk func(t *typegraph.Type) *typegraph.Type
	walk = func(t *typegraph.Type) *typegraph.Type {
		t = typegraph.Follow(t)
		if t == self || !seen.Insert(t) {
			return nil
		}
		if u, isUnion := t.Content().(typegraph.Union); isUnion {
			for _, opt := range u.Options {
				if b := walk(opt); b != nil {
					return b
				}
			}
			return nil
		}
		if p := pendingNode(t, ctx); p != nil {
			return p
		}
		options = append(options, t)
		return nil
	}

	for _, arg := range args {
		if b := walk(arg); b != nil {
			return nil, b
		}
	}
	return options, nil
}

func reduceUnion(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	options, blocker := collectUnionOptions(instance, typeArgs, ctx)
	if blocker != nil {
		return blockedOn(blocker)
	}
	if len(options) == 0 {
		return ok(ctx.Builtins.Never)
	}

	result := options[0]
	for _, opt := range options[1:] {
		simplified := ctx.Normalizer.SimplifyUnion(result, opt)
		if len(simplified.Blocked) > 0 {
			return blockedOn(simplified.Blocked...)
		}
		result = simplified.Result
	}
	return ok(result)
}

func reduceIntersect(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	self := typegraph.Follow(instance)

	var parts []*typegraph.Type
	for _, arg := range typeArgs {
		arg = typegraph.Follow(arg)
		if arg == self {
			continue
		}
		// no-refine parts contribute nothing to an intersection.
		if _, skip := arg.Content().(typegraph.NoRefine); skip {
			continue
		}
		if p := pendingNode(arg, ctx); p != nil {
			return blockedOn(p)
		}
		parts = append(parts, arg)
	}
	if len(parts) == 0 {
		return ok(ctx.Builtins.Unknown)
	}

	result := parts[0]
	var unintersectable []*typegraph.Type
	for _, part := range parts[1:] {
		simplified := ctx.Normalizer.SimplifyIntersection(result, part)
		if len(simplified.Blocked) > 0 {
			return blockedOn(simplified.Blocked...)
		}
		if typegraph.IsNever(simplified.Result) && !typegraph.IsNever(result) && !typegraph.IsNever(part) {
			// Structurally unintersectable; keep the part explicit
			// rather than collapsing the whole result to never.
			unintersectable = append(unintersectable, part)
			continue
		}
		result = simplified.Result
	}
	if len(unintersectable) > 0 {
		all := append([]*typegraph.Type{result}, unintersectable...)
		return ok(ctx.Arena.AddIntersection(all))
	}
	return ok(result)
}
