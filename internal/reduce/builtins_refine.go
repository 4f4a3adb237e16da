package reduce

import (
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpRefine, Reduce: reduceRefine})
	register(&Operator{Name: OpSingleton, Reduce: reduceSingleton})
	register(&Operator{Name: OpWeakOptional, Reduce: reduceWeakOptional})
}

// refine<target, discriminant...> narrows target against each
// discriminant. Discriminants apply in reverse of argument order: the
// solver queues them outermost-first, but refinement composes
// innermost-first.
func reduceRefine(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) < 2 {
		return badArity(OpRefine, 2, len(typeArgs))
	}
	target := scrubSelfReferences(typegraph.Follow(typeArgs[0]), instance, ctx)

	if p := refinablePending(target, ctx); p != nil {
		return blockedOn(p)
	}

	for i := len(typeArgs) - 1; i >= 1; i-- {
		discriminant := typegraph.Follow(typeArgs[i])
		if _, skip := discriminant.Content().(typegraph.NoRefine); skip {
			continue
		}
		if discriminant == typegraph.Follow(instance) {
			continue
		}
		if p := pendingNode(discriminant, ctx); p != nil {
			return blockedOn(p)
		}

		simplified := ctx.Normalizer.SimplifyIntersection(target, discriminant)
		if len(simplified.Blocked) > 0 {
			return blockedOn(simplified.Blocked...)
		}

		result := simplified.Result
		if _, opaque := typegraph.Follow(result).Content().(typegraph.Intersection); opaque && !fastDiscriminant(discriminant) {
			// The structural path could not discharge the intersection;
			// fall back to full normalization.
			if nf := ctx.Normalizer.Normalize(result); nf != nil {
				result = ctx.Normalizer.TypeFromNormal(nf)
			}
		}
		target = typegraph.Follow(result)
	}
	return ok(target)
}

// fastDiscriminant: tables and the truthy/falsy shapes have a dedicated
// structural intersection path and never need the normalization
// fallback.
func fastDiscriminant(d *typegraph.Type) bool {
	if typegraph.IsTruthyDiscriminant(d) || typegraph.IsFalsyDiscriminant(d) {
		return true
	}
	_, isTable := d.Content().(typegraph.Table)
	return isTable
}

// refinablePending finds an unresolved node anywhere in the target that
// refinement would have to see through.
func refinablePending(target *typegraph.Type, ctx *Context) *typegraph.Type {
	var found *typegraph.Type
	_ = typegraph.VisitType(target, 0, typegraph.VisitFuncs{
		Type: func(t *typegraph.Type) bool {
			if found != nil {
				return false
			}
			if p := pendingNode(t, ctx); p != nil {
				found = p
				return false
			}
			// Refinement treats structural leaves as opaque.
			switch t.Content().(type) {
			case typegraph.Table, typegraph.Metatable, typegraph.Function, typegraph.Extern:
				return false
			}
			return true
		},
	})
	return found
}

// scrubSelfReferences removes occurrences of the instance from its own
// target. Left in place they make the refined type grow without bound
// on every pass.
func scrubSelfReferences(target, instance *typegraph.Type, ctx *Context) *typegraph.Type {
	self := typegraph.Follow(instance)
	if target == self {
		return ctx.Builtins.Unknown
	}

	switch c := target.Content().(type) {
	case typegraph.Union:
		kept := make([]*typegraph.Type, 0, len(c.Options))
		changed := false
		for _, opt := range c.Options {
			if typegraph.Follow(opt) == self {
				changed = true
				continue
			}
			kept = append(kept, opt)
		}
		if changed {
			return typegraph.Follow(ctx.Arena.AddUnion(kept))
		}
	case typegraph.Intersection:
		kept := make([]*typegraph.Type, 0, len(c.Parts))
		changed := false
		for _, part := range c.Parts {
			if typegraph.Follow(part) == self {
				changed = true
				continue
			}
			kept = append(kept, part)
		}
		if changed {
			return typegraph.Follow(ctx.Arena.AddIntersection(kept))
		}
	}
	return target
}

// singleton<T> reduces to T when T is already a single-value type, and
// widens to unknown otherwise.
func reduceSingleton(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 1 {
		return badArity(OpSingleton, 1, len(typeArgs))
	}
	operand := typegraph.Follow(typeArgs[0])
	if operand == typegraph.Follow(instance) {
		return ok(ctx.Builtins.Never)
	}
	if p := pendingNode(operand, ctx); p != nil {
		return blockedOn(p)
	}
	if _, isFree := operand.Content().(typegraph.Free); isFree {
		return blockedOn(operand)
	}

	switch operand.Content().(type) {
	case typegraph.Singleton:
		return ok(operand)
	}
	if typegraph.IsNil(operand) || typegraph.IsNever(operand) {
		return ok(operand)
	}
	return ok(ctx.Builtins.Unknown)
}

// weakoptional<T> produces T? unless T is uninhabited, in which case
// only nil remains.
func reduceWeakOptional(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 1 {
		return badArity(OpWeakOptional, 1, len(typeArgs))
	}
	operand := typegraph.Follow(typeArgs[0])
	if operand == typegraph.Follow(instance) {
		return ok(ctx.Builtins.Nil)
	}
	if p := pendingNode(operand, ctx); p != nil {
		return blockedOn(p)
	}

	nf := ctx.Normalizer.Normalize(operand)
	if nf == nil {
		return blockedUnknown()
	}
	if ctx.Normalizer.IsInhabited(nf) == normalize.Uninhabited {
		return ok(ctx.Builtins.Nil)
	}
	if typegraph.IsNil(operand) {
		return ok(operand)
	}
	return ok(ctx.Arena.AddUnion([]*typegraph.Type{operand, ctx.Builtins.Nil}))
}
