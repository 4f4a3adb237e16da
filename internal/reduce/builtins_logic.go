package reduce

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpAnd, CanReduceGenerics: true, Reduce: reduceAnd})
	register(&Operator{Name: OpOr, CanReduceGenerics: true, Reduce: reduceOr})
}

// and<L, R> evaluates to R when L is truthy and to L when falsy, so its
// type is (L & falsy) | R. A self-referential operand carries no
// information and degenerates to the other one.
func reduceAnd(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 2 {
		return badArity(OpAnd, 2, len(typeArgs))
	}
	lhs := typegraph.Follow(typeArgs[0])
	rhs := typegraph.Follow(typeArgs[1])
	self := typegraph.Follow(instance)
	if lhs == self {
		return ok(rhs)
	}
	if rhs == self {
		return ok(lhs)
	}
	if p := pendingNode(lhs, ctx); p != nil {
		return blockedOn(p)
	}
	if p := pendingNode(rhs, ctx); p != nil {
		return blockedOn(p)
	}

	falsyPart := ctx.Normalizer.SimplifyIntersection(lhs, ctx.Builtins.Falsy)
	if len(falsyPart.Blocked) > 0 {
		return blockedOn(falsyPart.Blocked...)
	}
	combined := ctx.Normalizer.SimplifyUnion(falsyPart.Result, rhs)
	if len(combined.Blocked) > 0 {
		return blockedOn(combined.Blocked...)
	}
	return ok(combined.Result)
}

// or<L, R> is the dual: (L & truthy) | R.
func reduceOr(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 2 {
		return badArity(OpOr, 2, len(typeArgs))
	}
	lhs := typegraph.Follow(typeArgs[0])
	rhs := typegraph.Follow(typeArgs[1])
	self := typegraph.Follow(instance)
	if lhs == self {
		return ok(rhs)
	}
	if rhs == self {
		return ok(lhs)
	}
	if p := pendingNode(lhs, ctx); p != nil {
		return blockedOn(p)
	}
	if p := pendingNode(rhs, ctx); p != nil {
		return blockedOn(p)
	}

	truthyPart := ctx.Normalizer.SimplifyIntersection(lhs, ctx.Builtins.Truthy)
	if len(truthyPart.Blocked) > 0 {
		return blockedOn(truthyPart.Blocked...)
	}
	combined := ctx.Normalizer.SimplifyUnion(truthyPart.Result, rhs)
	if len(combined.Blocked) > 0 {
		return blockedOn(combined.Blocked...)
	}
	return ok(combined.Result)
}
