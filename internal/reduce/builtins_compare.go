package reduce

import (
	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpLt, Reduce: orderedCompare(OpLt, "__lt")})
	register(&Operator{Name: OpLe, Reduce: orderedCompare(OpLe, "__le")})
	register(&Operator{Name: OpEq, Reduce: reduceEq})
}

// orderedCompare builds lt/le. A still-free operand compared against a
// number is bound to number on the spot: comparison is the only
// constraint the solver will ever get for it.
func orderedCompare(name, metamethod string) ReducerFn {
	var self ReducerFn
	self = func(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
		if len(typeArgs) != 2 {
			return badArity(name, 2, len(typeArgs))
		}
		lhs, rhs, selfRef := resolveBinary(instance, typeArgs)
		if selfRef {
			return ok(ctx.Builtins.Never)
		}

		if bindFreeAgainstNumber(lhs, rhs, ctx) || bindFreeAgainstNumber(rhs, lhs, ctx) {
			return ok(ctx.Builtins.Boolean)
		}

		if p := pendingNode(lhs, ctx); p != nil {
			return blockedOn(p)
		}
		if p := pendingNode(rhs, ctx); p != nil {
			return blockedOn(p)
		}

		normLhs := ctx.Normalizer.Normalize(lhs)
		normRhs := ctx.Normalizer.Normalize(rhs)
		if normLhs == nil || normRhs == nil {
			return blockedUnknown()
		}
		if normLhs.ShouldSuppressErrors() || normRhs.ShouldSuppressErrors() {
			return ok(ctx.Builtins.Boolean)
		}
		if normLhs.IsExactlyNumber() && normRhs.IsExactlyNumber() {
			return ok(ctx.Builtins.Boolean)
		}
		if normLhs.IsSubtypeOfString() && normRhs.IsSubtypeOfString() {
			return ok(ctx.Builtins.Boolean)
		}

		if outcome, distributed := tryDistribute(self, instance, typeArgs, packArgs, ctx); distributed {
			return outcome
		}

		mm, found := ctx.Normalizer.FindMetatableEntry(lhs, metamethod)
		if !found {
			mm, found = ctx.Normalizer.FindMetatableEntry(rhs, metamethod)
		}
		if !found {
			return noReduction(name, lhs, rhs)
		}
		outcome := solveMetamethodCall(mm, []*typegraph.Type{lhs, rhs}, ctx)
		if outcome.Status == StatusOk && outcome.Result != nil {
			// Comparison metamethods produce a boolean regardless of
			// their declared return type.
			return ok(ctx.Builtins.Boolean)
		}
		return outcome
	}
	return self
}

// bindFreeAgainstNumber binds candidate to number when it is still a
// free variable and the other operand is already exactly number. Only a
// pass driven by an attached solver may mutate a free variable; without
// one the binding would never be propagated.
func bindFreeAgainstNumber(candidate, other *typegraph.Type, ctx *Context) bool {
	if ctx.Solver == nil {
		return false
	}
	if _, isFree := candidate.Content().(typegraph.Free); !isFree {
		return false
	}
	if !typegraph.IsNumber(other) {
		return false
	}
	candidate.SetContent(typegraph.Bound{To: ctx.Builtins.Number})
	return true
}

// eq reduces to boolean when the operands can overlap, to the false
// singleton when they provably cannot (and no __eq overrides that).
func reduceEq(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 2 {
		return badArity(OpEq, 2, len(typeArgs))
	}
	lhs, rhs, selfRef := resolveBinary(instance, typeArgs)
	if selfRef {
		return ok(ctx.Builtins.Never)
	}
	if p := pendingNode(lhs, ctx); p != nil {
		return blockedOn(p)
	}
	if p := pendingNode(rhs, ctx); p != nil {
		return blockedOn(p)
	}

	normLhs := ctx.Normalizer.Normalize(lhs)
	normRhs := ctx.Normalizer.Normalize(rhs)
	if normLhs == nil || normRhs == nil {
		return blockedUnknown()
	}
	if normLhs.ShouldSuppressErrors() || normRhs.ShouldSuppressErrors() {
		return ok(ctx.Builtins.Boolean)
	}

	switch ctx.Normalizer.IsIntersectionInhabited(lhs, rhs) {
	case normalize.Inhabited, normalize.InhabitanceUnknown:
		return ok(ctx.Builtins.Boolean)
	}

	// Disjoint operands: equality can still be user-defined.
	mm, found := ctx.Normalizer.FindMetatableEntry(lhs, "__eq")
	if !found {
		mm, found = ctx.Normalizer.FindMetatableEntry(rhs, "__eq")
	}
	if found {
		outcome := solveMetamethodCall(mm, []*typegraph.Type{lhs, rhs}, ctx)
		if outcome.Status == StatusOk {
			return ok(ctx.Builtins.Boolean)
		}
		return outcome
	}
	return ok(ctx.Builtins.False)
}
