package reduce

import (
	"fmt"

	"github.com/funvibe/typefun/internal/normalize"
	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpNot, Reduce: reduceNot})
	register(&Operator{Name: OpLen, Reduce: reduceLen})
	register(&Operator{Name: OpUnm, Reduce: reduceUnm})

	register(&Operator{Name: OpAdd, Reduce: numericBinop(OpAdd, "__add")})
	register(&Operator{Name: OpSub, Reduce: numericBinop(OpSub, "__sub")})
	register(&Operator{Name: OpMul, Reduce: numericBinop(OpMul, "__mul")})
	register(&Operator{Name: OpDiv, Reduce: numericBinop(OpDiv, "__div")})
	register(&Operator{Name: OpIdiv, Reduce: numericBinop(OpIdiv, "__idiv")})
	register(&Operator{Name: OpPow, Reduce: numericBinop(OpPow, "__pow")})
	register(&Operator{Name: OpMod, Reduce: numericBinop(OpMod, "__mod")})

	register(&Operator{Name: OpConcat, Reduce: reduceConcat})
}

func reduceNot(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 1 {
		return badArity(OpNot, 1, len(typeArgs))
	}
	operand := typegraph.Follow(typeArgs[0])
	if operand == typegraph.Follow(instance) {
		return ok(ctx.Builtins.Never)
	}
	if p := pendingNode(operand, ctx); p != nil {
		return blockedOn(p)
	}
	if outcome, distributed := tryDistribute(reduceNot, instance, typeArgs, packArgs, ctx); distributed {
		return outcome
	}

	// Exact truthiness collapses to a singleton; everything else is
	// just boolean.
	if typegraph.IsFalsyDiscriminant(operand) || typegraph.IsNil(operand) {
		return ok(ctx.Builtins.True)
	}
	if s, isSingleton := operand.Content().(typegraph.Singleton); isSingleton {
		if bs, isBool := s.Value.(typegraph.BoolSingleton); isBool {
			if bs.Value {
				return ok(ctx.Builtins.False)
			}
			return ok(ctx.Builtins.True)
		}
		return ok(ctx.Builtins.False)
	}
	return ok(ctx.Builtins.Boolean)
}

func reduceLen(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 1 {
		return badArity(OpLen, 1, len(typeArgs))
	}
	operand := typegraph.Follow(typeArgs[0])
	if operand == typegraph.Follow(instance) {
		return ok(ctx.Builtins.Never)
	}
	if p := pendingNode(operand, ctx); p != nil {
		return blockedOn(p)
	}

	nf := ctx.Normalizer.Normalize(operand)
	if nf == nil {
		return blockedUnknown()
	}
	if nf.ShouldSuppressErrors() {
		return ok(ctx.Builtins.Number)
	}
	if nf.IsSubtypeOfString() {
		return ok(ctx.Builtins.Number)
	}

	if outcome, distributed := tryDistribute(reduceLen, instance, typeArgs, packArgs, ctx); distributed {
		return outcome
	}

	if mm, found := ctx.Normalizer.FindMetatableEntry(operand, "__len"); found {
		outcome := solveMetamethodCall(mm, []*typegraph.Type{operand}, ctx)
		if outcome.Status != StatusErroneous {
			return outcome
		}
	}
	if nf.HasTables() && !nf.HasNonTableParts() && !nf.HasNil {
		return ok(ctx.Builtins.Number)
	}
	return noReduction(OpLen, operand)
}

func reduceUnm(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 1 {
		return badArity(OpUnm, 1, len(typeArgs))
	}
	operand := typegraph.Follow(typeArgs[0])
	if operand == typegraph.Follow(instance) {
		return ok(ctx.Builtins.Never)
	}
	if p := pendingNode(operand, ctx); p != nil {
		return blockedOn(p)
	}

	nf := ctx.Normalizer.Normalize(operand)
	if nf == nil {
		return blockedUnknown()
	}
	if nf.ShouldSuppressErrors() {
		return ok(ctx.Builtins.Any)
	}
	if nf.IsExactlyNumber() {
		return ok(ctx.Builtins.Number)
	}

	if outcome, distributed := tryDistribute(reduceUnm, instance, typeArgs, packArgs, ctx); distributed {
		return outcome
	}

	if mm, found := ctx.Normalizer.FindMetatableEntry(operand, "__unm"); found {
		return solveMetamethodCall(mm, []*typegraph.Type{operand}, ctx)
	}
	return noReduction(OpUnm, operand)
}

// numericBinop builds the reducer shared by the seven arithmetic
// operators; they differ only in name and metamethod.
func numericBinop(name, metamethod string) ReducerFn {
	var self ReducerFn
	self = func(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
		if len(typeArgs) != 2 {
			return badArity(name, 2, len(typeArgs))
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
			return ok(ctx.Builtins.Any)
		}
		if normLhs.IsExactlyNumber() && normRhs.IsExactlyNumber() {
			return ok(ctx.Builtins.Number)
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
		return solveMetamethodCall(mm, []*typegraph.Type{lhs, rhs}, ctx)
	}
	return self
}

func reduceConcat(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 2 {
		return badArity(OpConcat, 2, len(typeArgs))
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
		return ok(ctx.Builtins.Any)
	}
	if concatenable(normLhs) && concatenable(normRhs) {
		return ok(ctx.Builtins.String)
	}

	if outcome, distributed := tryDistribute(reduceConcat, instance, typeArgs, packArgs, ctx); distributed {
		return outcome
	}

	mm, found := ctx.Normalizer.FindMetatableEntry(lhs, "__concat")
	if !found {
		mm, found = ctx.Normalizer.FindMetatableEntry(rhs, "__concat")
	}
	if !found {
		return erroneous(fmt.Sprintf("type function %q has no reduction for operands %s and %s", OpConcat, lhs, rhs))
	}
	return solveMetamethodCall(mm, []*typegraph.Type{lhs, rhs}, ctx)
}

// concatenable: strings and numbers concatenate without a metamethod.
func concatenable(nf *normalize.NormalForm) bool {
	return nf.IsSubtypeOfString() || nf.IsExactlyNumber()
}
