package reduce

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

// tryGuess proposes a plausible result for an instance flagged as a
// guess candidate by traversal depth. Guessing is best-effort and not
// sound; it exists to break pathological nesting, never to replace a
// reduction that could still happen. Returns whether a guess was
// applied.
func (r *reducer) tryGuess(instance *typegraph.Type, fi *typegraph.FunctionInstance) bool {
	if r.ctx.Limits.GuesserDepth < 0 {
		return false
	}
	if !r.col.guessCandidates.Contains(instance) {
		return false
	}

	guess := guessResult(fi, r.ctx)
	if guess == nil {
		return false
	}
	r.ctx.trace("guessed", "operator", fi.Operator, "result", guess.String())

	fi.State = typegraph.StateSolved
	instance.SetContent(typegraph.Bound{To: guess})
	r.report.ReducedTypes.Insert(instance)
	r.irreducible.Remove(instance)
	r.report.IrreducibleTypes.Remove(instance)
	return true
}

func guessResult(fi *typegraph.FunctionInstance, ctx *Context) *typegraph.Type {
	switch fi.Operator {
	case OpAdd, OpSub, OpMul, OpDiv, OpIdiv, OpPow, OpMod, OpUnm, OpLen:
		return ctx.Builtins.Number
	case OpConcat:
		return ctx.Builtins.String
	case OpNot, OpLt, OpLe, OpEq:
		return ctx.Builtins.Boolean
	case OpAnd, OpOr, OpUnion:
		// Guess the union of whatever arguments are already concrete.
		var concrete []*typegraph.Type
		for _, arg := range fi.TypeArgs {
			arg = typegraph.Follow(arg)
			switch arg.Content().(type) {
			case typegraph.Blocked, typegraph.PendingExpansion, *typegraph.FunctionInstance:
			default:
				concrete = append(concrete, arg)
			}
		}
		if len(concrete) == 0 {
			return nil
		}
		return ctx.Arena.AddUnion(concrete)
	}
	return nil
}
