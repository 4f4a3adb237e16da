package reduce

import (
	"fmt"

	"github.com/funvibe/typefun/internal/typegraph"
)

// pendingNode returns t when it is still unresolved (blocked, awaiting
// alias expansion, an unreduced instance, or carrying unresolved
// solver constraints), else nil.
func pendingNode(t *typegraph.Type, ctx *Context) *typegraph.Type {
	t = typegraph.Follow(t)
	switch c := t.Content().(type) {
	case typegraph.Blocked, typegraph.PendingExpansion:
		return t
	case *typegraph.FunctionInstance:
		if c.State == typegraph.StateUnsolved {
			return t
		}
	}
	if ctx.Solver != nil && ctx.Solver.HasUnresolvedConstraints(t) {
		return t
	}
	return nil
}

// badArity is an internal-invariant outcome: the solver handed the
// operator the wrong number of arguments.
func badArity(name string, want, got int) Outcome {
	return erroneous(fmt.Sprintf("type function %q expects %d type arguments, got %d", name, want, got))
}

// selfOrOther resolves a binary operator's operands and detects
// self-reference: an operand that is the instance itself carries no
// information and collapses per-operator.
func resolveBinary(instance *typegraph.Type, typeArgs []*typegraph.Type) (lhs, rhs *typegraph.Type, selfRef bool) {
	lhs = typegraph.Follow(typeArgs[0])
	rhs = typegraph.Follow(typeArgs[1])
	selfRef = lhs == typegraph.Follow(instance) || rhs == typegraph.Follow(instance)
	return lhs, rhs, selfRef
}

func noReduction(name string, operands ...*typegraph.Type) Outcome {
	if len(operands) == 1 {
		return erroneous(fmt.Sprintf("type function %q has no reduction for operand %s", name, operands[0]))
	}
	return erroneous(fmt.Sprintf("type function %q has no reduction for operands %s and %s", name, operands[0], operands[1]))
}
