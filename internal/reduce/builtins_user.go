package reduce

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpUser, Reduce: reduceUserFunction})
}

// reduceUserFunction hands the instance to the sandboxed user-function
// runtime. All argument readiness checks beyond the generic skip test
// belong to the runtime: it must scan for unresolved nodes itself,
// since the sandbox can never observe a partially resolved type.
func reduceUserFunction(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	fi, isInstance := instance.Instance()
	if !isInstance || fi.UserFunc == nil {
		return erroneous("user-defined type function instance carries no function data")
	}
	if fi.UserFunc.Definition != nil && fi.UserFunc.Definition.HasErrors {
		return erroneous("user-defined type function did not compile")
	}
	if ctx.Runtime == nil {
		return erroneous("no user-defined type function runtime is available")
	}

	for _, arg := range typeArgs {
		if p := refinablePending(typegraph.Follow(arg), ctx); p != nil {
			return blockedOn(p)
		}
	}
	return ctx.Runtime.Invoke(ctx, instance, fi)
}
