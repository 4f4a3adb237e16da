package reduce

import (
	"fmt"

	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpSetMetatable, Reduce: reduceSetMetatable})
	register(&Operator{Name: OpGetMetatable, Reduce: reduceGetMetatable})
}

// metatableLockEntry is the reserved metamethod that marks a metatable
// as protected. Its presence forbids replacement and masks the real
// metatable on read.
const metatableLockEntry = "__metatable"

func reduceSetMetatable(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 2 {
		return badArity(OpSetMetatable, 2, len(typeArgs))
	}
	target := typegraph.Follow(typeArgs[0])
	metatable := typegraph.Follow(typeArgs[1])
	self := typegraph.Follow(instance)
	if target == self || metatable == self {
		return ok(ctx.Builtins.Never)
	}
	if p := pendingNode(target, ctx); p != nil {
		return blockedOn(p)
	}
	if p := pendingNode(metatable, ctx); p != nil {
		return blockedOn(p)
	}

	nf := ctx.Normalizer.Normalize(target)
	if nf == nil {
		return blockedUnknown()
	}
	if nf.ShouldSuppressErrors() {
		return ok(ctx.Builtins.Any)
	}
	if nf.HasNonTableParts() || nf.HasNil || len(nf.Tables) != 1 || len(nf.Externs) > 0 {
		return erroneous(fmt.Sprintf("setmetatable requires a single table type, got %s", target))
	}
	if !metatableShaped(metatable) {
		return erroneous(fmt.Sprintf("setmetatable requires the metatable to be a table type, got %s", metatable))
	}

	tableComponent := typegraph.Follow(nf.Tables[0])
	if _, locked := ctx.Normalizer.FindMetatableEntry(tableComponent, metatableLockEntry); locked {
		return erroneous("cannot change a protected metatable")
	}

	// Re-wrapping an already-wrapped table replaces the metatable
	// rather than nesting.
	if wrapped, isWrapped := tableComponent.Content().(typegraph.Metatable); isWrapped {
		return ok(ctx.Arena.AddType(typegraph.Metatable{Table: wrapped.Table, Metatable: metatable}))
	}
	return ok(ctx.Arena.AddType(typegraph.Metatable{Table: tableComponent, Metatable: metatable}))
}

func metatableShaped(mt *typegraph.Type) bool {
	switch typegraph.Follow(mt).Content().(type) {
	case typegraph.Table, typegraph.Metatable:
		return true
	}
	return false
}

func reduceGetMetatable(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
	if len(typeArgs) != 1 {
		return badArity(OpGetMetatable, 1, len(typeArgs))
	}
	operand := typegraph.Follow(typeArgs[0])
	if operand == typegraph.Follow(instance) {
		return ok(ctx.Builtins.Nil)
	}
	if p := pendingNode(operand, ctx); p != nil {
		return blockedOn(p)
	}
	if outcome, distributed := tryDistribute(reduceGetMetatable, instance, typeArgs, packArgs, ctx); distributed {
		return outcome
	}

	// A protected metatable reads as its lock entry, not as itself.
	if lock, locked := ctx.Normalizer.FindMetatableEntry(operand, metatableLockEntry); locked {
		return ok(lock)
	}
	if mt, has := ctx.Normalizer.MetatableOf(operand); has {
		return ok(mt)
	}

	nf := ctx.Normalizer.Normalize(operand)
	if nf == nil {
		return blockedUnknown()
	}
	if nf.ShouldSuppressErrors() {
		return ok(ctx.Builtins.Any)
	}
	return ok(ctx.Builtins.Nil)
}
