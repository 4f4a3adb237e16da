package reduce

import (
	"fmt"

	"github.com/funvibe/typefun/internal/typegraph"
)

// tryDistribute applies op(a|b, c) == op(a,c) | op(b,c) over the first
// union-typed argument. The second return is false when no argument is
// a union. Blocking and errors from any branch fail the whole
// application; a cartesian guard rejects products of union options that
// would explode.
func tryDistribute(fn ReducerFn, instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) (Outcome, bool) {
	unionIndex := -1
	product := 1
	for i, arg := range typeArgs {
		if u, isUnion := typegraph.Follow(arg).Content().(typegraph.Union); isUnion {
			if unionIndex < 0 {
				unionIndex = i
			}
			product *= len(u.Options)
		}
	}
	if unionIndex < 0 {
		return Outcome{}, false
	}
	if product > ctx.Limits.CartesianProductLimit {
		return erroneous(fmt.Sprintf(
			"distributing a type function over its union arguments needs %d applications, exceeding the limit of %d",
			product, ctx.Limits.CartesianProductLimit)), true
	}

	union := typegraph.Follow(typeArgs[unionIndex]).Content().(typegraph.Union)

	var results []*typegraph.Type
	var blocked []*typegraph.Type
	for _, option := range union.Options {
		branchArgs := make([]*typegraph.Type, len(typeArgs))
		copy(branchArgs, typeArgs)
		branchArgs[unionIndex] = option

		outcome := fn(instance, branchArgs, packArgs, ctx)
		switch outcome.Status {
		case StatusOk:
			if outcome.Result != nil {
				results = append(results, outcome.Result)
			}
		case StatusMaybeBlocked:
			blocked = append(blocked, outcome.BlockedOn...)
			if len(outcome.BlockedOn) == 0 {
				return blockedUnknown(), true
			}
		case StatusErroneous:
			return outcome, true
		}
	}
	if len(blocked) > 0 {
		return blockedOn(blocked...), true
	}

	switch len(results) {
	case 0:
		return ok(ctx.Builtins.Never), true
	case 1:
		return ok(results[0]), true
	}

	// Combining the branches is itself a reduction: synthesize a union
	// instance and schedule it rather than unioning eagerly, so
	// simplification gets a chance to collapse the options.
	combined := ctx.Arena.AddInstance(OpUnion, results, nil)
	ctx.pushConstraint(combined)
	return ok(combined), true
}
