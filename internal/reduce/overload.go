package reduce

import (
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

// solveMetamethodCall resolves a metamethod type applied to args and
// extracts its declared return type. The metamethod may be a single
// function or an intersection of overloads; the first overload whose
// parameters admit the arguments wins.
func solveMetamethodCall(mm *typegraph.Type, args []*typegraph.Type, ctx *Context) Outcome {
	mm = typegraph.Follow(mm)

	if p := pendingNode(mm, ctx); p != nil {
		return blockedOn(p)
	}

	switch c := mm.Content().(type) {
	case typegraph.Function:
		return solveOverload(c, args, ctx)
	case typegraph.Intersection:
		var firstFailure *Outcome
		for _, part := range c.Parts {
			part = typegraph.Follow(part)
			if p := pendingNode(part, ctx); p != nil {
				return blockedOn(p)
			}
			fn, isFn := part.Content().(typegraph.Function)
			if !isFn {
				continue
			}
			outcome := solveOverload(fn, args, ctx)
			if outcome.Status == StatusOk || outcome.Status == StatusMaybeBlocked {
				return outcome
			}
			if firstFailure == nil {
				firstFailure = &outcome
			}
		}
		if firstFailure != nil {
			return *firstFailure
		}
		return erroneous("metamethod is not a function")
	case typegraph.Any, typegraph.ErrorType:
		return ok(ctx.Builtins.Any)
	}
	return erroneous("metamethod is not a function")
}

// solveOverload unifies args against one overload's parameters and
// substitutes into its return type. Generic parameters are inferred by
// first use; an argument that would bind a variable to a type
// containing that variable fails the occurs check.
func solveOverload(fn typegraph.Function, args []*typegraph.Type, ctx *Context) Outcome {
	params := packHead(fn.Params)
	if len(params) < len(args) {
		// A shorter parameter list only works when a variadic tail
		// absorbs the rest.
		if !hasVariadicTail(fn.Params) {
			return erroneous(fmt.Sprintf("metamethod expects %d arguments, got %d", len(params), len(args)))
		}
	}

	subst := map[*typegraph.Type]*typegraph.Type{}
	for i, arg := range args {
		if i >= len(params) {
			break
		}
		param := typegraph.Follow(params[i])
		arg = typegraph.Follow(arg)

		switch param.Content().(type) {
		case typegraph.Generic, typegraph.Free:
			if occurs(param, arg) {
				return erroneous("cannot unify a type with a type that contains it")
			}
			if bound, seen := subst[param]; seen {
				if bound != arg && !ctx.Normalizer.IsSubtype(arg, bound) && !ctx.Normalizer.IsSubtype(bound, arg) {
					return erroneous("metamethod type parameter bound to incompatible types")
				}
				continue
			}
			subst[param] = arg
		default:
			if !ctx.Normalizer.IsSubtype(arg, param) {
				return erroneous(fmt.Sprintf("argument %s is not compatible with parameter %s", arg, param))
			}
		}
	}

	ret := typegraph.First(fn.Returns)
	if ret == nil {
		return erroneous("metamethod returns no value")
	}
	return ok(substitute(typegraph.Follow(ret), subst, ctx))
}

func packHead(p *typegraph.TypePack) []*typegraph.Type {
	if p == nil {
		return nil
	}
	p = typegraph.FollowPack(p)
	var head []*typegraph.Type
	for {
		switch c := p.Content().(type) {
		case typegraph.PackList:
			head = append(head, c.Head...)
			if c.Tail == nil {
				return head
			}
			p = typegraph.FollowPack(c.Tail)
		default:
			return head
		}
	}
}

func hasVariadicTail(p *typegraph.TypePack) bool {
	if p == nil {
		return false
	}
	p = typegraph.FollowPack(p)
	for {
		switch c := p.Content().(type) {
		case typegraph.PackVariadic:
			return true
		case typegraph.PackList:
			if c.Tail == nil {
				return false
			}
			p = typegraph.FollowPack(c.Tail)
		default:
			return false
		}
	}
}

// occurs reports whether variable v appears inside t.
func occurs(v, t *typegraph.Type) bool {
	found := false
	_ = typegraph.VisitType(t, 0, typegraph.VisitFuncs{
		Type: func(node *typegraph.Type) bool {
			if node == v {
				found = true
			}
			return !found
		},
	})
	return found
}

// substitute rewrites generics bound during overload solving into the
// inferred argument types. Unbound portions are returned as-is.
func substitute(t *typegraph.Type, subst map[*typegraph.Type]*typegraph.Type, ctx *Context) *typegraph.Type {
	if len(subst) == 0 {
		return t
	}
	return substituteRec(t, subst, ctx, set.New[*typegraph.Type](4))
}

func substituteRec(t *typegraph.Type, subst map[*typegraph.Type]*typegraph.Type, ctx *Context, onStack *set.Set[*typegraph.Type]) *typegraph.Type {
	t = typegraph.Follow(t)
	if replacement, hit := subst[t]; hit {
		return replacement
	}
	if !onStack.Insert(t) {
		return t
	}
	defer onStack.Remove(t)

	switch c := t.Content().(type) {
	case typegraph.Union:
		options := make([]*typegraph.Type, len(c.Options))
		changed := false
		for i, opt := range c.Options {
			options[i] = substituteRec(opt, subst, ctx, onStack)
			changed = changed || options[i] != typegraph.Follow(opt)
		}
		if changed {
			return ctx.Arena.AddUnion(options)
		}
	case typegraph.Intersection:
		parts := make([]*typegraph.Type, len(c.Parts))
		changed := false
		for i, part := range c.Parts {
			parts[i] = substituteRec(part, subst, ctx, onStack)
			changed = changed || parts[i] != typegraph.Follow(part)
		}
		if changed {
			return ctx.Arena.AddIntersection(parts)
		}
	}
	return t
}
