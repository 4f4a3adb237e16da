package reduce

import (
	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

// Reduce runs one reduction pass over every instance reachable from
// entry. With force set, an ambiguous blocked outcome is terminal: no
// further information is coming, so the instance is retired as stuck.
//
// Invoking Reduce while another pass is active on the same shared state
// returns an empty report; nested reduction is disallowed.
func Reduce(entry *typegraph.Type, ctx *Context, force bool) *Report {
	return run(entry, nil, ctx, force)
}

// ReducePack is Reduce for a type-pack entry node.
func ReducePack(entry *typegraph.TypePack, ctx *Context, force bool) *Report {
	return run(nil, entry, ctx, force)
}

func run(entry *typegraph.Type, entryPack *typegraph.TypePack, ctx *Context, force bool) *Report {
	report := NewReport()

	shared := ctx.Normalizer.Shared
	if shared.ReentrantReduction {
		return report
	}
	shared.ReentrantReduction = true
	defer func() { shared.ReentrantReduction = false }()

	ctx.Limits = ctx.Limits.Normalize()
	limits := ctx.Limits
	col := collectInstances(entry, entryPack, limits.GuesserDepth, limits.TraversalLimit)

	r := &reducer{
		ctx:         ctx,
		force:       force,
		col:         col,
		report:      report,
		queuedTypes: set.New[*typegraph.Type](len(col.types)),
		queuedPacks: set.New[*typegraph.TypePack](len(col.packs)),
		irreducible: set.New[*typegraph.Type](2),
		maxSteps:    limits.MaxSteps,
	}
	for _, t := range col.types {
		r.queuedTypes.Insert(t)
	}
	for _, p := range col.packs {
		r.queuedPacks.Insert(p)
	}

	r.loop()
	return report
}

type reducer struct {
	ctx    *Context
	force  bool
	col    *collection
	report *Report

	// queuedTypes/queuedPacks mirror queue membership so an instance is
	// never enqueued twice concurrently.
	queuedTypes *set.Set[*typegraph.Type]
	queuedPacks *set.Set[*typegraph.TypePack]

	// irreducible records instances retired as unsolvable this pass.
	// Membership is monotone: nothing leaves.
	irreducible *set.Set[*typegraph.Type]

	steps    int
	maxSteps int
}

func (r *reducer) loop() {
	for len(r.col.types) > 0 || len(r.col.packs) > 0 {
		if r.steps >= r.maxSteps {
			r.report.addError(DiagTooComplex, r.ctx.Location,
				"type function reduction exceeded %d steps; the type is too complex to resolve", r.maxSteps)
			return
		}
		r.steps++

		if len(r.col.types) > 0 {
			r.stepType()
			continue
		}
		r.stepPack()
	}
}

func (r *reducer) popType() *typegraph.Type {
	t := r.col.types[0]
	r.col.types = r.col.types[1:]
	r.queuedTypes.Remove(t)
	return t
}

func (r *reducer) popPack() *typegraph.TypePack {
	p := r.col.packs[0]
	r.col.packs = r.col.packs[1:]
	r.queuedPacks.Remove(p)
	return p
}

func (r *reducer) pushTypeBack(t *typegraph.Type) {
	if r.queuedTypes.Insert(t) {
		r.col.types = append(r.col.types, t)
	}
}

func (r *reducer) pushTypeFront(t *typegraph.Type) {
	if r.queuedTypes.Insert(t) {
		r.col.types = append([]*typegraph.Type{t}, r.col.types...)
	}
}

func (r *reducer) stepType() {
	instance := r.popType()
	if r.irreducible.Contains(instance) {
		return
	}
	fi, isInstance := instance.Instance()
	if !isInstance || fi.State != typegraph.StateUnsolved {
		// Rebound, already retired, or stuck from an earlier pass;
		// never revisit.
		return
	}

	op, found := LookupOperator(fi.Operator)
	if !found {
		r.report.addError(DiagInternal, r.ctx.Location, "unknown type function operator %q", fi.Operator)
		r.markIrreducible(instance, fi)
		return
	}

	r.ctx.trace("reduce step", "operator", fi.Operator, "instance", instance.String())

	switch r.testParameters(instance, fi, op) {
	case skipDefer:
		r.pushTypeBack(instance)
		return
	case skipStuck, skipIrreducible:
		r.markIrreducible(instance, fi)
		r.tryGuess(instance, fi)
		return
	case skipGeneric:
		// The operator cannot act on a generic argument; retire the
		// instance without a result.
		fi.State = typegraph.StateSolved
		return
	}

	if r.col.guessCandidates.Contains(instance) && r.tryGuess(instance, fi) {
		return
	}

	outcome := r.invoke(op, instance, fi)
	r.applyOutcome(instance, fi, outcome)
}

func (r *reducer) stepPack() {
	instance := r.popPack()
	fi, isInstance := instance.PackInstance()
	if !isInstance || fi.State != typegraph.StateUnsolved {
		return
	}

	op, found := LookupOperator(fi.Operator)
	if !found || op.ReducePack == nil {
		r.report.addError(DiagInternal, r.ctx.Location, "operator %q cannot reduce a type pack", fi.Operator)
		fi.State = typegraph.StateStuck
		return
	}

	switch r.testPackParameters(fi, op) {
	case skipDefer:
		if r.queuedPacks.Insert(instance) {
			r.col.packs = append(r.col.packs, instance)
		}
		return
	case skipStuck, skipIrreducible:
		fi.State = typegraph.StateStuck
		return
	case skipGeneric:
		fi.State = typegraph.StateSolved
		return
	}

	outcome := op.ReducePack(instance, fi.TypeArgs, fi.PackArgs, r.ctx)
	switch {
	case outcome.Status == StatusOk && outcome.ResultPack != nil:
		instance.SetContent(typegraph.PackBound{To: outcome.ResultPack})
		fi.State = typegraph.StateSolved
		r.report.ReducedPacks.Insert(instance)
	case outcome.Status == StatusMaybeBlocked && !r.force:
		for _, b := range outcome.BlockedPacks {
			r.report.BlockedPacks.Insert(b)
		}
		if len(outcome.BlockedPacks) == 0 {
			r.report.BlockedPacks.Insert(instance)
		}
	default:
		fi.State = typegraph.StateStuck
		for _, msg := range outcome.Messages {
			r.report.addError(DiagErroneous, r.ctx.Location, "%s", msg)
		}
	}
}

// invoke runs the reducer, translating a panic into an internal
// diagnostic rather than unwinding through the driver.
func (r *reducer) invoke(op *Operator, instance *typegraph.Type, fi *typegraph.FunctionInstance) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.report.addError(DiagInternal, r.ctx.Location, "reducer %q panicked: %v", op.Name, rec)
			outcome = erroneous()
		}
	}()
	return op.Reduce(instance, fi.TypeArgs, fi.PackArgs, r.ctx)
}

func (r *reducer) applyOutcome(instance *typegraph.Type, fi *typegraph.FunctionInstance, outcome Outcome) {
	switch {
	case outcome.Status == StatusOk && outcome.Result != nil:
		r.bind(instance, fi, outcome.Result)
	case outcome.Status == StatusOk:
		fi.State = typegraph.StateSolved
	case outcome.Status == StatusMaybeBlocked && !r.force:
		for _, b := range outcome.BlockedOn {
			r.report.BlockedTypes.Insert(b)
			if r.ctx.Solver != nil {
				r.ctx.Solver.InheritBlocking(b, instance)
			}
		}
		for _, b := range outcome.BlockedPacks {
			r.report.BlockedPacks.Insert(b)
		}
		if len(outcome.BlockedOn) == 0 && len(outcome.BlockedPacks) == 0 {
			r.report.BlockedTypes.Insert(instance)
		}
	default:
		// Erroneous, or blocked under force.
		r.markIrreducible(instance, fi)
		kind := DiagErroneous
		if outcome.Cancelled {
			kind = DiagCancelled
		}
		if len(outcome.Messages) == 0 {
			r.report.addError(DiagUninhabited, r.ctx.Location,
				"type function instance %s is uninhabited", instance.String())
		}
		for _, msg := range outcome.Messages {
			r.report.addError(kind, r.ctx.Location, "%s", msg)
		}
		r.tryGuess(instance, fi)
	}
}

func (r *reducer) bind(instance *typegraph.Type, fi *typegraph.FunctionInstance, result *typegraph.Type) {
	if !r.ctx.Arena.Owns(instance) {
		r.report.addError(DiagInternal, r.ctx.Location,
			"refusing to rebind node owned by arena %s from pass over arena %s",
			instance.Owner().ID, r.ctx.Arena.ID)
		r.markIrreducible(instance, fi)
		return
	}
	r.ctx.trace("reduced", "operator", fi.Operator, "result", result.String())

	fi.State = typegraph.StateSolved
	instance.SetContent(typegraph.Bound{To: result})
	r.report.ReducedTypes.Insert(instance)

	// The result may contain freshly synthesized instances (union
	// distribution does this); schedule them ahead of existing work.
	fresh := collectInstances(result, nil, r.ctx.Limits.GuesserDepth, r.ctx.Limits.TraversalLimit)
	for i := len(fresh.types) - 1; i >= 0; i-- {
		t := fresh.types[i]
		if nested, ok := t.Instance(); ok && nested.State == typegraph.StateUnsolved {
			r.pushTypeFront(t)
		}
	}
	for _, cyc := range fresh.cyclicTypes.Slice() {
		r.col.cyclicTypes.Insert(cyc)
	}
}

func (r *reducer) markIrreducible(instance *typegraph.Type, fi *typegraph.FunctionInstance) {
	fi.State = typegraph.StateStuck
	r.irreducible.Insert(instance)
	r.report.IrreducibleTypes.Insert(instance)
}

type skipResult int

const (
	skipOkay skipResult = iota
	skipCyclic
	skipStuck
	skipIrreducible
	skipGeneric
	skipDefer
)

// testParameters runs the skip test over every argument in order and
// returns the first result demanding action. Cyclic arguments count as
// okay: cycles must proceed to reduction and resolve by fixpoint.
func (r *reducer) testParameters(instance *typegraph.Type, fi *typegraph.FunctionInstance, op *Operator) skipResult {
	for _, arg := range fi.TypeArgs {
		if res := r.testTypeArg(instance, arg, op); res != skipOkay && res != skipCyclic {
			return res
		}
	}
	for _, arg := range fi.PackArgs {
		if res := r.testPackArg(arg, op); res != skipOkay {
			return res
		}
	}
	return skipOkay
}

// testTypeArg inspects one argument, walking into intersections since
// an unreduced instance hidden in an intersection part blocks just the
// same.
func (r *reducer) testTypeArg(instance, arg *typegraph.Type, op *Operator) skipResult {
	queue := []*typegraph.Type{arg}
	seen := set.New[*typegraph.Type](4)
	for len(queue) > 0 {
		t := typegraph.Follow(queue[0])
		queue = queue[1:]
		if !seen.Insert(t) {
			continue
		}
		if t == instance {
			// Self-reference; the reducer handles it.
			continue
		}
		switch c := t.Content().(type) {
		case *typegraph.FunctionInstance:
			if r.col.cyclicTypes.Contains(t) {
				return skipCyclic
			}
			if c.State == typegraph.StateStuck {
				return skipStuck
			}
			if r.irreducible.Contains(t) {
				return skipIrreducible
			}
			return skipDefer
		case typegraph.Generic:
			if !op.CanReduceGenerics {
				return skipGeneric
			}
		case typegraph.Intersection:
			queue = append(queue, c.Parts...)
		}
	}
	return skipOkay
}

func (r *reducer) testPackArg(arg *typegraph.TypePack, op *Operator) skipResult {
	p := typegraph.FollowPack(arg)
	switch c := p.Content().(type) {
	case *typegraph.PackFunctionInstance:
		if c.State == typegraph.StateStuck {
			return skipStuck
		}
		return skipDefer
	case typegraph.PackGeneric:
		if !op.CanReduceGenerics {
			return skipGeneric
		}
	case typegraph.PackList:
		for _, t := range c.Head {
			if res := r.testTypeArg(nil, t, op); res != skipOkay && res != skipCyclic {
				return res
			}
		}
		if c.Tail != nil {
			return r.testPackArg(c.Tail, op)
		}
	}
	return skipOkay
}

func (r *reducer) testPackParameters(fi *typegraph.PackFunctionInstance, op *Operator) skipResult {
	for _, arg := range fi.TypeArgs {
		if res := r.testTypeArg(nil, arg, op); res != skipOkay && res != skipCyclic {
			return res
		}
	}
	for _, arg := range fi.PackArgs {
		if res := r.testPackArg(arg, op); res != skipOkay {
			return res
		}
	}
	return skipOkay
}
