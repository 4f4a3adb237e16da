package reduce

import (
	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

// collection is the ordered worklist produced by instance collection.
// Types and packs are deques: depth-first discovery pushes new
// instances at the front, so deeper instances come out before their
// containers.
type collection struct {
	types []*typegraph.Type
	packs []*typegraph.TypePack

	// cyclicTypes holds instances reachable from themselves through
	// their own argument graph.
	cyclicTypes *set.Set[*typegraph.Type]

	// guessCandidates holds instances discovered while the live
	// instance-nesting stack was deeper than the guesser threshold.
	guessCandidates *set.Set[*typegraph.Type]
}

func newCollection() *collection {
	return &collection{
		cyclicTypes:     set.New[*typegraph.Type](2),
		guessCandidates: set.New[*typegraph.Type](2),
	}
}

type instanceCollector struct {
	out *collection

	guessDepth     int
	traversalLimit int

	seenTypes *set.Set[*typegraph.Type]
	seenPacks *set.Set[*typegraph.TypePack]
	stack     *set.Set[*typegraph.Type]

	// instanceDepth counts instances currently on the traversal stack.
	instanceDepth int
}

// collectInstances enumerates the type-function instances reachable
// from entry (a type, a pack, or both). Exhausting the traversal depth
// is recoverable: the collector returns an empty collection and the
// caller treats the graph as having nothing to reduce.
func collectInstances(entry *typegraph.Type, entryPack *typegraph.TypePack, guessDepth, traversalLimit int) *collection {
	if traversalLimit <= 0 {
		traversalLimit = typegraph.DefaultTraversalLimit
	}
	c := &instanceCollector{
		out:            newCollection(),
		guessDepth:     guessDepth,
		traversalLimit: traversalLimit,
		seenTypes:      set.New[*typegraph.Type](16),
		seenPacks:      set.New[*typegraph.TypePack](4),
		stack:          set.New[*typegraph.Type](16),
	}

	overflow := false
	if entry != nil {
		overflow = !c.visitType(entry, 0)
	}
	if entryPack != nil && !overflow {
		overflow = !c.visitPack(entryPack, 0)
	}
	if overflow {
		return newCollection()
	}
	return c.out
}

// visitType returns false when the traversal limit was exceeded.
func (c *instanceCollector) visitType(t *typegraph.Type, depth int) bool {
	if depth > c.traversalLimit {
		return false
	}
	t = typegraph.Follow(t)

	_, isInstance := t.Content().(*typegraph.FunctionInstance)

	if c.stack.Contains(t) {
		if isInstance {
			c.out.cyclicTypes.Insert(t)
		}
		return true
	}
	if !c.seenTypes.Insert(t) {
		return true
	}

	if isInstance {
		// Front insertion: instances found deeper in the graph reduce
		// before the instances that contain them.
		c.out.types = append([]*typegraph.Type{t}, c.out.types...)
		if c.guessDepth >= 0 && c.instanceDepth > c.guessDepth {
			c.out.guessCandidates.Insert(t)
		}
		c.instanceDepth++
		defer func() { c.instanceDepth-- }()
	}

	// Extern types are closed; their internals never hold reducible
	// instances reachable by this pass.
	if _, isExtern := t.Content().(typegraph.Extern); isExtern {
		return true
	}

	c.stack.Insert(t)
	defer c.stack.Remove(t)

	childTypes, childPacks := typegraph.TypeChildren(t.Content())
	for _, child := range childTypes {
		if !c.visitType(child, depth+1) {
			return false
		}
	}
	for _, child := range childPacks {
		if !c.visitPack(child, depth+1) {
			return false
		}
	}
	return true
}

func (c *instanceCollector) visitPack(p *typegraph.TypePack, depth int) bool {
	if depth > c.traversalLimit {
		return false
	}
	p = typegraph.FollowPack(p)

	if !c.seenPacks.Insert(p) {
		return true
	}

	if _, isInstance := p.Content().(*typegraph.PackFunctionInstance); isInstance {
		c.out.packs = append([]*typegraph.TypePack{p}, c.out.packs...)
	}

	childTypes, childPacks := typegraph.PackChildren(p.Content())
	for _, child := range childTypes {
		if !c.visitType(child, depth+1) {
			return false
		}
	}
	for _, child := range childPacks {
		if !c.visitPack(child, depth+1) {
			return false
		}
	}
	return true
}
