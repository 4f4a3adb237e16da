package reduce

import (
	"fmt"
	"sort"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

func init() {
	register(&Operator{Name: OpKeyof, Reduce: keyofReducer(false)})
	register(&Operator{Name: OpRawKeyof, Reduce: keyofReducer(true)})
}

// keySet is the set of property keys one table-like component exposes.
// all means a string indexer admits every string key.
type keySet struct {
	all  bool
	keys *set.Set[string]
}

func newKeySet() keySet {
	return keySet{keys: set.New[string](8)}
}

func (k *keySet) intersectWith(other keySet) {
	if other.all {
		return
	}
	if k.all {
		k.all = false
		k.keys = other.keys.Copy()
		return
	}
	kept := set.New[string](k.keys.Size())
	for key := range k.keys.Items() {
		if other.keys.Contains(key) {
			kept.Insert(key)
		}
	}
	k.keys = kept
}

func (k *keySet) unionWith(other keySet) {
	if k.all || other.all {
		k.all = true
		return
	}
	for key := range other.keys.Items() {
		k.keys.Insert(key)
	}
}

func keyofReducer(raw bool) ReducerFn {
	name := OpKeyof
	if raw {
		name = OpRawKeyof
	}
	return func(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome {
		if len(typeArgs) != 1 {
			return badArity(name, 1, len(typeArgs))
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
		if nf.HasNonTableParts() || nf.HasNil || nf.HasTopTable() {
			return erroneous(fmt.Sprintf("type %s has no well-defined keys, so %s<%s> is invalid", operand, name, operand))
		}
		if len(nf.Tables) == 0 && len(nf.Externs) == 0 {
			return erroneous(fmt.Sprintf("type %s has no well-defined keys, so %s<%s> is invalid", operand, name, operand))
		}

		// Keys common to every component: a key must be present on all
		// of them to be safely indexable on the whole type.
		common := keySet{all: true}
		first := true
		for _, table := range nf.Tables {
			ks, okKeys := collectKeys(table, raw, 0)
			if !okKeys {
				return erroneous(fmt.Sprintf("type %s has no well-defined keys, so %s<%s> is invalid", operand, name, operand))
			}
			if first {
				common = ks
				first = false
				continue
			}
			common.intersectWith(ks)
		}
		for _, extern := range nf.Externs {
			ks, okKeys := collectKeys(extern, raw, 0)
			if !okKeys {
				return erroneous(fmt.Sprintf("type %s has no well-defined keys, so %s<%s> is invalid", operand, name, operand))
			}
			if first {
				common = ks
				first = false
				continue
			}
			common.intersectWith(ks)
		}

		if common.all {
			return ok(ctx.Builtins.String)
		}
		if common.keys.Empty() {
			return ok(ctx.Builtins.Never)
		}
		names := common.keys.Slice()
		sort.Strings(names)
		options := make([]*typegraph.Type, 0, len(names))
		for _, key := range names {
			options = append(options, ctx.Arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: key}}))
		}
		return ok(ctx.Arena.AddUnion(options))
	}
}

// collectKeys gathers the keys of one table-like component. With raw
// unset, keys reachable through an __index chain count too. The second
// return is false when the component's shape does not expose keys.
func collectKeys(t *typegraph.Type, raw bool, depth int) (keySet, bool) {
	if depth > 100 {
		return newKeySet(), false
	}
	t = typegraph.Follow(t)

	switch c := t.Content().(type) {
	case typegraph.Table:
		ks := newKeySet()
		for key := range c.Props {
			ks.keys.Insert(key)
		}
		if c.Indexer != nil && typegraph.IsString(c.Indexer.IndexType) {
			ks.all = true
		}
		return ks, true
	case typegraph.Metatable:
		ks, okKeys := collectKeys(c.Table, raw, depth+1)
		if !okKeys {
			return ks, false
		}
		if !raw {
			if mt, isTable := typegraph.Follow(c.Metatable).Content().(typegraph.Table); isTable {
				if idx, present := mt.Props["__index"]; present && idx.Type() != nil {
					inherited, okInherited := collectKeys(idx.Type(), raw, depth+1)
					if okInherited {
						ks.unionWith(inherited)
					}
				}
			}
		}
		return ks, true
	case typegraph.Extern:
		ks := newKeySet()
		for key := range c.Props {
			ks.keys.Insert(key)
		}
		if c.Indexer != nil && typegraph.IsString(c.Indexer.IndexType) {
			ks.all = true
		}
		if c.Parent != nil {
			parent, okParent := collectKeys(c.Parent, raw, depth+1)
			if okParent {
				ks.unionWith(parent)
			}
		}
		return ks, true
	case typegraph.Intersection:
		ks := newKeySet()
		for _, part := range c.Parts {
			partKeys, okPart := collectKeys(part, raw, depth+1)
			if !okPart {
				return ks, false
			}
			ks.unionWith(partKeys)
		}
		return ks, true
	}
	return newKeySet(), false
}
