package typegraph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// String renders a stable, compact form of the type for diagnostics and
// tests. Cyclic graphs print a back-reference marker instead of
// recursing forever.
func (t *Type) String() string {
	var sb strings.Builder
	writeType(&sb, t, make(map[*Type]bool), 0)
	return sb.String()
}

func (p *TypePack) String() string {
	var sb strings.Builder
	writePack(&sb, p, make(map[*Type]bool), 0)
	return sb.String()
}

const printDepthLimit = 24

func writeType(sb *strings.Builder, t *Type, onStack map[*Type]bool, depth int) {
	if depth > printDepthLimit {
		sb.WriteString("...")
		return
	}
	t = Follow(t)
	if onStack[t] {
		sb.WriteString("t@cycle")
		return
	}
	onStack[t] = true
	defer delete(onStack, t)

	switch c := t.Content().(type) {
	case Primitive:
		sb.WriteString(c.Kind.String())
	case Singleton:
		switch v := c.Value.(type) {
		case BoolSingleton:
			sb.WriteString(strconv.FormatBool(v.Value))
		case StringSingleton:
			fmt.Fprintf(sb, "%q", v.Value)
		}
	case Table:
		writeTableBody(sb, c.Props, c.Indexer, onStack, depth)
	case Function:
		sb.WriteString("(")
		if c.Params != nil {
			writePack(sb, c.Params, onStack, depth+1)
		}
		sb.WriteString(") -> (")
		if c.Returns != nil {
			writePack(sb, c.Returns, onStack, depth+1)
		}
		sb.WriteString(")")
	case Union:
		for i, opt := range c.Options {
			if i > 0 {
				sb.WriteString(" | ")
			}
			writeType(sb, opt, onStack, depth+1)
		}
	case Intersection:
		for i, part := range c.Parts {
			if i > 0 {
				sb.WriteString(" & ")
			}
			writeType(sb, part, onStack, depth+1)
		}
	case Metatable:
		sb.WriteString("setmetatable(")
		writeType(sb, c.Table, onStack, depth+1)
		sb.WriteString(", ")
		writeType(sb, c.Metatable, onStack, depth+1)
		sb.WriteString(")")
	case Negation:
		sb.WriteString("~")
		switch Follow(c.Inner).Content().(type) {
		case Union, Intersection:
			sb.WriteString("(")
			writeType(sb, c.Inner, onStack, depth+1)
			sb.WriteString(")")
		default:
			writeType(sb, c.Inner, onStack, depth+1)
		}
	case Extern:
		sb.WriteString(c.Name)
	case Generic:
		sb.WriteString("'" + c.Name)
	case Free:
		sb.WriteString("?" + c.Name)
	case Blocked:
		sb.WriteString("*blocked*")
	case PendingExpansion:
		sb.WriteString("*pending-expansion* " + c.Name)
	case Never:
		sb.WriteString("never")
	case Unknown:
		sb.WriteString("unknown")
	case Any:
		sb.WriteString("any")
	case ErrorType:
		sb.WriteString("*error-type*")
	case NoRefine:
		sb.WriteString("*no-refine*")
	case *FunctionInstance:
		sb.WriteString(c.Operator)
		sb.WriteString("<")
		for i, arg := range c.TypeArgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeType(sb, arg, onStack, depth+1)
		}
		for i, arg := range c.PackArgs {
			if i > 0 || len(c.TypeArgs) > 0 {
				sb.WriteString(", ")
			}
			writePack(sb, arg, onStack, depth+1)
		}
		sb.WriteString(">")
	default:
		sb.WriteString("*unknown-node*")
	}
}

func writeTableBody(sb *strings.Builder, props map[string]Prop, indexer *Indexer, onStack map[*Type]bool, depth int) {
	sb.WriteString("{ ")
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	wrote := false
	for _, k := range keys {
		if wrote {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		if ty := props[k].Type(); ty != nil {
			writeType(sb, ty, onStack, depth+1)
		} else {
			sb.WriteString("*no-type*")
		}
		wrote = true
	}
	if indexer != nil {
		if wrote {
			sb.WriteString(", ")
		}
		sb.WriteString("[")
		writeType(sb, indexer.IndexType, onStack, depth+1)
		sb.WriteString("]: ")
		writeType(sb, indexer.IndexResultType, onStack, depth+1)
	}
	sb.WriteString(" }")
}

func writePack(sb *strings.Builder, p *TypePack, onStack map[*Type]bool, depth int) {
	if depth > printDepthLimit {
		sb.WriteString("...")
		return
	}
	p = FollowPack(p)
	switch c := p.Content().(type) {
	case PackList:
		for i, ty := range c.Head {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeType(sb, ty, onStack, depth+1)
		}
		if c.Tail != nil {
			if len(c.Head) > 0 {
				sb.WriteString(", ")
			}
			writePack(sb, c.Tail, onStack, depth+1)
		}
	case PackVariadic:
		sb.WriteString("...")
		writeType(sb, c.Type, onStack, depth+1)
	case PackGeneric:
		sb.WriteString("'" + c.Name + "...")
	case PackBlocked:
		sb.WriteString("*blocked-pack*")
	case *PackFunctionInstance:
		sb.WriteString(c.Operator)
		sb.WriteString("<")
		for i, arg := range c.TypeArgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeType(sb, arg, onStack, depth+1)
		}
		sb.WriteString(">")
	default:
		sb.WriteString("*unknown-pack*")
	}
}
