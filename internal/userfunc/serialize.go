package userfunc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/funvibe/typefun/internal/typegraph"
)

// value is the sandbox-local representation of a type. Scripts never
// see arena node pointers; serialization deep-copies a type into this
// tree and deserialization rebuilds fresh arena nodes from it.
type value struct {
	kind string

	boolValue   bool
	stringValue string
	isBool      bool

	options []*value          // union, intersection
	props   map[string]*value // table
	indexK  *value
	indexV  *value
	meta    *value
}

const (
	kindNil          = "nil"
	kindBoolean      = "boolean"
	kindNumber       = "number"
	kindString       = "string"
	kindTablePrim    = "table"
	kindFunctionPrim = "function"
	kindSingleton    = "singleton"
	kindUnion        = "union"
	kindIntersection = "intersection"
	kindTableShape   = "tableshape"
	kindNever        = "never"
	kindUnknown      = "unknown"
	kindAny          = "any"
	kindError        = "error"
)

const serializeDepthLimit = 100

var errUnresolved = errors.New("type is not fully resolved")

// serialize converts t into the sandbox representation. Unresolved
// nodes are an error: the blocking scan should have caught them, and
// the sandbox must never observe a partial type.
func serialize(t *typegraph.Type, depth int) (*value, error) {
	if depth > serializeDepthLimit {
		return nil, errors.New("type is too deep to pass to a type function")
	}
	t = typegraph.Follow(t)

	switch c := t.Content().(type) {
	case typegraph.Never:
		return &value{kind: kindNever}, nil
	case typegraph.Unknown:
		return &value{kind: kindUnknown}, nil
	case typegraph.Any:
		return &value{kind: kindAny}, nil
	case typegraph.ErrorType:
		return &value{kind: kindError}, nil
	case typegraph.Primitive:
		switch c.Kind {
		case typegraph.KindNil:
			return &value{kind: kindNil}, nil
		case typegraph.KindBoolean:
			return &value{kind: kindBoolean}, nil
		case typegraph.KindNumber:
			return &value{kind: kindNumber}, nil
		case typegraph.KindString:
			return &value{kind: kindString}, nil
		case typegraph.KindTable:
			return &value{kind: kindTablePrim}, nil
		case typegraph.KindFunction:
			return &value{kind: kindFunctionPrim}, nil
		}
	case typegraph.Singleton:
		switch v := c.Value.(type) {
		case typegraph.BoolSingleton:
			return &value{kind: kindSingleton, isBool: true, boolValue: v.Value}, nil
		case typegraph.StringSingleton:
			return &value{kind: kindSingleton, stringValue: v.Value}, nil
		}
	case typegraph.Union:
		options, err := serializeAll(c.Options, depth+1)
		if err != nil {
			return nil, err
		}
		return &value{kind: kindUnion, options: options}, nil
	case typegraph.Intersection:
		options, err := serializeAll(c.Parts, depth+1)
		if err != nil {
			return nil, err
		}
		return &value{kind: kindIntersection, options: options}, nil
	case typegraph.Table:
		return serializeTable(c.Props, c.Indexer, nil, depth)
	case typegraph.Metatable:
		inner, err := serialize(c.Table, depth+1)
		if err != nil {
			return nil, err
		}
		meta, err := serialize(c.Metatable, depth+1)
		if err != nil {
			return nil, err
		}
		inner.meta = meta
		return inner, nil
	case typegraph.Blocked, typegraph.PendingExpansion, *typegraph.FunctionInstance, typegraph.Free:
		return nil, errUnresolved
	}
	return nil, fmt.Errorf("type %s cannot be passed to a type function", t)
}

func serializeAll(ts []*typegraph.Type, depth int) ([]*value, error) {
	out := make([]*value, 0, len(ts))
	for _, t := range ts {
		v, err := serialize(t, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func serializeTable(props map[string]typegraph.Prop, indexer *typegraph.Indexer, meta *value, depth int) (*value, error) {
	out := &value{kind: kindTableShape, props: map[string]*value{}, meta: meta}
	for key, prop := range props {
		ty := prop.Type()
		if ty == nil {
			continue
		}
		v, err := serialize(ty, depth+1)
		if err != nil {
			return nil, err
		}
		out.props[key] = v
	}
	if indexer != nil {
		k, err := serialize(indexer.IndexType, depth+1)
		if err != nil {
			return nil, err
		}
		v, err := serialize(indexer.IndexResultType, depth+1)
		if err != nil {
			return nil, err
		}
		out.indexK, out.indexV = k, v
	}
	return out, nil
}

// deserialize rebuilds an arena type from the sandbox representation.
func deserialize(v *value, arena *typegraph.Arena, builtins *typegraph.Builtins) (*typegraph.Type, error) {
	switch v.kind {
	case kindNever:
		return builtins.Never, nil
	case kindUnknown:
		return builtins.Unknown, nil
	case kindAny:
		return builtins.Any, nil
	case kindError:
		return builtins.Error, nil
	case kindNil:
		return builtins.Nil, nil
	case kindBoolean:
		return builtins.Boolean, nil
	case kindNumber:
		return builtins.Number, nil
	case kindString:
		return builtins.String, nil
	case kindTablePrim:
		return builtins.Table, nil
	case kindFunctionPrim:
		return builtins.Function, nil
	case kindSingleton:
		if v.isBool {
			if v.boolValue {
				return builtins.True, nil
			}
			return builtins.False, nil
		}
		return arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: v.stringValue}}), nil
	case kindUnion, kindIntersection:
		parts := make([]*typegraph.Type, 0, len(v.options))
		for _, opt := range v.options {
			t, err := deserialize(opt, arena, builtins)
			if err != nil {
				return nil, err
			}
			parts = append(parts, t)
		}
		if v.kind == kindUnion {
			return arena.AddUnion(parts), nil
		}
		return arena.AddIntersection(parts), nil
	case kindTableShape:
		props := make(map[string]typegraph.Prop, len(v.props))
		keys := make([]string, 0, len(v.props))
		for key := range v.props {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			t, err := deserialize(v.props[key], arena, builtins)
			if err != nil {
				return nil, err
			}
			props[key] = typegraph.Prop{ReadType: t, WriteType: t}
		}
		var indexer *typegraph.Indexer
		if v.indexK != nil {
			k, err := deserialize(v.indexK, arena, builtins)
			if err != nil {
				return nil, err
			}
			rv, err := deserialize(v.indexV, arena, builtins)
			if err != nil {
				return nil, err
			}
			indexer = &typegraph.Indexer{IndexType: k, IndexResultType: rv}
		}
		table := arena.AddType(typegraph.Table{Props: props, Indexer: indexer})
		if v.meta != nil {
			mt, err := deserialize(v.meta, arena, builtins)
			if err != nil {
				return nil, err
			}
			return arena.AddType(typegraph.Metatable{Table: table, Metatable: mt}), nil
		}
		return table, nil
	}
	return nil, fmt.Errorf("type function returned a malformed type value (%s)", v.kind)
}

// describe renders a stable textual form of a sandbox value, used for
// __tostring and structural equality inside scripts.
func describe(v *value) string {
	switch v.kind {
	case kindSingleton:
		if v.isBool {
			return fmt.Sprintf("%t", v.boolValue)
		}
		return fmt.Sprintf("%q", v.stringValue)
	case kindUnion, kindIntersection:
		sep := " | "
		if v.kind == kindIntersection {
			sep = " & "
		}
		parts := make([]string, 0, len(v.options))
		for _, opt := range v.options {
			parts = append(parts, describe(opt))
		}
		return strings.Join(parts, sep)
	case kindTableShape:
		keys := make([]string, 0, len(v.props))
		for key := range v.props {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys)+1)
		for _, key := range keys {
			parts = append(parts, key+": "+describe(v.props[key]))
		}
		if v.indexK != nil {
			parts = append(parts, "["+describe(v.indexK)+"]: "+describe(v.indexV))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	return v.kind
}

const typeUDName = "typefun.type"

// wrap boxes a serialized value as Lua userdata carrying the shared
// type metatable.
func wrap(L *lua.LState, v *value) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(typeUDName))
	return ud
}

// unwrap extracts the serialized value from a Lua value, or nil when it
// is not a type userdata.
func unwrap(lv lua.LValue) *value {
	ud, isUD := lv.(*lua.LUserData)
	if !isUD {
		return nil
	}
	v, isValue := ud.Value.(*value)
	if !isValue {
		return nil
	}
	return v
}
