package userfunc

import (
	lua "github.com/yuin/gopher-lua"
)

// installTypeLibrary registers the type userdata metatable and the
// `types` global: constructors and constants scripts use to inspect
// arguments and build results.
func installTypeLibrary(L *lua.LState) {
	mt := L.NewTypeMetatable(typeUDName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), typeMethods))
	L.SetField(mt, "__tostring", L.NewFunction(typeToString))
	L.SetField(mt, "__eq", L.NewFunction(typeEquals))

	types := L.NewTable()
	L.SetField(types, "never", wrap(L, &value{kind: kindNever}))
	L.SetField(types, "unknown", wrap(L, &value{kind: kindUnknown}))
	L.SetField(types, "any", wrap(L, &value{kind: kindAny}))
	L.SetField(types, "boolean", wrap(L, &value{kind: kindBoolean}))
	L.SetField(types, "number", wrap(L, &value{kind: kindNumber}))
	L.SetField(types, "string", wrap(L, &value{kind: kindString}))

	L.SetField(types, "singleton", L.NewFunction(typesSingleton))
	L.SetField(types, "unionof", L.NewFunction(typesUnionOf))
	L.SetField(types, "intersectionof", L.NewFunction(typesIntersectionOf))
	L.SetField(types, "newtable", L.NewFunction(typesNewTable))
	L.SetField(types, "optional", L.NewFunction(typesOptional))

	L.SetGlobal("types", types)
}

var typeMethods = map[string]lua.LGFunction{
	"is":           typeIs,
	"value":        typeValue,
	"components":   typeComponents,
	"properties":   typeProperties,
	"readproperty": typeReadProperty,
	"indexer":      typeIndexer,
	"metatable":    typeMetatable,
}

func checkType(L *lua.LState, n int) *value {
	v := unwrap(L.CheckUserData(n))
	if v == nil {
		L.ArgError(n, "type expected")
	}
	return v
}

func typeIs(L *lua.LState) int {
	v := checkType(L, 1)
	tag := L.CheckString(2)
	kind := v.kind
	// The surface tag for a structural table is just "table".
	if kind == kindTableShape {
		kind = kindTablePrim
	}
	L.Push(lua.LBool(kind == tag))
	return 1
}

func typeValue(L *lua.LState) int {
	v := checkType(L, 1)
	if v.kind != kindSingleton {
		L.Push(lua.LNil)
		return 1
	}
	if v.isBool {
		L.Push(lua.LBool(v.boolValue))
	} else {
		L.Push(lua.LString(v.stringValue))
	}
	return 1
}

func typeComponents(L *lua.LState) int {
	v := checkType(L, 1)
	out := L.NewTable()
	for _, opt := range v.options {
		out.Append(wrap(L, opt))
	}
	L.Push(out)
	return 1
}

func typeProperties(L *lua.LState) int {
	v := checkType(L, 1)
	out := L.NewTable()
	for key, prop := range v.props {
		out.RawSetString(key, wrap(L, prop))
	}
	L.Push(out)
	return 1
}

func typeReadProperty(L *lua.LState) int {
	v := checkType(L, 1)
	key := L.CheckString(2)
	prop, present := v.props[key]
	if !present {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(wrap(L, prop))
	return 1
}

func typeIndexer(L *lua.LState) int {
	v := checkType(L, 1)
	if v.indexK == nil {
		L.Push(lua.LNil)
		return 1
	}
	out := L.NewTable()
	out.RawSetString("index", wrap(L, v.indexK))
	out.RawSetString("readresult", wrap(L, v.indexV))
	L.Push(out)
	return 1
}

func typeMetatable(L *lua.LState) int {
	v := checkType(L, 1)
	if v.meta == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(wrap(L, v.meta))
	return 1
}

func typeToString(L *lua.LState) int {
	v := checkType(L, 1)
	L.Push(lua.LString(describe(v)))
	return 1
}

func typeEquals(L *lua.LState) int {
	a := checkType(L, 1)
	b := checkType(L, 2)
	L.Push(lua.LBool(describe(a) == describe(b)))
	return 1
}

func typesSingleton(L *lua.LState) int {
	switch lv := L.CheckAny(1).(type) {
	case lua.LBool:
		L.Push(wrap(L, &value{kind: kindSingleton, isBool: true, boolValue: bool(lv)}))
	case lua.LString:
		L.Push(wrap(L, &value{kind: kindSingleton, stringValue: string(lv)}))
	case *lua.LNilType:
		L.Push(wrap(L, &value{kind: kindNil}))
	default:
		L.ArgError(1, "singleton expects a boolean, string, or nil")
	}
	return 1
}

func collectTypeArgs(L *lua.LState) []*value {
	n := L.GetTop()
	out := make([]*value, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, checkType(L, i))
	}
	return out
}

func typesUnionOf(L *lua.LState) int {
	options := collectTypeArgs(L)
	if len(options) == 1 {
		L.Push(wrap(L, options[0]))
		return 1
	}
	L.Push(wrap(L, &value{kind: kindUnion, options: options}))
	return 1
}

func typesIntersectionOf(L *lua.LState) int {
	parts := collectTypeArgs(L)
	if len(parts) == 1 {
		L.Push(wrap(L, parts[0]))
		return 1
	}
	L.Push(wrap(L, &value{kind: kindIntersection, options: parts}))
	return 1
}

// types.newtable(props?, indexer?, metatable?) builds a structural
// table. props maps string-singleton type keys (or plain strings) to
// types; indexer is {index=, readresult=}.
func typesNewTable(L *lua.LState) int {
	out := &value{kind: kindTableShape, props: map[string]*value{}}

	if props, isTable := L.Get(1).(*lua.LTable); isTable {
		props.ForEach(func(k, v lua.LValue) {
			key := ""
			switch kv := k.(type) {
			case lua.LString:
				key = string(kv)
			default:
				if tv := unwrap(k); tv != nil && tv.kind == kindSingleton && !tv.isBool {
					key = tv.stringValue
				}
			}
			if key == "" {
				return
			}
			if prop := unwrap(v); prop != nil {
				out.props[key] = prop
			}
		})
	}
	if indexer, isTable := L.Get(2).(*lua.LTable); isTable {
		k := unwrap(indexer.RawGetString("index"))
		v := unwrap(indexer.RawGetString("readresult"))
		if k != nil && v != nil {
			out.indexK, out.indexV = k, v
		}
	}
	if meta := unwrap(L.Get(3)); meta != nil {
		out.meta = meta
	}
	L.Push(wrap(L, out))
	return 1
}

func typesOptional(L *lua.LState) int {
	v := checkType(L, 1)
	L.Push(wrap(L, &value{kind: kindUnion, options: []*value{v, {kind: kindNil}}}))
	return 1
}
