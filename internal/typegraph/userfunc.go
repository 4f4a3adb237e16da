package typegraph

// FunctionDefinition is the source form of a user-authored type-level
// function. The runtime compiles each definition at most once, keyed by
// the definition's identity.
type FunctionDefinition struct {
	Name string
	// Source is the full script text of the function expression.
	Source string
	// ScopeDepth records where the definition appeared; environment
	// visibility is filtered by it on invocation.
	ScopeDepth int
	// HasErrors is set by the frontend when the definition failed to
	// parse. Such definitions are never evaluated.
	HasErrors bool
}

// TypeAlias is a (possibly parameterized) type alias visible to a
// user-defined function's environment.
type TypeAlias struct {
	TypeParams []*Type
	Type       *Type
}

// EnvFunction is one function dependency visible from a call site.
type EnvFunction struct {
	Name       string
	Definition *FunctionDefinition
	ScopeDepth int
}

// EnvAlias is one type alias dependency visible from a call site.
type EnvAlias struct {
	Name       string
	Alias      *TypeAlias
	ScopeDepth int
}

// UserFuncData carries everything the user-defined function runtime
// needs to evaluate one instance: the definition to call and the
// dependencies reachable from its declaration scope.
type UserFuncData struct {
	Definition   *FunctionDefinition
	EnvFunctions []EnvFunction
	EnvAliases   []EnvAlias
}
