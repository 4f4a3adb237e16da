package reduce

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

// Status classifies a reducer outcome.
type Status int

const (
	// StatusOk: the reduction produced a result, or determined that the
	// instance cannot act and should be retired without one.
	StatusOk Status = iota
	// StatusMaybeBlocked: the reduction is waiting on other nodes.
	StatusMaybeBlocked
	// StatusErroneous: no valid reduction exists.
	StatusErroneous
)

// Outcome is what a reducer hands back to the driver.
//
// Invariants: Result non-nil implies Status == StatusOk; BlockedOn
// non-empty implies Status == StatusMaybeBlocked.
type Outcome struct {
	Result       *typegraph.Type
	ResultPack   *typegraph.TypePack
	Status       Status
	BlockedOn    []*typegraph.Type
	BlockedPacks []*typegraph.TypePack
	Messages     []string

	// Cancelled marks a resource failure (sandbox deadline or external
	// cancellation) so it is reported apart from ordinary errors.
	Cancelled bool
}

func ok(result *typegraph.Type) Outcome {
	return Outcome{Result: result, Status: StatusOk}
}

// retired is an Ok outcome with no result: the instance is finished but
// nothing gets rebound (generic arguments the operator cannot act on).
func retired() Outcome {
	return Outcome{Status: StatusOk}
}

func blockedOn(nodes ...*typegraph.Type) Outcome {
	return Outcome{Status: StatusMaybeBlocked, BlockedOn: nodes}
}

func blockedOnPack(packs ...*typegraph.TypePack) Outcome {
	return Outcome{Status: StatusMaybeBlocked, BlockedPacks: packs}
}

// blockedUnknown reports blocking with no citable node (normalization
// gave up).
func blockedUnknown() Outcome {
	return Outcome{Status: StatusMaybeBlocked}
}

func erroneous(messages ...string) Outcome {
	return Outcome{Status: StatusErroneous, Messages: messages}
}

// ReducerFn evaluates one instance. It must be pure with respect to the
// graph except through the sanctioned binding helpers on Context.
type ReducerFn func(instance *typegraph.Type, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome

// PackReducerFn is the pack analogue of ReducerFn. No builtin operator
// currently reduces packs; the dispatch path exists for user-defined
// operators that do.
type PackReducerFn func(instance *typegraph.TypePack, typeArgs []*typegraph.Type, packArgs []*typegraph.TypePack, ctx *Context) Outcome

// Operator describes one named type-level operator.
type Operator struct {
	Name string

	// CanReduceGenerics permits reduction when an argument is an
	// unresolved generic (the logical operators act on anything).
	CanReduceGenerics bool

	Reduce     ReducerFn
	ReducePack PackReducerFn
}

// Operator names. OpUser marks dispatch to the user-defined runtime.
const (
	OpNot    = "not"
	OpLen    = "len"
	OpUnm    = "unm"
	OpAdd    = "add"
	OpSub    = "sub"
	OpMul    = "mul"
	OpDiv    = "div"
	OpIdiv   = "idiv"
	OpPow    = "pow"
	OpMod    = "mod"
	OpConcat = "concat"

	OpAnd = "and"
	OpOr  = "or"

	OpLt = "lt"
	OpLe = "le"
	OpEq = "eq"

	OpRefine       = "refine"
	OpSingleton    = "singleton"
	OpUnion        = "union"
	OpIntersect    = "intersect"
	OpKeyof        = "keyof"
	OpRawKeyof     = "rawkeyof"
	OpIndex        = "index"
	OpRawGet       = "rawget"
	OpSetMetatable = "setmetatable"
	OpGetMetatable = "getmetatable"
	OpWeakOptional = "weakoptional"

	OpUser = "user"
)

var operators = map[string]*Operator{}

func register(op *Operator) {
	if _, dup := operators[op.Name]; dup {
		panic("reduce: duplicate operator " + op.Name)
	}
	operators[op.Name] = op
}

// LookupOperator resolves an operator by name.
func LookupOperator(name string) (*Operator, bool) {
	op, ok := operators[name]
	return op, ok
}
