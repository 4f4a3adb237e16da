package reduce

import (
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/typefun/internal/typegraph"
)

// DiagnosticKind separates transient, terminal, internal, and resource
// failures. Blocked nodes are not diagnostics; they live in the
// report's blocked sets.
type DiagnosticKind int

const (
	// DiagErroneous: an operator determined no valid reduction exists.
	DiagErroneous DiagnosticKind = iota
	// DiagUninhabited: an instance was retired as unsolvable.
	DiagUninhabited
	// DiagTooComplex: the step budget was exhausted.
	DiagTooComplex
	// DiagCancelled: a sandbox deadline or cancellation fired.
	DiagCancelled
	// DiagInternal: a logic invariant was violated. These halt only the
	// current pass.
	DiagInternal
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagErroneous:
		return "erroneous"
	case DiagUninhabited:
		return "uninhabited"
	case DiagTooComplex:
		return "too-complex"
	case DiagCancelled:
		return "cancelled"
	case DiagInternal:
		return "internal"
	}
	return "unknown"
}

// Diagnostic is one reported problem, pinned to the source location the
// reduction pass was started with.
type Diagnostic struct {
	Kind     DiagnosticKind
	Message  string
	Location string
}

func (d Diagnostic) String() string {
	if d.Location == "" {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", d.Location, d.Kind, d.Message)
}

// Report is the outcome of one reduction pass.
type Report struct {
	ReducedTypes *set.Set[*typegraph.Type]
	ReducedPacks *set.Set[*typegraph.TypePack]

	BlockedTypes *set.Set[*typegraph.Type]
	BlockedPacks *set.Set[*typegraph.TypePack]

	IrreducibleTypes *set.Set[*typegraph.Type]

	Errors []Diagnostic
}

func NewReport() *Report {
	return &Report{
		ReducedTypes:     set.New[*typegraph.Type](4),
		ReducedPacks:     set.New[*typegraph.TypePack](2),
		BlockedTypes:     set.New[*typegraph.Type](4),
		BlockedPacks:     set.New[*typegraph.TypePack](2),
		IrreducibleTypes: set.New[*typegraph.Type](2),
	}
}

// Empty reports whether the pass changed nothing and found nothing to
// wait on.
func (r *Report) Empty() bool {
	return r.ReducedTypes.Empty() && r.ReducedPacks.Empty() &&
		r.BlockedTypes.Empty() && r.BlockedPacks.Empty() &&
		r.IrreducibleTypes.Empty() && len(r.Errors) == 0
}

func (r *Report) addError(kind DiagnosticKind, location, format string, args ...any) {
	r.Errors = append(r.Errors, Diagnostic{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
}
