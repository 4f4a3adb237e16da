package normalize

import (
	"github.com/funvibe/typefun/internal/typegraph"
)

// Inhabitance is a three-valued answer about whether a normal form has
// at least one inhabitant.
type Inhabitance int

const (
	Uninhabited Inhabitance = iota
	Inhabited
	InhabitanceUnknown
)

// BoolFacet describes which boolean values a normal form admits.
type BoolFacet int

const (
	BoolNone BoolFacet = iota
	BoolOnlyTrue
	BoolOnlyFalse
	BoolAll
)

// StringFacet describes which strings a normal form admits: either all
// of them, or a finite singleton set.
type StringFacet struct {
	All        bool
	Singletons map[string]struct{}
}

func (f StringFacet) empty() bool {
	return !f.All && len(f.Singletons) == 0
}

// NormalForm is a disjunctive decomposition of a type into primitive
// facets plus lists of structural components. It deliberately covers
// only what the reduction engine consumes; it is not a complete
// semantic normal form.
type NormalForm struct {
	HasUnknown bool
	HasAny     bool
	HasError   bool

	HasNil            bool
	Booleans          BoolFacet
	HasNumber         bool
	Strings           StringFacet
	HasFunctionPrim   bool
	HasPrimitiveTable bool

	Functions []*typegraph.Type
	Tables    []*typegraph.Type
	Externs   []*typegraph.Type

	// HasTyvars is set when a generic or free type contributed to the
	// form; inhabitance is then unknowable locally.
	HasTyvars bool
}

// ShouldSuppressErrors reports whether the type admits an
// error-suppressing component (any or the error type).
func (nf *NormalForm) ShouldSuppressErrors() bool {
	return nf.HasAny || nf.HasError
}

// IsExactlyNumber reports whether the form is precisely the number
// primitive and nothing else.
func (nf *NormalForm) IsExactlyNumber() bool {
	return nf.HasNumber &&
		!nf.HasUnknown && !nf.HasAny && !nf.HasError &&
		!nf.HasNil && nf.Booleans == BoolNone && nf.Strings.empty() &&
		!nf.HasFunctionPrim && !nf.HasPrimitiveTable &&
		len(nf.Functions) == 0 && len(nf.Tables) == 0 && len(nf.Externs) == 0 &&
		!nf.HasTyvars
}

// IsSubtypeOfString reports whether every inhabitant is a string.
func (nf *NormalForm) IsSubtypeOfString() bool {
	return !nf.Strings.empty() &&
		!nf.HasUnknown && !nf.HasAny && !nf.HasError &&
		!nf.HasNil && nf.Booleans == BoolNone && !nf.HasNumber &&
		!nf.HasFunctionPrim && !nf.HasPrimitiveTable &&
		len(nf.Functions) == 0 && len(nf.Tables) == 0 && len(nf.Externs) == 0 &&
		!nf.HasTyvars
}

// IsSubtypeOfBoolean reports whether every inhabitant is a boolean.
func (nf *NormalForm) IsSubtypeOfBoolean() bool {
	return nf.Booleans != BoolNone &&
		!nf.HasUnknown && !nf.HasAny && !nf.HasError &&
		!nf.HasNil && !nf.HasNumber && nf.Strings.empty() &&
		!nf.HasFunctionPrim && !nf.HasPrimitiveTable &&
		len(nf.Functions) == 0 && len(nf.Tables) == 0 && len(nf.Externs) == 0 &&
		!nf.HasTyvars
}

// HasTables reports whether any structural table component is present.
func (nf *NormalForm) HasTables() bool {
	return len(nf.Tables) > 0 || nf.HasPrimitiveTable
}

// HasExternTypes reports whether any extern component is present.
func (nf *NormalForm) HasExternTypes() bool {
	return len(nf.Externs) > 0
}

// HasTopTable reports whether the primitive (top) table type is present.
func (nf *NormalForm) HasTopTable() bool {
	return nf.HasPrimitiveTable
}

// HasNonTableParts reports whether anything other than table and extern
// components contributed to the form. Reducers over structure (keyof,
// index, setmetatable) reject such operands.
func (nf *NormalForm) HasNonTableParts() bool {
	return nf.HasUnknown || nf.HasAny || nf.HasError ||
		nf.HasNil || nf.Booleans != BoolNone || nf.HasNumber || !nf.Strings.empty() ||
		nf.HasFunctionPrim || len(nf.Functions) > 0 ||
		nf.HasTyvars
}
