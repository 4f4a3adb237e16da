package typegraph

// PackContent is the interface implemented by every type-pack variant.
type PackContent interface {
	packContent()
}

// PackList is an ordered sequence of types with an optional tail for
// the remainder (variadic or generic).
type PackList struct {
	Head []*Type
	Tail *TypePack
}

// PackVariadic repeats a single type indefinitely.
type PackVariadic struct {
	Type *Type
}

// PackGeneric is a quantified pack parameter.
type PackGeneric struct {
	Name string
}

// PackBlocked is a placeholder for a pack the solver has not produced yet.
type PackBlocked struct{}

// PackBound aliases this pack to another.
type PackBound struct {
	To *TypePack
}

// PackFunctionInstance is the pack analogue of FunctionInstance.
type PackFunctionInstance struct {
	Operator string
	TypeArgs []*Type
	PackArgs []*TypePack
	State    InstanceState
}

func (PackList) packContent()             {}
func (PackVariadic) packContent()         {}
func (PackGeneric) packContent()          {}
func (PackBlocked) packContent()          {}
func (PackBound) packContent()            {}
func (PackFunctionInstance) packContent() {}

// TypePack is a node for multi-value contexts, created by an Arena and
// compared by identity like Type.
type TypePack struct {
	content PackContent
	owner   *Arena
}

func (p *TypePack) Content() PackContent {
	return p.content
}

func (p *TypePack) Owner() *Arena {
	return p.owner
}

func (p *TypePack) SetContent(c PackContent) {
	p.content = c
}

// PackInstance returns the pack function instance content, following
// bounds first.
func (p *TypePack) PackInstance() (*PackFunctionInstance, bool) {
	fi, ok := FollowPack(p).content.(*PackFunctionInstance)
	return fi, ok
}

// FollowPack chases PackBound links to the canonical representative.
func FollowPack(p *TypePack) *TypePack {
	for i := 0; i < maxBoundChain; i++ {
		b, ok := p.content.(PackBound)
		if !ok {
			return p
		}
		p = b.To
	}
	return p
}

// First returns the first type of a pack, or nil when the pack has no
// statically known head.
func First(p *TypePack) *Type {
	p = FollowPack(p)
	switch c := p.content.(type) {
	case PackList:
		if len(c.Head) > 0 {
			return c.Head[0]
		}
		if c.Tail != nil {
			return First(c.Tail)
		}
	case PackVariadic:
		return c.Type
	}
	return nil
}
