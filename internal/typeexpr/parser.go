// Package typeexpr parses a small text syntax for type expressions:
//
//	add<number, number>
//	index<{ name: string }, "name">
//	refine<unknown, ~(false | nil)>
//	{ x: number, [string]: boolean }?
//
// Identifiers name primitives and builtin constants; an identifier
// followed by angle brackets builds a type function instance; a leading
// apostrophe marks a generic parameter.
package typeexpr

import (
	"fmt"

	"github.com/funvibe/typefun/internal/typegraph"
)

// Parse builds a type graph rooted at the parsed expression. New nodes
// go into arena; well-known types come from builtins.
func Parse(input string, arena *typegraph.Arena, builtins *typegraph.Builtins) (*typegraph.Type, error) {
	p := &parser{
		lex:      newLexer(input),
		arena:    arena,
		builtins: builtins,
		generics: map[string]*typegraph.Type{},
	}
	p.nextToken()
	p.nextToken()

	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokEOF {
		return nil, p.errorf("unexpected %q after type expression", p.cur.literal)
	}
	return t, nil
}

type parser struct {
	lex      *lexer
	cur      token
	peek     token
	arena    *typegraph.Arena
	builtins *typegraph.Builtins

	// generics maps parameter names to one node each, so 'T means the
	// same node everywhere in the expression.
	generics map[string]*typegraph.Type
}

func (p *parser) nextToken() {
	p.cur = p.peek
	p.peek = p.lex.nextToken()
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("column %d: %s", p.cur.column, fmt.Sprintf(format, args...))
}

func (p *parser) expect(typ tokenType, what string) error {
	if p.cur.typ != typ {
		return p.errorf("expected %s, got %q", what, p.cur.literal)
	}
	p.nextToken()
	return nil
}

// parseType := intersection ("|" intersection)*
func (p *parser) parseType() (*typegraph.Type, error) {
	first, err := p.parseIntersection()
	if err != nil {
		return nil, err
	}
	options := []*typegraph.Type{first}
	for p.cur.typ == tokPipe {
		p.nextToken()
		next, err := p.parseIntersection()
		if err != nil {
			return nil, err
		}
		options = append(options, next)
	}
	return p.arena.AddUnion(options), nil
}

// parseIntersection := postfix ("&" postfix)*
func (p *parser) parseIntersection() (*typegraph.Type, error) {
	first, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	parts := []*typegraph.Type{first}
	for p.cur.typ == tokAmp {
		p.nextToken()
		next, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		parts = append(parts, next)
	}
	return p.arena.AddIntersection(parts), nil
}

// parsePostfix := atom "?"*
func (p *parser) parsePostfix() (*typegraph.Type, error) {
	t, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokQuestion {
		p.nextToken()
		t = p.arena.AddUnion([]*typegraph.Type{t, p.builtins.Nil})
	}
	return t, nil
}

func (p *parser) parseAtom() (*typegraph.Type, error) {
	switch p.cur.typ {
	case tokIdent:
		return p.parseIdent()
	case tokString:
		lit := p.cur.literal
		p.nextToken()
		return p.arena.AddType(typegraph.Singleton{Value: typegraph.StringSingleton{Value: lit}}), nil
	case tokQuote:
		p.nextToken()
		if p.cur.typ != tokIdent {
			return nil, p.errorf("expected a generic name after '")
		}
		name := p.cur.literal
		p.nextToken()
		if g, seen := p.generics[name]; seen {
			return g, nil
		}
		g := p.arena.AddType(typegraph.Generic{Name: name})
		p.generics[name] = g
		return g, nil
	case tokTilde:
		p.nextToken()
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return p.arena.AddType(typegraph.Negation{Inner: inner}), nil
	case tokLParen:
		p.nextToken()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return t, nil
	case tokLBrace:
		return p.parseTable()
	}
	return nil, p.errorf("unexpected %q in type expression", p.cur.literal)
}

func (p *parser) parseIdent() (*typegraph.Type, error) {
	name := p.cur.literal
	p.nextToken()

	if p.cur.typ == tokLAngle {
		return p.parseInstance(name)
	}

	switch name {
	case "nil":
		return p.builtins.Nil, nil
	case "boolean":
		return p.builtins.Boolean, nil
	case "number":
		return p.builtins.Number, nil
	case "string":
		return p.builtins.String, nil
	case "table":
		return p.builtins.Table, nil
	case "function":
		return p.builtins.Function, nil
	case "never":
		return p.builtins.Never, nil
	case "unknown":
		return p.builtins.Unknown, nil
	case "any":
		return p.builtins.Any, nil
	case "true":
		return p.builtins.True, nil
	case "false":
		return p.builtins.False, nil
	}
	return nil, p.errorf("unknown type name %q", name)
}

func (p *parser) parseInstance(operator string) (*typegraph.Type, error) {
	if err := p.expect(tokLAngle, "'<'"); err != nil {
		return nil, err
	}
	var args []*typegraph.Type
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.typ == tokComma {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(tokRAngle, "'>'"); err != nil {
		return nil, err
	}
	return p.arena.AddInstance(operator, args, nil), nil
}

func (p *parser) parseTable() (*typegraph.Type, error) {
	if err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	props := map[string]typegraph.Prop{}
	var indexer *typegraph.Indexer

	for p.cur.typ != tokRBrace {
		switch p.cur.typ {
		case tokIdent, tokString:
			key := p.cur.literal
			p.nextToken()
			if err := p.expect(tokColon, "':'"); err != nil {
				return nil, err
			}
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			props[key] = typegraph.Prop{ReadType: ty, WriteType: ty}
		case tokLBracket:
			p.nextToken()
			keyType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			if err := p.expect(tokColon, "':'"); err != nil {
				return nil, err
			}
			resultType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if indexer != nil {
				return nil, p.errorf("a table may declare at most one indexer")
			}
			indexer = &typegraph.Indexer{IndexType: keyType, IndexResultType: resultType}
		default:
			return nil, p.errorf("unexpected %q in table type", p.cur.literal)
		}

		if p.cur.typ == tokComma {
			p.nextToken()
		}
	}
	p.nextToken() // consume '}'
	return p.arena.AddType(typegraph.Table{Props: props, Indexer: indexer}), nil
}
