package typeexpr

import (
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIllegal

	tokIdent  // number, keyof, Vector
	tokString // "name"

	tokLAngle   // <
	tokRAngle   // >
	tokLBrace   // {
	tokRBrace   // }
	tokLBracket // [
	tokRBracket // ]
	tokLParen   // (
	tokRParen   // )
	tokComma    // ,
	tokColon    // :
	tokPipe     // |
	tokAmp      // &
	tokQuestion // ?
	tokTilde    // ~
	tokQuote    // ' (generic marker)
)

type token struct {
	typ     tokenType
	literal string
	column  int
}

type lexer struct {
	input        string
	position     int
	readPosition int
	ch           rune
	column       int
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *lexer) nextToken() token {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}

	col := l.column
	var tok token
	switch l.ch {
	case 0:
		tok = token{typ: tokEOF, column: col}
	case '<':
		tok = token{typ: tokLAngle, literal: "<", column: col}
	case '>':
		tok = token{typ: tokRAngle, literal: ">", column: col}
	case '{':
		tok = token{typ: tokLBrace, literal: "{", column: col}
	case '}':
		tok = token{typ: tokRBrace, literal: "}", column: col}
	case '[':
		tok = token{typ: tokLBracket, literal: "[", column: col}
	case ']':
		tok = token{typ: tokRBracket, literal: "]", column: col}
	case '(':
		tok = token{typ: tokLParen, literal: "(", column: col}
	case ')':
		tok = token{typ: tokRParen, literal: ")", column: col}
	case ',':
		tok = token{typ: tokComma, literal: ",", column: col}
	case ':':
		tok = token{typ: tokColon, literal: ":", column: col}
	case '|':
		tok = token{typ: tokPipe, literal: "|", column: col}
	case '&':
		tok = token{typ: tokAmp, literal: "&", column: col}
	case '?':
		tok = token{typ: tokQuestion, literal: "?", column: col}
	case '~':
		tok = token{typ: tokTilde, literal: "~", column: col}
	case '\'':
		tok = token{typ: tokQuote, literal: "'", column: col}
	case '"':
		return l.readString(col)
	default:
		if isIdentStart(l.ch) {
			return l.readIdent(col)
		}
		tok = token{typ: tokIllegal, literal: string(l.ch), column: col}
	}
	l.readChar()
	return tok
}

func (l *lexer) readString(col int) token {
	l.readChar() // consume opening quote
	start := l.position
	for l.ch != '"' && l.ch != 0 {
		l.readChar()
	}
	if l.ch == 0 {
		return token{typ: tokIllegal, literal: l.input[start:], column: col}
	}
	lit := l.input[start:l.position]
	l.readChar() // consume closing quote
	return token{typ: tokString, literal: lit, column: col}
}

func (l *lexer) readIdent(col int) token {
	start := l.position
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return token{typ: tokIdent, literal: l.input[start:l.position], column: col}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
