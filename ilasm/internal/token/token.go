package token

import (
	"strconv"
	"unicode"
)

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	String
	Number
	Label // "$name:" label definition
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Label:
		return "label"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

// Tokenize splits ilasm source into tokens. String tokens hold the
// unquoted value; an unterminated or malformed string yields an error.
func Tokenize(input string) ([]Token, error) {
	s := &scanner{src: []rune(input), line: 1}
	for {
		s.skipBlank()
		if s.pos >= len(s.src) {
			return s.out, nil
		}
		if err := s.next(); err != nil {
			return nil, err
		}
	}
}

type scanner struct {
	src  []rune
	out  []Token
	pos  int
	line int
}

func (s *scanner) peek(off int) rune {
	if s.pos+off < len(s.src) {
		return s.src[s.pos+off]
	}
	return 0
}

func (s *scanner) emit(value string, typ Type) {
	s.out = append(s.out, Token{Value: value, Type: typ, Line: s.line})
}

// skipBlank consumes whitespace and ";;" comments.
func (s *scanner) skipBlank() {
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case c == '\n':
			s.line++
			s.pos++
		case unicode.IsSpace(c):
			s.pos++
		case c == ';' && s.peek(1) == ';':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *scanner) next() error {
	switch c := s.src[s.pos]; {
	case c == '(':
		s.pos++
		s.emit("(", LParen)
	case c == ')':
		s.pos++
		s.emit(")", RParen)
	case c == '"':
		return s.scanString()
	case c == '-' || c == '+' || unicode.IsDigit(c):
		s.scanNumber()
	default:
		s.scanWord()
	}
	return nil
}

func (s *scanner) scanString() error {
	start := s.pos
	for s.pos++; s.pos < len(s.src) && s.src[s.pos] != '"'; s.pos++ {
		if s.src[s.pos] == '\\' {
			s.pos++
		}
		if s.peek(0) == '\n' {
			return &Error{Line: s.line, Msg: "newline in string literal"}
		}
	}
	if s.pos >= len(s.src) {
		return &Error{Line: s.line, Msg: "unterminated string literal"}
	}
	s.pos++
	quoted := string(s.src[start:s.pos])
	value, err := strconv.Unquote(quoted)
	if err != nil {
		return &Error{Line: s.line, Msg: "invalid string literal " + quoted}
	}
	s.emit(value, String)
	return nil
}

// scanNumber accepts decimal, hex and float forms, leaving validation to
// strconv in the parser. A lone sign, and "-inf" or "+inf", are identifiers.
func (s *scanner) scanNumber() {
	start := s.pos
	if c := s.src[s.pos]; c == '-' || c == '+' {
		s.pos++
	}
	for s.pos < len(s.src) && s.numeric() {
		s.pos++
	}
	if s.pos-start == 1 && !unicode.IsDigit(s.src[start]) {
		if s.peek(0) == 'i' && s.peek(1) == 'n' && s.peek(2) == 'f' {
			s.pos += 3
		}
		s.emit(string(s.src[start:s.pos]), Ident)
		return
	}
	s.emit(string(s.src[start:s.pos]), Number)
}

func (s *scanner) numeric() bool {
	c := s.src[s.pos]
	switch {
	case unicode.IsDigit(c), c == '.', c == '_', c == 'x', c == 'X':
		return true
	case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		return true
	case c == '-' || c == '+':
		return s.pos > 0 && (s.src[s.pos-1] == 'e' || s.src[s.pos-1] == 'E')
	}
	return false
}

// scanWord reads an identifier up to whitespace or a delimiter. "$name:"
// becomes a Label holding "$name".
func (s *scanner) scanWord() {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if unicode.IsSpace(c) || c == '(' || c == ')' || c == '"' {
			break
		}
		s.pos++
	}
	value := string(s.src[start:s.pos])
	if len(value) > 2 && value[0] == '$' && value[len(value)-1] == ':' {
		s.emit(value[:len(value)-1], Label)
		return
	}
	s.emit(value, Ident)
}

// Error is a tokenizer error at a source line.
type Error struct {
	Msg  string
	Line int
}

func (e *Error) Error() string {
	return "line " + strconv.Itoa(e.Line) + ": " + e.Msg
}
