package predicate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType classifies a lexer token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenOperator
	TokenKeyword
	TokenSeparator
	TokenLParen
	TokenRParen
	TokenStar
	TokenSemicolon
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIdent:     "identifier",
	TokenNumber:    "number",
	TokenString:    "string",
	TokenOperator:  "operator",
	TokenKeyword:   "keyword",
	TokenSeparator: "separator",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenStar:      "*",
	TokenSemicolon: ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "unknown"
}

// Token is a lexical token. Pos and End are byte offsets into the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// Is reports whether the token is the given keyword.
func (t Token) Is(keyword string) bool {
	return t.Type == TokenKeyword && t.Value == keyword
}

var keywords = map[string]bool{
	"SELECT": true,
	"COUNT":  true,
	"FROM":   true,
	"WHERE":  true,
	"AND":    true,
	"OR":     true,
	"INNER":  true,
	"JOIN":   true,
	"ON":     true,
	"AS":     true,
	"IS":     true,
	"NOT":    true,
	"NULL":   true,
}

// Tokenize splits input into tokens. sep is the table-list separator; it is
// reported as TokenSeparator even when it is a whitespace character.
// The returned slice always ends with a TokenEOF.
func Tokenize(input string, sep rune) ([]Token, error) {
	l := &lexer{input: input, sep: sep}
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

type lexer struct {
	input string
	pos   int
	sep   rune
}

func (l *lexer) peek(offset int) rune {
	p := l.pos
	for i := 0; i < offset; i++ {
		if p >= len(l.input) {
			return 0
		}
		_, w := utf8.DecodeRuneInString(l.input[p:])
		p += w
	}
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *lexer) advance() rune {
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
	return r
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r := l.peek(0)
		if r == l.sep || !unicode.IsSpace(r) {
			return
		}
		l.advance()
	}
}

func (l *lexer) next() (Token, error) {
	l.skipWhitespace()
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start, End: start}, nil
	}

	ch := l.peek(0)
	emit := func(t TokenType, value string) (Token, error) {
		return Token{Type: t, Value: value, Pos: start, End: l.pos}, nil
	}

	switch {
	case ch == l.sep:
		l.advance()
		return emit(TokenSeparator, string(ch))
	case ch == '(':
		l.advance()
		return emit(TokenLParen, "(")
	case ch == ')':
		l.advance()
		return emit(TokenRParen, ")")
	case ch == '*':
		l.advance()
		return emit(TokenStar, "*")
	case ch == ';':
		l.advance()
		return emit(TokenSemicolon, ";")
	case ch == '=':
		l.advance()
		return emit(TokenOperator, string(OpEq))
	case ch == '!':
		if l.peek(1) != '=' {
			return Token{}, &LexError{Pos: start, Char: ch}
		}
		l.advance()
		l.advance()
		return emit(TokenOperator, string(OpNe))
	case ch == '<':
		l.advance()
		switch l.peek(0) {
		case '=':
			l.advance()
			return emit(TokenOperator, string(OpLe))
		case '>':
			l.advance()
			return emit(TokenOperator, string(OpNe))
		}
		return emit(TokenOperator, string(OpLt))
	case ch == '>':
		l.advance()
		if l.peek(0) == '=' {
			l.advance()
			return emit(TokenOperator, string(OpGe))
		}
		return emit(TokenOperator, string(OpGt))
	case ch == '\'' || ch == '"':
		s, err := l.readString(ch)
		if err != nil {
			return Token{}, err
		}
		return emit(TokenString, s)
	case isDigit(ch) || (ch == '.' && isDigit(l.peek(1))):
		return emit(TokenNumber, l.readNumber())
	case (ch == '-' || ch == '+') && (isDigit(l.peek(1)) || (l.peek(1) == '.' && isDigit(l.peek(2)))):
		return emit(TokenNumber, l.readNumber())
	case isIdentStart(ch):
		word := l.readIdentifier()
		if upper := strings.ToUpper(word); keywords[upper] {
			return emit(TokenKeyword, upper)
		}
		return emit(TokenIdent, word)
	}

	return Token{}, &LexError{Pos: start, Char: ch}
}

// readString reads a quoted literal. A doubled quote inside the literal is an
// escaped quote.
func (l *lexer) readString(quote rune) (string, error) {
	start := l.pos
	l.advance() // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		r := l.advance()
		if r == quote {
			if l.peek(0) == quote {
				l.advance()
				b.WriteRune(quote)
				continue
			}
			return b.String(), nil
		}
		b.WriteRune(r)
	}
	return "", &LexError{Pos: start, Char: quote}
}

func (l *lexer) readNumber() string {
	start := l.pos
	if r := l.peek(0); r == '-' || r == '+' {
		l.advance()
	}
	for isDigit(l.peek(0)) {
		l.advance()
	}
	if l.peek(0) == '.' {
		l.advance()
		for isDigit(l.peek(0)) {
			l.advance()
		}
	}
	if r := l.peek(0); r == 'e' || r == 'E' {
		next := l.peek(1)
		if isDigit(next) || ((next == '-' || next == '+') && isDigit(l.peek(2))) {
			l.advance()
			l.advance()
			for isDigit(l.peek(0)) {
				l.advance()
			}
		}
	}
	return l.input[start:l.pos]
}

func (l *lexer) readIdentifier() string {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek(0)) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
