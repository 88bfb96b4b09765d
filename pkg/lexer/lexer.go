package lexer

import (
	"strconv"
	"unicode"

	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/ident"
	"github.com/xplshn/splc/pkg/token"
)

// MaxLiteral is the largest integer literal that fits in a machine word.
const MaxLiteral = 0xFFFFFFFF

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
	names     *ident.Pool
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config, names *ident.Pool) *Lexer {
	if names == nil {
		names = ident.NewPool()
	}
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg, names: names,
	}
}

// Tokenize lexes the whole source; the last token is always EOF.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespaceAndComments()
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if isIdentStart(ch) {
		l.advance()
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if unicode.IsDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine)
	}

	l.advance()
	switch ch {
	case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine), nil
	case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine), nil
	case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine), nil
	case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine), nil
	case '[': return l.makeToken(token.LBracket, "", startPos, startCol, startLine), nil
	case ']': return l.makeToken(token.RBracket, "", startPos, startCol, startLine), nil
	case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine), nil
	case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine), nil
	case '=': return l.makeToken(token.Eq, "", startPos, startCol, startLine), nil
	case '#': return l.makeToken(token.Neq, "", startPos, startCol, startLine), nil
	case '+': return l.makeToken(token.Plus, "", startPos, startCol, startLine), nil
	case '-': return l.makeToken(token.Minus, "", startPos, startCol, startLine), nil
	case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine), nil
	case '/': return l.makeToken(token.Slash, "", startPos, startCol, startLine), nil
	case ':': return l.matchThen('=', token.Assign, token.Colon, startPos, startCol, startLine), nil
	case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine), nil
	case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine), nil
	case '\'':
		if l.cfg.IsFeatureEnabled(config.FeatCharLiterals) {
			return l.charLiteral(startPos, startCol, startLine)
		}
	}

	tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
	return tok, diag.Errorf(diag.LexicalError, tok, "Unexpected character: '%c'", ch)
}

func isIdentStart(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch rune) bool { return isIdentStart(ch) || (ch >= '0' && ch <= '9') }

func isHexDigit(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\f':
			l.advance()
		case '/':
			if l.peekNext() != '/' {
				return
			}
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isIdentPart(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, l.names.Intern(value), startPos, startCol, startLine)
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) (token.Token, error) {
	isHex := false
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		isHex = true
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	// 12abc is one malformed token rather than a number followed by a name
	for isIdentPart(l.peek()) {
		l.advance()
	}

	valueStr := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.IntLit, "", startPos, startCol, startLine)
	if isHex && !l.cfg.IsFeatureEnabled(config.FeatHexLiterals) {
		return tok, diag.Errorf(diag.LexicalError, tok, "Hexadecimal literals are not enabled (use -Fhex-lit)")
	}

	digits, base := valueStr, 10
	if isHex {
		digits, base = valueStr[2:], 16
	}
	val, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		if e, ok := err.(*strconv.NumError); ok && e.Err == strconv.ErrRange {
			return tok, diag.Errorf(diag.LexicalError, tok, "Integer literal out of range: %s", valueStr)
		}
		return tok, diag.Errorf(diag.LexicalError, tok, "Invalid number literal: %s", valueStr)
	}
	if val > MaxLiteral {
		return tok, diag.Errorf(diag.LexicalError, tok, "Integer literal out of range: %s", valueStr)
	}
	tok.Value = strconv.FormatUint(val, 10)
	return tok, nil
}

func (l *Lexer) charLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var val rune
	switch c := l.advance(); c {
	case 0, '\n':
		tok := l.makeToken(token.IntLit, "", startPos, startCol, startLine)
		return tok, diag.Errorf(diag.LexicalError, tok, "Unterminated character literal")
	case '\\':
		escapes := map[rune]rune{'n': '\n', 't': '\t', 'r': '\r', '0': 0, '\\': '\\', '\'': '\''}
		e := l.advance()
		v, ok := escapes[e]
		if !ok {
			tok := l.makeToken(token.IntLit, "", startPos, startCol, startLine)
			return tok, diag.Errorf(diag.LexicalError, tok, "Unrecognized escape sequence '\\%c'", e)
		}
		val = v
	default:
		val = c
	}

	tok := l.makeToken(token.IntLit, "", startPos, startCol, startLine)
	if !l.match('\'') {
		return tok, diag.Errorf(diag.LexicalError, tok, "Unterminated character literal")
	}
	tok.Len = l.pos - startPos
	tok.Value = strconv.FormatInt(int64(val), 10)
	return tok, nil
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}
