package parser

import (
	"strconv"

	"github.com/xplshn/splc/pkg/ast"
	"github.com/xplshn/splc/pkg/diag"
	"github.com/xplshn/splc/pkg/token"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// bailout carries the first syntax error up to Parse.
type bailout struct{ err *diag.Error }

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, current: tokens[0]}
}

// Parse parses a whole program. Parsing stops at the first syntax error.
func (p *Parser) Parse() (prog *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	tok := p.current
	var decls []*ast.Node
	for !p.check(token.EOF) {
		switch {
		case p.check(token.TypeKeyword):
			decls = append(decls, p.parseTypeDecl())
		case p.check(token.Var):
			decls = append(decls, p.parseVarDecl())
		case p.check(token.Proc):
			decls = append(decls, p.parseProcDecl())
		default:
			p.fail(p.current, "Expected 'type', 'var' or 'proc' at top level, found %s.", p.current.Type)
		}
	}
	return ast.NewProgram(tok, decls), nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) fail(tok token.Token, format string, args ...interface{}) {
	panic(bailout{diag.Errorf(diag.SyntaxError, tok, format, args...)})
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.fail(p.current, "%s Found %s.", message, p.current.Type)
	return p.current
}

// Declarations

func (p *Parser) parseTypeDecl() *ast.Node {
	p.expect(token.TypeKeyword, "Expected 'type'.")
	name := p.expect(token.Ident, "Expected a type name after 'type'.")
	p.expect(token.Eq, "Expected '=' after type name.")
	typeExpr := p.parseTypeExpr()
	p.expect(token.Semi, "Expected ';' after type declaration.")
	return ast.NewTypeDecl(name, name.Value, typeExpr)
}

func (p *Parser) parseVarDecl() *ast.Node {
	p.expect(token.Var, "Expected 'var'.")
	name := p.expect(token.Ident, "Expected a variable name after 'var'.")
	p.expect(token.Colon, "Expected ':' after variable name.")
	typeExpr := p.parseTypeExpr()
	p.expect(token.Semi, "Expected ';' after variable declaration.")
	return ast.NewVarDecl(name, name.Value, typeExpr)
}

func (p *Parser) parseProcDecl() *ast.Node {
	p.expect(token.Proc, "Expected 'proc'.")
	name := p.expect(token.Ident, "Expected a procedure name after 'proc'.")
	p.expect(token.LParen, "Expected '(' after procedure name.")

	var params []*ast.Node
	if !p.check(token.RParen) {
		for {
			params = append(params, p.parseParamDecl())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after parameter list.")
	p.expect(token.LBrace, "Expected '{' to open the procedure body.")

	var vars []*ast.Node
	for p.check(token.Var) {
		vars = append(vars, p.parseVarDecl())
	}

	var body []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		body = append(body, p.parseStmt())
	}
	p.expect(token.RBrace, "Expected '}' to close the procedure body.")
	return ast.NewProcDecl(name, name.Value, params, vars, body)
}

func (p *Parser) parseParamDecl() *ast.Node {
	isRef := p.match(token.Ref)
	name := p.expect(token.Ident, "Expected a parameter name.")
	p.expect(token.Colon, "Expected ':' after parameter name.")
	return ast.NewParamDecl(name, name.Value, p.parseTypeExpr(), isRef)
}

func (p *Parser) parseTypeExpr() *ast.Node {
	tok := p.current
	if p.match(token.Ident) {
		return ast.NewNamedTypeExpr(tok, tok.Value)
	}
	if p.match(token.Array) {
		p.expect(token.LBracket, "Expected '[' after 'array'.")
		sizeTok := p.expect(token.IntLit, "Expected the array size.")
		size, err := strconv.ParseInt(sizeTok.Value, 10, 32)
		if err != nil {
			p.fail(sizeTok, "Array size %s is too large.", sizeTok.Value)
		}
		p.expect(token.RBracket, "Expected ']' after array size.")
		p.expect(token.Of, "Expected 'of' after array size.")
		return ast.NewArrayTypeExpr(tok, p.parseTypeExpr(), int(size))
	}
	p.fail(tok, "Expected a type, found %s.", tok.Type)
	return nil
}

// Statements

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Semi):
		return ast.NewEmpty(tok)
	case p.match(token.LBrace):
		var stmts []*ast.Node
		for !p.check(token.RBrace) && !p.check(token.EOF) {
			stmts = append(stmts, p.parseStmt())
		}
		p.expect(token.RBrace, "Expected '}' to close the block.")
		return ast.NewCompound(tok, stmts)
	case p.match(token.If):
		p.expect(token.LParen, "Expected '(' after 'if'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after if condition.")
		then := p.parseStmt()
		var els *ast.Node
		if p.match(token.Else) {
			els = p.parseStmt()
		}
		return ast.NewIf(tok, cond, then, els)
	case p.match(token.While):
		p.expect(token.LParen, "Expected '(' after 'while'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after while condition.")
		return ast.NewWhile(tok, cond, p.parseStmt())
	case p.check(token.Ident):
		if p.peek().Type == token.LParen {
			return p.parseCallStmt()
		}
		target := p.parseVariable()
		assignTok := p.expect(token.Assign, "Expected ':=' or '(' after identifier.")
		value := p.parseExpr()
		p.expect(token.Semi, "Expected ';' after assignment.")
		return ast.NewAssign(assignTok, target, value)
	}
	p.fail(tok, "Expected a statement, found %s.", tok.Type)
	return nil
}

func (p *Parser) parseCallStmt() *ast.Node {
	name := p.expect(token.Ident, "Expected a procedure name.")
	p.expect(token.LParen, "Expected '(' after procedure name.")
	var args []*ast.Node
	if !p.check(token.RParen) {
		for {
			args = append(args, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "Expected ')' after procedure arguments.")
	p.expect(token.Semi, "Expected ';' after procedure call.")
	return ast.NewCall(name, name.Value, args)
}

func (p *Parser) parseVariable() *ast.Node {
	name := p.expect(token.Ident, "Expected a variable name.")
	v := ast.NewNamedVar(name, name.Value)
	for p.check(token.LBracket) {
		tok := p.current
		p.advance()
		index := p.parseExpr()
		p.expect(token.RBracket, "Expected ']' after array index.")
		v = ast.NewArrayAccess(tok, v, index)
	}
	return v
}

// Expressions

var relOps = map[token.Type]ast.Op{
	token.Eq: ast.OpEqu, token.Neq: ast.OpNeq,
	token.Lt: ast.OpLst, token.Lte: ast.OpLse,
	token.Gt: ast.OpGrt, token.Gte: ast.OpGre,
}

func (p *Parser) parseExpr() *ast.Node {
	left := p.parseArith()
	if op, ok := relOps[p.current.Type]; ok {
		tok := p.current
		p.advance()
		right := p.parseArith()
		if _, chained := relOps[p.current.Type]; chained {
			p.fail(p.current, "Comparison operators cannot be chained.")
		}
		return ast.NewBinaryOp(tok, op, left, right)
	}
	return left
}

func (p *Parser) parseArith() *ast.Node {
	left := p.parseTerm()
	for p.check(token.Plus) || p.check(token.Minus) {
		tok := p.current
		op := ast.OpAdd
		if tok.Type == token.Minus {
			op = ast.OpSub
		}
		p.advance()
		left = ast.NewBinaryOp(tok, op, left, p.parseTerm())
	}
	return left
}

func (p *Parser) parseTerm() *ast.Node {
	left := p.parseFactor()
	for p.check(token.Star) || p.check(token.Slash) {
		tok := p.current
		op := ast.OpMul
		if tok.Type == token.Slash {
			op = ast.OpDiv
		}
		p.advance()
		left = ast.NewBinaryOp(tok, op, left, p.parseFactor())
	}
	return left
}

func (p *Parser) parseFactor() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Minus):
		return ast.NewUnaryOp(tok, ast.OpNeg, p.parseFactor())
	case p.match(token.IntLit):
		val, _ := strconv.ParseInt(tok.Value, 10, 64)
		return ast.NewIntLit(tok, val)
	case p.check(token.Ident):
		v := p.parseVariable()
		return ast.NewVarExpr(v.Tok, v)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	}
	p.fail(tok, "Expected an expression, found %s.", tok.Type)
	return nil
}
