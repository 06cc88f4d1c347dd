// Package parser implements Ember's recursive-descent parser.
//
// The parser turns a token stream from pkg/lexer into the AST defined
// by pkg/ast. It uses Pratt-style precedence climbing for expressions
// and a two-token lookahead window (cur/peek) for statement-level
// decisions.
//
// Error handling: the parser accumulates diagnostics rather than
// aborting on the first syntax error, so a single pass can report
// more than one mistake.
package parser

import (
	"strconv"
	"strings"

	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/lexer"
)

// precedence levels, lowest to highest.
const (
	precNone       = iota
	precAssignment // =, +=, -=, *=, /=
	precOr         // ||
	precAnd        // &&
	precEquality   // == !=
	precComparison // < <= > >=
	precAdditive   // + -
	precMultiplicative
	precUnary    // ! - (prefix) ++ -- (prefix)
	precPostfix  // ++ -- (postfix)
	precCall     // (), [], ., new
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenOr:           precOr,
	lexer.TokenAnd:          precAnd,
	lexer.TokenEq:           precEquality,
	lexer.TokenNotEq:        precEquality,
	lexer.TokenLess:         precComparison,
	lexer.TokenLessEq:       precComparison,
	lexer.TokenGreater:      precComparison,
	lexer.TokenGreaterEq:    precComparison,
	lexer.TokenPlus:         precAdditive,
	lexer.TokenMinus:        precAdditive,
	lexer.TokenStar:         precMultiplicative,
	lexer.TokenSlash:        precMultiplicative,
	lexer.TokenPercent:      precMultiplicative,
	lexer.TokenLParen:       precCall,
	lexer.TokenLBracket:     precCall,
	lexer.TokenDot:          precCall,
}

// Diagnostic is a parse-time structured error (spec §4.D "location,
// what-was-expected, what-was-found").
type Diagnostic struct {
	Line     int
	Column   int
	Message  string
	Found    string
}

// Parser holds all state for turning one source buffer into one AST.
type Parser struct {
	src  string
	lex  *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
	errs []Diagnostic
}

// New creates a Parser over src.
func New(src string) *Parser {
	p := &Parser{src: src, lex: lexer.New(src)}
	p.advance()
	p.advance()
	return p
}

// Errors returns every diagnostic accumulated so far.
func (p *Parser) Errors() []Diagnostic { return p.errs }

// Parse consumes the entire token stream and returns the program, or
// nil plus a non-empty Errors() on failure.
func (p *Parser) Parse() (*ast.Program, []Diagnostic) {
	var stmts []ast.Statement
	p.skipSeparators()
	for !p.check(lexer.TokenEOF) {
		if s := p.statement(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipSeparators()
	}
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return ast.NewProgram(1, stmts), nil
}

// ---- token plumbing ----

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
	for p.peek.Type == lexer.TokenError {
		p.errorAt(p.peek, p.peek.Literal)
		p.peek = p.lex.NextToken()
	}
}

func (p *Parser) check(t lexer.TokenType) bool     { return p.cur.Type == t }
func (p *Parser) checkPeek(t lexer.TokenType) bool  { return p.peek.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	tok := p.cur
	if !p.check(t) {
		p.errorAt(p.cur, "expected "+what)
		return tok
	}
	p.advance()
	return tok
}

func (p *Parser) skipSeparators() {
	for p.check(lexer.TokenNewline) || p.check(lexer.TokenSemicolon) {
		p.advance()
	}
}

// endOfStatement accepts any run of newline/semicolon, or EOF/`}` as
// an implicit terminator (spec §4.D "Statement separators are
// semicolons and newlines (either works)").
func (p *Parser) endOfStatement() {
	if p.check(lexer.TokenEOF) || p.check(lexer.TokenRBrace) {
		return
	}
	if p.check(lexer.TokenNewline) || p.check(lexer.TokenSemicolon) {
		p.skipSeparators()
		return
	}
	p.errorAt(p.cur, "expected end of statement")
}

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	found := tok.Literal
	if found == "" {
		found = tok.Type.String()
	}
	p.errs = append(p.errs, Diagnostic{Line: tok.Line, Column: tok.Column, Message: msg, Found: found})
}

// ---- statements ----

func (p *Parser) statement() ast.Statement {
	switch p.cur.Type {
	case lexer.TokenIf:
		return p.ifStatement()
	case lexer.TokenWhile:
		return p.whileStatement()
	case lexer.TokenFor:
		return p.forStatement()
	case lexer.TokenFn:
		return p.fnDecl()
	case lexer.TokenReturn:
		return p.returnStatement()
	case lexer.TokenBreak:
		line := p.cur.Line
		p.advance()
		p.endOfStatement()
		return ast.NewBreakStmt(line)
	case lexer.TokenContinue:
		line := p.cur.Line
		p.advance()
		p.endOfStatement()
		return ast.NewContinueStmt(line)
	case lexer.TokenTry:
		return p.tryStatement()
	case lexer.TokenThrow:
		return p.throwStatement()
	case lexer.TokenClass:
		return p.classDecl()
	case lexer.TokenImport:
		return p.importStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) block() []ast.Statement {
	p.expect(lexer.TokenLBrace, "'{'")
	p.skipSeparators()
	var stmts []ast.Statement
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		if s := p.statement(); s != nil {
			stmts = append(stmts, s)
		}
		p.skipSeparators()
	}
	p.expect(lexer.TokenRBrace, "'}'")
	return stmts
}

func (p *Parser) ifStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	cond := p.expression(precNone)
	then := p.block()
	var els []ast.Statement
	p.skipSeparators()
	if p.match(lexer.TokenElse) {
		if p.check(lexer.TokenIf) {
			els = []ast.Statement{p.ifStatement()}
		} else {
			els = p.block()
		}
	}
	return ast.NewIfStmt(line, cond, then, els)
}

func (p *Parser) whileStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	cond := p.expression(precNone)
	body := p.block()
	return ast.NewWhileStmt(line, cond, body)
}

func (p *Parser) forStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	p.expect(lexer.TokenLParen, "'('")
	var init ast.Statement
	if !p.check(lexer.TokenSemicolon) {
		init = p.expressionStatement()
	} else {
		p.advance()
	}
	var cond ast.Expression
	if !p.check(lexer.TokenSemicolon) {
		cond = p.expression(precNone)
	}
	p.expect(lexer.TokenSemicolon, "';'")
	var step ast.Statement
	if !p.check(lexer.TokenRParen) {
		stepExpr := p.expression(precNone)
		step = &ast.ExpressionStmt{Expr: stepExpr}
	}
	p.expect(lexer.TokenRParen, "')'")
	body := p.block()
	return ast.NewForStmt(line, init, cond, step, body)
}

func (p *Parser) fnDecl() ast.Statement {
	line := p.cur.Line
	p.advance()
	name := p.expect(lexer.TokenIdentifier, "function name").Literal
	params := p.paramList()
	body := p.block()
	return ast.NewFnDecl(line, name, params, body)
}

func (p *Parser) paramList() []string {
	p.expect(lexer.TokenLParen, "'('")
	var params []string
	for !p.check(lexer.TokenRParen) && !p.check(lexer.TokenEOF) {
		params = append(params, p.expect(lexer.TokenIdentifier, "parameter name").Literal)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRParen, "')'")
	return params
}

func (p *Parser) returnStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	var val ast.Expression
	if !p.check(lexer.TokenNewline) && !p.check(lexer.TokenSemicolon) && !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		val = p.expression(precNone)
	}
	p.endOfStatement()
	return ast.NewReturnStmt(line, val)
}

func (p *Parser) tryStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	body := p.block()
	stmt := ast.NewTryStmt(line, body)
	p.skipSeparators()
	if p.match(lexer.TokenCatch) {
		stmt.HasCatch = true
		if p.match(lexer.TokenLParen) {
			stmt.CatchName = p.expect(lexer.TokenIdentifier, "catch binding name").Literal
			p.expect(lexer.TokenRParen, "')'")
		}
		stmt.CatchBody = p.block()
	}
	p.skipSeparators()
	if p.match(lexer.TokenFinally) {
		stmt.HasFinally = true
		stmt.FinallyBody = p.block()
	}
	if !stmt.HasCatch && !stmt.HasFinally {
		p.errorAt(p.cur, "try requires a catch or finally clause")
	}
	return stmt
}

// throwStatement parses both `throw message;` and `throw type, message;`.
// The single-argument form raises a generic "Error", matching the two-
// argument form's own stack contract (OpThrow always pops a type and a
// message) without a second opcode.
func (p *Parser) throwStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	first := p.expression(precComparison + 1)
	if p.match(lexer.TokenComma) {
		msgExpr := p.expression(precNone)
		p.endOfStatement()
		return ast.NewThrowStmt(line, first, msgExpr)
	}
	p.endOfStatement()
	return ast.NewThrowStmt(line, ast.NewStringLit(line, "Error"), first)
}

func (p *Parser) classDecl() ast.Statement {
	line := p.cur.Line
	p.advance()
	name := p.expect(lexer.TokenIdentifier, "class name").Literal
	extends := ""
	if p.match(lexer.TokenExtends) {
		extends = p.expect(lexer.TokenIdentifier, "superclass name").Literal
	}
	p.expect(lexer.TokenLBrace, "'{'")
	p.skipSeparators()
	var methods []*ast.MethodDecl
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		mline := p.cur.Line
		mname := p.expect(lexer.TokenIdentifier, "method name").Literal
		params := p.paramList()
		body := p.block()
		methods = append(methods, ast.NewMethodDecl(mline, mname, params, body))
		p.skipSeparators()
	}
	p.expect(lexer.TokenRBrace, "'}'")
	return ast.NewClassDecl(line, name, extends, methods)
}

func (p *Parser) importStatement() ast.Statement {
	line := p.cur.Line
	p.advance()
	path := p.expect(lexer.TokenString, "import path").Literal
	p.endOfStatement()
	return ast.NewImportStmt(line, path)
}

func (p *Parser) expressionStatement() ast.Statement {
	line := p.cur.Line
	expr := p.expression(precNone)
	p.endOfStatement()
	return ast.NewExpressionStmt(line, expr)
}

// ---- expressions: Pratt precedence climbing ----

func (p *Parser) expression(minPrec int) ast.Expression {
	left := p.unary()
	for {
		prec, ok := precedences[p.cur.Type]
		if !ok || prec < minPrec {
			break
		}
		left = p.infix(left, prec)
	}
	if assignOp, ok := assignOps[p.cur.Type]; ok && minPrec <= precAssignment {
		return p.assignment(left, assignOp)
	}
	return left
}

var assignOps = map[lexer.TokenType]string{
	lexer.TokenAssign:      "=",
	lexer.TokenPlusAssign:  "+=",
	lexer.TokenMinusAssign: "-=",
	lexer.TokenStarAssign:  "*=",
	lexer.TokenSlashAssign: "/=",
}

func (p *Parser) assignment(left ast.Expression, op string) ast.Expression {
	target, ok := left.(ast.AssignTarget)
	if !ok {
		p.errorAt(p.cur, "invalid assignment target")
	}
	line := p.cur.Line
	p.advance()
	value := p.expression(precAssignment)
	return ast.NewAssignExpr(line, target, op, value)
}

func (p *Parser) infix(left ast.Expression, prec int) ast.Expression {
	op := p.cur
	switch op.Type {
	case lexer.TokenAnd, lexer.TokenOr:
		p.advance()
		right := p.expression(prec + 1)
		return ast.NewLogicalExpr(op.Line, op.Literal, left, right)
	case lexer.TokenLParen:
		return p.finishCall(left)
	case lexer.TokenLBracket:
		p.advance()
		key := p.expression(precNone)
		p.expect(lexer.TokenRBracket, "']'")
		return ast.NewIndexExpr(op.Line, left, key)
	case lexer.TokenDot:
		p.advance()
		name := p.expect(lexer.TokenIdentifier, "property or method name").Literal
		if p.check(lexer.TokenLParen) {
			return p.finishInvoke(left, name, op.Line)
		}
		return ast.NewPropertyExpr(op.Line, left, name)
	default:
		p.advance()
		right := p.expression(prec + 1)
		return ast.NewBinaryExpr(op.Line, op.Literal, left, right)
	}
}

func (p *Parser) finishCall(callee ast.Expression) ast.Expression {
	line := p.cur.Line
	args := p.argList()
	return ast.NewCallExpr(line, callee, args)
}

func (p *Parser) finishInvoke(recv ast.Expression, selector string, line int) ast.Expression {
	args := p.argList()
	return ast.NewInvokeExpr(line, recv, selector, args)
}

func (p *Parser) argList() []ast.Expression {
	p.expect(lexer.TokenLParen, "'('")
	var args []ast.Expression
	for !p.check(lexer.TokenRParen) && !p.check(lexer.TokenEOF) {
		args = append(args, p.expression(precNone))
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRParen, "')'")
	return args
}

func (p *Parser) unary() ast.Expression {
	switch p.cur.Type {
	case lexer.TokenBang, lexer.TokenMinus:
		op := p.cur
		p.advance()
		operand := p.unaryPrec()
		return ast.NewUnaryExpr(op.Line, op.Literal, operand)
	case lexer.TokenPlusPlus, lexer.TokenMinusMinus:
		op := p.cur
		p.advance()
		operand := p.unaryPrec()
		delta := "+="
		if op.Type == lexer.TokenMinusMinus {
			delta = "-="
		}
		target, ok := operand.(ast.AssignTarget)
		if !ok {
			p.errorAt(op, "invalid operand for "+op.Literal)
		}
		return ast.NewAssignExpr(op.Line, target, delta, ast.NewNumberLit(op.Line, 1))
	default:
		return p.postfix()
	}
}

func (p *Parser) unaryPrec() ast.Expression {
	return p.expression(precUnary)
}

func (p *Parser) postfix() ast.Expression {
	expr := p.primary()
	for p.check(lexer.TokenPlusPlus) || p.check(lexer.TokenMinusMinus) {
		op := p.cur
		p.advance()
		delta := "+="
		if op.Type == lexer.TokenMinusMinus {
			delta = "-="
		}
		target, ok := expr.(ast.AssignTarget)
		if !ok {
			p.errorAt(op, "invalid operand for "+op.Literal)
			continue
		}
		expr = ast.NewAssignExpr(op.Line, target, delta, &ast.NumberLit{Value: 1})
	}
	return expr
}

func (p *Parser) primary() ast.Expression {
	tok := p.cur
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Literal, 64)
		return &ast.NumberLit{Value: v}
	case lexer.TokenString:
		p.advance()
		return &ast.StringLit{Value: tok.Literal}
	case lexer.TokenInterpString:
		p.advance()
		return p.parseInterpolation(tok)
	case lexer.TokenTrue:
		p.advance()
		return &ast.BoolLit{Value: true}
	case lexer.TokenFalse:
		p.advance()
		return &ast.BoolLit{Value: false}
	case lexer.TokenNil:
		p.advance()
		return &ast.NilLit{}
	case lexer.TokenThis:
		p.advance()
		return &ast.ThisExpr{}
	case lexer.TokenSuper:
		p.advance()
		p.expect(lexer.TokenDot, "'.'")
		sel := p.expect(lexer.TokenIdentifier, "method name").Literal
		return &ast.SuperExpr{Selector: sel}
	case lexer.TokenIdentifier:
		p.advance()
		return ast.NewIdentifier(tok.Line, tok.Literal)
	case lexer.TokenNew:
		p.advance()
		name := p.expect(lexer.TokenIdentifier, "class name").Literal
		args := p.argList()
		return ast.NewNewExpr(tok.Line, name, args)
	case lexer.TokenLParen:
		p.advance()
		inner := p.expression(precNone)
		p.expect(lexer.TokenRParen, "')'")
		return inner
	case lexer.TokenLBracket:
		return p.arrayLit()
	case lexer.TokenLBrace:
		return p.mapLit()
	default:
		p.errorAt(tok, "expected expression")
		p.advance()
		return &ast.NilLit{}
	}
}

func (p *Parser) arrayLit() ast.Expression {
	line := p.cur.Line
	p.advance()
	var elems []ast.Expression
	for !p.check(lexer.TokenRBracket) && !p.check(lexer.TokenEOF) {
		elems = append(elems, p.expression(precNone))
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRBracket, "']'")
	return ast.NewArrayLit(line, elems)
}

func (p *Parser) mapLit() ast.Expression {
	line := p.cur.Line
	p.advance()
	var entries []ast.MapEntry
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		key := p.expression(precNone)
		p.expect(lexer.TokenColon, "':'")
		val := p.expression(precNone)
		entries = append(entries, ast.MapEntry{Key: key, Value: val})
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRBrace, "'}'")
	return ast.NewMapLit(line, entries)
}

// parseInterpolation splits a `'...'` token's raw text on `${...}`
// boundaries and recursively parses each embedded expression with a
// fresh sub-parser (spec §4.D Strings / STRING_INTERPOLATE).
func (p *Parser) parseInterpolation(tok lexer.Token) ast.Expression {
	raw := tok.Literal
	var parts []ast.InterpPart
	i := 0
	for i < len(raw) {
		start := i
		for i < len(raw) && !(raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{') {
			i++
		}
		if i > start {
			parts = append(parts, ast.InterpPart{Literal: raw[start:i]})
		}
		if i >= len(raw) {
			break
		}
		i += 2 // skip "${"
		depth := 1
		exprStart := i
		for i < len(raw) && depth > 0 {
			switch raw[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth > 0 {
				i++
			}
		}
		exprSrc := raw[exprStart:i]
		i++ // skip closing "}"
		sub := New(exprSrc)
		expr := sub.expression(precNone)
		parts = append(parts, ast.InterpPart{Expr: expr})
	}
	return ast.NewInterpStringLit(tok.Line, parts)
}

var _ = strings.TrimSpace // reserved for future escape-aware splitting
