package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextToken_BasicPunctuation(t *testing.T) {
	input := `( ) [ ] { } , ; : . @`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenComma, ","},
		{TokenSemicolon, ";"},
		{TokenColon, ":"},
		{TokenDot, "."},
		{TokenAt, "@"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		assert.Equalf(t, tt.expectedType, tok.Type, "token %d type", i)
		assert.Equalf(t, tt.expectedLiteral, tok.Literal, "token %d literal", i)
	}
}

func TestNextToken_Operators(t *testing.T) {
	input := `+ - * / % = == != < <= > >= ! ++ -- += -= *= /= && ||`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenPercent, "%"},
		{TokenAssign, "="},
		{TokenEq, "=="},
		{TokenNotEq, "!="},
		{TokenLess, "<"},
		{TokenLessEq, "<="},
		{TokenGreater, ">"},
		{TokenGreaterEq, ">="},
		{TokenBang, "!"},
		{TokenPlusPlus, "++"},
		{TokenMinusMinus, "--"},
		{TokenPlusAssign, "+="},
		{TokenMinusAssign, "-="},
		{TokenStarAssign, "*="},
		{TokenSlashAssign, "/="},
		{TokenAnd, "&&"},
		{TokenOr, "||"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		assert.Equalf(t, tt.expectedType, tok.Type, "token %d type", i)
		assert.Equalf(t, tt.expectedLiteral, tok.Literal, "token %d literal", i)
	}
}

func TestNextToken_Numbers(t *testing.T) {
	input := `42 3.14 0 100.5`

	tests := []string{"42", "3.14", "0", "100.5"}
	l := New(input)
	for i, want := range tests {
		tok := l.NextToken()
		assert.Equalf(t, TokenNumber, tok.Type, "token %d", i)
		assert.Equal(t, want, tok.Literal)
	}
}

func TestNextToken_PlainString(t *testing.T) {
	input := `"hello" "with \"escape\"" ""`

	l := New(input)

	tok := l.NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, "hello", tok.Literal)

	tok = l.NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, `with "escape"`, tok.Literal)

	tok = l.NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, "", tok.Literal)
}

func TestNextToken_InterpString(t *testing.T) {
	input := `'hi ${name}!'`

	l := New(input)
	tok := l.NextToken()
	assert.Equal(t, TokenInterpString, tok.Type)
	assert.Equal(t, "hi ${name}!", tok.Literal)
}

func TestNextToken_Keywords(t *testing.T) {
	input := `if else while for fn return import break continue try catch finally throw class extends new this super true false nil`

	expected := []TokenType{
		TokenIf, TokenElse, TokenWhile, TokenFor, TokenFn, TokenReturn,
		TokenImport, TokenBreak, TokenContinue, TokenTry, TokenCatch,
		TokenFinally, TokenThrow, TokenClass, TokenExtends, TokenNew,
		TokenThis, TokenSuper, TokenTrue, TokenFalse, TokenNil, TokenEOF,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		assert.Equalf(t, want, tok.Type, "token %d", i)
	}
}

func TestNextToken_Identifiers(t *testing.T) {
	input := `x count Point _private camelCase`

	expected := []string{"x", "count", "Point", "_private", "camelCase"}
	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		assert.Equalf(t, TokenIdentifier, tok.Type, "token %d", i)
		assert.Equal(t, want, tok.Literal)
	}
}

func TestNextToken_LineComment(t *testing.T) {
	input := "x # this is a comment\ny"

	l := New(input)
	tok := l.NextToken()
	assert.Equal(t, TokenIdentifier, tok.Type)
	assert.Equal(t, "x", tok.Literal)

	tok = l.NextToken()
	assert.Equal(t, TokenNewline, tok.Type)

	tok = l.NextToken()
	assert.Equal(t, TokenIdentifier, tok.Type)
	assert.Equal(t, "y", tok.Literal)
}

func TestNextToken_NewlineIsSignificant(t *testing.T) {
	input := "x\ny"

	l := New(input)
	assert.Equal(t, TokenIdentifier, l.NextToken().Type)
	assert.Equal(t, TokenNewline, l.NextToken().Type)
	assert.Equal(t, TokenIdentifier, l.NextToken().Type)
}

func TestNextToken_LineTracking(t *testing.T) {
	input := "x\ny\nz"

	l := New(input)
	tok1 := l.NextToken()
	assert.Equal(t, 1, tok1.Line)

	l.NextToken() // newline
	tok2 := l.NextToken()
	assert.Equal(t, 2, tok2.Line)

	l.NextToken() // newline
	tok3 := l.NextToken()
	assert.Equal(t, 3, tok3.Line)
}

func TestNextToken_IllegalCharacter(t *testing.T) {
	l := New("x & y")
	assert.Equal(t, TokenIdentifier, l.NextToken().Type)
	tok := l.NextToken()
	assert.Equal(t, TokenError, tok.Type)
}

func TestNextToken_Arithmetic(t *testing.T) {
	input := `3 + 4 * 5`

	expected := []TokenType{TokenNumber, TokenPlus, TokenNumber, TokenStar, TokenNumber, TokenEOF}
	l := New(input)
	for i, want := range expected {
		assert.Equalf(t, want, l.NextToken().Type, "token %d", i)
	}
}
