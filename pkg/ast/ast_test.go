package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeLineIsPreserved(t *testing.T) {
	n := NewNumberLit(7, 42)
	assert.Equal(t, 7, n.Line())
}

func TestProgramHoldsStatementsInOrder(t *testing.T) {
	a := NewExpressionStmt(1, NewNumberLit(1, 1))
	b := NewExpressionStmt(2, NewNumberLit(2, 2))
	prog := NewProgram(1, []Statement{a, b})
	assert.Equal(t, []Statement{a, b}, prog.Statements)
}

func TestAssignTargetsImplementInterface(t *testing.T) {
	var targets []AssignTarget
	targets = append(targets,
		NewIdentifier(1, "x"),
		NewIndexExpr(1, NewIdentifier(1, "a"), NewNumberLit(1, 0)),
		NewPropertyExpr(1, NewIdentifier(1, "o"), "field"),
	)
	assert.Len(t, targets, 3)
	for _, tgt := range targets {
		assert.NotNil(t, tgt)
	}
}

func TestIfStmtElseMayBeNilOrElseIf(t *testing.T) {
	bare := NewIfStmt(1, NewBoolLit(1, true), nil, nil)
	assert.Nil(t, bare.Else)

	elseIf := NewIfStmt(2, NewBoolLit(2, false), nil, []Statement{
		NewIfStmt(3, NewBoolLit(3, true), nil, nil),
	})
	nested, ok := elseIf.Else[0].(*IfStmt)
	assert.True(t, ok)
	assert.Equal(t, 3, nested.Line())
}

func TestTryStmtCatchAndFinallyFlags(t *testing.T) {
	tr := NewTryStmt(1, nil)
	assert.False(t, tr.HasCatch)
	assert.False(t, tr.HasFinally)

	tr.HasCatch = true
	tr.CatchName = "e"
	assert.True(t, tr.HasCatch)
	assert.Equal(t, "e", tr.CatchName)
}

func TestClassDeclExtendsEmptyWhenNoSuperclass(t *testing.T) {
	cls := NewClassDecl(1, "Point", "", nil)
	assert.Empty(t, cls.Extends)
}

func TestInterpStringLitHoldsLiteralAndExprParts(t *testing.T) {
	lit := NewInterpStringLit(1, []InterpPart{
		{Literal: "hi "},
		{Expr: NewIdentifier(1, "name")},
	})
	assert.Len(t, lit.Parts, 2)
	assert.Equal(t, "hi ", lit.Parts[0].Literal)
	assert.Nil(t, lit.Parts[0].Expr)
	assert.NotNil(t, lit.Parts[1].Expr)
}

func TestInvokeExprCarriesSelectorAndArgs(t *testing.T) {
	inv := NewInvokeExpr(1, NewIdentifier(1, "obj"), "bump", []Expression{NewNumberLit(1, 1)})
	assert.Equal(t, "bump", inv.Selector)
	assert.Len(t, inv.Args, 1)
}
