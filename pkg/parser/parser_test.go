package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-lang/ember/pkg/ast"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(src)
	prog, errs := p.Parse()
	require.Empty(t, errs, "unexpected parse diagnostics: %v", errs)
	require.NotNil(t, prog)
	return prog
}

func TestParseNumberLiteral(t *testing.T) {
	prog := parseOK(t, "42;")
	stmt, ok := prog.Statements[0].(*ast.ExpressionStmt)
	require.True(t, ok)
	lit, ok := stmt.Expr.(*ast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, float64(42), lit.Value)
}

func TestParseStringLiteral(t *testing.T) {
	prog := parseOK(t, `"hello";`)
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	lit, ok := stmt.Expr.(*ast.StringLit)
	require.True(t, ok)
	assert.Equal(t, "hello", lit.Value)
}

func TestParseBooleanAndNil(t *testing.T) {
	prog := parseOK(t, "true; false; nil;")
	require.Len(t, prog.Statements, 3)

	b1 := prog.Statements[0].(*ast.ExpressionStmt).Expr.(*ast.BoolLit)
	assert.True(t, b1.Value)

	b2 := prog.Statements[1].(*ast.ExpressionStmt).Expr.(*ast.BoolLit)
	assert.False(t, b2.Value)

	_, ok := prog.Statements[2].(*ast.ExpressionStmt).Expr.(*ast.NilLit)
	assert.True(t, ok)
}

func TestParseBinaryPrecedence(t *testing.T) {
	prog := parseOK(t, "2 + 3 * 4;")
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	bin, ok := stmt.Expr.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)

	right, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", right.Op)
}

func TestParseImplicitDeclarationViaAssign(t *testing.T) {
	prog := parseOK(t, "x = 1 + 2;")
	require.Len(t, prog.Statements, 1)
}

func TestParseIfElse(t *testing.T) {
	prog := parseOK(t, `
		if (x < 10) {
			y = 1;
		} else {
			y = 2;
		}
	`)
	ifs, ok := prog.Statements[0].(*ast.IfStmt)
	require.True(t, ok)
	assert.NotNil(t, ifs.Cond)
	assert.Len(t, ifs.Then, 1)
	assert.Len(t, ifs.Else, 1)
}

func TestParseWhileLoop(t *testing.T) {
	prog := parseOK(t, `
		while (i < 10) {
			i = i + 1;
		}
	`)
	w, ok := prog.Statements[0].(*ast.WhileStmt)
	require.True(t, ok)
	assert.Len(t, w.Body, 1)
}

func TestParseForLoop(t *testing.T) {
	prog := parseOK(t, `
		for (i = 0; i < 10; i = i + 1) {
			sum = sum + i;
		}
	`)
	f, ok := prog.Statements[0].(*ast.ForStmt)
	require.True(t, ok)
	assert.NotNil(t, f.Init)
	assert.NotNil(t, f.Cond)
	assert.NotNil(t, f.Step)
}

func TestParseFunctionDecl(t *testing.T) {
	prog := parseOK(t, `
		fn add(a, b) {
			return a + b;
		}
	`)
	fn, ok := prog.Statements[0].(*ast.FnDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Body, 1)
	ret, ok := fn.Body[0].(*ast.ReturnStmt)
	require.True(t, ok)
	assert.NotNil(t, ret.Value)
}

func TestParseClassDeclWithExtends(t *testing.T) {
	prog := parseOK(t, `
		class Dog extends Animal {
			speak() { return "woof"; }
		}
	`)
	cls, ok := prog.Statements[0].(*ast.ClassDecl)
	require.True(t, ok)
	assert.Equal(t, "Dog", cls.Name)
	assert.Equal(t, "Animal", cls.Extends)
	require.Len(t, cls.Methods, 1)
	assert.Equal(t, "speak", cls.Methods[0].Name)
}

func TestParseTryCatchFinally(t *testing.T) {
	prog := parseOK(t, `
		try {
			risky();
		} catch (e) {
			handle(e);
		} finally {
			cleanup();
		}
	`)
	tr, ok := prog.Statements[0].(*ast.TryStmt)
	require.True(t, ok)
	assert.True(t, tr.HasCatch)
	assert.Equal(t, "e", tr.CatchName)
	assert.True(t, tr.HasFinally)
}

func TestParseThrowStatement(t *testing.T) {
	prog := parseOK(t, `throw "Boom", "bad thing";`)
	th, ok := prog.Statements[0].(*ast.ThrowStmt)
	require.True(t, ok)
	assert.NotNil(t, th.Type)
	assert.NotNil(t, th.Message)
}

func TestParseThrowStatementSingleArgument(t *testing.T) {
	prog := parseOK(t, `throw "oops";`)
	th, ok := prog.Statements[0].(*ast.ThrowStmt)
	require.True(t, ok)
	typ, ok := th.Type.(*ast.StringLit)
	require.True(t, ok)
	assert.Equal(t, "Error", typ.Value)
	msg, ok := th.Message.(*ast.StringLit)
	require.True(t, ok)
	assert.Equal(t, "oops", msg.Value)
}

func TestParseArrayAndIndex(t *testing.T) {
	prog := parseOK(t, "a = [1, 2, 3]; a[0];")
	require.Len(t, prog.Statements, 2)
	idx, ok := prog.Statements[1].(*ast.ExpressionStmt).Expr.(*ast.IndexExpr)
	require.True(t, ok)
	assert.NotNil(t, idx.Container)
	assert.NotNil(t, idx.Key)
}

func TestParseMapLiteral(t *testing.T) {
	prog := parseOK(t, `m = {"a": 1, "b": 2};`)
	require.Len(t, prog.Statements, 1)
}

func TestParsePropertyAndInvoke(t *testing.T) {
	prog := parseOK(t, "obj.field; obj.method(1, 2);")
	_, ok := prog.Statements[0].(*ast.ExpressionStmt).Expr.(*ast.PropertyExpr)
	require.True(t, ok)

	inv, ok := prog.Statements[1].(*ast.ExpressionStmt).Expr.(*ast.InvokeExpr)
	require.True(t, ok)
	assert.Equal(t, "method", inv.Selector)
	assert.Len(t, inv.Args, 2)
}

func TestParseNewExpr(t *testing.T) {
	prog := parseOK(t, "new Point(1, 2);")
	n, ok := prog.Statements[0].(*ast.ExpressionStmt).Expr.(*ast.NewExpr)
	require.True(t, ok)
	assert.Equal(t, "Point", n.ClassName)
	assert.Len(t, n.Args, 2)
}

func TestParseSuperCall(t *testing.T) {
	prog := parseOK(t, `
		class Dog extends Animal {
			speak() { return super.speak(); }
		}
	`)
	cls := prog.Statements[0].(*ast.ClassDecl)
	ret := cls.Methods[0].Body[0].(*ast.ReturnStmt)
	call, ok := ret.Value.(*ast.CallExpr)
	require.True(t, ok)
	_, ok = call.Callee.(*ast.SuperExpr)
	assert.True(t, ok)
}

func TestParseBreakAndContinue(t *testing.T) {
	prog := parseOK(t, `
		while (true) {
			break;
			continue;
		}
	`)
	w := prog.Statements[0].(*ast.WhileStmt)
	require.Len(t, w.Body, 2)
	_, ok := w.Body[0].(*ast.BreakStmt)
	assert.True(t, ok)
	_, ok = w.Body[1].(*ast.ContinueStmt)
	assert.True(t, ok)
}

func TestParseCompoundAssignment(t *testing.T) {
	prog := parseOK(t, "x += 1;")
	stmt := prog.Statements[0].(*ast.ExpressionStmt)
	assign, ok := stmt.Expr.(*ast.AssignExpr)
	require.True(t, ok)
	assert.Equal(t, "+=", assign.Op)
}

func TestParseSyntaxErrorReported(t *testing.T) {
	p := New("var = ;")
	_, errs := p.Parse()
	assert.NotEmpty(t, errs)
}
