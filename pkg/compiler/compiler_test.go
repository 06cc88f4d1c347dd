package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-lang/ember/pkg/bytecode"
)

func compileOK(t *testing.T, src string) *bytecode.Chunk {
	t.Helper()
	chunk, diags := Compile(src)
	require.Empty(t, diags, "unexpected compile diagnostics: %v", diags)
	require.NotNil(t, chunk)
	return chunk
}

func opcodes(chunk *bytecode.Chunk) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, len(chunk.Code))
	for i, inst := range chunk.Code {
		ops[i] = inst.Op
	}
	return ops
}

func TestCompileNumberLiteral(t *testing.T) {
	chunk := compileOK(t, "42;")
	assert.Equal(t, []bytecode.Opcode{bytecode.OpPushConst, bytecode.OpPop, bytecode.OpHalt}, opcodes(chunk))
	require.Len(t, chunk.Constants, 1)
	assert.Equal(t, float64(42), chunk.Constants[0])
}

func TestCompileArithmeticEmitsOperatorOpcodes(t *testing.T) {
	chunk := compileOK(t, "2 + 3 * 4;")
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpMul)
	assert.Contains(t, ops, bytecode.OpAdd)
}

func TestCompileGlobalAssignAndLoad(t *testing.T) {
	chunk := compileOK(t, "x = 1; x;")
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpSetGlobal)
	assert.Contains(t, ops, bytecode.OpGetGlobal)
}

func TestCompileLocalInFunctionBody(t *testing.T) {
	chunk := compileOK(t, `
		fn f() {
			y = 1;
			return y;
		}
	`)
	// top-level chunk holds a CLASS_DEF-free function constant; the
	// nested body itself compiles to its own chunk in the constant pool.
	var fnChunk *bytecode.Chunk
	for _, c := range chunk.Constants {
		if nested, ok := c.(*bytecode.Chunk); ok {
			fnChunk = nested
		}
	}
	require.NotNil(t, fnChunk, "expected a nested function chunk in constants")
	ops := opcodes(fnChunk)
	assert.Contains(t, ops, bytecode.OpSetLocal)
	assert.Contains(t, ops, bytecode.OpGetLocal)
	assert.NotContains(t, ops, bytecode.OpSetGlobal)
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	chunk := compileOK(t, `
		if (x < 1) {
			y = 1;
		} else {
			y = 2;
		}
	`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpJumpIfFalse)
	assert.Contains(t, ops, bytecode.OpJump)
}

func TestCompileWhileLoopEmitsLoop(t *testing.T) {
	chunk := compileOK(t, `
		while (x < 10) {
			x = x + 1;
		}
	`)
	assert.Contains(t, opcodes(chunk), bytecode.OpLoop)
}

func TestCompileBreakContinue(t *testing.T) {
	chunk := compileOK(t, `
		while (true) {
			break;
			continue;
		}
	`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpBreak)
	assert.Contains(t, ops, bytecode.OpContinue)
}

func TestCompileArrayAndIndexOps(t *testing.T) {
	chunk := compileOK(t, "a = [1, 2, 3]; a[0];")
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpArrayNew)
	assert.Contains(t, ops, bytecode.OpArrayGet)
}

func TestCompileMapOps(t *testing.T) {
	chunk := compileOK(t, `m = {"a": 1}; m["a"] = 2;`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpMapNew)
	assert.Contains(t, ops, bytecode.OpArraySet)
}

func TestCompileClassEmitsDefAndMethodDef(t *testing.T) {
	chunk := compileOK(t, `
		class Point {
			init(x) { this.x = x; }
		}
	`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpClassDef)
	assert.Contains(t, ops, bytecode.OpMethodDef)
}

func TestCompileClassWithExtendsEmitsInherit(t *testing.T) {
	chunk := compileOK(t, `
		class Animal { speak() { return "..."; } }
		class Dog extends Animal { speak() { return super.speak(); } }
	`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpInherit)
	assert.Contains(t, ops, bytecode.OpGetSuper)
}

func TestCompileNewExprEmitsInstanceNew(t *testing.T) {
	chunk := compileOK(t, `
		class Point { init(x) { this.x = x; } }
		new Point(1);
	`)
	assert.Contains(t, opcodes(chunk), bytecode.OpInstanceNew)
}

func TestCompileTryCatchEmitsTryBeginAndPopHandler(t *testing.T) {
	chunk := compileOK(t, `
		try {
			risky();
		} catch (e) {
			handle(e);
		}
	`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpTryBegin)
	assert.Contains(t, ops, bytecode.OpPopHandler)
	require.Len(t, chunk.TryTargets, 1)
	assert.True(t, chunk.TryTargets[0].HasCatch())
	assert.False(t, chunk.TryTargets[0].HasFinally())
}

func TestCompileTryFinallyOnlyEmitsRethrow(t *testing.T) {
	chunk := compileOK(t, `
		try {
			risky();
		} finally {
			cleanup();
		}
	`)
	ops := opcodes(chunk)
	assert.Contains(t, ops, bytecode.OpTryBegin)
	assert.Contains(t, ops, bytecode.OpRethrow)
	require.Len(t, chunk.TryTargets, 1)
	assert.False(t, chunk.TryTargets[0].HasCatch())
	assert.True(t, chunk.TryTargets[0].HasFinally())
}

func TestCompileThrowEmitsThrow(t *testing.T) {
	chunk := compileOK(t, `throw "Boom", "bad";`)
	assert.Contains(t, opcodes(chunk), bytecode.OpThrow)
}

func TestCompileThrowSingleArgumentEmitsThrow(t *testing.T) {
	chunk := compileOK(t, `throw "oops";`)
	assert.Contains(t, opcodes(chunk), bytecode.OpThrow)
}

func TestCompileReportsUndefinedSyntaxAsDiagnostic(t *testing.T) {
	_, diags := Compile("var = ;")
	assert.NotEmpty(t, diags)
}

func TestCompileInvokeExprPacksArgc(t *testing.T) {
	chunk := compileOK(t, `obj.method(1, 2);`)
	var found bool
	for _, inst := range chunk.Code {
		if inst.Op == bytecode.OpInvoke {
			_, argc := bytecode.UnpackNameArgc(inst.Operand)
			assert.Equal(t, 2, argc)
			found = true
		}
	}
	assert.True(t, found, "expected an OpInvoke instruction")
}

func TestCompileEveryChunkEndsInHalt(t *testing.T) {
	chunk := compileOK(t, "1 + 1;")
	require.NotEmpty(t, chunk.Code)
	assert.Equal(t, bytecode.OpHalt, chunk.Code[len(chunk.Code)-1].Op)
}
