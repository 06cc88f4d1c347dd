package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackNameArgcRoundTrip(t *testing.T) {
	tests := []struct {
		nameIdx, argc int
	}{
		{0, 0},
		{1, 3},
		{255, 255},
		{1000, 7},
	}
	for _, tt := range tests {
		packed := PackNameArgc(tt.nameIdx, tt.argc)
		nameIdx, argc := UnpackNameArgc(packed)
		assert.Equal(t, tt.nameIdx, nameIdx)
		assert.Equal(t, tt.argc, argc)
	}
}

func TestArgcMaskTruncatesAbove255(t *testing.T) {
	packed := PackNameArgc(5, 300)
	_, argc := UnpackNameArgc(packed)
	assert.Equal(t, 300&NameArgcMask, argc)
}

func TestChunkEmitAndPatch(t *testing.T) {
	c := New("<test>")
	jump := c.Emit(OpJumpIfFalse, 0, 1)
	c.Emit(OpPop, 0, 1)
	target := c.Here()
	c.Patch(jump, target)

	assert.Equal(t, target, c.Code[jump].Operand)
	assert.Equal(t, 2, len(c.Code))
}

func TestChunkAddConstantReturnsIndex(t *testing.T) {
	c := New("<test>")
	i1 := c.AddConstant("a")
	i2 := c.AddConstant(float64(1))
	assert.Equal(t, 0, i1)
	assert.Equal(t, 1, i2)
	assert.Equal(t, []interface{}{"a", float64(1)}, c.Constants)
}

func TestChunkAddTryTargetDefaultsToNoCatchNoFinally(t *testing.T) {
	c := New("<test>")
	idx := c.AddTryTarget()
	tt := c.TryTargets[idx]
	assert.False(t, tt.HasCatch())
	assert.False(t, tt.HasFinally())
}

func TestTryTargetHasCatchHasFinally(t *testing.T) {
	withCatch := TryTarget{CatchStart: 5, FinallyStart: -1}
	assert.True(t, withCatch.HasCatch())
	assert.False(t, withCatch.HasFinally())

	withFinally := TryTarget{CatchStart: -1, FinallyStart: 9}
	assert.False(t, withFinally.HasCatch())
	assert.True(t, withFinally.HasFinally())
}

func TestValidJumpTarget(t *testing.T) {
	assert.True(t, ValidJumpTarget(0))
	assert.True(t, ValidJumpTarget(MaxJumpRange-1))
	assert.False(t, ValidJumpTarget(-1))
	assert.False(t, ValidJumpTarget(MaxJumpRange))
}

func TestOpcodeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "ADD", OpAdd.String())
	assert.Contains(t, Opcode(250).String(), "UNKNOWN")
}

func TestDisassembleIncludesChunkNameAndOpcodes(t *testing.T) {
	c := New("<script>")
	idx := c.AddConstant(float64(42))
	c.Emit(OpPushConst, idx, 1)
	c.Emit(OpPop, 0, 1)
	c.Emit(OpHalt, 0, 1)

	out := Disassemble(c)
	assert.Contains(t, out, "<script>")
	assert.Contains(t, out, "PUSH_CONST")
	assert.Contains(t, out, "HALT")
}

func TestDisassembleRecursesIntoNestedFunctionChunks(t *testing.T) {
	outer := New("<script>")
	inner := New("f")
	inner.Emit(OpHalt, 0, 1)
	fnIdx := outer.AddConstant(inner)
	outer.Emit(OpPushConst, fnIdx, 1)
	outer.Emit(OpHalt, 0, 1)

	out := Disassemble(outer)
	assert.Contains(t, out, "<script>")
	assert.Contains(t, out, "== f ==")
}
