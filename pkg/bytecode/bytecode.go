// Package bytecode defines Ember's instruction set and the compiled
// Chunk format the VM executes.
//
// A Chunk is the unit of compiled code: a flat instruction stream plus
// the constant pool those instructions index into. The bytecode layer
// is deliberately "dumb" — it knows nothing about Ember's value types.
// Constants are stored as `interface{}`: the compiler writes plain Go
// data (numbers, strings, booleans, nil, nested Chunks) and the VM
// converts each into a `value.Value` when it links the chunk, rather
// than this package importing the object model directly.
// This avoids an import cycle between the value model (which needs to
// embed compiled function bodies) and the bytecode package (whose
// constant pool holds those same values).
package bytecode

import "fmt"

// Opcode identifies a single VM operation.
type Opcode byte

const (
	// Stack operations.
	OpPushConst Opcode = iota
	OpPop

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// Comparison.
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe

	// Logical.
	OpAnd
	OpOr
	OpNot

	// Control flow. OpBreak/OpContinue carry a compiler-patched
	// absolute target exactly like OpJump/OpLoop; they are kept as
	// distinct mnemonics purely for disassembly readability and so a
	// debugger can tell "the loop was broken out of" from "the
	// condition failed" when single-stepping.
	OpJump
	OpJumpIfFalse
	OpLoop
	OpBreak
	OpContinue

	// Variables.
	OpSetLocal
	OpGetLocal
	OpSetGlobal
	OpGetGlobal

	// Calls.
	OpCall
	OpReturn
	OpInvoke

	// Containers.
	OpArrayNew
	OpArrayGet
	OpArraySet
	OpArrayLen
	OpMapNew
	OpMapGet
	OpMapSet
	OpMapLen

	// Strings.
	OpStringInterpolate

	// Exceptions. OpTryBegin's operand indexes into Chunk.TryTargets
	// rather than packing three addresses into one int operand.
	OpTryBegin
	OpTryEnd
	OpThrow
	OpRethrow
	OpPopHandler

	// OOP.
	OpClassDef
	OpMethodDef
	OpInherit
	OpInstanceNew
	OpGetProperty
	OpSetProperty
	OpGetSuper

	// Terminate.
	OpHalt
)

var opcodeNames = [...]string{
	OpPushConst:         "PUSH_CONST",
	OpPop:                "POP",
	OpAdd:                "ADD",
	OpSub:                "SUB",
	OpMul:                "MUL",
	OpDiv:                "DIV",
	OpMod:                "MOD",
	OpEq:                 "EQ",
	OpNeq:                "NEQ",
	OpLt:                 "LT",
	OpLe:                 "LE",
	OpGt:                 "GT",
	OpGe:                 "GE",
	OpAnd:                "AND",
	OpOr:                 "OR",
	OpNot:                "NOT",
	OpJump:               "JUMP",
	OpJumpIfFalse:        "JUMP_IF_FALSE",
	OpLoop:               "LOOP",
	OpBreak:              "BREAK",
	OpContinue:           "CONTINUE",
	OpSetLocal:           "SET_LOCAL",
	OpGetLocal:           "GET_LOCAL",
	OpSetGlobal:          "SET_GLOBAL",
	OpGetGlobal:          "GET_GLOBAL",
	OpCall:               "CALL",
	OpReturn:             "RETURN",
	OpInvoke:             "INVOKE",
	OpArrayNew:           "ARRAY_NEW",
	OpArrayGet:           "ARRAY_GET",
	OpArraySet:           "ARRAY_SET",
	OpArrayLen:           "ARRAY_LEN",
	OpMapNew:             "MAP_NEW",
	OpMapGet:             "MAP_GET",
	OpMapSet:             "MAP_SET",
	OpMapLen:             "MAP_LEN",
	OpStringInterpolate:  "STRING_INTERPOLATE",
	OpTryBegin:           "TRY_BEGIN",
	OpTryEnd:             "TRY_END",
	OpThrow:              "THROW",
	OpRethrow:            "RETHROW",
	OpPopHandler:         "POP_HANDLER",
	OpClassDef:           "CLASS_DEF",
	OpMethodDef:          "METHOD_DEF",
	OpInherit:            "INHERIT",
	OpInstanceNew:        "INSTANCE_NEW",
	OpGetProperty:        "GET_PROPERTY",
	OpSetProperty:        "SET_PROPERTY",
	OpGetSuper:           "GET_SUPER",
	OpHalt:               "HALT",
}

// String renders the opcode's mnemonic, used by the disassembler and
// by error messages that quote the failing instruction.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(op))
}

// Instruction is one decoded bytecode instruction: an opcode plus a
// single general-purpose operand. Most opcodes use Operand directly
// (a constant-pool index, a local slot, a jump target); OpCall's
// operand is its plain argument count. OpInvoke and OpGetSuper pack a
// selector index in the high bits and an argument count in the low 8
// bits — see PackNameArgc/UnpackNameArgc.
type Instruction struct {
	Op      Opcode
	Operand int
	// Line is the 1-based source line this instruction was compiled
	// from, used to annotate runtime errors and stack traces.
	Line int
}

// NameArgcShift/NameArgcMask pack a constant-pool name index and an
// argument count into a single operand for OpInvoke and OpGetSuper.
const (
	NameArgcShift = 8
	NameArgcMask  = 0xFF
)

// PackNameArgc packs a constant-pool name index and argument count
// into one operand.
func PackNameArgc(nameIdx, argc int) int {
	return (nameIdx << NameArgcShift) | (argc & NameArgcMask)
}

// UnpackNameArgc reverses PackNameArgc.
func UnpackNameArgc(operand int) (nameIdx, argc int) {
	return operand >> NameArgcShift, operand & NameArgcMask
}

// TryTarget holds the four addresses a TRY_BEGIN installs, per
// spec §4.F: the end of the protected region, the start of the catch
// block (-1 if none), the start of the out-of-line finally block that
// a try without a catch jumps to on a throw (-1 otherwise; with a
// catch, the finally body is compiled inline after the protected body
// and after the catch body instead), and the address just past the
// whole try statement, which the VM does not read.
type TryTarget struct {
	TryEnd       int
	CatchStart   int
	FinallyStart int
	FinallyEnd   int
}

// HasCatch reports whether this try region installed a catch clause.
func (t TryTarget) HasCatch() bool { return t.CatchStart >= 0 }

// HasFinally reports whether this try region's handler enters an
// out-of-line finally block, which is the case only for a try with a
// finally and no catch.
func (t TryTarget) HasFinally() bool { return t.FinallyStart >= 0 }

// Chunk is a complete compiled unit: the top-level program, or a
// single function/method body. Chunks are immutable once returned
// from the compiler (spec §3 "Code is immutable after compilation").
type Chunk struct {
	Code       []Instruction
	Constants  []interface{}
	TryTargets []TryTarget
	NumLocals  int
	// Name is used in stack traces and disassembly; "<script>" for
	// the top-level chunk.
	Name string
}

// New returns an empty chunk ready for the compiler to append to.
func New(name string) *Chunk {
	return &Chunk{Name: name}
}

// Emit appends an instruction and returns its index, which callers
// use as a backpatch target for forward jumps.
func (c *Chunk) Emit(op Opcode, operand int, line int) int {
	c.Code = append(c.Code, Instruction{Op: op, Operand: operand, Line: line})
	return len(c.Code) - 1
}

// Patch overwrites the operand of a previously emitted instruction.
// Compilation fails (the caller should report a compile error) if the
// computed offset doesn't fit — callers use ValidJumpTarget to check
// first.
func (c *Chunk) Patch(at int, operand int) {
	c.Code[at].Operand = operand
}

// AddConstant appends a value to the constant pool and returns its
// index.
func (c *Chunk) AddConstant(v interface{}) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// AddTryTarget reserves a TryTarget slot (filled in once the catch/
// finally addresses are known) and returns its index.
func (c *Chunk) AddTryTarget() int {
	c.TryTargets = append(c.TryTargets, TryTarget{CatchStart: -1, FinallyStart: -1, FinallyEnd: -1})
	return len(c.TryTargets) - 1
}

// Here returns the address of the next instruction to be emitted —
// the jump target for a backward LOOP/CONTINUE.
func (c *Chunk) Here() int { return len(c.Code) }

// MaxJumpRange bounds how far a single-chunk jump may reach. Ember
// chunks are not expected to approach this in practice; it exists so
// a pathological program gets a compile error instead of silently
// truncated behavior (spec §4.D "a patch that exceeds the
// representable range fails compilation").
const MaxJumpRange = 1 << 24

// ValidJumpTarget reports whether target is representable as a jump
// operand within this chunk.
func ValidJumpTarget(target int) bool {
	return target >= 0 && target < MaxJumpRange
}
