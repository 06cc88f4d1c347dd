// Package compiler turns Ember's AST (pkg/ast) into bytecode
// (pkg/bytecode). It is a straightforward tree-walk over the output
// of pkg/parser: no optimization pass, no intermediate form beyond
// the AST the parser already built in the same compilation run, so
// source goes to bytecode in one pass over the program (spec §4.D "A
// single-pass recursive-descent parser that emits bytecode directly
// into a Chunk and resolves locals during compilation").
//
// The compiler never imports pkg/value. Its constant pool holds plain
// Go data (float64, string, bool, nil, *bytecode.Chunk for nested
// function/class bodies); pkg/vm materializes those into heap values
// when a chunk is loaded. This mirrors the separation already in
// place between pkg/bytecode and pkg/value and keeps the compiler
// usable by any host embedding Ember without linking the VM.
package compiler

import (
	"fmt"

	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/bytecode"
	"github.com/ember-lang/ember/pkg/parser"
)

// Compiler holds all state for compiling one *ast.Program (or one
// nested function/method body) into one bytecode.Chunk.
type Compiler struct {
	src   string
	chunk *bytecode.Chunk
	line  int

	locals     []localVar
	scopeDepth int
	loops      []*loopContext
	openTries  []*openTry

	// stackDepth is a compile-time shadow of the VM's operand stack,
	// incremented/decremented alongside every emitted instruction so
	// the compiler can assert the stack-balance discipline structurally
	// rather than merely checking it after the fact (spec §4.D
	// "Stack-balance discipline... the compiler must be written so the
	// imbalance is structurally impossible").
	stackDepth int

	enclosingClass string // name of the class currently being compiled, "" at top level
	hasSuperclass  bool

	diags []Diagnostic
}

func newChild(src string, chunk *bytecode.Chunk, enclosingClass string, hasSuperclass bool) *Compiler {
	return &Compiler{src: src, chunk: chunk, enclosingClass: enclosingClass, hasSuperclass: hasSuperclass}
}

// Compile parses src and compiles it into a top-level Chunk, the
// single entry point a host calls for `eval` (spec §6 "eval(VM,
// source_bytes)"). On syntax errors the parser's diagnostics are
// adapted and returned without touching the compiler at all; on
// compile errors the compiler's own diagnostics are returned.
func Compile(src string) (*bytecode.Chunk, []Diagnostic) {
	p := parser.New(src)
	program, perrs := p.Parse()
	if len(perrs) > 0 {
		diags := make([]Diagnostic, len(perrs))
		for i, e := range perrs {
			diags[i] = Diagnostic{
				Line:     e.Line,
				Column:   e.Column,
				Expected: e.Message,
				Found:    e.Found,
				SrcLine:  sourceLine(src, e.Line),
			}
		}
		return nil, diags
	}

	c := &Compiler{src: src, chunk: bytecode.New("<script>")}
	c.block(program.Statements)
	c.emit(bytecode.OpHalt, 0)
	if len(c.diags) > 0 {
		return nil, c.diags
	}
	return c.chunk, nil
}

// Diagnostics returns every error accumulated during compilation.
func (c *Compiler) Diagnostics() []Diagnostic { return c.diags }

func (c *Compiler) errorf(line int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.diags = append(c.diags, Diagnostic{
		Line:    line,
		Expected: msg,
		SrcLine: sourceLine(c.src, line),
	})
}

// ---- emission helpers ----

// stackEffect is a lookup of how many values each opcode pushes minus
// how many it pops, used to keep c.stackDepth accurate. Variadic
// opcodes (ARRAY_NEW, MAP_NEW, CALL, INVOKE, INSTANCE_NEW,
// STRING_INTERPOLATE) pass their net effect explicitly at the call
// site via emitN instead of consulting this table.
var stackEffect = map[bytecode.Opcode]int{
	bytecode.OpPushConst:   1,
	bytecode.OpPop:         -1,
	bytecode.OpAdd:         -1,
	bytecode.OpSub:         -1,
	bytecode.OpMul:         -1,
	bytecode.OpDiv:         -1,
	bytecode.OpMod:         -1,
	bytecode.OpEq:          -1,
	bytecode.OpNeq:         -1,
	bytecode.OpLt:          -1,
	bytecode.OpLe:          -1,
	bytecode.OpGt:          -1,
	bytecode.OpGe:          -1,
	bytecode.OpAnd:         -1,
	bytecode.OpOr:          -1,
	bytecode.OpNot:         0,
	bytecode.OpJump:        0,
	bytecode.OpJumpIfFalse: -1,
	bytecode.OpLoop:        0,
	bytecode.OpBreak:       0,
	bytecode.OpContinue:    0,
	bytecode.OpSetLocal:    0,
	bytecode.OpGetLocal:    1,
	bytecode.OpSetGlobal:   0,
	bytecode.OpGetGlobal:   1,
	bytecode.OpReturn:      -1,
	bytecode.OpArrayGet:    -1,
	bytecode.OpArraySet:    -2,
	bytecode.OpArrayLen:    0,
	bytecode.OpMapGet:      -1,
	bytecode.OpMapSet:      -2,
	bytecode.OpMapLen:      0,
	bytecode.OpThrow:       -2,
	bytecode.OpRethrow:     0,
	bytecode.OpPopHandler:  0,
	bytecode.OpTryEnd:      0,
	bytecode.OpInherit:     -1,
	bytecode.OpGetProperty: 0,
	bytecode.OpSetProperty: -1,
	bytecode.OpGetSuper:    0,
	bytecode.OpHalt:        0,
	// CLASS_DEF pushes a new class object; METHOD_DEF consumes the
	// function constant just pushed for it and leaves the class (still
	// underneath) on the stack for the next METHOD_DEF or the
	// declaration's final store (spec §4.D class compilation sequence).
	bytecode.OpClassDef:  1,
	bytecode.OpMethodDef: -1,
	bytecode.OpTryBegin:  0,
}

// emit appends one instruction and adjusts the compile-time stack
// depth shadow by the opcode's fixed effect.
func (c *Compiler) emit(op bytecode.Opcode, operand int) int {
	effect, ok := stackEffect[op]
	if !ok {
		panic(fmt.Sprintf("compiler: emit of variadic opcode %s must use emitN", op))
	}
	c.stackDepth += effect
	return c.chunk.Emit(op, operand, c.line)
}

// emitN is emit for variadic-effect opcodes, where the caller
// supplies the net stack effect directly.
func (c *Compiler) emitN(op bytecode.Opcode, operand, effect int) int {
	c.stackDepth += effect
	return c.chunk.Emit(op, operand, c.line)
}

// patchJump backpatches the instruction at addr to target Here(),
// enforcing the representable jump range (spec §4.D "a patch that
// exceeds the representable range fails compilation").
func (c *Compiler) patchJump(addr int) {
	c.patchJumpTo(addr, c.chunk.Here())
}

// patchJumpTo is patchJump for a caller-supplied target rather than
// the current address (used when multiple break jumps all patch to
// the same loop-exit address).
func (c *Compiler) patchJumpTo(addr, target int) {
	if !bytecode.ValidJumpTarget(target) {
		c.errorf(c.line, "jump target %d out of range", target)
		return
	}
	c.chunk.Patch(addr, target)
}

func (c *Compiler) addConstant(v interface{}) int {
	return c.chunk.AddConstant(v)
}

// setLine updates the line used for subsequently emitted
// instructions; called at the top of every statement/expression
// compile function so disassembly and stack traces stay accurate.
func (c *Compiler) setLine(n ast.Node) {
	c.line = n.Line()
}
