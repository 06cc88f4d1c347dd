// Disassembly support for Chunk. The listing is rendered through
// tablewriter so nested chunks (function/block bodies referenced from
// the constant pool) line up the same way regardless of how long
// opcode names or operand comments get.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Disassemble renders a chunk and, recursively, every nested Chunk
// reachable from its constant pool, as human-readable text.
func Disassemble(c *Chunk) string {
	var b strings.Builder
	disassemble(&b, c, map[*Chunk]bool{})
	return b.String()
}

func disassemble(b *strings.Builder, c *Chunk, seen map[*Chunk]bool) {
	if seen[c] {
		return
	}
	seen[c] = true

	fmt.Fprintf(b, "== %s ==\n", c.Name)

	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Offset", "Line", "Opcode", "Operand", "Comment"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	var nested []*Chunk
	for i, inst := range c.Code {
		operand, comment, child := describeOperand(c, inst)
		if child != nil {
			nested = append(nested, child)
		}
		table.Append([]string{
			fmt.Sprintf("%04d", i),
			fmt.Sprintf("%d", inst.Line),
			inst.Op.String(),
			operand,
			comment,
		})
	}
	table.Render()
	b.WriteString("\n")

	for _, child := range nested {
		disassemble(b, child, seen)
	}
}

// describeOperand formats an instruction's operand and, where the
// constant pool lets us say something more useful than a bare index
// (a selector name, a string literal, a nested function chunk),
// returns that as a comment. It also returns any nested Chunk found
// in the constant pool so Disassemble can recurse into it.
func describeOperand(c *Chunk, inst Instruction) (operand, comment string, child *Chunk) {
	switch inst.Op {
	case OpPushConst, OpSetGlobal, OpGetGlobal, OpClassDef, OpMethodDef, OpGetProperty, OpSetProperty:
		operand = fmt.Sprintf("%d", inst.Operand)
		if inst.Operand >= 0 && inst.Operand < len(c.Constants) {
			v := c.Constants[inst.Operand]
			if nested, ok := v.(*Chunk); ok {
				child = nested
				comment = fmt.Sprintf("<function %s>", nested.Name)
			} else {
				comment = fmt.Sprintf("%v", v)
			}
		}
	case OpInvoke, OpGetSuper:
		nameIdx, argc := UnpackNameArgc(inst.Operand)
		operand = fmt.Sprintf("%d, argc=%d", nameIdx, argc)
		if nameIdx >= 0 && nameIdx < len(c.Constants) {
			comment = fmt.Sprintf("%v", c.Constants[nameIdx])
		}
	case OpJump, OpJumpIfFalse, OpLoop, OpBreak, OpContinue:
		operand = fmt.Sprintf("-> %04d", inst.Operand)
	case OpTryBegin:
		operand = fmt.Sprintf("%d", inst.Operand)
		if inst.Operand >= 0 && inst.Operand < len(c.TryTargets) {
			t := c.TryTargets[inst.Operand]
			comment = fmt.Sprintf("end=%04d catch=%04d finally=%04d",
				t.TryEnd, t.CatchStart, t.FinallyStart)
		}
	case OpPop, OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNeq, OpLt, OpLe,
		OpGt, OpGe, OpAnd, OpOr, OpNot, OpReturn, OpTryEnd, OpThrow,
		OpRethrow, OpPopHandler, OpInherit, OpArrayGet, OpArraySet,
		OpArrayLen, OpMapGet, OpMapSet, OpMapLen, OpHalt:
		operand = ""
	default:
		operand = fmt.Sprintf("%d", inst.Operand)
	}
	return operand, comment, child
}
