package compiler

import (
	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/bytecode"
)

// expr compiles e, leaving exactly one value on the operand stack
// (spec §4.D "Stack-balance discipline... expression statements
// produce a value").
func (c *Compiler) expr(e ast.Expression) {
	c.setLine(e)
	switch n := e.(type) {
	case *ast.NumberLit:
		c.emit(bytecode.OpPushConst, c.addConstant(n.Value))
	case *ast.StringLit:
		c.emit(bytecode.OpPushConst, c.addConstant(n.Value))
	case *ast.BoolLit:
		c.emit(bytecode.OpPushConst, c.addConstant(n.Value))
	case *ast.NilLit:
		c.emit(bytecode.OpPushConst, c.addConstant(nil))
	case *ast.InterpStringLit:
		c.interpString(n)
	case *ast.Identifier:
		c.loadVariable(n.Name, n.Line())
	case *ast.ThisExpr:
		if c.enclosingClass == "" {
			c.errorf(n.Line(), "'this' used outside a method")
		}
		c.emit(bytecode.OpGetLocal, 0)
	case *ast.ArrayLit:
		for _, el := range n.Elements {
			c.expr(el)
		}
		c.emitN(bytecode.OpArrayNew, len(n.Elements), 1-len(n.Elements))
	case *ast.MapLit:
		for _, entry := range n.Entries {
			c.expr(entry.Key)
			c.expr(entry.Value)
		}
		c.emitN(bytecode.OpMapNew, len(n.Entries), 1-2*len(n.Entries))
	case *ast.IndexExpr:
		c.expr(n.Container)
		c.expr(n.Key)
		c.emit(bytecode.OpArrayGet, 0)
	case *ast.PropertyExpr:
		c.expr(n.Object)
		c.emit(bytecode.OpGetProperty, c.addConstant(n.Property))
	case *ast.UnaryExpr:
		c.expr(n.Operand)
		c.emitUnary(n.Op)
	case *ast.BinaryExpr:
		c.expr(n.Left)
		c.expr(n.Right)
		c.emitBinary(n.Op)
	case *ast.LogicalExpr:
		c.logical(n)
	case *ast.AssignExpr:
		c.assign(n)
	case *ast.CallExpr:
		c.call(n)
	case *ast.InvokeExpr:
		c.invoke(n)
	case *ast.NewExpr:
		c.newExpr(n)
	case *ast.SuperExpr:
		c.errorf(n.Line(), "'super.%s' must be called", n.Selector)
		c.emit(bytecode.OpPushConst, c.addConstant(nil))
	default:
		c.errorf(e.Line(), "internal: unhandled expression %T", e)
	}
}

// loadVariable resolves name to a local slot or a global lookup (spec
// §4.D "Local resolution").
func (c *Compiler) loadVariable(name string, line int) {
	if slot := c.resolveLocal(name); slot >= 0 {
		c.emit(bytecode.OpGetLocal, slot)
		return
	}
	c.emit(bytecode.OpGetGlobal, c.addConstant(name))
}

func (c *Compiler) emitUnary(op string) {
	switch op {
	case "-":
		// No dedicated NEGATE opcode: `-x` compiles as `x * -1`, which
		// reduces it to the existing MUL semantics regardless of which
		// operand order MUL expects (spec does not list a unary minus
		// opcode separately from arithmetic).
		c.emit(bytecode.OpPushConst, c.addConstant(float64(-1)))
		c.emit(bytecode.OpMul, 0)
	case "!":
		c.emit(bytecode.OpNot, 0)
	}
}

func (c *Compiler) emitBinary(op string) {
	switch op {
	case "+":
		c.emit(bytecode.OpAdd, 0)
	case "-":
		c.emit(bytecode.OpSub, 0)
	case "*":
		c.emit(bytecode.OpMul, 0)
	case "/":
		c.emit(bytecode.OpDiv, 0)
	case "%":
		c.emit(bytecode.OpMod, 0)
	case "==":
		c.emit(bytecode.OpEq, 0)
	case "!=":
		c.emit(bytecode.OpNeq, 0)
	case "<":
		c.emit(bytecode.OpLt, 0)
	case "<=":
		c.emit(bytecode.OpLe, 0)
	case ">":
		c.emit(bytecode.OpGt, 0)
	case ">=":
		c.emit(bytecode.OpGe, 0)
	}
}

// logical compiles short-circuiting && and || using a jump rather
// than the unconditional AND/OR opcodes, which evaluate both sides
// (spec's AND/OR opcodes are eager stack reductions; short-circuit
// control flow at the source-language level needs jumps around the
// right-hand side). && yields false or the right operand's value; ||
// yields true or the right operand's value.
func (c *Compiler) logical(n *ast.LogicalExpr) {
	c.expr(n.Left)
	if n.Op == "&&" {
		jump := c.emit(bytecode.OpJumpIfFalse, 0)
		c.expr(n.Right)
		end := c.emit(bytecode.OpJump, 0)
		c.patchJump(jump)
		c.stackDepth-- // JUMP_IF_FALSE popped the test; both branches converge with one value
		c.emit(bytecode.OpPushConst, c.addConstant(false))
		c.patchJump(end)
	} else {
		notJump := c.emit(bytecode.OpJumpIfFalse, 0)
		c.emit(bytecode.OpPushConst, c.addConstant(true))
		skip := c.emit(bytecode.OpJump, 0)
		c.patchJump(notJump)
		c.stackDepth--
		c.expr(n.Right)
		c.patchJump(skip)
	}
}

func (c *Compiler) assign(n *ast.AssignExpr) {
	switch target := n.Target.(type) {
	case *ast.Identifier:
		c.assignValue(n)
		if slot := c.resolveLocal(target.Name); slot >= 0 {
			c.emit(bytecode.OpSetLocal, slot)
			return
		}
		if c.scopeDepth > 0 && c.chunk.Name != "<script>" {
			slot := c.declareLocal(target.Name)
			c.emit(bytecode.OpSetLocal, slot)
			return
		}
		c.emit(bytecode.OpSetGlobal, c.addConstant(target.Name))
	case *ast.IndexExpr:
		c.expr(target.Container)
		c.expr(target.Key)
		c.assignValue(n)
		c.emit(bytecode.OpArraySet, 0)
	case *ast.PropertyExpr:
		c.expr(target.Object)
		c.assignValue(n)
		c.emit(bytecode.OpSetProperty, c.addConstant(target.Property))
	default:
		c.errorf(n.Line(), "invalid assignment target")
	}
}

// assignValue compiles the right-hand side, desugaring compound
// assignment operators into a read-modify-write.
func (c *Compiler) assignValue(n *ast.AssignExpr) {
	if n.Op == "=" {
		c.expr(n.Value)
		return
	}
	c.expr(n.Target)
	c.expr(n.Value)
	switch n.Op {
	case "+=":
		c.emit(bytecode.OpAdd, 0)
	case "-=":
		c.emit(bytecode.OpSub, 0)
	case "*=":
		c.emit(bytecode.OpMul, 0)
	case "/=":
		c.emit(bytecode.OpDiv, 0)
	}
}

func (c *Compiler) call(n *ast.CallExpr) {
	if sup, ok := n.Callee.(*ast.SuperExpr); ok {
		c.superCall(sup, n.Args, n.Line())
		return
	}
	c.expr(n.Callee)
	for _, a := range n.Args {
		c.expr(a)
	}
	c.emitN(bytecode.OpCall, len(n.Args), -len(n.Args))
}

func (c *Compiler) invoke(n *ast.InvokeExpr) {
	c.expr(n.Receiver)
	for _, a := range n.Args {
		c.expr(a)
	}
	nameIdx := c.addConstant(n.Selector)
	operand := bytecode.PackNameArgc(nameIdx, len(n.Args))
	// INVOKE pops the receiver and its args and pushes one result:
	// net effect = 1 - (1 + argc).
	c.emitN(bytecode.OpInvoke, operand, -len(n.Args))
}

func (c *Compiler) superCall(n *ast.SuperExpr, args []ast.Expression, line int) {
	if !c.hasSuperclass {
		c.errorf(line, "'super' used in a class with no superclass")
	}
	c.emit(bytecode.OpGetLocal, 0) // this
	for _, a := range args {
		c.expr(a)
	}
	nameIdx := c.addConstant(n.Selector)
	operand := bytecode.PackNameArgc(nameIdx, len(args))
	c.emitN(bytecode.OpGetSuper, operand, -len(args))
}

func (c *Compiler) newExpr(n *ast.NewExpr) {
	c.loadVariable(n.ClassName, n.Line())
	for _, a := range n.Args {
		c.expr(a)
	}
	c.emitN(bytecode.OpInstanceNew, len(n.Args), -len(n.Args))
}

// interpString compiles each literal chunk and embedded expression in
// source order, then emits STRING_INTERPOLATE to join them (spec
// §4.D "Strings: STRING_INTERPOLATE count").
func (c *Compiler) interpString(n *ast.InterpStringLit) {
	for _, part := range n.Parts {
		if part.Expr != nil {
			c.expr(part.Expr)
		} else {
			c.emit(bytecode.OpPushConst, c.addConstant(part.Literal))
		}
	}
	count := len(n.Parts)
	c.emitN(bytecode.OpStringInterpolate, count, 1-count)
}
