package compiler

import (
	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/bytecode"
)

// openTry tracks one lexically enclosing try statement so return,
// break, and continue compiled from inside it can run its finally
// block before transferring control (spec §4.F "Finally ordering: on
// every exit path... the matching finally block runs exactly once").
// The finally body is recompiled (not jumped to) at each early-exit
// site — the simplest way to guarantee exactly-once execution on every
// path without a runtime handler-stack walk for non-throw transfers.
type openTry struct {
	hasFinally  bool
	finallyBody []ast.Statement
}

// block compiles a sequence of statements without opening a new
// lexical scope; callers that need scoping (if/while/for/fn/method
// bodies) call beginScope/endScope around it themselves.
func (c *Compiler) block(stmts []ast.Statement) {
	for _, s := range stmts {
		c.statement(s)
	}
}

// scopedBlock compiles stmts inside a fresh lexical scope (spec §4.D
// "Control structures use braces to delimit blocks").
func (c *Compiler) scopedBlock(stmts []ast.Statement) {
	c.beginScope()
	before := c.stackDepth
	c.block(stmts)
	c.endScope()
	if c.stackDepth != before {
		c.errorf(c.line, "internal: block left stack depth %d, entered at %d", c.stackDepth, before)
	}
}

func (c *Compiler) statement(s ast.Statement) {
	c.setLine(s)
	switch n := s.(type) {
	case *ast.ExpressionStmt:
		c.expr(n.Expr)
		c.emit(bytecode.OpPop, 0)
	case *ast.IfStmt:
		c.ifStmt(n)
	case *ast.WhileStmt:
		c.whileStmt(n)
	case *ast.ForStmt:
		c.forStmt(n)
	case *ast.FnDecl:
		c.fnDecl(n)
	case *ast.ReturnStmt:
		c.returnStmt(n)
	case *ast.BreakStmt:
		c.breakStmt(n)
	case *ast.ContinueStmt:
		c.continueStmt(n)
	case *ast.TryStmt:
		c.tryStmt(n)
	case *ast.ThrowStmt:
		c.throwStmt(n)
	case *ast.ClassDecl:
		c.classDecl(n)
	case *ast.ImportStmt:
		c.importStmt(n)
	default:
		c.errorf(s.Line(), "internal: unhandled statement %T", s)
	}
}

func (c *Compiler) ifStmt(n *ast.IfStmt) {
	c.expr(n.Cond)
	jumpToElse := c.emit(bytecode.OpJumpIfFalse, 0)
	c.scopedBlock(n.Then)
	jumpToEnd := c.emit(bytecode.OpJump, 0)
	c.patchJump(jumpToElse)
	if n.Else != nil {
		c.scopedBlock(n.Else)
	}
	c.patchJump(jumpToEnd)
}

func (c *Compiler) whileStmt(n *ast.WhileStmt) {
	condAddr := c.chunk.Here()
	lc := c.pushLoop(condAddr)
	c.expr(n.Cond)
	exitJump := c.emit(bytecode.OpJumpIfFalse, 0)
	c.scopedBlock(n.Body)
	c.emit(bytecode.OpLoop, condAddr)
	c.patchJump(exitJump)
	for _, addr := range lc.breakPatches {
		c.patchJumpTo(addr, c.chunk.Here())
	}
	c.popLoop()
}

func (c *Compiler) forStmt(n *ast.ForStmt) {
	c.beginScope()
	if n.Init != nil {
		c.statement(n.Init)
	}
	condAddr := c.chunk.Here()
	var exitJump int
	hasCond := n.Cond != nil
	if hasCond {
		c.expr(n.Cond)
		exitJump = c.emit(bytecode.OpJumpIfFalse, 0)
	}
	bodyJump := c.emit(bytecode.OpJump, 0)
	stepAddr := c.chunk.Here()
	lc := c.pushLoop(stepAddr)
	if n.Step != nil {
		c.statement(n.Step)
	}
	c.emit(bytecode.OpLoop, condAddr)
	c.patchJump(bodyJump)
	c.scopedBlock(n.Body)
	c.emit(bytecode.OpLoop, stepAddr)
	if hasCond {
		c.patchJump(exitJump)
	}
	for _, addr := range lc.breakPatches {
		c.patchJumpTo(addr, c.chunk.Here())
	}
	c.popLoop()
	c.endScope()
}

func (c *Compiler) breakStmt(n *ast.BreakStmt) {
	lc := c.currentLoop()
	if lc == nil {
		c.errorf(n.Line(), "break outside a loop")
		return
	}
	c.unwindTo(lc.localDepth, lc.stackDepth, lc.triesDepth)
	addr := c.emit(bytecode.OpBreak, 0)
	lc.breakPatches = append(lc.breakPatches, addr)
}

func (c *Compiler) continueStmt(n *ast.ContinueStmt) {
	lc := c.currentLoop()
	if lc == nil {
		c.errorf(n.Line(), "continue outside a loop")
		return
	}
	c.unwindTo(lc.localDepth, lc.stackDepth, lc.triesDepth)
	c.emit(bytecode.OpContinue, lc.continueTarget)
}

// unwindTo runs the finally blocks and pops the handlers of every
// openTry entered since the target tryDepth, used by break/continue
// (bounded by the enclosing loop) and return (bounded by 0, the
// function entry) so an early exit still honors finally ordering.
func (c *Compiler) unwindTo(localDepth, stackDepth, tryDepth int) {
	for i := len(c.openTries) - 1; i >= tryDepth; i-- {
		t := c.openTries[i]
		if t.hasFinally {
			c.block(t.finallyBody)
		}
		c.emit(bytecode.OpPopHandler, 0)
	}
	_ = localDepth
	_ = stackDepth
}

func (c *Compiler) returnStmt(n *ast.ReturnStmt) {
	c.unwindTo(0, 0, 0)
	if n.Value != nil {
		c.expr(n.Value)
	} else {
		c.emit(bytecode.OpPushConst, c.addConstant(nil))
	}
	c.emit(bytecode.OpReturn, 0)
}

func (c *Compiler) tryStmt(n *ast.TryStmt) {
	tryIdx := c.chunk.AddTryTarget()
	c.emit(bytecode.OpTryBegin, tryIdx)

	c.openTries = append(c.openTries, &openTry{hasFinally: n.HasFinally, finallyBody: n.FinallyBody})
	c.scopedBlock(n.Body)
	c.openTries = c.openTries[:len(c.openTries)-1]

	c.emit(bytecode.OpPopHandler, 0)
	if n.HasFinally {
		c.block(n.FinallyBody)
	}
	skipCatch := c.emit(bytecode.OpJump, 0)

	catchStart := c.chunk.Here()
	if n.HasCatch {
		c.beginScope()
		// The VM pushes the caught exception value before jumping
		// here; bind it to the catch variable if one was named.
		c.stackDepth++ // the VM pushes the caught exception before jumping here
		if n.CatchName != "" {
			slot := c.declareLocal(n.CatchName)
			c.emit(bytecode.OpSetLocal, slot)
			c.emit(bytecode.OpPop, 0)
		} else {
			c.emit(bytecode.OpPop, 0)
		}
		c.block(n.CatchBody)
		c.endScope()
		if n.HasFinally {
			c.block(n.FinallyBody)
		}
	} else if n.HasFinally {
		// Finally-only handler (spec §4.F): the VM holds the pending
		// exception off-stack and jumps here on throw. The finally
		// body never sees the exception as a bindable value, so
		// nothing is pushed; RETHROW re-raises the VM's pending
		// exception once the finally body completes.
		c.block(n.FinallyBody)
		c.emit(bytecode.OpRethrow, 0)
	}

	c.patchJump(skipCatch)

	tt := &c.chunk.TryTargets[tryIdx]
	tt.TryEnd = catchStart
	if n.HasCatch {
		tt.CatchStart = catchStart
	}
	if n.HasFinally && !n.HasCatch {
		// Finally-only handlers resume at the finally body itself;
		// the VM re-throws after it completes (spec §4.F "If the
		// handler has only a finally: jump to finally_start with a
		// pending-flag note; after FINALLY_END re-throw").
		tt.FinallyStart = catchStart
	}
	tt.FinallyEnd = c.chunk.Here()
}

func (c *Compiler) throwStmt(n *ast.ThrowStmt) {
	c.expr(n.Type)
	c.expr(n.Message)
	c.emit(bytecode.OpThrow, 0)
}

func (c *Compiler) fnDecl(n *ast.FnDecl) {
	fnChunk := c.compileFunction(n.Name, n.Params, n.Body, false, false)
	idx := c.addConstant(fnChunk)
	c.emit(bytecode.OpPushConst, idx)
	c.storeDeclaration(n.Name)
}

// compileFunction compiles a nested function/method body into its own
// Chunk sharing none of the enclosing chunk's locals (spec §4.E "Call
// frames" — each call gets a fresh local_base).
func (c *Compiler) compileFunction(name string, params []string, body []ast.Statement, isMethod, hasSuper bool) *bytecode.Chunk {
	child := newChild(c.src, bytecode.New(name), c.enclosingClass, hasSuper)
	child.beginScope()
	if isMethod {
		child.declareLocal("this")
	}
	for _, p := range params {
		child.declareLocal(p)
	}
	child.block(body)
	child.emit(bytecode.OpPushConst, child.addConstant(nil))
	child.emit(bytecode.OpReturn, 0)
	c.diags = append(c.diags, child.diags...)
	return child.chunk
}

// storeDeclaration emits the assignment half of a `name = <value
// already on stack>` declaration and restores stack balance (spec
// §4.D "Stack-balance discipline" — fn/class declarations are
// statement forms, not expression statements, so they must not leave
// a value behind).
func (c *Compiler) storeDeclaration(name string) {
	if slot := c.resolveLocal(name); slot >= 0 {
		c.emit(bytecode.OpSetLocal, slot)
	} else if c.scopeDepth > 0 {
		slot := c.declareLocal(name)
		c.emit(bytecode.OpSetLocal, slot)
	} else {
		c.emit(bytecode.OpSetGlobal, c.addConstant(name))
	}
	c.emit(bytecode.OpPop, 0)
}

func (c *Compiler) classDecl(n *ast.ClassDecl) {
	nameIdx := c.addConstant(n.Name)
	c.emit(bytecode.OpClassDef, nameIdx)

	if n.Extends != "" {
		c.loadVariable(n.Extends, n.Line())
		c.emit(bytecode.OpInherit, 0)
	}

	prevClass, prevSuper := c.enclosingClass, c.hasSuperclass
	c.enclosingClass, c.hasSuperclass = n.Name, n.Extends != ""
	for _, m := range n.Methods {
		methodChunk := c.compileFunction(m.Name, m.Params, m.Body, true, c.hasSuperclass)
		midx := c.addConstant(methodChunk)
		c.emit(bytecode.OpPushConst, midx)
		c.emit(bytecode.OpMethodDef, c.addConstant(m.Name))
	}
	c.enclosingClass, c.hasSuperclass = prevClass, prevSuper

	c.storeDeclaration(n.Name)
}

func (c *Compiler) importStmt(n *ast.ImportStmt) {
	// Module resolution is a host/VFS concern (spec §4.C, §7 "Import");
	// the compiler only records the request as a call to the host-
	// registered "import" native so the VM resolves it at load time.
	c.emit(bytecode.OpGetGlobal, c.addConstant("import"))
	c.emit(bytecode.OpPushConst, c.addConstant(n.Path))
	c.emitN(bytecode.OpCall, 1, -1)
	c.emit(bytecode.OpPop, 0)
}
