package compiler

// maxLoopNesting mirrors the VM's loop-context stack bound (spec
// §4.E "loop-context stack (max 8)"). Because break/continue are
// resolved to patched jumps entirely at compile time (see the note in
// DESIGN.md), this bound is enforced here instead of at runtime.
const maxLoopNesting = 8

// maxLocals bounds the local slots of one chunk; the VM reserves
// NumLocals slots per call on its shared operand stack.
const maxLocals = 256

// localVar is one entry of the compiler's lexical local table (spec
// §4.D "Local resolution: a lexical local table is maintained during
// compilation; identifiers resolve to a local slot if present, else
// to a global").
type localVar struct {
	name  string
	depth int
}

// loopContext tracks one enclosing loop's patch state so break and
// continue can be compiled to forward/backward jumps without any
// runtime bookkeeping.
type loopContext struct {
	// continueTarget is the bytecode offset `continue` jumps to: the
	// condition re-check for while, the step clause for for.
	continueTarget int
	// breakPatches holds the offsets of placeholder jumps emitted for
	// `break`, patched to the loop's exit once it is known.
	breakPatches []int
	// localDepth is len(Compiler.locals) at loop entry. break/continue
	// pass it to unwindTo, which does not use it.
	localDepth int
	// stackDepth is the compile-time operand stack depth at loop entry.
	// break/continue pass it to unwindTo, which does not use it.
	stackDepth int
	// triesDepth is len(Compiler.openTries) at loop entry, so
	// break/continue only unwind the try-finally blocks opened since
	// the loop was entered, not ones enclosing the loop itself.
	triesDepth int
}

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope drops every local declared in the scope being closed from
// the compile-time locals table. It emits no instructions: locals live
// in the frame's own window, not on the working part of the operand
// stack, so closing a scope leaves nothing there to pop.
func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// declareLocal adds name to the current scope and returns its slot,
// or reports a diagnostic if the locals table is full.
func (c *Compiler) declareLocal(name string) int {
	if len(c.locals) >= maxLocals {
		c.errorf(c.line, "too many local variables (max %d)", maxLocals)
		return -1
	}
	c.locals = append(c.locals, localVar{name: name, depth: c.scopeDepth})
	if len(c.locals) > c.chunk.NumLocals {
		c.chunk.NumLocals = len(c.locals)
	}
	return len(c.locals) - 1
}

// resolveLocal searches innermost-to-outermost for name, returning
// its slot or -1 if name must resolve as a global instead.
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

func (c *Compiler) pushLoop(continueTarget int) *loopContext {
	if len(c.loops) >= maxLoopNesting {
		c.errorf(c.line, "loops nested too deeply (max %d)", maxLoopNesting)
	}
	lc := &loopContext{
		continueTarget: continueTarget,
		localDepth:     len(c.locals),
		stackDepth:     c.stackDepth,
		triesDepth:     len(c.openTries),
	}
	c.loops = append(c.loops, lc)
	return lc
}

func (c *Compiler) popLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

func (c *Compiler) currentLoop() *loopContext {
	if len(c.loops) == 0 {
		return nil
	}
	return c.loops[len(c.loops)-1]
}
