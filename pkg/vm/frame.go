package vm

import (
	"github.com/ember-lang/ember/pkg/bytecode"
	"github.com/ember-lang/ember/pkg/value"
)

// maxFrames bounds call depth (spec §4.E "call frames (max 64)").
const maxFrames = 64

// handler is one open TRY_BEGIN region within a frame. stackBase is
// the operand-stack depth to restore before jumping to the catch or
// finally entry point, so a protected body that was mid-expression
// when it threw doesn't leave stray operands behind.
type handler struct {
	target    bytecode.TryTarget
	stackBase int
}

// frame is one call's activation record. Locals live in the VM's
// shared operand stack at [localBase, localBase+NumLocals), below the
// call's working operands, so recursive calls each get their own
// window without per-frame allocation.
type frame struct {
	fn        *value.ObjFunction
	chunk     *bytecode.Chunk
	ip        int
	localBase int
	this      *value.ObjInstance // receiver for method calls, nil at top level
	class     *value.ObjClass    // enclosing class, for GET_SUPER; nil outside methods
	selector  string             // the selector this frame was invoked through, for stack traces

	handlers []handler

	// pending holds the exception a finally-only handler must
	// re-raise via RETHROW once its finally body finishes (spec §4.F
	// "after FINALLY_END re-throw").
	pending *value.ObjException
}
