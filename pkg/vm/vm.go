// Package vm implements Ember's stack-based bytecode interpreter. It
// is the final stage of the pipeline already laid out by pkg/lexer,
// pkg/parser, pkg/compiler, and pkg/bytecode:
//
//	source -> lexer -> parser -> AST -> compiler -> Chunk -> VM -> result
//
// The VM owns the heap (via pkg/gc), the string intern table, the
// global namespace, the native-function registry, and the sandboxed
// filesystem (pkg/vfs) a script's I/O natives are routed through. One
// VM is meant to be reused across many scripts: globals, the intern
// table, and the object heap persist across repeated Eval calls on
// the same VM.
package vm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ember-lang/ember/pkg/bytecode"
	"github.com/ember-lang/ember/pkg/gc"
	"github.com/ember-lang/ember/pkg/value"
	"github.com/ember-lang/ember/pkg/vfs"
)

// maxGlobals bounds the global namespace (spec §6 "globals map (<=
// 1024 entries)"); crossing it is a CodeMemory failure rather than an
// unbounded map growth, since globals are host- and script-visible
// for the lifetime of the VM and never garbage collected individually.
const maxGlobals = 1024

// stackMax bounds the shared operand stack across every live frame.
// A single frame's working set is nominally 256 slots; sized up here
// to give 64 nested frames room without re-deriving a per-frame
// window scheme the bytecode format doesn't otherwise need.
const stackMax = 1 << 14

// VM is one Ember execution context.
type VM struct {
	// id uniquely identifies this VM instance so logs and debugger
	// sessions from several concurrently embedded VMs in one host
	// process can be told apart (spec §6 "a host may run more than one
	// VM instance concurrently; instances share no state").
	id uuid.UUID

	stack []value.Value
	sp    int

	frames []*frame

	globals map[string]value.Value
	intern  *value.Interner
	gc      *gc.Collector
	natives map[string]*value.Native
	classes map[string]*value.ObjClass

	linked map[*bytecode.Chunk]*value.ObjFunction

	vfs      *vfs.FS
	log      *logrus.Entry
	debugger *Debugger

	// compile is set by SetCompiler so the "import" native (pkg/vm's
	// only native that needs to turn source text back into bytecode)
	// can reach the front end without pkg/vm importing pkg/compiler
	// and inverting the pipeline's dependency direction.
	compile func(string) (*bytecode.Chunk, []CompileDiagnostic)
}

// SetCompiler wires a front end into the VM so script-level `import`
// statements can compile the modules they name. A host that never
// runs scripts using `import` may leave this unset.
func (vm *VM) SetCompiler(compile func(string) (*bytecode.Chunk, []CompileDiagnostic)) {
	vm.compile = compile
}

// Debugger lazily attaches and returns this VM's interactive debugger
// (spec §6 embedding API's optional debug hooks), left disabled until
// the host calls Enable on it.
func (vm *VM) Debugger() *Debugger {
	if vm.debugger == nil {
		vm.debugger = NewDebugger(vm)
	}
	return vm.debugger
}

// New returns a VM with its native registry and sandboxed filesystem
// installed, ready to Eval compiled chunks.
func New(log *logrus.Entry) (*VM, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	id := uuid.New()
	log = log.WithField("vm_id", id.String())
	fs, err := vfs.New(log.WithField("component", "vfs"))
	if err != nil {
		return nil, fmt.Errorf("vm: initializing filesystem sandbox: %w", err)
	}
	m := &VM{
		id:      id,
		stack:   make([]value.Value, stackMax),
		globals: make(map[string]value.Value),
		intern:  value.NewInterner(),
		gc:      gc.New(log.WithField("component", "gc")),
		natives: make(map[string]*value.Native),
		classes: make(map[string]*value.ObjClass),
		linked:  make(map[*bytecode.Chunk]*value.ObjFunction),
		vfs:     fs,
		log:     log,
	}
	registerStandardNatives(m)
	return m, nil
}

// ---- value.Host, so natives and link.go can allocate heap values ----

func (vm *VM) NewString(s string) *value.ObjString {
	return vm.intern.Intern(s, func(o *value.ObjString) { vm.gc.Register(o) })
}

func (vm *VM) NewArray(elems []value.Value) *value.ObjArray {
	a := value.NewArray(elems)
	vm.gc.Register(a)
	return a
}

func (vm *VM) NewMap() *value.ObjMap {
	m := value.NewMap()
	vm.gc.Register(m)
	return m
}

func (vm *VM) newException(typ, message string, line int) *value.ObjException {
	e := &value.ObjException{
		Type:       vm.NewString(typ),
		Message:    vm.NewString(message),
		Line:       line,
		StackTrace: vm.captureTrace(),
	}
	vm.gc.Register(e)
	return e
}

func (vm *VM) captureTrace() []value.Frame {
	trace := make([]value.Frame, 0, len(vm.frames))
	for _, fr := range vm.frames {
		name := "<script>"
		if fr.fn != nil {
			name = fr.fn.Name
		}
		trace = append(trace, value.Frame{FunctionName: name, Line: fr.currentLine()})
	}
	return trace
}

func (fr *frame) currentLine() int {
	if fr.chunk == nil || fr.ip <= 0 || fr.ip > len(fr.chunk.Code) {
		return 0
	}
	return fr.chunk.Code[fr.ip-1].Line
}

// RegisterNative installs a host function under name, callable from
// script code as a global (spec §6 "register_native(VM, name, fn)").
func (vm *VM) RegisterNative(name string, fn value.NativeFn) {
	n := &value.Native{Name: name, Fn: fn}
	vm.gc.Register(n)
	vm.natives[name] = n
	vm.globals[name] = n
}

// SetGlobal installs v as a global visible to script code, for a host
// that wants to hand a script pre-built data (spec §6 embedding API).
func (vm *VM) SetGlobal(name string, v value.Value) {
	vm.globals[name] = v
}

// VFS exposes the VM's sandboxed filesystem so a host can add mounts
// before running untrusted script code.
func (vm *VM) VFS() *vfs.FS { return vm.vfs }

// ID returns this VM instance's identity, stable for its lifetime.
func (vm *VM) ID() uuid.UUID { return vm.id }

// CollectGarbage runs one explicit mark-and-sweep cycle (spec §6
// "gc_collect(VM)") and returns its stats.
func (vm *VM) CollectGarbage() gc.Stats {
	return vm.gc.Collect(vm)
}

// GCRoots implements gc.RootProvider: every heap object directly
// reachable from live VM state (spec §4.B "Roots are: ... every slot
// of the operand stack up to sp, every slot of every active frame's
// locals, the globals map, the handler-captured pending exceptions,
// chunks reachable from call frames, and the string-intern table").
func (vm *VM) GCRoots() []value.Object {
	var roots []value.Object
	push := func(v value.Value) {
		if v == nil {
			return
		}
		if obj, ok := v.(value.Object); ok {
			roots = append(roots, obj)
		}
	}
	for i := 0; i < vm.sp; i++ {
		push(vm.stack[i])
	}
	for _, fr := range vm.frames {
		push(fr.fn)
		push(fr.this)
		if fr.pending != nil {
			push(fr.pending)
		}
	}
	for _, v := range vm.globals {
		push(v)
	}
	for _, n := range vm.natives {
		push(n)
	}
	for _, c := range vm.classes {
		push(c)
	}
	vm.intern.Each(func(s *value.ObjString) { push(s) })
	return roots
}

// ---- operand stack ----

func (vm *VM) push(v value.Value) *RuntimeError {
	if vm.sp >= len(vm.stack) {
		return newError(CodeMemory, vm.stackTrace(), "operand stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = nil
	return v
}

func (vm *VM) top() value.Value { return vm.stack[vm.sp-1] }

func (vm *VM) stackTrace() []StackFrame {
	out := make([]StackFrame, 0, len(vm.frames))
	for _, fr := range vm.frames {
		name := "<script>"
		if fr.fn != nil {
			name = fr.fn.Name
		}
		out = append(out, StackFrame{FunctionName: name, Selector: fr.selector, IP: fr.ip, Line: fr.currentLine()})
	}
	return out
}

// Eval compiles and runs src as a new top-level program, returning the
// value of a top-level `return` statement, or nil when the program
// runs to its end (spec §6 "eval(VM, source_bytes)"). Globals
// and the heap persist from any prior Eval/Call on this VM.
func (vm *VM) Eval(src string, compile func(string) (*bytecode.Chunk, []CompileDiagnostic)) (value.Value, error) {
	chunk, diags := compile(src)
	if len(diags) > 0 {
		return nil, &RuntimeError{Code: CodeCompile, Message: formatDiagnostics(diags)}
	}
	fn := vm.link(chunk)
	return vm.callFunction(fn, nil, nil, "")
}

// Call invokes an already-linked function value with args, the path a
// host uses to call back into script code (spec §6 "call(VM, function,
// args)"), and the path OpCall/OpInvoke use internally.
func (vm *VM) Call(callee value.Value, args []value.Value) (value.Value, error) {
	return vm.invokeValue(callee, nil, args, "")
}

func (vm *VM) invokeValue(callee value.Value, this *value.ObjInstance, args []value.Value, selector string) (value.Value, error) {
	switch fn := callee.(type) {
	case *value.Native:
		res, err := fn.Fn(vm, args)
		if err != nil {
			return nil, wrapError(CodeRuntime, vm.stackTrace(), err, "native "+fn.Name+" failed")
		}
		return res, nil
	case *value.ObjFunction:
		return vm.callFunction(fn, this, args, selector)
	case *value.ObjBoundMethod:
		return vm.callFunction(fn.Method, fn.Receiver, args, selector)
	default:
		return nil, newError(CodeType, vm.stackTrace(), "value of type %s is not callable", callee.Kind())
	}
}

func (vm *VM) callFunction(fn *value.ObjFunction, this *value.ObjInstance, args []value.Value, selector string) (value.Value, error) {
	if len(vm.frames) >= maxFrames {
		return nil, newError(CodeMemory, vm.stackTrace(), "call stack overflow")
	}

	localBase := vm.sp
	slots := fn.Chunk.NumLocals
	if slots < 1 {
		slots = 1
	}
	if vm.sp+slots > len(vm.stack) {
		return nil, newError(CodeMemory, vm.stackTrace(), "operand stack overflow")
	}
	for i := 0; i < slots; i++ {
		vm.stack[vm.sp+i] = value.Nil{}
	}
	vm.sp += slots

	slot := 0
	if this != nil {
		vm.stack[localBase] = this
		slot = 1
	}
	for _, a := range args {
		if slot >= slots {
			break
		}
		vm.stack[localBase+slot] = a
		slot++
	}

	var class *value.ObjClass
	if this != nil {
		class = this.Class
	}
	fr := &frame{fn: fn, chunk: fn.Chunk, localBase: localBase, this: this, class: class, selector: selector}
	vm.frames = append(vm.frames, fr)

	result, rerr := vm.run(fr)

	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.sp = localBase
	if rerr != nil {
		return nil, rerr
	}
	return result, nil
}

// CompileDiagnostic is the subset of pkg/compiler.Diagnostic the VM
// needs to render a COMPILE-code failure without importing pkg/compiler
// directly (pkg/compiler already depends on pkg/parser and pkg/bytecode;
// pkg/vm stays a leaf consumer of whatever diagnostic shape a Compile
// function reports, matching the dumb-data-flows-one-way shape used
// between pkg/bytecode and pkg/value).
type CompileDiagnostic struct {
	Line    int
	Message string
}

func formatDiagnostics(diags []CompileDiagnostic) string {
	if len(diags) == 1 {
		return fmt.Sprintf("line %d: %s", diags[0].Line, diags[0].Message)
	}
	msg := fmt.Sprintf("%d compile errors", len(diags))
	for _, d := range diags {
		msg += fmt.Sprintf("\n  line %d: %s", d.Line, d.Message)
	}
	return msg
}
