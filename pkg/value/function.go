package value

import "github.com/ember-lang/ember/pkg/bytecode"

// ObjFunction is a reference to a compiled Chunk plus the name it was
// declared under (spec §3 "function (reference to a Chunk plus
// name)"). Top-level script bodies, named function declarations, and
// method bodies are all represented as an ObjFunction.
type ObjFunction struct {
	Header
	Name  string
	Chunk *bytecode.Chunk
	Arity int
}

func (f *ObjFunction) Kind() Kind     { return KindFunction }
func (f *ObjFunction) String() string { return "<function " + f.Name + ">" }

// Host is the minimal set of VM capabilities a native function needs
// to allocate new heap values. It exists so this package can define
// the Native callable type without importing pkg/vm (which itself
// must import pkg/value for its stack and globals) — the same
// dumb-data-flows-one-way shape used between pkg/bytecode and
// pkg/value.
type Host interface {
	NewString(s string) *ObjString
	NewArray(elems []Value) *ObjArray
	NewMap() *ObjMap
}

// NativeFn is the signature a registered native function implements.
// Per the native-function ABI (spec §6), a native receives the host
// and its arguments and returns exactly one Value, or an error if the
// call should raise a runtime exception.
type NativeFn func(host Host, args []Value) (Value, error)

// Native is a host-supplied callable value (spec §3 "native (host-
// supplied callable)"), installed as a global via register_native.
type Native struct {
	Header
	Name string
	Fn   NativeFn
}

func (n *Native) Kind() Kind     { return KindNative }
func (n *Native) String() string { return "<native " + n.Name + ">" }
