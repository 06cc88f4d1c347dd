package vm

import (
	"github.com/ember-lang/ember/pkg/bytecode"
	"github.com/ember-lang/ember/pkg/value"
)

// link turns a compiled Chunk into a callable ObjFunction, recursively
// materializing every nested Chunk in its constant pool into its own
// ObjFunction so the whole reachable graph is ready by the time any of
// it runs (spec §4.E "the VM materializes constant-pool chunks into
// function objects when a chunk is first loaded"). Each Chunk is
// linked exactly once per VM; the linked map also lets a function
// declared under a name be compared by identity across re-evaluations
// of the same compiled unit.
func (vm *VM) link(c *bytecode.Chunk) *value.ObjFunction {
	if fn, ok := vm.linked[c]; ok {
		return fn
	}
	fn := &value.ObjFunction{Name: c.Name, Chunk: c, Arity: c.NumLocals}
	vm.gc.Register(fn)
	vm.linked[c] = fn

	for i, raw := range c.Constants {
		c.Constants[i] = vm.materialize(raw)
	}
	return fn
}

// materialize converts one raw constant-pool entry into a value.Value,
// allocating and registering a fresh heap object for anything that
// needs one. Scalars and already-materialized values pass through
// unchanged, which makes materialize safe to call more than once on
// the same pool (relink of a shared chunk, or re-running Compile
// output against the same VM).
func (vm *VM) materialize(raw interface{}) value.Value {
	switch x := raw.(type) {
	case nil:
		return value.Nil{}
	case value.Value:
		return x
	case bool:
		return value.Bool(x)
	case float64:
		return value.Number(x)
	case string:
		return vm.NewString(x)
	case *bytecode.Chunk:
		return vm.link(x)
	default:
		panic("vm: unmaterializable constant of type unknown to the compiler")
	}
}
