package vm

import (
	"fmt"
	"time"

	"github.com/ember-lang/ember/pkg/value"
)

// registerStandardNatives installs the small set of host functions
// every Ember program can call without a host registering anything
// itself (spec §6 "register_native"; spec §7 "the standard library
// is a handful of natives the host pre-registers, not a bundled
// script library"). A host embedding the VM is free to shadow any of
// these with RegisterNative before running untrusted script code.
func registerStandardNatives(vm *VM) {
	vm.RegisterNative("print", nativePrint(false))
	vm.RegisterNative("println", nativePrint(true))
	vm.RegisterNative("clock", nativeClock)
	vm.RegisterNative("type_of", nativeTypeOf)
	vm.RegisterNative("gc_collect", nativeGCCollect(vm))
	vm.RegisterNative("vfs_read", nativeVFSRead(vm))
	vm.RegisterNative("vfs_write", nativeVFSWrite(vm))
	vm.RegisterNative("import", nativeImport(vm))
}

func nativePrint(newline bool) value.NativeFn {
	return func(host value.Host, args []value.Value) (value.Value, error) {
		parts := make([]byte, 0, 32)
		for i, a := range args {
			if i > 0 {
				parts = append(parts, ' ')
			}
			parts = append(parts, a.String()...)
		}
		if newline {
			parts = append(parts, '\n')
		}
		fmt.Print(string(parts))
		return value.Nil{}, nil
	}
}

func nativeClock(host value.Host, args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeTypeOf(host value.Host, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, errWrongArgc("type_of", 1, len(args))
	}
	return host.NewString(args[0].Kind().String()), nil
}

func nativeGCCollect(vm *VM) value.NativeFn {
	return func(host value.Host, args []value.Value) (value.Value, error) {
		stats := vm.CollectGarbage()
		m := host.NewMap()
		m.Set(host.NewString("freed"), value.Number(stats.Freed))
		m.Set(host.NewString("live"), value.Number(stats.Live))
		return m, nil
	}
}

// nativeVFSRead exposes the sandboxed filesystem to script code (spec
// §4.C): a missing or denied file returns nil rather than raising, so
// a script can check for a file's existence without needing a
// dedicated exists() native.
func nativeVFSRead(vm *VM) value.NativeFn {
	return func(host value.Host, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, errWrongArgc("vfs_read", 1, len(args))
		}
		path, ok := args[0].(*value.ObjString)
		if !ok {
			return nil, errWrongType("vfs_read", "string", args[0])
		}
		data, ok := vm.vfs.ReadFile(path.Value)
		if !ok {
			return value.Nil{}, nil
		}
		return host.NewString(string(data)), nil
	}
}

func nativeVFSWrite(vm *VM) value.NativeFn {
	return func(host value.Host, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, errWrongArgc("vfs_write", 2, len(args))
		}
		path, ok := args[0].(*value.ObjString)
		if !ok {
			return nil, errWrongType("vfs_write", "string", args[0])
		}
		data, ok := args[1].(*value.ObjString)
		if !ok {
			return nil, errWrongType("vfs_write", "string", args[1])
		}
		return value.Bool(vm.vfs.WriteFile(path.Value, []byte(data.Value))), nil
	}
}

// nativeImport backs the `import "path"` statement (spec §7), which
// the compiler lowers to a call against this global. It reads the
// module source through the sandboxed filesystem, compiles it, and
// evaluates it against this VM so the module's top-level declarations
// land in the same global namespace as the importing script.
func nativeImport(vm *VM) value.NativeFn {
	return func(host value.Host, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, errWrongArgc("import", 1, len(args))
		}
		path, ok := args[0].(*value.ObjString)
		if !ok {
			return nil, errWrongType("import", "string", args[0])
		}
		src, ok := vm.vfs.ReadFile(path.Value)
		if !ok {
			return nil, fmt.Errorf("cannot read module %q", path.Value)
		}
		if vm.compile == nil {
			return nil, fmt.Errorf("import unavailable: no compiler wired into this VM")
		}
		return vm.Eval(string(src), vm.compile)
	}
}

func errWrongArgc(name string, want, got int) error {
	return fmt.Errorf("%s expects %d argument(s), got %d", name, want, got)
}

func errWrongType(name, want string, got value.Value) error {
	return fmt.Errorf("%s expects a %s argument, got %s", name, want, got.Kind())
}
