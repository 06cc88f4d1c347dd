package vm

import (
	"strconv"

	"github.com/ember-lang/ember/pkg/bytecode"
	"github.com/ember-lang/ember/pkg/value"
)

// run executes fr's chunk from its current ip until OpReturn or
// OpHalt, or an error propagates out. It recurses into itself (via
// callFunction) for every nested Ember call, so the Go call stack
// mirrors Ember's call-frame stack one-for-one; an uncaught exception
// or a stack-depth error simply returns up through that same chain.
func (vm *VM) run(fr *frame) (value.Value, error) {
	for {
		if fr.ip >= len(fr.chunk.Code) {
			return value.Nil{}, nil
		}
		if vm.debugger != nil && vm.debugger.shouldPause(fr) {
			if !vm.debugger.InteractivePrompt(fr) {
				return nil, newError(CodeInternal, vm.stackTrace(), "execution aborted from debugger")
			}
		}
		inst := fr.chunk.Code[fr.ip]
		fr.ip++

		switch inst.Op {
		case bytecode.OpHalt:
			if vm.sp > fr.localBase+fr.chunk.NumLocals {
				return vm.top(), nil
			}
			return value.Nil{}, nil

		case bytecode.OpPushConst:
			if err := vm.push(fr.chunk.Constants[inst.Operand].(value.Value)); err != nil {
				return nil, err
			}

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			if exc := vm.arith(fr, inst.Op); exc != nil {
				if handled, cont := vm.handleOrBubble(fr, exc); cont {
					continue
				} else {
					return nil, handled
				}
			}

		case bytecode.OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case bytecode.OpNeq:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))

		case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			if exc := vm.compare(fr, inst.Op); exc != nil {
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}

		case bytecode.OpAnd:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Truthy(a) && value.Truthy(b)))
		case bytecode.OpOr:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Truthy(a) || value.Truthy(b)))
		case bytecode.OpNot:
			vm.push(value.Bool(!value.Truthy(vm.pop())))

		case bytecode.OpJump:
			fr.ip = inst.Operand
		case bytecode.OpJumpIfFalse:
			if !value.Truthy(vm.pop()) {
				fr.ip = inst.Operand
			}
		case bytecode.OpLoop, bytecode.OpBreak, bytecode.OpContinue:
			fr.ip = inst.Operand

		case bytecode.OpGetLocal:
			if err := vm.push(vm.stack[fr.localBase+inst.Operand]); err != nil {
				return nil, err
			}
		case bytecode.OpSetLocal:
			vm.stack[fr.localBase+inst.Operand] = vm.top()

		case bytecode.OpGetGlobal:
			name := fr.chunk.Constants[inst.Operand].(*value.ObjString).Value
			v, ok := vm.globals[name]
			if !ok {
				exc := vm.newException("NameError", "undefined global: "+name, fr.currentLine())
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}
			if err := vm.push(v); err != nil {
				return nil, err
			}
		case bytecode.OpSetGlobal:
			name := fr.chunk.Constants[inst.Operand].(*value.ObjString).Value
			if _, exists := vm.globals[name]; !exists && len(vm.globals) >= maxGlobals {
				return nil, newError(CodeMemory, vm.stackTrace(), "too many global variables (max %d)", maxGlobals)
			}
			vm.globals[name] = vm.top()

		case bytecode.OpCall:
			argc := inst.Operand
			args := vm.popN(argc)
			callee := vm.pop()
			result, err := vm.invokeValue(callee, nil, args, "")
			if err != nil {
				if cont := vm.tryHandleErr(fr, err); cont {
					continue
				}
				return nil, err
			}
			if err := vm.push(result); err != nil {
				return nil, err
			}

		case bytecode.OpInvoke:
			nameIdx, argc := bytecode.UnpackNameArgc(inst.Operand)
			selector := fr.chunk.Constants[nameIdx].(*value.ObjString).Value
			args := vm.popN(argc)
			receiver := vm.pop()
			result, err := vm.dispatchInvoke(fr, receiver, selector, args)
			if err != nil {
				if cont := vm.tryHandleErr(fr, err); cont {
					continue
				}
				return nil, err
			}
			if err := vm.push(result); err != nil {
				return nil, err
			}

		case bytecode.OpGetSuper:
			nameIdx, argc := bytecode.UnpackNameArgc(inst.Operand)
			selector := fr.chunk.Constants[nameIdx].(*value.ObjString).Value
			args := vm.popN(argc)
			thisVal := vm.pop()
			result, err := vm.dispatchSuper(fr, thisVal, selector, args)
			if err != nil {
				if cont := vm.tryHandleErr(fr, err); cont {
					continue
				}
				return nil, err
			}
			if err := vm.push(result); err != nil {
				return nil, err
			}

		case bytecode.OpReturn:
			return vm.pop(), nil

		case bytecode.OpArrayNew:
			n := inst.Operand
			elems := make([]value.Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			arr := vm.NewArray(elems)
			if err := vm.push(arr); err != nil {
				return nil, err
			}

		case bytecode.OpMapNew:
			n := inst.Operand
			m := vm.NewMap()
			base := vm.sp - 2*n
			for i := 0; i < n; i++ {
				k := vm.stack[base+2*i]
				v := vm.stack[base+2*i+1]
				m.Set(k, v)
			}
			vm.sp = base
			if err := vm.push(m); err != nil {
				return nil, err
			}

		case bytecode.OpArrayGet:
			key, container := vm.pop(), vm.pop()
			result, err := vm.indexGet(fr, container, key)
			if err != nil {
				if cont := vm.tryHandle(fr, err); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), err)
			}
			if err := vm.push(result); err != nil {
				return nil, err
			}

		case bytecode.OpArraySet:
			val, key, container := vm.pop(), vm.pop(), vm.pop()
			exc, err := vm.indexSet(container, key, val)
			if err != nil {
				return nil, err
			}
			if exc != nil {
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}
			if err := vm.push(val); err != nil {
				return nil, err
			}

		case bytecode.OpArrayLen:
			c := vm.pop()
			n, err := vm.length(c)
			if err != nil {
				if cont := vm.tryHandle(fr, err); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), err)
			}
			vm.push(value.Number(n))

		case bytecode.OpMapGet:
			key, container := vm.pop(), vm.pop()
			m, ok := container.(*value.ObjMap)
			if !ok {
				exc := vm.newException("TypeError", "map_get on non-map value", fr.currentLine())
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}
			v, found := m.Get(key)
			if !found {
				v = value.Nil{}
			}
			vm.push(v)

		case bytecode.OpMapSet:
			val, key, container := vm.pop(), vm.pop(), vm.pop()
			m, ok := container.(*value.ObjMap)
			if !ok {
				exc := vm.newException("TypeError", "map_set on non-map value", fr.currentLine())
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}
			m.Set(key, val)
			if obj, ok := val.(value.Object); ok {
				vm.gc.WriteBarrier(m, obj)
			}
			vm.push(val)

		case bytecode.OpMapLen:
			c := vm.pop()
			m, ok := c.(*value.ObjMap)
			if !ok {
				exc := vm.newException("TypeError", "map_len on non-map value", fr.currentLine())
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}
			vm.push(value.Number(m.Len()))

		case bytecode.OpStringInterpolate:
			n := inst.Operand
			var b []byte
			for i := 0; i < n; i++ {
				b = append(b, vm.stack[vm.sp-n+i].String()...)
			}
			vm.sp -= n
			if err := vm.push(vm.NewString(string(b))); err != nil {
				return nil, err
			}

		case bytecode.OpTryBegin:
			fr.handlers = append(fr.handlers, handler{target: fr.chunk.TryTargets[inst.Operand], stackBase: vm.sp})
		case bytecode.OpTryEnd:
			// Bookkeeping only; the compiler resumes normal control
			// flow via an explicit JUMP past the catch/finally region.
		case bytecode.OpPopHandler:
			if len(fr.handlers) > 0 {
				fr.handlers = fr.handlers[:len(fr.handlers)-1]
			}
		case bytecode.OpThrow:
			msg, typ := vm.pop(), vm.pop()
			ts, ok1 := typ.(*value.ObjString)
			ms, ok2 := msg.(*value.ObjString)
			if !ok1 || !ok2 {
				return nil, newError(CodeType, vm.stackTrace(), "throw requires string type and message operands")
			}
			exc := vm.newException(ts.Value, ms.Value, fr.currentLine())
			if cont := vm.tryHandle(fr, exc); cont {
				continue
			}
			return nil, uncaughtError(vm.stackTrace(), exc)
		case bytecode.OpRethrow:
			exc := fr.pending
			fr.pending = nil
			if exc == nil {
				return nil, newError(CodeInternal, vm.stackTrace(), "rethrow with no pending exception")
			}
			if cont := vm.tryHandle(fr, exc); cont {
				continue
			}
			return nil, uncaughtError(vm.stackTrace(), exc)

		case bytecode.OpClassDef:
			name := fr.chunk.Constants[inst.Operand].(*value.ObjString)
			cls := value.NewClass(name, nil)
			vm.gc.Register(cls)
			vm.classes[name.Value] = cls
			if err := vm.push(cls); err != nil {
				return nil, err
			}

		case bytecode.OpInherit:
			super, cls := vm.pop(), vm.pop()
			sup, ok := super.(*value.ObjClass)
			classVal, ok2 := cls.(*value.ObjClass)
			if !ok || !ok2 {
				return nil, newError(CodeType, vm.stackTrace(), "class extends a non-class value")
			}
			classVal.Superclass = sup
			if err := vm.push(classVal); err != nil {
				return nil, err
			}

		case bytecode.OpMethodDef:
			name := fr.chunk.Constants[inst.Operand].(*value.ObjString)
			fnVal := vm.pop()
			fn, ok := fnVal.(*value.ObjFunction)
			if !ok {
				return nil, newError(CodeInternal, vm.stackTrace(), "method body constant was not a function")
			}
			cls, ok := vm.top().(*value.ObjClass)
			if !ok {
				return nil, newError(CodeInternal, vm.stackTrace(), "METHOD_DEF with no class on stack")
			}
			cls.Methods[name.Value] = fn

		case bytecode.OpInstanceNew:
			argc := inst.Operand
			args := vm.popN(argc)
			classVal := vm.pop()
			cls, ok := classVal.(*value.ObjClass)
			if !ok {
				return nil, newError(CodeType, vm.stackTrace(), "'new' on a non-class value")
			}
			inst := value.NewInstance(cls)
			vm.gc.Register(inst)
			if init, ok := cls.LookupMethod("init"); ok {
				if _, err := vm.callFunction(init, inst, args, "init"); err != nil {
					if cont := vm.tryHandleErr(fr, err); cont {
						continue
					}
					return nil, err
				}
			}
			if err := vm.push(inst); err != nil {
				return nil, err
			}

		case bytecode.OpGetProperty:
			name := fr.chunk.Constants[inst.Operand].(*value.ObjString).Value
			obj := vm.pop()
			result, err := vm.getProperty(fr, obj, name)
			if err != nil {
				if cont := vm.tryHandle(fr, err); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), err)
			}
			if err := vm.push(result); err != nil {
				return nil, err
			}

		case bytecode.OpSetProperty:
			name := fr.chunk.Constants[inst.Operand].(*value.ObjString).Value
			val, obj := vm.pop(), vm.pop()
			inst, ok := obj.(*value.ObjInstance)
			if !ok {
				exc := vm.newException("TypeError", "cannot set property on non-instance value", fr.currentLine())
				if cont := vm.tryHandle(fr, exc); cont {
					continue
				}
				return nil, uncaughtError(vm.stackTrace(), exc)
			}
			inst.Fields[name] = val
			if obj, ok := val.(value.Object); ok {
				vm.gc.WriteBarrier(inst, obj)
			}
			if err := vm.push(val); err != nil {
				return nil, err
			}

		default:
			return nil, newError(CodeInternal, vm.stackTrace(), "unimplemented opcode %s", inst.Op)
		}
	}
}

func (vm *VM) popN(n int) []value.Value {
	args := make([]value.Value, n)
	copy(args, vm.stack[vm.sp-n:vm.sp])
	vm.sp -= n
	return args
}

// tryHandle attempts to catch exc within fr, jumping into its catch or
// finally clause on success.
func (vm *VM) tryHandle(fr *frame, exc *value.ObjException) bool {
	return vm.raise(fr, exc)
}

// tryHandleErr unwraps a RuntimeError carrying a propagating Ember
// exception and offers it to fr's own handler stack, the mechanism
// that lets an exception thrown deep in a callee still be caught by a
// try block in one of its callers (spec §4.F "propagates by
// unwinding call frames").
func (vm *VM) tryHandleErr(fr *frame, err error) bool {
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Exception == nil {
		return false
	}
	return vm.raise(fr, rerr.Exception)
}

func (vm *VM) raise(fr *frame, exc *value.ObjException) bool {
	if len(fr.handlers) == 0 {
		return false
	}
	h := fr.handlers[len(fr.handlers)-1]
	fr.handlers = fr.handlers[:len(fr.handlers)-1]
	vm.sp = h.stackBase
	if h.target.HasCatch() {
		_ = vm.push(exc)
		fr.ip = h.target.CatchStart
	} else {
		fr.pending = exc
		fr.ip = h.target.FinallyStart
	}
	return true
}

// handleOrBubble adapts vm.arith's *value.ObjException-or-nil error
// shape to the tryHandleErr/return-up-the-Go-stack pattern used by the
// rest of the dispatch loop.
func (vm *VM) handleOrBubble(fr *frame, exc *value.ObjException) (*RuntimeError, bool) {
	if vm.tryHandle(fr, exc) {
		return nil, true
	}
	return uncaughtError(vm.stackTrace(), exc), false
}

func (vm *VM) arith(fr *frame, op bytecode.Opcode) *value.ObjException {
	b, a := vm.pop(), vm.pop()

	if op == bytecode.OpAdd {
		if as, ok := a.(*value.ObjString); ok {
			if bs, ok := b.(*value.ObjString); ok {
				vm.push(vm.NewString(as.Value + bs.Value))
				return nil
			}
		}
	}

	an, aok := a.(value.Number)
	bn, bok := b.(value.Number)
	if !aok || !bok {
		return vm.newException("TypeError", "arithmetic requires two numbers", fr.currentLine())
	}
	switch op {
	case bytecode.OpAdd:
		vm.push(an + bn)
	case bytecode.OpSub:
		vm.push(an - bn)
	case bytecode.OpMul:
		vm.push(an * bn)
	case bytecode.OpDiv:
		if bn == 0 {
			return vm.newException("ArithmeticError", "division by zero", fr.currentLine())
		}
		vm.push(an / bn)
	case bytecode.OpMod:
		if bn == 0 {
			return vm.newException("ArithmeticError", "modulo by zero", fr.currentLine())
		}
		ai, bi := float64(an), float64(bn)
		vm.push(value.Number(ai - bi*float64(int64(ai/bi))))
	}
	return nil
}

func (vm *VM) compare(fr *frame, op bytecode.Opcode) *value.ObjException {
	b, a := vm.pop(), vm.pop()
	an, aok := a.(value.Number)
	bn, bok := b.(value.Number)
	if !aok || !bok {
		return vm.newException("TypeError", "comparison requires two numbers", fr.currentLine())
	}
	var result bool
	switch op {
	case bytecode.OpLt:
		result = an < bn
	case bytecode.OpLe:
		result = an <= bn
	case bytecode.OpGt:
		result = an > bn
	case bytecode.OpGe:
		result = an >= bn
	}
	vm.push(value.Bool(result))
	return nil
}

func (vm *VM) indexGet(fr *frame, container, key value.Value) (value.Value, *value.ObjException) {
	switch c := container.(type) {
	case *value.ObjArray:
		idx, ok := numberToIndex(key)
		if !ok {
			return nil, vm.newException("TypeError", "array index must be a number", fr.currentLine())
		}
		v, ok := c.Get(idx)
		if !ok {
			return nil, vm.newException("IndexError", "array index out of bounds: "+strconv.Itoa(idx), fr.currentLine())
		}
		return v, nil
	case *value.ObjMap:
		v, ok := c.Get(key)
		if !ok {
			return value.Nil{}, nil
		}
		return v, nil
	case *value.ObjString:
		idx, ok := numberToIndex(key)
		if !ok || idx < 0 || idx >= len(c.Value) {
			return nil, vm.newException("IndexError", "string index out of bounds", fr.currentLine())
		}
		return vm.NewString(string(c.Value[idx])), nil
	default:
		return nil, vm.newException("TypeError", "value is not indexable", fr.currentLine())
	}
}

func (vm *VM) indexSet(container, key, val value.Value) (*value.ObjException, error) {
	switch c := container.(type) {
	case *value.ObjArray:
		idx, ok := numberToIndex(key)
		if !ok || !c.Set(idx, val) {
			return vm.newException("IndexError", "array index out of bounds", 0), nil
		}
		if obj, ok := val.(value.Object); ok {
			vm.gc.WriteBarrier(c, obj)
		}
		return nil, nil
	case *value.ObjMap:
		c.Set(key, val)
		if obj, ok := val.(value.Object); ok {
			vm.gc.WriteBarrier(c, obj)
		}
		return nil, nil
	default:
		return vm.newException("TypeError", "value does not support index assignment", 0), nil
	}
}

func (vm *VM) length(v value.Value) (int, *value.ObjException) {
	switch c := v.(type) {
	case *value.ObjArray:
		return c.Len(), nil
	case *value.ObjMap:
		return c.Len(), nil
	case *value.ObjString:
		return len(c.Value), nil
	default:
		return 0, vm.newException("TypeError", "value has no length", 0)
	}
}

func numberToIndex(v value.Value) (int, bool) {
	n, ok := v.(value.Number)
	if !ok {
		return 0, false
	}
	return int(n), true
}

// getProperty implements GET_PROPERTY's lookup order: instance
// fields shadow methods (spec §4.E), and a small set of read-only
// pseudo-properties expose container length without a dedicated
// opcode for every container kind.
func (vm *VM) getProperty(fr *frame, obj value.Value, name string) (value.Value, *value.ObjException) {
	switch o := obj.(type) {
	case *value.ObjInstance:
		if v, ok := o.Fields[name]; ok {
			return v, nil
		}
		if m, ok := o.Class.LookupMethod(name); ok {
			bm := &value.ObjBoundMethod{Receiver: o, Method: m}
			vm.gc.Register(bm)
			return bm, nil
		}
		return nil, vm.newException("PropertyError", "undefined property: "+name, fr.currentLine())
	case *value.ObjArray:
		if name == "length" {
			return value.Number(o.Len()), nil
		}
	case *value.ObjMap:
		if name == "length" {
			return value.Number(o.Len()), nil
		}
	case *value.ObjString:
		if name == "length" {
			return value.Number(len(o.Value)), nil
		}
	case *value.ObjClass:
		if name == "name" {
			return o.Name, nil
		}
	case *value.ObjException:
		switch name {
		case "type":
			return o.Type, nil
		case "message":
			return o.Message, nil
		case "line":
			return value.Number(o.Line), nil
		}
	}
	return nil, vm.newException("TypeError", "value has no property "+name, fr.currentLine())
}

// dispatchInvoke implements INVOKE's property-then-method lookup
// (spec §4.E): a field holding a callable wins over a method of the
// same name, otherwise the receiver's class method table is searched
// and the result bound to the receiver as `this`.
func (vm *VM) dispatchInvoke(fr *frame, receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	inst, ok := receiver.(*value.ObjInstance)
	if !ok {
		// Non-instance receivers (arrays, strings, maps, natives held
		// in a variable) are invoked as plain calls against whatever
		// value the property resolves to.
		prop, perr := vm.getProperty(fr, receiver, selector)
		if perr != nil {
			return nil, uncaughtError(vm.stackTrace(), perr)
		}
		return vm.invokeValue(prop, nil, args, selector)
	}
	if field, ok := inst.Fields[selector]; ok {
		return vm.invokeValue(field, nil, args, selector)
	}
	method, ok := inst.Class.LookupMethod(selector)
	if !ok {
		exc := vm.newException("PropertyError", "undefined method: "+selector, fr.currentLine())
		return nil, uncaughtError(vm.stackTrace(), exc)
	}
	return vm.callFunction(method, inst, args, selector)
}

func (vm *VM) dispatchSuper(fr *frame, thisVal value.Value, selector string, args []value.Value) (value.Value, error) {
	inst, ok := thisVal.(*value.ObjInstance)
	if !ok || fr.class == nil || fr.class.Superclass == nil {
		exc := vm.newException("RuntimeError", "'super' used without a superclass in scope", fr.currentLine())
		return nil, uncaughtError(vm.stackTrace(), exc)
	}
	method, ok := fr.class.Superclass.LookupMethod(selector)
	if !ok {
		exc := vm.newException("PropertyError", "undefined superclass method: "+selector, fr.currentLine())
		return nil, uncaughtError(vm.stackTrace(), exc)
	}
	return vm.callFunction(method, inst, args, selector)
}
