// Package value implements Ember's value model and heap object system
// (spec §3, §4.A): a tagged union of scalar and heap-allocated
// variants, string interning, structural equality, hashing, and
// truthiness.
//
// Scalars (Nil, Bool, Number) are plain Go values wrapped in the
// Value interface. Everything else is a heap Object: a node in the
// VM's object list that the collector in pkg/gc walks. Polymorphism
// throughout this package is an explicit switch on Kind rather than a
// class hierarchy, per spec §9 "prefer a tagged-variant representation
// over a deep class hierarchy."
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags a Value's variant.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindFunction
	KindNative
	KindArray
	KindHashMap
	KindException
	KindClass
	KindInstance
	KindBoundMethod
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindNative:
		return "native"
	case KindArray:
		return "array"
	case KindHashMap:
		return "hash_map"
	case KindException:
		return "exception"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindBoundMethod:
		return "bound_method"
	default:
		return "unknown"
	}
}

// Value is implemented by every Ember runtime value, scalar or heap.
type Value interface {
	Kind() Kind
	String() string
}

// Nil is the single nil value. It is not a heap object: there is
// nothing to mark or sweep.
type Nil struct{}

func (Nil) Kind() Kind     { return KindNil }
func (Nil) String() string { return "nil" }

// Bool wraps a boolean scalar.
type Bool bool

func (Bool) Kind() Kind        { return KindBool }
func (b Bool) String() string  { return strconv.FormatBool(bool(b)) }

// Number wraps an IEEE-754 double, Ember's only numeric type (spec §1
// Non-goals: "numeric types beyond IEEE-754 double").
type Number float64

func (Number) Kind() Kind { return KindNumber }

func (n Number) String() string {
	f := float64(n)
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	// Print integral floats without a trailing ".0", matching how a
	// dynamically typed scripting language usually prints 2+2.
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Truthy implements Ember's truthiness predicate (spec §3, glossary):
// nil, false, and numeric zero are falsy; everything else is truthy.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case Nil:
		return false
	case Bool:
		return bool(x)
	case Number:
		return float64(x) != 0
	default:
		return true
	}
}

// Equal implements Ember's value-equality rules (spec §3):
// numbers compare by bit pattern, except that NaN is never equal to
// anything, itself included (consistent with IEEE-754); strings by
// content (interned strings short-circuit on identity); arrays by length and element-wise equality; hash maps by
// same key set with equal values; everything else by identity.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Nil:
		return true
	case Bool:
		return av == b.(Bool)
	case Number:
		bv := float64(b.(Number))
		if math.IsNaN(float64(av)) || math.IsNaN(bv) {
			return false
		}
		return math.Float64bits(float64(av)) == math.Float64bits(bv)
	case *ObjString:
		bv := b.(*ObjString)
		return av == bv || av.Value == bv.Value
	case *ObjArray:
		bv := b.(*ObjArray)
		if len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *ObjMap:
		bv := b.(*ObjMap)
		if av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Each(func(k, v Value) bool {
			ov, ok := bv.Get(k)
			if !ok || !Equal(v, ov) {
				equal = false
				return false
			}
			return true
		})
		return equal
	default:
		return a == b
	}
}

// Print renders a value the way the `print`/`println` natives and
// string interpolation do: strings unquoted, everything else via
// String().
func Print(v Value) string {
	if s, ok := v.(*ObjString); ok {
		return s.Value
	}
	return v.String()
}

// Inspect renders a value the way it would appear as source (quoted
// strings), used by the disassembler and error messages that quote a
// constant.
func Inspect(v Value) string {
	switch x := v.(type) {
	case *ObjString:
		return strconv.Quote(x.Value)
	case *ObjArray:
		parts := make([]string, len(x.Elements))
		for i, e := range x.Elements {
			parts[i] = Inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.String()
	}
}

// TypeError is returned by arithmetic/comparison helpers when operand
// types don't support the operation (spec §4.E "ADD ... otherwise
// throws a type error"); the VM turns this into an Ember exception
// rather than an internal error.
type TypeError struct {
	Op   string
	A, B Value
}

func (e *TypeError) Error() string {
	if e.B == nil {
		return fmt.Sprintf("type error: %s does not support %s", e.A.Kind(), e.Op)
	}
	return fmt.Sprintf("type error: cannot %s %s and %s", e.Op, e.A.Kind(), e.B.Kind())
}
