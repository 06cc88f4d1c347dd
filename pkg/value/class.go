package value

// ObjClass models a class declaration (spec §3 "Class"): an interned
// name, a method table, and an optional superclass reference used by
// GET_SUPER lookups and instance construction.
type ObjClass struct {
	Header
	Name       *ObjString
	Methods    map[string]*ObjFunction
	Superclass *ObjClass
}

func (c *ObjClass) Kind() Kind     { return KindClass }
func (c *ObjClass) String() string { return "<class " + c.Name.Value + ">" }

// NewClass returns an empty class with no methods and no superclass.
func NewClass(name *ObjString, super *ObjClass) *ObjClass {
	return &ObjClass{
		Name:       name,
		Methods:    make(map[string]*ObjFunction),
		Superclass: super,
	}
}

// LookupMethod walks the superclass chain starting at c, returning
// the first method found for selector and whether one was found.
// Instance field access always wins over a method of the same name
// (spec §4.E "INVOKE performs property-then-method lookup... fields
// shadow methods") — that precedence is enforced by the VM at the
// call site, not here; LookupMethod only ever resolves methods.
func (c *ObjClass) LookupMethod(selector string) (*ObjFunction, bool) {
	for cls := c; cls != nil; cls = cls.Superclass {
		if fn, ok := cls.Methods[selector]; ok {
			return fn, true
		}
	}
	return nil, false
}

// ObjInstance is an object of a given class with its own field
// storage (spec §3 "Instance: reference to its class and a field map
// (name -> Value)").
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields map[string]Value
}

func (i *ObjInstance) Kind() Kind     { return KindInstance }
func (i *ObjInstance) String() string { return "<instance of " + i.Class.Name.Value + ">" }

// NewInstance returns a freshly allocated instance of cls with an
// empty field map.
func NewInstance(cls *ObjClass) *ObjInstance {
	return &ObjInstance{Class: cls, Fields: make(map[string]Value)}
}

// ObjBoundMethod pairs a receiver with the function it was resolved
// to (spec §3 "Bound method: pair of (receiver, function); invariant:
// receiver is an instance and function is callable"). Binding happens
// at the INVOKE call site; bound methods are materialized as first-
// class values only when a method reference escapes a direct call
// (e.g. passed as a callback).
type ObjBoundMethod struct {
	Header
	Receiver *ObjInstance
	Method   *ObjFunction
}

func (b *ObjBoundMethod) Kind() Kind { return KindBoundMethod }
func (b *ObjBoundMethod) String() string {
	return "<bound method " + b.Method.Name + ">"
}
