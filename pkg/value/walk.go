package value

// Children returns every heap Object directly referenced by o. The
// collector in pkg/gc uses this to descend the object graph during
// marking without needing to know Ember's concrete object layouts
// (spec §4.B "the visitor descends by variant").
func Children(o Object) []Object {
	var out []Object
	push := func(v Value) {
		if v == nil {
			return
		}
		if obj, ok := v.(Object); ok {
			out = append(out, obj)
		}
	}

	switch x := o.(type) {
	case *ObjArray:
		for _, e := range x.Elements {
			push(e)
		}
	case *ObjMap:
		x.Each(func(k, v Value) bool {
			push(k)
			push(v)
			return true
		})
	case *ObjInstance:
		push(x.Class)
		for _, v := range x.Fields {
			push(v)
		}
	case *ObjClass:
		push(x.Name)
		if x.Superclass != nil {
			push(x.Superclass)
		}
		for _, m := range x.Methods {
			push(m)
		}
	case *ObjBoundMethod:
		push(x.Receiver)
		push(x.Method)
	case *ObjException:
		push(x.Type)
		push(x.Message)
	case *ObjFunction:
		// A function's constant pool may itself hold heap values
		// (string literals, nested function/class constants) that
		// must stay reachable for as long as the function is.
		if x.Chunk != nil {
			for _, c := range x.Chunk.Constants {
				if v, ok := c.(Value); ok {
					push(v)
				}
			}
		}
	case *ObjString, *Native:
		// Leaves: no outgoing references.
	}
	return out
}
