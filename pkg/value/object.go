package value

// Object is implemented by every heap-allocated Value variant. It is
// the node type for the VM's singly-linked object list (spec §3
// "Heap object... every non-scalar value is a node in a singly-linked
// object list owned by the VM") and carries the collector's mark bit.
//
// Object embeds Value: every heap object is also usable anywhere a
// Value is expected.
type Object interface {
	Value
	header() *Header
}

// Header is embedded in every heap object. It links the object into
// the VM's allocation list and holds the GC's mark bit. pkg/gc flips
// mark bits and walks the list through the package-level
// Marked/SetMarked/Next/SetNext functions below.
type Header struct {
	marked bool
	next   Object
}

func (h *Header) header() *Header { return h }

// Marked reports the object's current mark bit.
func Marked(o Object) bool { return o.header().marked }

// SetMarked sets the object's mark bit. Invariant 2 (spec §3) requires
// this to be false on every object between GC cycles; the sweeper
// clears it on every survivor.
func SetMarked(o Object, v bool) { o.header().marked = v }

// Next returns the next object in the VM's allocation list.
func Next(o Object) Object { return o.header().next }

// SetNext links o to the next object in the VM's allocation list.
func SetNext(o Object, next Object) { o.header().next = next }
