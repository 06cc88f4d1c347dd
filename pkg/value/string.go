package value

import "hash/fnv"

// ObjString is an immutable, interned byte sequence (spec §3
// "String"). Two ObjStrings with equal content are always the same
// pointer once both have gone through Interner.Intern, so for interned
// strings content equality and pointer equality coincide.
type ObjString struct {
	Header
	Value string
	hash  uint32
}

func (s *ObjString) Kind() Kind     { return KindString }
func (s *ObjString) String() string { return s.Value }

// Hash returns the FNV-1a hash of the string's bytes (spec §3 "Hash
// map ... string->FNV-1a over bytes"), computed once at creation.
func (s *ObjString) Hash() uint32 { return s.hash }

func fnv1a(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// Interner guarantees that equal-content strings share one ObjString,
// per spec §4.A "Strings go through the intern table: intern(bytes)
// -> StringObject returns an existing object if present, otherwise
// allocates and inserts." It is owned by a single VM (spec §5: the
// intern table is "per-VM" in this implementation).
type Interner struct {
	table map[string]*ObjString
}

// NewInterner returns an empty intern table.
func NewInterner() *Interner {
	return &Interner{table: make(map[string]*ObjString)}
}

// Intern returns the canonical ObjString for s, allocating a new one
// via alloc (supplied by the VM so the new object is linked into the
// heap and counted against the allocation threshold) only on first
// sight of this content.
func (in *Interner) Intern(s string, alloc func(*ObjString)) *ObjString {
	if existing, ok := in.table[s]; ok {
		return existing
	}
	obj := &ObjString{Value: s, hash: fnv1a(s)}
	alloc(obj)
	in.table[s] = obj
	return obj
}

// Len returns the number of distinct interned strings, a GC root
// count used by tests asserting on live-object totals (spec §8
// scenario 6).
func (in *Interner) Len() int { return len(in.table) }

// Each calls fn for every interned string; used by the collector to
// mark the intern table as a GC root.
func (in *Interner) Each(fn func(*ObjString)) {
	for _, s := range in.table {
		fn(s)
	}
}

// Forget removes s from the table, so a later Intern of the same
// content allocates a fresh ObjString. The collector does not call it.
func (in *Interner) Forget(s *ObjString) {
	delete(in.table, s.Value)
}
