package value

import (
	"math"
	"reflect"
)

// goldenRatio64 is the standard Fibonacci-hashing multiplier used to
// spread a numeric bit pattern across a 64-bit hash (spec §3 "number
// -> golden-ratio-mixed bit pattern").
const goldenRatio64 uint64 = 0x9E3779B97F4A7C15

// hashKey implements the per-variant key hashing rules of spec §3:
//
//	nil    -> 0
//	bool   -> {0,1}
//	number -> golden-ratio-mixed bit pattern, NaN and +/-0 normalized
//	string -> FNV-1a over bytes
//	array  -> length-prefixed content hash, bounded to first 8 elements
//	other  -> identity
func hashKey(v Value) uint64 {
	switch x := v.(type) {
	case Nil:
		return 0
	case Bool:
		if x {
			return 1
		}
		return 0
	case Number:
		f := float64(x)
		if math.IsNaN(f) {
			f = math.NaN()
		} else if f == 0 {
			f = 0 // normalizes -0 to +0
		}
		bits := math.Float64bits(f) * goldenRatio64
		return bits ^ (bits >> 32)
	case *ObjString:
		return uint64(x.hash)
	case *ObjArray:
		h := uint64(len(x.Elements)) * goldenRatio64
		n := len(x.Elements)
		if n > 8 {
			n = 8
		}
		for i := 0; i < n; i++ {
			h ^= hashKey(x.Elements[i]) + goldenRatio64 + (h << 6) + (h >> 2)
		}
		return h
	default:
		return identityHash(v)
	}
}

// identityHash hashes a heap object by its pointer identity, the
// fallback for classes, instances, maps, functions, natives, bound
// methods, and exceptions used as map keys.
func identityHash(v Value) uint64 {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return uint64(rv.Pointer())
	}
	return 0
}

type mapEntry struct {
	key       Value
	val       Value
	used      bool
	tombstone bool
}

// ObjMap is an open-addressed hash table with linear probing.
// Capacity doubles once length would exceed 0.75 of it.
type ObjMap struct {
	Header
	entries  []mapEntry
	length   int
	occupied int // used slots including tombstones, for resize accounting
}

func (m *ObjMap) Kind() Kind { return KindHashMap }

func (m *ObjMap) String() string {
	return "hash_map"
}

const initialMapCapacity = 8

// NewMap returns an empty hash map.
func NewMap() *ObjMap {
	return &ObjMap{entries: make([]mapEntry, initialMapCapacity)}
}

// Len returns the number of live keys.
func (m *ObjMap) Len() int { return m.length }

func (m *ObjMap) find(key Value, h uint64) (idx int, found bool) {
	mask := uint64(len(m.entries) - 1)
	i := h & mask
	firstTombstone := -1
	for probes := 0; probes < len(m.entries); probes++ {
		e := &m.entries[i]
		if !e.used {
			if e.tombstone {
				if firstTombstone < 0 {
					firstTombstone = int(i)
				}
			} else {
				if firstTombstone >= 0 {
					return firstTombstone, false
				}
				return int(i), false
			}
		} else if Equal(e.key, key) {
			return int(i), true
		}
		i = (i + 1) & mask
	}
	return firstTombstone, false
}

// Get looks up a key.
func (m *ObjMap) Get(key Value) (Value, bool) {
	if len(m.entries) == 0 {
		return nil, false
	}
	idx, found := m.find(key, hashKey(key))
	if !found {
		return nil, false
	}
	return m.entries[idx].val, true
}

// Set inserts or overwrites a key, growing the table first if the
// 0.75 load factor would otherwise be exceeded.
func (m *ObjMap) Set(key, val Value) {
	if m.occupied+1 > (len(m.entries)*3)/4 {
		m.grow()
	}
	idx, found := m.find(key, hashKey(key))
	e := &m.entries[idx]
	if !found {
		if !e.used && !e.tombstone {
			m.occupied++
		}
		m.length++
	}
	e.key = key
	e.val = val
	e.used = true
	e.tombstone = false
}

// Delete removes a key if present, reporting whether it was found.
// Ember's bytecode set doesn't expose a MAP_DELETE opcode, but
// natives (and the implementation of other container operations) use
// this directly.
func (m *ObjMap) Delete(key Value) bool {
	if len(m.entries) == 0 {
		return false
	}
	idx, found := m.find(key, hashKey(key))
	if !found {
		return false
	}
	m.entries[idx] = mapEntry{tombstone: true}
	m.length--
	return true
}

func (m *ObjMap) grow() {
	newCap := len(m.entries) * 2
	if newCap == 0 {
		newCap = initialMapCapacity
	}
	old := m.entries
	m.entries = make([]mapEntry, newCap)
	m.occupied = 0
	for _, e := range old {
		if !e.used {
			continue
		}
		idx, _ := m.find(e.key, hashKey(e.key))
		m.entries[idx] = mapEntry{key: e.key, val: e.val, used: true}
		m.occupied++
	}
}

// Each iterates live entries in table order, stopping early if fn
// returns false. Iteration order is not guaranteed stable across
// inserts, matching a hash table's usual contract.
func (m *ObjMap) Each(fn func(k, v Value) bool) {
	for _, e := range m.entries {
		if e.used {
			if !fn(e.key, e.val) {
				return
			}
		}
	}
}
