package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(Nil{}))
	assert.False(t, Truthy(Bool(false)))
	assert.False(t, Truthy(Number(0)))
	assert.True(t, Truthy(Bool(true)))
	assert.True(t, Truthy(Number(1)))
	assert.True(t, Truthy(Number(-1)))
	assert.True(t, Truthy(&ObjString{Value: ""}))
}

func TestEqualNumbers(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), Number(2)))
	assert.True(t, Equal(Number(0), Number(0)))
	nan := Number(math.NaN())
	assert.False(t, Equal(nan, nan), "NaN must never equal itself")
}

func TestEqualStringsByIdentityAfterInterning(t *testing.T) {
	in := NewInterner()
	a := in.Intern("hello", func(*ObjString) {})
	b := in.Intern("hello", func(*ObjString) {})
	assert.Same(t, a, b)
	assert.True(t, Equal(a, b))
}

func TestEqualArraysElementwise(t *testing.T) {
	a := NewArray([]Value{Number(1), Number(2)})
	b := NewArray([]Value{Number(1), Number(2)})
	c := NewArray([]Value{Number(1), Number(3)})
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestEqualMapsBySameKeyValueSet(t *testing.T) {
	a := NewMap()
	a.Set(&ObjString{Value: "x"}, Number(1))
	b := NewMap()
	b.Set(&ObjString{Value: "x"}, Number(1))
	assert.True(t, Equal(a, b))

	b.Set(&ObjString{Value: "x"}, Number(2))
	assert.False(t, Equal(a, b))
}

func TestEqualDifferentKindsNeverEqual(t *testing.T) {
	assert.False(t, Equal(Number(0), Bool(false)))
	assert.False(t, Equal(Nil{}, Bool(false)))
}

func TestNumberStringFormatting(t *testing.T) {
	assert.Equal(t, "2", Number(2).String())
	assert.Equal(t, "2.5", Number(2.5).String())
	assert.Equal(t, "NaN", Number(math.NaN()).String())
	assert.Equal(t, "Infinity", Number(math.Inf(1)).String())
	assert.Equal(t, "-Infinity", Number(math.Inf(-1)).String())
}

func TestInternerReturnsSameObjectForEqualContent(t *testing.T) {
	in := NewInterner()
	var allocCount int
	alloc := func(*ObjString) { allocCount++ }

	a := in.Intern("foo", alloc)
	b := in.Intern("foo", alloc)
	c := in.Intern("bar", alloc)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, allocCount)
	assert.Equal(t, 2, in.Len())
}

func TestInternerForget(t *testing.T) {
	in := NewInterner()
	s := in.Intern("gone", func(*ObjString) {})
	in.Forget(s)
	assert.Equal(t, 0, in.Len())
}

func TestArrayPushGetSet(t *testing.T) {
	a := NewArray(nil)
	a.Push(Number(1))
	a.Push(Number(2))
	assert.Equal(t, 2, a.Len())

	v, ok := a.Get(0)
	assert.True(t, ok)
	assert.Equal(t, Number(1), v)

	_, ok = a.Get(5)
	assert.False(t, ok)

	assert.True(t, a.Set(1, Number(99)))
	v, _ = a.Get(1)
	assert.Equal(t, Number(99), v)

	assert.False(t, a.Set(5, Number(0)))
}

func TestHashMapSetGetDelete(t *testing.T) {
	m := NewMap()
	key := &ObjString{Value: "k"}
	m.Set(key, Number(42))

	v, ok := m.Get(key)
	assert.True(t, ok)
	assert.Equal(t, Number(42), v)
	assert.Equal(t, 1, m.Len())

	assert.True(t, m.Delete(key))
	assert.Equal(t, 0, m.Len())
	_, ok = m.Get(key)
	assert.False(t, ok)
}

func TestHashMapGrowsAcrossLoadFactor(t *testing.T) {
	m := NewMap()
	for i := 0; i < 100; i++ {
		m.Set(Number(float64(i)), Number(float64(i*2)))
	}
	assert.Equal(t, 100, m.Len())
	for i := 0; i < 100; i++ {
		v, ok := m.Get(Number(float64(i)))
		assert.True(t, ok)
		assert.Equal(t, Number(float64(i*2)), v)
	}
}

func TestHashMapOverwriteExistingKey(t *testing.T) {
	m := NewMap()
	key := &ObjString{Value: "k"}
	m.Set(key, Number(1))
	m.Set(key, Number(2))
	assert.Equal(t, 1, m.Len())
	v, _ := m.Get(key)
	assert.Equal(t, Number(2), v)
}

func TestHashMapEachVisitsAllLiveEntries(t *testing.T) {
	m := NewMap()
	m.Set(Number(1), Number(10))
	m.Set(Number(2), Number(20))
	seen := map[float64]float64{}
	m.Each(func(k, v Value) bool {
		seen[float64(k.(Number))] = float64(v.(Number))
		return true
	})
	assert.Equal(t, map[float64]float64{1: 10, 2: 20}, seen)
}
