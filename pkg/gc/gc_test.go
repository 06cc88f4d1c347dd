package gc

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-lang/ember/pkg/value"
)

type fakeRoots struct {
	roots []value.Object
}

func (f *fakeRoots) GCRoots() []value.Object { return f.roots }

func newCollector() *Collector {
	return New(logrus.NewEntry(logrus.New()))
}

func TestRegisterLinksIntoObjectList(t *testing.T) {
	c := newCollector()
	a := &value.ObjString{Value: "a"}
	b := &value.ObjString{Value: "b"}
	c.Register(a)
	c.Register(b)
	assert.Equal(t, 2, c.Count())
	assert.Greater(t, c.BytesAllocated(), 0)
}

func TestCollectSweepsUnreachableObjects(t *testing.T) {
	c := newCollector()
	reachable := &value.ObjString{Value: "kept"}
	garbage := &value.ObjString{Value: "garbage"}
	c.Register(reachable)
	c.Register(garbage)

	roots := &fakeRoots{roots: []value.Object{reachable}}
	stats := c.Collect(roots)

	assert.Equal(t, 1, stats.Live)
	assert.Greater(t, stats.Freed, 0)
	assert.Equal(t, 1, c.Count())
}

func TestCollectTraversesArrayChildren(t *testing.T) {
	c := newCollector()
	leaf := &value.ObjString{Value: "leaf"}
	arr := value.NewArray([]value.Value{leaf})
	orphan := &value.ObjString{Value: "orphan"}

	c.Register(leaf)
	c.Register(arr)
	c.Register(orphan)

	roots := &fakeRoots{roots: []value.Object{arr}}
	stats := c.Collect(roots)

	assert.Equal(t, 2, stats.Live, "array and its element should survive")
}

func TestCollectClearsMarkBitsOnSurvivors(t *testing.T) {
	c := newCollector()
	obj := &value.ObjString{Value: "x"}
	c.Register(obj)
	roots := &fakeRoots{roots: []value.Object{obj}}

	c.Collect(roots)
	assert.False(t, value.Marked(obj), "survivors must leave GC with cleared mark bits")

	c.Collect(roots)
	assert.False(t, value.Marked(obj))
}

func TestShouldCollectCrossesThreshold(t *testing.T) {
	c := newCollector()
	require.False(t, c.ShouldCollect())
	for i := 0; i < 50000; i++ {
		c.Register(&value.ObjString{Value: "x"})
	}
	assert.True(t, c.ShouldCollect())
}

func TestCollectGrowsThresholdAfterCycle(t *testing.T) {
	c := newCollector()
	var objs []value.Object
	for i := 0; i < 50000; i++ {
		o := &value.ObjString{Value: "x"}
		c.Register(o)
		objs = append(objs, o)
	}
	roots := &fakeRoots{roots: objs}
	stats := c.Collect(roots)
	assert.Positive(t, stats.NextGC)
	assert.False(t, c.ShouldCollect(), "next_gc should grow past the post-collection footprint")
}
