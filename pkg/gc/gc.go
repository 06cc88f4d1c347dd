// Package gc implements Ember's stop-the-world mark-and-sweep
// collector (spec §4.B). It is deliberately decoupled from pkg/vm:
// the collector touches objects through the value.Object interface
// and value.Children (plus a per-type size estimate in approxSize),
// and only ever asks its caller for
// roots through the RootProvider interface, so the VM does not need
// to hand the collector its internals and the collector does not need
// to import pkg/vm.
package gc

import (
	"github.com/sirupsen/logrus"

	"github.com/ember-lang/ember/pkg/value"
)

// RootProvider is implemented by the VM. GCRoots must return every
// heap object directly reachable from VM state: the live slice of the
// operand stack, the live slice of locals, globals, handler-captured
// state, the pending exception (if any), chunks referenced from call
// frames, and the string-intern table (spec §4.B "Roots are...").
type RootProvider interface {
	GCRoots() []value.Object
}

// minThreshold is the smallest next_gc value the collector will ever
// set, so a program that allocates almost nothing doesn't trigger a
// collection on every single object.
const minThreshold = 1 << 20 // 1 MiB

// Stats summarizes one completed collection cycle, logged at debug
// level and returned to callers (e.g. a `gc_collect` native) that want
// to report on it.
type Stats struct {
	BytesBefore int
	BytesAfter  int
	Freed       int
	Live        int
	NextGC      int
}

// Collector owns the VM's object list and allocation accounting. Each
// VM has exactly one Collector (spec §5 "per-VM", no sharing between
// VM instances).
type Collector struct {
	head           value.Object
	bytesAllocated int
	nextGC         int
	count          int
	log            *logrus.Entry
}

// New returns a collector with next_gc set to the minimum threshold.
func New(log *logrus.Entry) *Collector {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Collector{nextGC: minThreshold, log: log}
}

// approxSize returns a rough per-kind byte estimate used purely to
// drive the allocation threshold; it does not need to be exact, only
// monotonic with how much memory a variant actually tends to use.
func approxSize(o value.Object) int {
	switch o.(type) {
	case *value.ObjString:
		return 48
	case *value.ObjArray:
		return 56
	case *value.ObjMap:
		return 128
	case *value.ObjInstance:
		return 64
	case *value.ObjClass:
		return 96
	case *value.ObjFunction:
		return 80
	case *value.ObjBoundMethod:
		return 32
	case *value.ObjException:
		return 64
	case *value.Native:
		return 32
	default:
		return 32
	}
}

// Register links a freshly allocated object into the VM's object
// list and charges its estimated size against the allocation counter
// (spec §4.A "Lifecycle: Heap objects are created exclusively through
// the allocator component, which links them into the VM's list and
// increments an allocation counter").
func (c *Collector) Register(o value.Object) {
	value.SetNext(o, c.head)
	c.head = o
	c.bytesAllocated += approxSize(o)
	c.count++
}

// WriteBarrier is the hook every container mutation that installs a
// heap reference (array element set, map set, instance field set)
// must call (spec §4.B "Write barrier"). The baseline mark-and-sweep
// collector has nothing to do here — there is no generational or
// incremental invariant to maintain — but the call site must exist so
// a future collector strategy has somewhere to hook in without the
// VM's container-mutation opcodes changing.
func (c *Collector) WriteBarrier(container, referent value.Object) {
	_ = container
	_ = referent
}

// ShouldCollect reports whether bytesAllocated has crossed next_gc.
func (c *Collector) ShouldCollect() bool {
	return c.bytesAllocated >= c.nextGC
}

// BytesAllocated and Count expose the collector's current accounting,
// used by tests and by the `gc_collect` native's return value.
func (c *Collector) BytesAllocated() int { return c.bytesAllocated }
func (c *Collector) Count() int          { return c.count }

// Collect runs one full mark-and-sweep cycle regardless of whether
// the threshold was crossed (spec §4.B "A collection may also be
// requested explicitly by the host").
func (c *Collector) Collect(roots RootProvider) Stats {
	before := c.bytesAllocated
	c.mark(roots)
	freed, live := c.sweep()
	c.bytesAllocated -= freed
	next := c.bytesAllocated * 2
	if next < minThreshold {
		next = minThreshold
	}
	// If survivors are large enough that doubling still leaves us
	// under the current footprint, grow to match it instead (spec
	// §4.B "it may leave the allocation counter above the threshold
	// if survivors are large, in which case the threshold is grown
	// accordingly").
	if next < c.bytesAllocated {
		next = c.bytesAllocated * 2
	}
	c.nextGC = next
	c.count = live

	stats := Stats{BytesBefore: before, BytesAfter: c.bytesAllocated, Freed: freedBytes(before, c.bytesAllocated), Live: live, NextGC: c.nextGC}
	c.log.WithFields(logrus.Fields{
		"bytes_before": stats.BytesBefore,
		"bytes_after":  stats.BytesAfter,
		"live_objects": stats.Live,
		"next_gc":      stats.NextGC,
	}).Debug("gc: cycle complete")
	return stats
}

func freedBytes(before, after int) int {
	if before < after {
		return 0
	}
	return before - after
}

// mark performs a worklist-based traversal from every GC root,
// setting the mark bit on each object exactly once (spec §4.B
// "Already-marked objects terminate the walk").
func (c *Collector) mark(roots RootProvider) {
	var worklist []value.Object
	for _, r := range roots.GCRoots() {
		if r != nil && !value.Marked(r) {
			value.SetMarked(r, true)
			worklist = append(worklist, r)
		}
	}
	for len(worklist) > 0 {
		n := len(worklist) - 1
		obj := worklist[n]
		worklist = worklist[:n]
		for _, child := range value.Children(obj) {
			if child != nil && !value.Marked(child) {
				value.SetMarked(child, true)
				worklist = append(worklist, child)
			}
		}
	}
}

// sweep walks the object list, freeing unmarked nodes and clearing
// the mark bit on survivors (spec §4.B "Sweeping"), restoring
// invariant 2 (mark bits false outside a GC cycle).
func (c *Collector) sweep() (freed int, live int) {
	var survivors value.Object
	var tail value.Object
	node := c.head
	for node != nil {
		next := value.Next(node)
		if value.Marked(node) {
			value.SetMarked(node, false)
			value.SetNext(node, nil)
			if survivors == nil {
				survivors = node
				tail = node
			} else {
				value.SetNext(tail, node)
				tail = node
			}
			live++
		} else {
			freed += approxSize(node)
		}
		node = next
	}
	c.head = survivors
	return freed, live
}
