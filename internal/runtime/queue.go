package runtime

import "github.com/loomkit/loom/internal/factory"

// The pending-work queues represent a discrete wave of work per update
// call: they are drained (snapshot, then clear), never polled. All of
// them are owned by the runtime's single writer goroutine; the
// single-writer guard lives on Update, so no locking is needed here.

// Change is an ephemeral (context, field) record created when a bound
// cell fires. It is consumed exactly once per drain.
type Change struct {
	Ctx   any
	Field string
}

// pendingQueue is a FIFO of factories ready to produce instances.
// A factory appears at most once; re-pushing an enqueued factory is a
// no-op, which keeps cascading readiness transitions from producing
// duplicate drains.
type pendingQueue struct {
	items []*factory.Factory
	index map[*factory.Factory]bool
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{index: make(map[*factory.Factory]bool)}
}

// push enqueues f unless it is already pending.
func (q *pendingQueue) push(f *factory.Factory) {
	if q.index[f] {
		return
	}
	q.index[f] = true
	q.items = append(q.items, f)
}

// drain returns the queued factories in FIFO order and clears the queue.
func (q *pendingQueue) drain() []*factory.Factory {
	items := q.items
	q.items = nil
	q.index = make(map[*factory.Factory]bool)
	return items
}

// len returns the number of pending factories.
func (q *pendingQueue) len() int {
	return len(q.items)
}

// contextSet is an insertion-ordered set of context instances.
// Buckets and the decontextualized set need both set semantics (no
// duplicate membership effects) and deterministic iteration order.
type contextSet struct {
	items []any
	index map[any]int
}

func newContextSet() *contextSet {
	return &contextSet{index: make(map[any]int)}
}

// add inserts ctx; duplicate inserts are no-ops. Reports whether the
// set changed.
func (s *contextSet) add(ctx any) bool {
	if _, ok := s.index[ctx]; ok {
		return false
	}
	s.index[ctx] = len(s.items)
	s.items = append(s.items, ctx)
	return true
}

// remove deletes ctx preserving insertion order of the remainder.
// Reports whether the set changed.
func (s *contextSet) remove(ctx any) bool {
	i, ok := s.index[ctx]
	if !ok {
		return false
	}
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	delete(s.index, ctx)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
	return true
}

// has reports membership.
func (s *contextSet) has(ctx any) bool {
	_, ok := s.index[ctx]
	return ok
}

// first returns the earliest-inserted member, or nil when empty.
func (s *contextSet) first() any {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[0]
}

// snapshot returns a copy of the members in insertion order.
func (s *contextSet) snapshot() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// drain returns the members in insertion order and clears the set.
func (s *contextSet) drain() []any {
	items := s.items
	s.items = nil
	s.index = make(map[any]int)
	return items
}

// size returns the member count.
func (s *contextSet) size() int {
	return len(s.items)
}
