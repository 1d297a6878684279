// Package queue implements the bounded, multi-producer/multi-consumer FIFO
// that backs every stage of the upload pipeline: a mutex-guarded deque
// plus in-progress counter, condition variables for blocking push/pop/
// wait, and safety-on-drop so a worker that panics or returns early
// never silently loses an item.
package queue

import (
	"sync"

	"github.com/cuemby/haumaru/internal/log"
)

// Queue is a bounded FIFO of T. The zero value is not usable; construct
// with New. The handle is the *Queue pointer: every copy of the pointer
// references the same queue. Copying the struct value does not share state.
type Queue[T any] struct {
	name    string
	maxLen  int // 0 means unbounded
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	inFlght int
}

// New creates a Queue named for log attribution, with the given capacity.
// A maxLen of 0 means unbounded.
func New[T any](name string, maxLen int) *Queue[T] {
	q := &Queue[T]{name: name, maxLen: maxLen}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends t, blocking while the queue is at capacity. Capacity is
// measured against len-1, so a bounded queue of N always has room for
// one more in-flight item beyond what's sitting in the buffer.
func (q *Queue[T]) Push(t T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.maxLen > 0 && len(q.items) >= q.maxLen-1 {
		q.cond.Wait()
	}
	q.items = append(q.items, t)
	q.cond.Broadcast()
}

// Item wraps a popped value. The consumer MUST call Done to report whether
// processing succeeded; if Done is never called (e.g. a panic unwinds past
// it) the item is lost from this handle's perspective, so pipeline workers
// wrap their processing in a recover()-guarded function that always calls
// Done in a defer — see internal/pipeline.
type Item[T any] struct {
	q     *Queue[T]
	value T
	done  bool
}

// Value returns the wrapped item.
func (it *Item[T]) Value() T { return it.value }

// Done reports the outcome of processing. On success the item is retired.
// On failure it is re-enqueued at the back exactly once.
func (it *Item[T]) Done(success bool) {
	if it.done {
		return
	}
	it.done = true
	it.q.complete(it.value, success)
}

func (q *Queue[T]) complete(t T, success bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlght--
	if !success {
		log.WithComponent("queue").Warn().Str("queue", q.name).Msg("item dropped without success; re-enqueuing")
		q.items = append(q.items, t)
	}
	q.cond.Broadcast()
}

// Pop blocks until an item is available, then returns it wrapped so the
// caller can report completion.
func (q *Queue[T]) Pop() *Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	t := q.items[0]
	q.items = q.items[1:]
	q.inFlght++
	q.cond.Broadcast()
	return &Item[T]{q: q, value: t}
}

// TryPop returns an item without blocking, or ok=false if the queue is
// empty.
func (q *Queue[T]) TryPop() (item *Item[T], ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	q.inFlght++
	q.cond.Broadcast()
	return &Item[T]{q: q, value: t}, true
}

// Len reports the number of buffered items plus the number in flight.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) + q.inFlght
}

// InProgress reports the number of popped-but-not-yet-completed items.
func (q *Queue[T]) InProgress() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlght
}

// Wait blocks until both the buffer is empty and no item is in progress.
func (q *Queue[T]) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) != 0 || q.inFlght != 0 {
		q.cond.Wait()
	}
}
