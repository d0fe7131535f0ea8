// Package queue implements the EDF queue (C), the activation queue (D), and the
// waiting-for-event set (E) of spec.md §4.1–§4.2, grounded on the teacher's
// container/heap-based event queues (sim/simulator.go's EventQueue,
// sim/cluster/event_heap.go's EventHeap) which use the same Len/Less/Swap/Push/Pop
// shape with a deterministic multi-key Less.
package queue

import (
	"container/heap"
	"fmt"

	"github.com/gangsched/gangsched/internal/gang"
)

// heapData adapts a slice of tickets plus a comparator to container/heap.Interface,
// keeping each ticket's QueueIndex in sync the way container/heap's documented
// examples recommend for O(log n) removal by reference.
type heapData struct {
	items []*gang.Ticket
	less  func(a, b *gang.Ticket) bool
}

func (h *heapData) Len() int { return len(h.items) }
func (h *heapData) Less(i, j int) bool {
	return h.less(h.items[i], h.items[j])
}
func (h *heapData) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].QueueIndex = i
	h.items[j].QueueIndex = j
}
func (h *heapData) Push(x any) {
	t := x.(*gang.Ticket)
	t.QueueIndex = len(h.items)
	h.items = append(h.items, t)
}
func (h *heapData) Pop() any {
	old := h.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	t.QueueIndex = -1
	return t
}

// orderedQueue is the common implementation behind EDFQueue and ActivationQueue: an
// ordered set of tickets supporting O(log n) insert/remove-by-ref/remove-min and O(1)
// search-by-domain-id.
type orderedQueue struct {
	data     heapData
	location gang.Location
	byDomain map[gang.DomainID]*gang.Ticket
}

func newOrderedQueue(less func(a, b *gang.Ticket) bool, location gang.Location) orderedQueue {
	return orderedQueue{
		data:     heapData{less: less},
		location: location,
		byDomain: make(map[gang.DomainID]*gang.Ticket),
	}
}

// Len returns the number of tickets currently held.
func (q *orderedQueue) Len() int { return q.data.Len() }

// Insert places t into the queue. t must not currently reside in any container.
func (q *orderedQueue) Insert(t *gang.Ticket) {
	heap.Push(&q.data, t)
	t.Location = q.location
	q.byDomain[t.Domain.ID] = t
}

// RemoveByRef excises t, zeroing its link fields so it may be inserted elsewhere
// (spec.md §4.1). Returns an error if t is not presently in this queue.
func (q *orderedQueue) RemoveByRef(t *gang.Ticket) error {
	if t.Location != q.location || t.QueueIndex < 0 || t.QueueIndex >= q.data.Len() || q.data.items[t.QueueIndex] != t {
		return fmt.Errorf("ticket for domain %d is not in this queue", t.Domain.ID)
	}
	heap.Remove(&q.data, t.QueueIndex)
	delete(q.byDomain, t.Domain.ID)
	t.Location = gang.LocationNone
	t.QueueIndex = -1
	return nil
}

// RemoveMin pops and returns the head ticket in this queue's order, or nil if empty.
func (q *orderedQueue) RemoveMin() *gang.Ticket {
	if q.data.Len() == 0 {
		return nil
	}
	t := heap.Pop(&q.data).(*gang.Ticket)
	delete(q.byDomain, t.Domain.ID)
	t.Location = gang.LocationNone
	return t
}

// Peek returns the head ticket without removing it, or nil if empty.
func (q *orderedQueue) Peek() *gang.Ticket {
	if q.data.Len() == 0 {
		return nil
	}
	return q.data.items[0]
}

// SearchByDomainID returns the ticket belonging to domain id, if present.
func (q *orderedQueue) SearchByDomainID(id gang.DomainID) (*gang.Ticket, bool) {
	t, ok := q.byDomain[id]
	return t, ok
}

// Items returns a snapshot of the tickets currently held, in heap storage order (not
// sorted). Intended for read-only scans such as the dispatcher's space-filling
// substitute search; mutating the returned slice does not affect the queue.
func (q *orderedQueue) Items() []*gang.Ticket {
	out := make([]*gang.Ticket, len(q.data.items))
	copy(out, q.data.items)
	return out
}

// EDFQueue orders runnable tickets by (deadline ascending, domain id ascending) — a
// total order; the domain-id tie-break is mandatory for determinism (spec.md §4.1).
type EDFQueue struct {
	orderedQueue
}

// NewEDFQueue returns an empty EDF queue.
func NewEDFQueue() *EDFQueue {
	q := &EDFQueue{orderedQueue: newOrderedQueue(edfLess, gang.LocationEDFQueue)}
	return q
}

func edfLess(a, b *gang.Ticket) bool {
	if a.Deadline != b.Deadline {
		return a.Deadline < b.Deadline
	}
	return a.Domain.ID < b.Domain.ID
}

// ActivationQueue orders not-yet-runnable tickets by (earliest_start_time ascending,
// domain id ascending).
type ActivationQueue struct {
	orderedQueue
}

// NewActivationQueue returns an empty activation queue.
func NewActivationQueue() *ActivationQueue {
	return &ActivationQueue{orderedQueue: newOrderedQueue(activationLess, gang.LocationActivationQueue)}
}

func activationLess(a, b *gang.Ticket) bool {
	if a.EarliestStartTime != b.EarliestStartTime {
		return a.EarliestStartTime < b.EarliestStartTime
	}
	return a.Domain.ID < b.Domain.ID
}
