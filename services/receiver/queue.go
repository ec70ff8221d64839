package receiver

import (
	"container/heap"

	"nwrcode-go/bus"
	"nwrcode-go/drivers/si4707"
)

// item is one queued command. req is set for bus control requests that
// want a reply; fut for Submit callers.
type item struct {
	cmd si4707.Command
	req *bus.Message
	fut *si4707.Future
	seq uint64
}

// cmdQueue orders by priority, then arrival.
type cmdQueue struct {
	items []*item
	seq   uint64
}

func (q *cmdQueue) Len() int { return len(q.items) }
func (q *cmdQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.cmd.Priority() != b.cmd.Priority() {
		return a.cmd.Priority() < b.cmd.Priority()
	}
	return a.seq < b.seq
}
func (q *cmdQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *cmdQueue) Push(x any)    { q.items = append(q.items, x.(*item)) }
func (q *cmdQueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return it
}

func (q *cmdQueue) push(it *item) {
	q.seq++
	it.seq = q.seq
	heap.Push(q, it)
}

func (q *cmdQueue) pop() *item {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*item)
}

// drain empties the queue, returning the items in run order.
func (q *cmdQueue) drain() []*item {
	out := make([]*item, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, q.pop())
	}
	return out
}
