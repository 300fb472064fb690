// Package events implements EventQueue: the bounded circular FIFO of fill
// events that defer maker settlement to a later consume_events call
// (spec §3, §4.6).
package events

import (
	"fmt"

	"clob/internal/common"
)

// MaxEvents is the fixed capacity spec §3 mandates.
const MaxEvents = 256

// FillEvent records one match, pending maker settlement.
type FillEvent struct {
	MakerOrderID uint64
	MakerOwner   string
	TakerOwner   string
	TakerSide    common.Side
	Price        uint64 // ticks, the maker's resting price (spec §4.4 step 4)
	Quantity     uint64 // lots
}

func (e FillEvent) String() string {
	return fmt.Sprintf(
		`MakerOrderID: %d
MakerOwner:   %s
TakerOwner:   %s
TakerSide:    %v
Price:        %d
Quantity:     %d`,
		e.MakerOrderID,
		e.MakerOwner,
		e.TakerOwner,
		e.TakerSide,
		e.Price,
		e.Quantity,
	)
}

// Queue is a bounded circular FIFO of FillEvent, capacity MaxEvents.
// Slots occupy [head, head+count) mod cap. Production and consumption order
// are both strict: spec invariant 5.
type Queue struct {
	slots []FillEvent
	head  int
	count int
}

// NewQueue constructs an empty queue of the given capacity (0 uses
// MaxEvents).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = MaxEvents
	}
	return &Queue{slots: make([]FillEvent, capacity)}
}

// Len reports how many events are currently queued.
func (q *Queue) Len() int { return q.count }

// Cap reports the fixed capacity.
func (q *Queue) Cap() int { return len(q.slots) }

// Push appends ev at (head+count) mod cap. Fails with ErrEventQueueFull if
// the queue is already at capacity.
func (q *Queue) Push(ev FillEvent) error {
	if q.count == len(q.slots) {
		return common.ErrEventQueueFull
	}
	slot := (q.head + q.count) % len(q.slots)
	q.slots[slot] = ev
	q.count++
	return nil
}

// Front returns the event at the head of the queue without removing it.
func (q *Queue) Front() (FillEvent, bool) {
	if q.count == 0 {
		return FillEvent{}, false
	}
	return q.slots[q.head], true
}

// PopFront advances head by one and decrements count.
func (q *Queue) PopFront() {
	if q.count == 0 {
		return
	}
	q.head = (q.head + 1) % len(q.slots)
	q.count--
}
