package server

import (
	"sync"

	"roomsync/server/internal/telemetry"
)

// Broadcast is the destination of a message meant for every live connection
// except its source. NoSource marks messages no connection originated, which
// therefore reach everyone.
const (
	Broadcast ConnID = 0
	NoSource  ConnID = 0
)

// OutboundMessage is one queued frame. Seq increases by one per push.
type OutboundMessage struct {
	Seq         uint64
	Source      ConnID
	Destination ConnID
	Payload     []byte
}

// deliversTo reports whether the message addresses the connection.
func (m OutboundMessage) deliversTo(id ConnID, joinedSeq uint64) bool {
	if m.Seq <= joinedSeq {
		return false
	}
	if m.Destination == Broadcast {
		return m.Source != id
	}
	return m.Destination == id
}

// OutboundQueue is a FIFO of frames awaiting the next flush. It is safe for
// concurrent producers and a single consumer. A positive capacity bounds the
// queue; pushes beyond it are dropped and counted.
type OutboundQueue struct {
	mu       sync.Mutex
	items    []OutboundMessage
	seq      uint64
	capacity int
	metrics  telemetry.Metrics
}

func NewOutboundQueue(capacity int, metrics telemetry.Metrics) *OutboundQueue {
	if capacity < 0 {
		capacity = 0
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &OutboundQueue{capacity: capacity, metrics: metrics}
}

// Push appends a frame, returning false when a bounded queue is full.
func (q *OutboundQueue) Push(source, destination ConnID, payload []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.metrics.Add(telemetry.MetricOutboundOverflowTotal, 1)
		return false
	}
	q.seq++
	q.items = append(q.items, OutboundMessage{
		Seq:         q.seq,
		Source:      source,
		Destination: destination,
		Payload:     payload,
	})
	q.storeDepthLocked()
	return true
}

// Drain returns every queued frame in FIFO order and empties the queue.
func (q *OutboundQueue) Drain() []OutboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	drained := q.items
	q.items = nil
	q.storeDepthLocked()
	return drained
}

func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Seq returns the sequence number of the last accepted push.
func (q *OutboundQueue) Seq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

func (q *OutboundQueue) storeDepthLocked() {
	q.metrics.Store(telemetry.MetricOutboundQueueDepth, uint64(len(q.items)))
}
