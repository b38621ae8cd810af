package server

import (
	"testing"

	"roomsync/server/internal/telemetry"
)

type recordingMetrics struct {
	added  map[string]uint64
	stored map[string]uint64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{added: make(map[string]uint64), stored: make(map[string]uint64)}
}

func (m *recordingMetrics) Add(key string, delta uint64)   { m.added[key] += delta }
func (m *recordingMetrics) Store(key string, value uint64) { m.stored[key] = value }

func TestOutboundQueueDrainsInOrder(t *testing.T) {
	metrics := newRecordingMetrics()
	queue := NewOutboundQueue(0, metrics)
	queue.Push(NoSource, Broadcast, []byte("a"))
	queue.Push(2, Broadcast, []byte("b"))
	queue.Push(NoSource, 5, []byte("c"))

	if metrics.stored[telemetry.MetricOutboundQueueDepth] != 3 {
		t.Fatalf("expected depth gauge 3, got %d", metrics.stored[telemetry.MetricOutboundQueueDepth])
	}

	batch := queue.Drain()
	if len(batch) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(batch))
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(batch[i].Payload) != want || batch[i].Seq != uint64(i+1) {
			t.Fatalf("unexpected message %d: %+v", i, batch[i])
		}
	}
	if queue.Len() != 0 || queue.Drain() != nil {
		t.Fatalf("expected queue to be empty after drain")
	}
	if queue.Seq() != 3 {
		t.Fatalf("expected sequence to survive drain, got %d", queue.Seq())
	}
}

func TestOutboundQueueCapacity(t *testing.T) {
	metrics := newRecordingMetrics()
	queue := NewOutboundQueue(1, metrics)
	if !queue.Push(NoSource, Broadcast, []byte("a")) {
		t.Fatalf("expected first push to fit")
	}
	if queue.Push(NoSource, Broadcast, []byte("b")) {
		t.Fatalf("expected push beyond capacity to fail")
	}
	if metrics.added[telemetry.MetricOutboundOverflowTotal] != 1 {
		t.Fatalf("expected overflow to be counted")
	}
}

func TestOutboundMessageAddressing(t *testing.T) {
	broadcast := OutboundMessage{Seq: 5, Source: 2, Destination: Broadcast}
	if broadcast.deliversTo(2, 0) {
		t.Fatalf("expected broadcast to skip its source")
	}
	if !broadcast.deliversTo(3, 0) {
		t.Fatalf("expected broadcast to reach other connections")
	}
	if broadcast.deliversTo(3, 5) {
		t.Fatalf("expected connections registered after the push to be skipped")
	}

	everyone := OutboundMessage{Seq: 6, Source: NoSource, Destination: Broadcast}
	if !everyone.deliversTo(2, 0) {
		t.Fatalf("expected sourceless broadcast to reach every connection")
	}

	direct := OutboundMessage{Seq: 7, Destination: 4}
	if !direct.deliversTo(4, 0) || direct.deliversTo(3, 0) {
		t.Fatalf("expected direct message to reach only its destination")
	}
}
