package server

import (
	"testing"
	"time"
)

func TestTelemetryCountersAccumulateFlushes(t *testing.T) {
	counters := newTelemetryCounters()
	counters.RecordFlush(3, 120, 40*time.Microsecond)
	counters.RecordFlush(2, 80, 25*time.Microsecond)
	counters.RecordFlush(-1, -5, -time.Second)
	counters.IncrementDropped()
	counters.IncrementInbound()
	counters.IncrementInbound()
	counters.IncrementMalformed()
	counters.IncrementLockRejected()

	snapshot := counters.Snapshot()
	if snapshot.FramesFlushed != 5 {
		t.Fatalf("expected 5 frames flushed, got %d", snapshot.FramesFlushed)
	}
	if snapshot.BytesFlushed != 200 {
		t.Fatalf("expected 200 bytes flushed, got %d", snapshot.BytesFlushed)
	}
	if snapshot.LastFlushFrames != 0 {
		t.Fatalf("expected negative flush to clamp to zero, got %d", snapshot.LastFlushFrames)
	}
	if snapshot.FlushDurationMicro != 0 {
		t.Fatalf("expected negative duration to clamp to zero, got %d", snapshot.FlushDurationMicro)
	}
	if snapshot.FramesDropped != 1 || snapshot.InboundMessages != 2 || snapshot.InboundMalformed != 1 || snapshot.LockRejections != 1 {
		t.Fatalf("unexpected counters %+v", snapshot)
	}
}
