package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	framesFlushed       atomic.Uint64
	bytesFlushed        atomic.Uint64
	framesDropped       atomic.Uint64
	inboundMessages     atomic.Uint64
	inboundMalformed    atomic.Uint64
	lockRejections      atomic.Uint64
	lastFlushFrames     atomic.Uint64
	flushDurationMicros atomic.Int64
	debug               bool
}

// TelemetrySnapshot is the counter view served on /diagnostics.
type TelemetrySnapshot struct {
	FramesFlushed      uint64 `json:"framesFlushed"`
	BytesFlushed       uint64 `json:"bytesFlushed"`
	FramesDropped      uint64 `json:"framesDropped"`
	InboundMessages    uint64 `json:"inboundMessages"`
	InboundMalformed   uint64 `json:"inboundMalformed"`
	LockRejections     uint64 `json:"lockRejections"`
	LastFlushFrames    uint64 `json:"lastFlushFrames"`
	FlushDurationMicro int64  `json:"flushDurationMicros"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordFlush(frames, bytes int, duration time.Duration) {
	if frames < 0 {
		frames = 0
	}
	if bytes < 0 {
		bytes = 0
	}
	t.framesFlushed.Add(uint64(frames))
	t.bytesFlushed.Add(uint64(bytes))
	t.lastFlushFrames.Store(uint64(frames))
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	t.flushDurationMicros.Store(micros)
	if t.debug && frames > 0 {
		fmt.Printf(
			"[telemetry] flush=%dus frames=%d bytes=%d totalFrames=%d totalBytes=%d\n",
			micros,
			frames,
			bytes,
			t.framesFlushed.Load(),
			t.bytesFlushed.Load(),
		)
	}
}

func (t *telemetryCounters) IncrementDropped() {
	t.framesDropped.Add(1)
}

func (t *telemetryCounters) IncrementInbound() {
	t.inboundMessages.Add(1)
}

func (t *telemetryCounters) IncrementMalformed() {
	t.inboundMalformed.Add(1)
}

func (t *telemetryCounters) IncrementLockRejected() {
	t.lockRejections.Add(1)
}

func (t *telemetryCounters) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		FramesFlushed:      t.framesFlushed.Load(),
		BytesFlushed:       t.bytesFlushed.Load(),
		FramesDropped:      t.framesDropped.Load(),
		InboundMessages:    t.inboundMessages.Load(),
		InboundMalformed:   t.inboundMalformed.Load(),
		LockRejections:     t.lockRejections.Load(),
		LastFlushFrames:    t.lastFlushFrames.Load(),
		FlushDurationMicro: t.flushDurationMicros.Load(),
	}
}
