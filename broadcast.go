package server

import (
	"context"
	"time"

	"roomsync/server/internal/net/proto"
	"roomsync/server/internal/telemetry"
	"roomsync/server/logging/network"
)

const (
	defaultFlushInterval  = time.Millisecond
	defaultTickInterval   = 2000 * time.Millisecond
	defaultAvatarInterval = 10 * time.Millisecond
)

// Intervals schedules the three periodic broadcast tasks.
type Intervals struct {
	Flush  time.Duration
	Tick   time.Duration
	Avatar time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Flush:  defaultFlushInterval,
		Tick:   defaultTickInterval,
		Avatar: defaultAvatarInterval,
	}
}

// normalized replaces non-positive intervals with the defaults.
func (i Intervals) normalized() Intervals {
	if i.Flush <= 0 {
		i.Flush = defaultFlushInterval
	}
	if i.Tick <= 0 {
		i.Tick = defaultTickInterval
	}
	if i.Avatar <= 0 {
		i.Avatar = defaultAvatarInterval
	}
	return i
}

func (h *Hub) Intervals() Intervals {
	h.intervalsMu.Lock()
	defer h.intervalsMu.Unlock()
	return h.intervals
}

// SetIntervals reschedules the periodic tasks. A running Run loop picks the
// new values up before its next firing.
func (h *Hub) SetIntervals(intervals Intervals) {
	h.intervalsMu.Lock()
	h.intervals = intervals.normalized()
	h.intervalsMu.Unlock()
	select {
	case h.reconfigure <- struct{}{}:
	default:
	}
}

// Run drives the flush, tick and avatar tasks until ctx is cancelled. Queued
// frames are flushed one last time before it returns.
func (h *Hub) Run(ctx context.Context) {
	intervals := h.Intervals()
	flush := time.NewTicker(intervals.Flush)
	tick := time.NewTicker(intervals.Tick)
	avatar := time.NewTicker(intervals.Avatar)
	defer func() {
		flush.Stop()
		tick.Stop()
		avatar.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			h.Flush()
			return
		case <-h.reconfigure:
			intervals = h.Intervals()
			flush.Reset(intervals.Flush)
			tick.Reset(intervals.Tick)
			avatar.Reset(intervals.Avatar)
		case <-flush.C:
			h.Flush()
		case now := <-tick.C:
			h.Tick(now)
		case <-avatar.C:
			h.BroadcastAvatars()
		}
	}
}

// Flush drains the outbound queue and writes each frame, in queue order, to
// every live connection it addresses. Broadcasts skip their source and direct
// frames to connections that are gone are dropped. A failed write stops
// delivery to that connection for the rest of the pass. Writes happen without
// the hub lock held.
func (h *Hub) Flush() int {
	batch := h.outbound.Drain()
	if len(batch) == 0 {
		return 0
	}
	start := time.Now()

	frames, bytes := 0, 0
	h.connections.ForEachLive(func(conn LiveConnection) {
		for _, msg := range batch {
			if !msg.deliversTo(conn.ID, conn.JoinedSeq) {
				continue
			}
			if err := conn.Transport.Send(msg.Payload); err != nil {
				h.handleSendFailure(conn, len(msg.Payload), err)
				return
			}
			frames++
			bytes += len(msg.Payload)
		}
	})

	h.telemetry.RecordFlush(frames, bytes, time.Since(start))
	h.metrics.Add(telemetry.MetricMessagesFlushedTotal, uint64(frames))
	h.metrics.Add(telemetry.MetricBytesFlushedTotal, uint64(bytes))
	return frames
}

// handleSendFailure marks the connection dead and closes its transport. The
// transport's read loop then runs the normal disconnect path.
func (h *Hub) handleSendFailure(target LiveConnection, size int, err error) {
	h.telemetry.IncrementDropped()
	h.metrics.Add(telemetry.MetricFramesDroppedTotal, 1)
	if !h.connections.MarkDead(target.ID) {
		return
	}
	h.metrics.Store(telemetry.MetricConnectionsLive, uint64(h.connections.LiveCount()))
	h.logger.Printf("send to %s failed, marking connection dead: %v", target.ID, err)
	network.SendFailed(context.Background(), h.publisher, h.ticks.Load(), connRef(target.ID), target.TraceID, network.SendFailedPayload{
		Bytes: size,
		Error: err.Error(),
	})
	target.Transport.Close()
}

// Tick queues the heartbeat carrying the server time in unix milliseconds.
func (h *Hub) Tick(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks.Add(1)
	h.broadcastLocked(proto.TickMessage{Type: proto.TypeTick, Time: now.UnixMilli()})
}

// BroadcastAvatars queues the whole avatar registry when it is not empty.
func (h *Hub) BroadcastAvatars() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.avatars.Len() == 0 {
		return false
	}
	h.broadcastLocked(proto.AvatarBroadcast{Type: proto.TypeAvatar, Data: h.avatars.Snapshot()})
	return true
}
