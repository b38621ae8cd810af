package server

import (
	"context"
	"encoding/json"
	stdlog "log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"roomsync/server/internal/net/proto"
	"roomsync/server/internal/telemetry"
	"roomsync/server/logging"
	"roomsync/server/logging/lifecycle"
	"roomsync/server/logging/network"
)

// ActivatePolicy selects when an activate request succeeds.
type ActivatePolicy string

const (
	// ActivateObserved succeeds only for objects that are already active.
	ActivateObserved ActivatePolicy = "observed"
	// ActivateExists succeeds for any existing object and marks it active.
	ActivateExists ActivatePolicy = "exists"
)

// SnapshotArchive receives the store snapshot taken by a restart. Snapshots
// are write-only from the Hub's side.
type SnapshotArchive interface {
	Put(ctx context.Context, capturedAt time.Time, objects map[string]proto.ObjectView) (string, error)
}

// HubConfig captures the tunables and collaborators of a Hub.
type HubConfig struct {
	Intervals        Intervals
	OutboundCapacity int
	ActivatePolicy   ActivatePolicy
	// StrictDelete requires the sender to already hold the lock.
	StrictDelete bool
	Logger       *stdlog.Logger
	Metrics      telemetry.Metrics
	Clock        logging.Clock
	Archive      SnapshotArchive
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		Intervals:      DefaultIntervals(),
		ActivatePolicy: ActivateObserved,
	}
}

// Hub owns the shared object store, the avatar registry, the connection
// registry and the outbound queue. Every mutation runs under mu, so handlers
// never interleave and lock checks are atomic with the mutations they guard.
type Hub struct {
	mu          sync.Mutex
	store       *ObjectStore
	avatars     *AvatarRegistry
	connections *ConnectionRegistry
	outbound    *OutboundQueue

	cfg       HubConfig
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     logging.Clock
	telemetry *telemetryCounters

	intervalsMu sync.Mutex
	intervals   Intervals
	reconfigure chan struct{}

	ticks    atomic.Uint64
	archives sync.WaitGroup
}

// NewHub creates a hub with default configuration and no event sink.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig(), nil)
}

func NewHubWithConfig(cfg HubConfig, pub logging.Publisher) *Hub {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	if cfg.ActivatePolicy == "" {
		cfg.ActivatePolicy = ActivateObserved
	}
	logger := cfg.Logger
	if logger == nil {
		logger = stdlog.Default()
	}

	return &Hub{
		store:       NewObjectStore(),
		avatars:     NewAvatarRegistry(),
		connections: NewConnectionRegistry(),
		outbound:    NewOutboundQueue(cfg.OutboundCapacity, metrics),
		cfg:         cfg,
		logger:      telemetry.WrapLogger(logger),
		metrics:     metrics,
		publisher:   pub,
		clock:       clock,
		telemetry:   newTelemetryCounters(),
		intervals:   cfg.Intervals.normalized(),
		reconfigure: make(chan struct{}, 1),
	}
}

// Connect registers a transport, queues its initialize snapshot and announces
// it to everyone else. The returned id is also the connection's lock token
// for delete requests.
func (h *Hub) Connect(transport Transport) ConnID {
	traceID := uuid.NewString()

	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.connections.Register(transport, traceID, h.outbound.Seq())
	objects := h.store.Snapshot()
	avatars := h.avatars.Snapshot()
	h.sendLocked(id, proto.NewInitialize(uint64(id), objects, avatars))
	h.enqueueLocked(id, Broadcast, proto.JoinMessage{Type: proto.TypeJoin, ID: uint64(id)})

	live := h.connections.LiveCount()
	h.metrics.Add(telemetry.MetricConnectionsTotal, 1)
	h.metrics.Store(telemetry.MetricConnectionsLive, uint64(live))
	lifecycle.ConnectionOpened(context.Background(), h.publisher, h.ticks.Load(), connRef(id), traceID, lifecycle.ConnectionOpenedPayload{
		Objects: len(objects),
		Avatars: len(avatars),
		Live:    live,
	})
	return id
}

// Disconnect removes the connection and its avatar and announces the leave to
// everyone still connected. Repeated calls are no-ops.
func (h *Hub) Disconnect(id ConnID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	traceID := h.connections.TraceID(id)
	if !h.connections.Unregister(id) {
		return false
	}
	hadAvatar := h.avatars.Remove(id)
	h.enqueueLocked(NoSource, Broadcast, proto.LeaveMessage{Type: proto.TypeLeave, User: uint64(id)})

	live := h.connections.LiveCount()
	h.metrics.Store(telemetry.MetricConnectionsLive, uint64(live))
	h.metrics.Store(telemetry.MetricAvatars, uint64(h.avatars.Len()))
	lifecycle.ConnectionClosed(context.Background(), h.publisher, h.ticks.Load(), connRef(id), traceID, lifecycle.ConnectionClosedPayload{
		HadAvatar: hadAvatar,
		Live:      live,
	})
	return true
}

// HandleMessage parses one inbound frame and dispatches it. Malformed frames
// are dropped without a response and the connection stays open.
func (h *Hub) HandleMessage(id ConnID, data []byte) {
	h.telemetry.IncrementInbound()
	h.metrics.Add(telemetry.MetricInboundMessagesTotal, 1)

	msg, err := proto.Decode(data)
	if err != nil {
		h.telemetry.IncrementMalformed()
		h.metrics.Add(telemetry.MetricInboundMalformedTotal, 1)
		h.logger.Printf("discarding malformed message from %s: %v", id, err)
		network.MalformedFrame(context.Background(), h.publisher, h.ticks.Load(), connRef(id), h.connections.TraceID(id), network.MalformedFramePayload{
			Bytes: len(data),
			Error: err.Error(),
		})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections.Has(id) {
		return
	}
	h.dispatchLocked(id, msg)
}

// enqueueLocked marshals payload and appends it to the outbound queue.
func (h *Hub) enqueueLocked(source, destination ConnID, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal outbound message: %v", err)
		return
	}
	if !h.outbound.Push(source, destination, data) {
		h.logger.Printf("outbound queue full, dropping message for %s", destination)
	}
}

// sendLocked queues payload for one connection.
func (h *Hub) sendLocked(id ConnID, payload any) {
	h.enqueueLocked(NoSource, id, payload)
}

// broadcastLocked queues payload for every live connection, the sender
// included.
func (h *Hub) broadcastLocked(payload any) {
	h.enqueueLocked(NoSource, Broadcast, payload)
}

// ConnectionCount reports the number of registered connections.
func (h *Hub) ConnectionCount() int {
	return h.connections.Len()
}

// HubDiagnostics is the state summary served on /diagnostics.
type HubDiagnostics struct {
	Connections     []ConnID          `json:"connections"`
	LiveConnections int               `json:"liveConnections"`
	Objects         int               `json:"objects"`
	Avatars         int               `json:"avatars"`
	QueueDepth      int               `json:"queueDepth"`
	Ticks           uint64            `json:"ticks"`
	Intervals       map[string]string `json:"intervals"`
	ActivatePolicy  ActivatePolicy    `json:"activatePolicy"`
	StrictDelete    bool              `json:"strictDelete"`
}

func (h *Hub) DiagnosticsSnapshot() HubDiagnostics {
	h.mu.Lock()
	objects := h.store.Len()
	avatars := h.avatars.Len()
	h.mu.Unlock()

	intervals := h.Intervals()
	return HubDiagnostics{
		Connections:     h.connections.IDs(),
		LiveConnections: h.connections.LiveCount(),
		Objects:         objects,
		Avatars:         avatars,
		QueueDepth:      h.outbound.Len(),
		Ticks:           h.ticks.Load(),
		Intervals: map[string]string{
			"flush":  intervals.Flush.String(),
			"tick":   intervals.Tick.String(),
			"avatar": intervals.Avatar.String(),
		},
		ActivatePolicy: h.cfg.ActivatePolicy,
		StrictDelete:   h.cfg.StrictDelete,
	}
}

func (h *Hub) TelemetrySnapshot() TelemetrySnapshot {
	return h.telemetry.Snapshot()
}

// ObjectsSnapshot copies the current store contents.
func (h *Hub) ObjectsSnapshot() map[string]proto.ObjectView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Snapshot()
}

// WaitArchives blocks until pending snapshot archive writes finish.
func (h *Hub) WaitArchives() {
	h.archives.Wait()
}

func connRef(id ConnID) logging.EntityRef {
	return logging.EntityRef{ID: id.String(), Kind: logging.EntityKindConnection}
}

func objectRef(uid proto.UID) logging.EntityRef {
	return logging.EntityRef{ID: string(uid), Kind: logging.EntityKindObject}
}
