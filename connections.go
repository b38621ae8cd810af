package server

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

// ConnID identifies one transport session. Zero is never assigned.
type ConnID uint64

func (id ConnID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Transport is the write side of a client session. Send must not block on
// network I/O; implementations buffer and report failure instead.
type Transport interface {
	Send(data []byte) error
	Close() error
}

type connection struct {
	id        ConnID
	transport Transport
	traceID   string
	joinedSeq uint64
	live      atomic.Bool
}

// ConnectionRegistry maps connection ids to transports and tracks liveness.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	conns  map[ConnID]*connection
	nextID atomic.Uint64
}

// LiveConnection is a stable copy of a registry entry handed to iteration.
type LiveConnection struct {
	ID        ConnID
	Transport Transport
	TraceID   string
	JoinedSeq uint64
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[ConnID]*connection)}
}

// Register assigns the next id and marks the connection live. joinedSeq is
// the outbound sequence at registration; older queued messages skip it.
func (r *ConnectionRegistry) Register(transport Transport, traceID string, joinedSeq uint64) ConnID {
	id := ConnID(r.nextID.Add(1))
	conn := &connection{id: id, transport: transport, traceID: traceID, joinedSeq: joinedSeq}
	conn.live.Store(true)

	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()
	return id
}

// Unregister removes the connection and closes its transport if it was still
// live. It reports whether the id was registered.
func (r *ConnectionRegistry) Unregister(id ConnID) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	if conn.live.Swap(false) && conn.transport != nil {
		conn.transport.Close()
	}
	return true
}

func (r *ConnectionRegistry) Has(id ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *ConnectionRegistry) IsLive(id ConnID) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	return ok && conn.live.Load()
}

// MarkDead flags the connection as failed. It returns true only for the
// call that flipped the flag, so the caller closes the transport once.
func (r *ConnectionRegistry) MarkDead(id ConnID) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.live.CompareAndSwap(true, false)
}

// TraceID returns the session trace id recorded at registration.
func (r *ConnectionRegistry) TraceID(id ConnID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.conns[id]; ok {
		return conn.traceID
	}
	return ""
}

// ForEachLive calls fn for every connection live at the start of the pass, in
// id order. fn runs without the registry lock held, and connections that die
// during the pass are skipped.
func (r *ConnectionRegistry) ForEachLive(fn func(conn LiveConnection)) {
	r.mu.RLock()
	snapshot := make([]LiveConnection, 0, len(r.conns))
	for _, conn := range r.conns {
		if !conn.live.Load() || conn.transport == nil {
			continue
		}
		snapshot = append(snapshot, LiveConnection{
			ID:        conn.id,
			Transport: conn.transport,
			TraceID:   conn.traceID,
			JoinedSeq: conn.joinedSeq,
		})
	}
	r.mu.RUnlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })

	for _, conn := range snapshot {
		if !r.IsLive(conn.ID) {
			continue
		}
		fn(conn)
	}
}

// Len counts registered connections, live or not.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *ConnectionRegistry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, conn := range r.conns {
		if conn.live.Load() {
			count++
		}
	}
	return count
}

// IDs lists registered connection ids in ascending order.
func (r *ConnectionRegistry) IDs() []ConnID {
	r.mu.RLock()
	ids := make([]ConnID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
