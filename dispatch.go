package server

import (
	"context"

	"roomsync/server/internal/calibration"
	"roomsync/server/internal/net/proto"
	"roomsync/server/internal/telemetry"
	"roomsync/server/logging/network"
	"roomsync/server/logging/objects"
)

// dispatchLocked routes one decoded message. Rejections are answered to the
// sender only; accepted mutations are broadcast to every connection.
func (h *Hub) dispatchLocked(sender ConnID, msg proto.Inbound) {
	switch m := msg.(type) {
	case proto.ObjectRequest:
		h.handleObjectLocked(sender, m)
	case proto.SpawnRequest:
		h.handleSpawnLocked(sender, m)
	case proto.DeleteRequest:
		h.handleDeleteLocked(sender, m)
	case proto.LockRequest:
		h.handleLockLocked(sender, m)
	case proto.ReleaseRequest:
		h.handleReleaseLocked(sender, m)
	case proto.ActivateRequest:
		h.handleActivateLocked(sender, m)
	case proto.DeactivateRequest:
		h.handleDeactivateLocked(m)
	case proto.RestartRequest:
		h.handleRestartLocked(sender)
	case proto.AvatarUpdate:
		h.avatars.Update(sender, m.State)
		h.metrics.Store(telemetry.MetricAvatars, uint64(h.avatars.Len()))
	case proto.CalibrateRequest:
		h.handleCalibrateLocked(sender, m)
	case proto.Reserved:
		h.ignoreLocked(sender, m.Type, true)
	case proto.Unknown:
		h.ignoreLocked(sender, m.Type, false)
	}
}

func (h *Hub) handleObjectLocked(sender ConnID, req proto.ObjectRequest) {
	if !h.store.Exists(req.UID) || !h.acquireLocked(sender, proto.TypeObject, req.UID, req.LockID) {
		h.rejectLocked(sender, proto.TypeObject, req.UID)
		return
	}
	h.store.SetState(req.UID, req.State)
	h.broadcastLocked(proto.ObjectResult{
		Type:    proto.TypeObject,
		UID:     req.UID,
		State:   req.State,
		LockID:  req.LockID.Normalize(),
		Success: true,
	})
}

func (h *Hub) handleSpawnLocked(sender ConnID, req proto.SpawnRequest) {
	if h.store.Exists(req.UID) {
		h.rejectLocked(sender, proto.TypeSpawn, req.UID)
		return
	}
	h.store.Create(req.UID)
	h.store.SetState(req.UID, req.State)
	h.store.Lock(req.UID, req.LockID)
	h.metrics.Store(telemetry.MetricStoreObjects, uint64(h.store.Len()))
	h.broadcastLocked(proto.ObjectResult{
		Type:    proto.TypeSpawn,
		UID:     req.UID,
		State:   req.State,
		LockID:  req.LockID.Normalize(),
		Success: true,
	})
	objects.Spawned(context.Background(), h.publisher, h.ticks.Load(), connRef(sender), objectRef(req.UID))
}

// handleDeleteLocked checks ownership against the sender's connection id.
// With StrictDelete the sender must already hold the lock; otherwise an
// unlocked object may be deleted by anyone.
func (h *Hub) handleDeleteLocked(sender ConnID, req proto.DeleteRequest) {
	token := proto.LockIDFromConn(uint64(sender))
	allowed := h.store.Exists(req.UID)
	if allowed {
		if h.cfg.StrictDelete {
			owner, _ := h.store.Owner(req.UID)
			allowed = owner == token
			if !allowed {
				h.recordLockRejectedLocked(sender, proto.TypeDelete, req.UID, token)
			}
		} else {
			allowed = h.acquireLocked(sender, proto.TypeDelete, req.UID, token)
		}
	}
	if !allowed {
		h.rejectLocked(sender, proto.TypeDelete, req.UID)
		return
	}
	h.store.Remove(req.UID)
	h.metrics.Store(telemetry.MetricStoreObjects, uint64(h.store.Len()))
	h.broadcastLocked(proto.ObjectResult{Type: proto.TypeDelete, UID: req.UID, Success: true})
	objects.Deleted(context.Background(), h.publisher, h.ticks.Load(), connRef(sender), objectRef(req.UID))
}

func (h *Hub) handleLockLocked(sender ConnID, req proto.LockRequest) {
	if !h.store.Exists(req.UID) || !h.acquireLocked(sender, proto.TypeLock, req.UID, req.LockID) {
		h.rejectLocked(sender, proto.TypeLock, req.UID)
		return
	}
	h.store.Lock(req.UID, req.LockID)
	h.broadcastLocked(proto.ObjectResult{Type: proto.TypeLock, UID: req.UID, Success: true})
}

func (h *Hub) handleReleaseLocked(sender ConnID, req proto.ReleaseRequest) {
	if !h.store.Exists(req.UID) || !h.acquireLocked(sender, proto.TypeRelease, req.UID, req.LockID) {
		h.rejectLocked(sender, proto.TypeRelease, req.UID)
		return
	}
	h.store.Unlock(req.UID)
	h.broadcastLocked(proto.ObjectResult{Type: proto.TypeRelease, UID: req.UID, Success: true})
}

func (h *Hub) handleActivateLocked(sender ConnID, req proto.ActivateRequest) {
	var ok bool
	switch h.cfg.ActivatePolicy {
	case ActivateExists:
		ok = h.store.Exists(req.UID)
	default:
		ok = h.store.IsActive(req.UID)
	}
	if !ok {
		h.rejectLocked(sender, proto.TypeActivate, req.UID)
		return
	}
	h.store.SetActive(req.UID, true)
	h.broadcastLocked(proto.ObjectResult{Type: proto.TypeActivate, UID: req.UID, Success: true})
}

// handleDeactivateLocked always succeeds, even for unknown uids.
func (h *Hub) handleDeactivateLocked(req proto.DeactivateRequest) {
	h.store.SetActive(req.UID, false)
	h.broadcastLocked(proto.ObjectResult{Type: proto.TypeDeactivate, UID: req.UID, Success: true})
}

func (h *Hub) handleRestartLocked(sender ConnID) {
	snapshot := h.store.SnapshotAndClear(h.clock.Now())
	h.metrics.Store(telemetry.MetricStoreObjects, 0)
	h.broadcastLocked(proto.ClearMessage{Type: proto.TypeClear})
	h.logger.Printf("store restarted by %s, discarded %d objects", sender, len(snapshot.Objects))

	tick := h.ticks.Load()
	if h.cfg.Archive == nil {
		objects.StoreRestarted(context.Background(), h.publisher, tick, connRef(sender), objects.StoreRestartedPayload{
			Objects: len(snapshot.Objects),
		})
		return
	}
	h.archives.Add(1)
	go func() {
		defer h.archives.Done()
		key, err := h.cfg.Archive.Put(context.Background(), snapshot.CapturedAt, snapshot.Objects)
		if err != nil {
			h.logger.Printf("failed to archive restart snapshot: %v", err)
		}
		objects.StoreRestarted(context.Background(), h.publisher, tick, connRef(sender), objects.StoreRestartedPayload{
			Objects:    len(snapshot.Objects),
			ArchivedAs: key,
		})
	}()
}

func (h *Hub) handleCalibrateLocked(sender ConnID, req proto.CalibrateRequest) {
	offset, err := calibration.Solve(toCalibrationPoints(req.FixedPoints), toCalibrationPoints(req.InputPoints))
	if err != nil {
		h.logger.Printf("calibration for %s failed: %v", sender, err)
		h.sendLocked(sender, proto.CalibrateFailure())
		return
	}
	h.sendLocked(sender, proto.CalibrateSuccess(offset.X, offset.Z, offset.Theta))
}

func (h *Hub) ignoreLocked(sender ConnID, messageType string, reserved bool) {
	network.UnhandledType(context.Background(), h.publisher, h.ticks.Load(), connRef(sender), h.connections.TraceID(sender), network.UnhandledTypePayload{
		MessageType: messageType,
		Reserved:    reserved,
	})
}

// acquireLocked wraps TryAcquire and records rejections.
func (h *Hub) acquireLocked(sender ConnID, operation string, uid proto.UID, lockID proto.LockID) bool {
	if h.store.TryAcquire(uid, lockID) {
		return true
	}
	h.recordLockRejectedLocked(sender, operation, uid, lockID)
	return false
}

func (h *Hub) recordLockRejectedLocked(sender ConnID, operation string, uid proto.UID, requested proto.LockID) {
	h.telemetry.IncrementLockRejected()
	h.metrics.Add(telemetry.MetricLockRejectionsTotal, 1)
	owner, _ := h.store.Owner(uid)
	objects.LockRejected(context.Background(), h.publisher, h.ticks.Load(), connRef(sender), objectRef(uid), objects.LockRejectedPayload{
		Operation: operation,
		Requested: string(requested.Normalize()),
		Owner:     string(owner),
	})
}

// rejectLocked answers the sender alone with success false.
func (h *Hub) rejectLocked(sender ConnID, messageType string, uid proto.UID) {
	h.sendLocked(sender, proto.ObjectResult{Type: messageType, UID: uid})
}

func toCalibrationPoints(points []proto.Point) []calibration.Point {
	out := make([]calibration.Point, len(points))
	for i, p := range points {
		out[i] = calibration.Point{X: p.X, Z: p.Z}
	}
	return out
}
