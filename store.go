package server

import (
	"encoding/json"
	"time"

	"roomsync/server/internal/net/proto"
)

// sharedObject is one entry of the object store.
type sharedObject struct {
	state  json.RawMessage
	lockID proto.LockID
	active bool
}

// ObjectStore holds every shared object keyed by uid. It is plain data: the
// Hub serialises all access, so the store carries no lock of its own.
type ObjectStore struct {
	objects map[proto.UID]*sharedObject
}

// StoreSnapshot is the point-in-time copy captured by a restart.
type StoreSnapshot struct {
	CapturedAt time.Time
	Objects    map[string]proto.ObjectView
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[proto.UID]*sharedObject)}
}

func (s *ObjectStore) Exists(uid proto.UID) bool {
	_, ok := s.objects[uid]
	return ok
}

// Create inserts an empty, unlocked, active record. Existing records are left
// alone; callers check Exists first to tell a fresh spawn from a duplicate.
func (s *ObjectStore) Create(uid proto.UID) {
	if _, ok := s.objects[uid]; ok {
		return
	}
	s.objects[uid] = &sharedObject{lockID: proto.Unlocked, active: true}
}

// SetState replaces the state blob. Missing objects are ignored.
func (s *ObjectStore) SetState(uid proto.UID, state json.RawMessage) {
	obj, ok := s.objects[uid]
	if !ok {
		return
	}
	obj.state = cloneRaw(state)
}

// State returns a copy of the object's state blob.
func (s *ObjectStore) State(uid proto.UID) (json.RawMessage, bool) {
	obj, ok := s.objects[uid]
	if !ok {
		return nil, false
	}
	return cloneRaw(obj.state), true
}

// TryAcquire reports whether lockID may act on the object: the lock must be
// free or already held by the same token. It never changes ownership.
func (s *ObjectStore) TryAcquire(uid proto.UID, lockID proto.LockID) bool {
	obj, ok := s.objects[uid]
	if !ok {
		return false
	}
	if obj.lockID.IsUnlocked() {
		return true
	}
	return obj.lockID == lockID.Normalize()
}

// Owner returns the current lock token.
func (s *ObjectStore) Owner(uid proto.UID) (proto.LockID, bool) {
	obj, ok := s.objects[uid]
	if !ok {
		return proto.Unlocked, false
	}
	return obj.lockID.Normalize(), true
}

// Lock sets the owner without checking. Callers must pass TryAcquire first.
func (s *ObjectStore) Lock(uid proto.UID, lockID proto.LockID) {
	if obj, ok := s.objects[uid]; ok {
		obj.lockID = lockID.Normalize()
	}
}

func (s *ObjectStore) Unlock(uid proto.UID) {
	if obj, ok := s.objects[uid]; ok {
		obj.lockID = proto.Unlocked
	}
}

func (s *ObjectStore) SetActive(uid proto.UID, active bool) {
	if obj, ok := s.objects[uid]; ok {
		obj.active = active
	}
}

// IsActive is false for missing objects.
func (s *ObjectStore) IsActive(uid proto.UID) bool {
	obj, ok := s.objects[uid]
	return ok && obj.active
}

func (s *ObjectStore) Remove(uid proto.UID) {
	delete(s.objects, uid)
}

func (s *ObjectStore) Len() int {
	return len(s.objects)
}

// Snapshot copies every object into its wire form.
func (s *ObjectStore) Snapshot() map[string]proto.ObjectView {
	views := make(map[string]proto.ObjectView, len(s.objects))
	for uid, obj := range s.objects {
		views[string(uid)] = proto.ObjectView{
			State:  cloneRaw(obj.state),
			LockID: obj.lockID.Normalize(),
			Active: obj.active,
		}
	}
	return views
}

// SnapshotAndClear captures the store and replaces it with an empty one. The
// reset is irreversible: nothing restores a snapshot into the store.
func (s *ObjectStore) SnapshotAndClear(now time.Time) StoreSnapshot {
	snapshot := StoreSnapshot{CapturedAt: now, Objects: s.Snapshot()}
	s.objects = make(map[proto.UID]*sharedObject)
	return snapshot
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	copied := make(json.RawMessage, len(raw))
	copy(copied, raw)
	return copied
}
