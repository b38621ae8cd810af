package server

import (
	"encoding/json"
	"strconv"

	"roomsync/server/internal/net/proto"
)

// AvatarRegistry keeps the latest pose blob per connection. Updates replace
// the whole record; no history is kept.
type AvatarRegistry struct {
	records map[ConnID]json.RawMessage
}

func NewAvatarRegistry() *AvatarRegistry {
	return &AvatarRegistry{records: make(map[ConnID]json.RawMessage)}
}

// Update stores state verbatim as the connection's only avatar record.
func (r *AvatarRegistry) Update(id ConnID, state json.RawMessage) {
	if len(state) == 0 {
		state = json.RawMessage("null")
	}
	r.records[id] = cloneRaw(state)
}

// Remove deletes the record and reports whether one existed. Removing an
// unknown id is not an error.
func (r *AvatarRegistry) Remove(id ConnID) bool {
	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

func (r *AvatarRegistry) Len() int {
	return len(r.records)
}

// Snapshot renders the registry keyed by the decimal connection id.
func (r *AvatarRegistry) Snapshot() map[string]proto.AvatarView {
	views := make(map[string]proto.AvatarView, len(r.records))
	for id, state := range r.records {
		views[strconv.FormatUint(uint64(id), 10)] = proto.AvatarView{User: uint64(id), State: cloneRaw(state)}
	}
	return views
}
