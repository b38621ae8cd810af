package proto

import (
	"encoding/json"
)

// Message type identifiers shared by both directions.
const (
	TypeObject     = "object"
	TypeSpawn      = "spawn"
	TypeDelete     = "delete"
	TypeLock       = "lock"
	TypeRelease    = "release"
	TypeActivate   = "activate"
	TypeDeactivate = "deactivate"
	TypeRestart    = "restart"
	TypeAvatar     = "avatar"
	TypeCalibrate  = "calibrate"
)

// Server-only message type identifiers.
const (
	TypeInitialize = "initialize"
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeTick       = "tick"
	TypeClear      = "clear"
)

// Reserved client message types. They are accepted and ignored so older
// servers keep working with newer clients.
const (
	TypeSchedule   = "schedule"
	TypeEvent      = "event"
	TypeWorld      = "world"
	TypeObjectMode = "objectMode"
	TypeEvaluate   = "evaluate"
	TypeUsers      = "users"
)

var reservedTypes = map[string]struct{}{
	TypeSchedule:   {},
	TypeEvent:      {},
	TypeWorld:      {},
	TypeObjectMode: {},
	TypeEvaluate:   {},
	TypeUsers:      {},
}

// IsReserved reports whether the type is known but intentionally unhandled.
func IsReserved(messageType string) bool {
	_, ok := reservedTypes[messageType]
	return ok
}

// ObjectView is the wire form of one shared object.
type ObjectView struct {
	State  json.RawMessage `json:"state"`
	LockID LockID          `json:"lockid"`
	Active bool            `json:"active"`
}

// AvatarView is the wire form of one avatar record.
type AvatarView struct {
	User  uint64          `json:"user"`
	State json.RawMessage `json:"state"`
}

// InitializeMessage is queued to a new connection only.
type InitializeMessage struct {
	Type    string                `json:"type"`
	ID      uint64                `json:"id"`
	Objects map[string]ObjectView `json:"objects"`
	Avatars map[string]AvatarView `json:"avatars"`
}

// JoinMessage announces a new connection to everyone else.
type JoinMessage struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

// LeaveMessage announces a closed connection.
type LeaveMessage struct {
	Type string `json:"type"`
	User uint64 `json:"user"`
}

// TickMessage is the periodic heartbeat. Time is unix milliseconds.
type TickMessage struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
}

// AvatarBroadcast carries the whole avatar registry.
type AvatarBroadcast struct {
	Type string                `json:"type"`
	Data map[string]AvatarView `json:"data"`
}

// ObjectResult answers object, spawn, delete, lock, release, activate and
// deactivate requests. State and LockID are only set for object and spawn.
type ObjectResult struct {
	Type    string          `json:"type"`
	UID     UID             `json:"uid"`
	State   json.RawMessage `json:"state,omitempty"`
	LockID  LockID          `json:"lockid,omitempty"`
	Success bool            `json:"success"`
}

// ClearMessage tells every client the store was reset.
type ClearMessage struct {
	Type string `json:"type"`
}

// CalibrateResult answers a calibrate request. The offset fields are absent
// on failure.
type CalibrateResult struct {
	Type    string   `json:"type"`
	X       *float64 `json:"x,omitempty"`
	Z       *float64 `json:"z,omitempty"`
	Theta   *float64 `json:"theta,omitempty"`
	Success bool     `json:"success"`
}

// NewInitialize builds an initialize message, never emitting null maps.
func NewInitialize(id uint64, objects map[string]ObjectView, avatars map[string]AvatarView) InitializeMessage {
	if objects == nil {
		objects = map[string]ObjectView{}
	}
	if avatars == nil {
		avatars = map[string]AvatarView{}
	}
	return InitializeMessage{Type: TypeInitialize, ID: id, Objects: objects, Avatars: avatars}
}

// CalibrateSuccess builds a successful calibrate response.
func CalibrateSuccess(x, z, theta float64) CalibrateResult {
	return CalibrateResult{Type: TypeCalibrate, X: &x, Z: &z, Theta: &theta, Success: true}
}

// CalibrateFailure builds a failed calibrate response.
func CalibrateFailure() CalibrateResult {
	return CalibrateResult{Type: TypeCalibrate}
}
