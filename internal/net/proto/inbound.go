package proto

import (
	"encoding/json"
	"fmt"
)

// Inbound is a decoded client message. The concrete type identifies the
// variant; Reserved and Unknown carry types that are accepted but ignored.
type Inbound interface {
	MessageType() string
}

type ObjectRequest struct {
	UID    UID             `json:"uid"`
	LockID LockID          `json:"lockid"`
	State  json.RawMessage `json:"state"`
}

type SpawnRequest struct {
	UID    UID             `json:"uid"`
	LockID LockID          `json:"lockid"`
	State  json.RawMessage `json:"state"`
}

type DeleteRequest struct {
	UID UID `json:"uid"`
}

type LockRequest struct {
	UID    UID    `json:"uid"`
	LockID LockID `json:"lockid"`
}

type ReleaseRequest struct {
	UID    UID    `json:"uid"`
	LockID LockID `json:"lockid"`
}

type ActivateRequest struct {
	UID UID `json:"uid"`
}

type DeactivateRequest struct {
	UID UID `json:"uid"`
}

type RestartRequest struct{}

// AvatarUpdate replaces the sender's avatar record. The optional user field
// is informational; records are always keyed by the sending connection.
type AvatarUpdate struct {
	User  json.RawMessage `json:"user,omitempty"`
	State json.RawMessage `json:"state"`
}

type CalibrateRequest struct {
	FixedPoints []Point `json:"fixedPoints"`
	InputPoints []Point `json:"inputPoints"`
}

// Reserved is a known type with no server behaviour yet.
type Reserved struct {
	Type string
}

// Unknown is any other type, including a missing one.
type Unknown struct {
	Type string
}

func (ObjectRequest) MessageType() string     { return TypeObject }
func (SpawnRequest) MessageType() string      { return TypeSpawn }
func (DeleteRequest) MessageType() string     { return TypeDelete }
func (LockRequest) MessageType() string       { return TypeLock }
func (ReleaseRequest) MessageType() string    { return TypeRelease }
func (ActivateRequest) MessageType() string   { return TypeActivate }
func (DeactivateRequest) MessageType() string { return TypeDeactivate }
func (RestartRequest) MessageType() string    { return TypeRestart }
func (AvatarUpdate) MessageType() string      { return TypeAvatar }
func (CalibrateRequest) MessageType() string  { return TypeCalibrate }
func (m Reserved) MessageType() string        { return m.Type }
func (m Unknown) MessageType() string         { return m.Type }

// Point is a calibration sample on the floor plane. It decodes from
// {"x":..,"z":..} objects or from [x, y, z] / [x, z] arrays; y is dropped.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err == nil {
		switch len(coords) {
		case 2:
			p.X, p.Z = coords[0], coords[1]
		case 3:
			p.X, p.Z = coords[0], coords[2]
		default:
			return fmt.Errorf("proto: point needs 2 or 3 coordinates, got %d", len(coords))
		}
		return nil
	}
	var obj struct {
		X float64 `json:"x"`
		Z float64 `json:"z"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("proto: decode point: %w", err)
	}
	p.X, p.Z = obj.X, obj.Z
	return nil
}

// Decode parses one client frame. An error means the frame was malformed and
// should be discarded without a response.
func Decode(data []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch envelope.Type {
	case TypeObject:
		return decodeAs[ObjectRequest](data)
	case TypeSpawn:
		return decodeAs[SpawnRequest](data)
	case TypeDelete:
		return decodeAs[DeleteRequest](data)
	case TypeLock:
		return decodeAs[LockRequest](data)
	case TypeRelease:
		return decodeAs[ReleaseRequest](data)
	case TypeActivate:
		return decodeAs[ActivateRequest](data)
	case TypeDeactivate:
		return decodeAs[DeactivateRequest](data)
	case TypeRestart:
		return RestartRequest{}, nil
	case TypeAvatar:
		return decodeAs[AvatarUpdate](data)
	case TypeCalibrate:
		return decodeAs[CalibrateRequest](data)
	}
	if IsReserved(envelope.Type) {
		return Reserved{Type: envelope.Type}, nil
	}
	return Unknown{Type: envelope.Type}, nil
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.MessageType(), err)
	}
	return msg, nil
}
