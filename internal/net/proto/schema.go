package proto

import (
	"github.com/invopop/jsonschema"
)

// Version tracks the wire-protocol revision described by Schema.
const Version = 1

// Document bundles one JSON schema per message type and direction.
type Document struct {
	Title    string                        `json:"title"`
	Version  int                           `json:"version"`
	Inbound  map[string]*jsonschema.Schema `json:"inbound"`
	Outbound map[string]*jsonschema.Schema `json:"outbound"`
}

// JSONSchema describes uids as strings or numbers.
func (UID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Application supplied object key",
		OneOf:       []*jsonschema.Schema{{Type: "string"}, {Type: "number"}},
	}
}

// JSONSchema describes lock tokens as strings or numbers; -1 means unlocked.
func (LockID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Lock owner token, -1 when unlocked",
		OneOf:       []*jsonschema.Schema{{Type: "string"}, {Type: "number"}},
	}
}

// Schema reflects every message struct into a single document.
func Schema() Document {
	reflector := jsonschema.Reflector{DoNotReference: true}

	reflect := func(v any, description string) *jsonschema.Schema {
		s := reflector.Reflect(v)
		s.Description = description
		return s
	}

	return Document{
		Title:   "Shared space synchronisation protocol",
		Version: Version,
		Inbound: map[string]*jsonschema.Schema{
			TypeObject:     reflect(&ObjectRequest{}, "Replace an object's state if the lock can be acquired"),
			TypeSpawn:      reflect(&SpawnRequest{}, "Create a new object"),
			TypeDelete:     reflect(&DeleteRequest{}, "Remove an object"),
			TypeLock:       reflect(&LockRequest{}, "Take ownership of an object"),
			TypeRelease:    reflect(&ReleaseRequest{}, "Give up ownership of an object"),
			TypeActivate:   reflect(&ActivateRequest{}, "Mark an object active"),
			TypeDeactivate: reflect(&DeactivateRequest{}, "Mark an object inactive"),
			TypeRestart:    reflect(&RestartRequest{}, "Clear the whole object store"),
			TypeAvatar:     reflect(&AvatarUpdate{}, "Replace the sender's avatar pose"),
			TypeCalibrate:  reflect(&CalibrateRequest{}, "Solve a floor-plane offset between two point sets"),
		},
		Outbound: map[string]*jsonschema.Schema{
			TypeInitialize: reflect(&InitializeMessage{}, "Full state sent to a new connection"),
			TypeJoin:       reflect(&JoinMessage{}, "Another connection opened"),
			TypeLeave:      reflect(&LeaveMessage{}, "A connection closed"),
			TypeTick:       reflect(&TickMessage{}, "Periodic server clock hint"),
			TypeAvatar:     reflect(&AvatarBroadcast{}, "Every avatar pose"),
			TypeObject:     reflect(&ObjectResult{}, "Result of an object operation"),
			TypeClear:      reflect(&ClearMessage{}, "The object store was reset"),
			TypeCalibrate:  reflect(&CalibrateResult{}, "Result of a calibrate request"),
		},
	}
}
