// Package objects publishes shared object store events.
package objects

import (
	"context"

	"roomsync/server/logging"
)

const (
	EventSpawned        logging.EventType = "objects.spawned"
	EventDeleted        logging.EventType = "objects.deleted"
	EventLockRejected   logging.EventType = "objects.lock_rejected"
	EventStoreRestarted logging.EventType = "objects.store_restarted"
)

// LockRejectedPayload names the request that lost the acquire check.
type LockRejectedPayload struct {
	Operation string `json:"operation"`
	Requested string `json:"requested"`
	Owner     string `json:"owner,omitempty"`
}

// StoreRestartedPayload summarises the discarded store.
type StoreRestartedPayload struct {
	Objects    int    `json:"objects"`
	ArchivedAs string `json:"archivedAs,omitempty"`
}

func Spawned(ctx context.Context, pub logging.Publisher, tick uint64, actor, object logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventSpawned,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{object},
		Severity: logging.SeverityDebug,
	})
}

func Deleted(ctx context.Context, pub logging.Publisher, tick uint64, actor, object logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventDeleted,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{object},
		Severity: logging.SeverityDebug,
	})
}

// LockRejected is published whenever a request loses the single-owner check.
func LockRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor, object logging.EntityRef, payload LockRejectedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventLockRejected,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{object},
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

func StoreRestarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StoreRestartedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventStoreRestarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryObjects
	pub.Publish(ctx, event)
}
