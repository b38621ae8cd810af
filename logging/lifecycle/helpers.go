package lifecycle

import (
	"context"

	"roomsync/server/logging"
)

const (
	// EventConnectionOpened is emitted when a connection is registered.
	EventConnectionOpened logging.EventType = "lifecycle.connection_opened"
	// EventConnectionClosed is emitted when a connection is removed.
	EventConnectionClosed logging.EventType = "lifecycle.connection_closed"
)

// ConnectionOpenedPayload describes the state handed to the new connection.
type ConnectionOpenedPayload struct {
	Objects int `json:"objects"`
	Avatars int `json:"avatars"`
	Live    int `json:"live"`
}

// ConnectionClosedPayload records whether the closed connection left an avatar behind.
type ConnectionClosedPayload struct {
	HadAvatar bool `json:"hadAvatar"`
	Live      int  `json:"live"`
}

// ConnectionOpened publishes a connection open event.
func ConnectionOpened(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload ConnectionOpenedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionOpened,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// ConnectionClosed publishes a connection close event.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload ConnectionClosedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionClosed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		TraceID:  traceID,
	})
}
