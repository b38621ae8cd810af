package network

import (
	"context"

	"roomsync/server/logging"
)

const (
	// EventMalformedFrame is emitted when an inbound frame cannot be parsed.
	EventMalformedFrame logging.EventType = "network.malformed_frame"
	// EventUnhandledType is emitted for reserved or unknown message types.
	EventUnhandledType logging.EventType = "network.unhandled_type"
	// EventSendFailed is emitted when a flush cannot hand a frame to a connection.
	EventSendFailed logging.EventType = "network.send_failed"
)

// MalformedFramePayload captures why a frame was discarded.
type MalformedFramePayload struct {
	Bytes int    `json:"bytes"`
	Error string `json:"error"`
}

// UnhandledTypePayload names the ignored type.
type UnhandledTypePayload struct {
	MessageType string `json:"messageType"`
	Reserved    bool   `json:"reserved"`
}

// SendFailedPayload captures the transport error that marked a connection dead.
type SendFailedPayload struct {
	Bytes int    `json:"bytes"`
	Error string `json:"error"`
}

// MalformedFrame publishes a debug event for a discarded frame.
func MalformedFrame(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload MalformedFramePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMalformedFrame,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// UnhandledType publishes a debug event for an ignored message type.
func UnhandledType(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload UnhandledTypePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnhandledType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// SendFailed publishes a warning when a connection is marked dead.
func SendFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload SendFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSendFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		TraceID:  traceID,
	})
}
