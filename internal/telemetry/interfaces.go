package telemetry

import (
	"log"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// StandardLogger exposes the wrapped logger for components that need one.
func (l *loggerAdapter) StandardLogger() *log.Logger {
	if l == nil {
		return nil
	}
	return l.logger
}

// Metrics exposes the counter and gauge updates recorded by server components.
// Add increments a counter; Store sets a gauge.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// NopMetrics discards every update.
type NopMetrics struct{}

func (NopMetrics) Add(string, uint64)   {}
func (NopMetrics) Store(string, uint64) {}

// Metric keys recorded by the synchronisation core.
const (
	MetricConnectionsLive       = "connections_live"
	MetricConnectionsTotal      = "connections_total"
	MetricOutboundQueueDepth    = "outbound_queue_depth"
	MetricOutboundOverflowTotal = "outbound_overflow_total"
	MetricMessagesFlushedTotal  = "messages_flushed_total"
	MetricBytesFlushedTotal     = "bytes_flushed_total"
	MetricFramesDroppedTotal    = "frames_dropped_total"
	MetricInboundMessagesTotal  = "inbound_messages_total"
	MetricInboundMalformedTotal = "inbound_malformed_total"
	MetricLockRejectionsTotal   = "lock_rejections_total"
	MetricStoreObjects          = "store_objects"
	MetricAvatars               = "avatars"
)
