package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"roomsync/server"
	"roomsync/server/internal/archive"
	"roomsync/server/internal/net/proto"
	"roomsync/server/internal/net/ws"
	"roomsync/server/internal/observability"
	"roomsync/server/logging"
)

// SnapshotLister exposes archived restart snapshots to operators.
type SnapshotLister interface {
	List(limit int) ([]archive.Snapshot, error)
}

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        *log.Logger
	Session       ws.SessionConfig
	Metrics       nethttp.Handler
	Observability observability.Config
	Archive       SnapshotLister
	// LoggingStats reports the event router counters on /diagnostics.
	LoggingStats func() logging.RouterStats
}

const defaultSnapshotLimit = 10

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                   `json:"status"`
			ServerTime int64                    `json:"serverTime"`
			Hub        server.HubDiagnostics    `json:"hub"`
			Telemetry  server.TelemetrySnapshot `json:"telemetry"`
			Logging    *logging.RouterStats     `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Hub:        hub.DiagnosticsSnapshot(),
			Telemetry:  hub.TelemetrySnapshot(),
		}
		if cfg.LoggingStats != nil {
			stats := cfg.LoggingStats()
			payload.Logging = &stats
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/diagnostics/objects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, logger, struct {
			Objects map[string]proto.ObjectView `json:"objects"`
		}{Objects: hub.ObjectsSnapshot()})
	})

	mux.HandleFunc("/diagnostics/snapshots", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Archive == nil {
			httpError(w, "snapshot archive disabled", nethttp.StatusNotFound)
			return
		}
		limit := defaultSnapshotLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || value < 0 {
				httpError(w, "invalid limit", nethttp.StatusBadRequest)
				return
			}
			limit = value
		}
		snapshots, err := cfg.Archive.List(limit)
		if err != nil {
			logger.Printf("failed to list snapshots: %v", err)
			httpError(w, "failed to list snapshots", nethttp.StatusInternalServerError)
			return
		}
		if snapshots == nil {
			snapshots = []archive.Snapshot{}
		}
		writeJSON(w, logger, struct {
			Snapshots []archive.Snapshot `json:"snapshots"`
		}{Snapshots: snapshots})
	})

	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, logger, proto.Schema())
	})

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	if observability.RegisterPprof(mux, cfg.Observability) {
		logger.Printf("pprof endpoints enabled under /debug/pprof/")
	}

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger, Session: cfg.Session})
	mux.HandleFunc("/ws", wsHandler.Handle)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger *log.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
