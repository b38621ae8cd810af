package observability

import (
	"net/http"
	"net/http/pprof"
)

// RegisterPprof mounts the runtime profiling endpoints under /debug/pprof/
// when enabled.
func RegisterPprof(mux *http.ServeMux, cfg Config) bool {
	if mux == nil || !cfg.EnablePprof {
		return false
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return true
}
