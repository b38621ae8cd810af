package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	stdnet "net"
	"net/http"
	"os"
	"time"

	server "roomsync/server"
	"roomsync/server/internal/archive"
	"roomsync/server/internal/config"
	servernet "roomsync/server/internal/net"
	"roomsync/server/internal/net/ws"
	"roomsync/server/internal/observability"
	"roomsync/server/internal/telemetry"
	"roomsync/server/logging"
	loggingSinks "roomsync/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger telemetry.Logger
	// ConfigPath points at the YAML config file. Empty falls back to the
	// CONFIG_PATH environment variable, then to built-in defaults.
	ConfigPath string
	// LookupEnv replaces os.LookupEnv for environment overrides.
	LookupEnv func(string) (string, bool)
	// Ready is called with the bound address once the listener is open.
	Ready func(addr string)
}

// Run serves until ctx is cancelled, then shuts the HTTP server down, waits
// for pending archive writes and closes the logging router.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	lookup := cfg.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath, _ = lookup("CONFIG_PATH")
	}

	settings, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		telemetryLogger.Printf("config file %s not found, using defaults", configPath)
	}
	for _, envErr := range settings.ApplyEnv(lookup) {
		telemetryLogger.Printf("ignoring environment override: %v", envErr)
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	router, err := newRouter(settings, fallbackLogger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	metrics := observability.NewMetrics()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Intervals = intervalsFrom(settings)
	hubCfg.OutboundCapacity = settings.OutboundCapacity
	hubCfg.ActivatePolicy = server.ActivatePolicy(settings.ActivatePolicy)
	hubCfg.StrictDelete = settings.StrictDelete
	hubCfg.Logger = fallbackLogger
	hubCfg.Metrics = metrics

	var snapshots servernet.SnapshotLister
	if settings.ArchivePath != "" {
		store, err := archive.Open(settings.ArchivePath)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				telemetryLogger.Printf("failed to close archive: %v", cerr)
			}
		}()
		hubCfg.Archive = store
		snapshots = store
		telemetryLogger.Printf("archiving restart snapshots to %s", store.Path())
	}

	hub := server.NewHubWithConfig(hubCfg, router)
	// Deferred after the archive so pending writes land before it closes.
	defer hub.WaitArchives()

	runCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(runCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	if configPath != "" {
		err := config.Watch(runCtx, configPath, lookup, telemetryLogger, func(next config.Config) {
			hub.SetIntervals(intervalsFrom(next))
		})
		if err != nil {
			telemetryLogger.Printf("config reload disabled: %v", err)
		}
	}

	clientDir, err := server.ResolveClientDir(settings.ClientDir)
	if err != nil {
		if settings.ClientDir != "" {
			return err
		}
		telemetryLogger.Printf("static client disabled: %v", err)
		clientDir = ""
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir: clientDir,
		Logger:    fallbackLogger,
		Session: ws.SessionConfig{
			SendBuffer:      settings.SendBuffer,
			MaxMessageBytes: settings.MaxMessageBytes,
			PongWait:        settings.PongWait,
			WriteWait:       settings.WriteWait,
		},
		Metrics:       metrics.Handler(),
		Observability: observability.Config{EnablePprof: settings.EnablePprof},
		Archive:       snapshots,
		LoggingStats:  router.Stats,
	})

	listener, err := stdnet.Listen("tcp", settings.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	telemetryLogger.Printf("server listening on %s", listener.Addr())
	if cfg.Ready != nil {
		cfg.Ready(listener.Addr().String())
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	telemetryLogger.Printf("server stopped")
	return nil
}

func intervalsFrom(settings config.Config) server.Intervals {
	return server.Intervals{
		Flush:  settings.FlushInterval,
		Tick:   settings.TickInterval,
		Avatar: settings.AvatarInterval,
	}
}

func newRouter(settings config.Config, fallback *log.Logger) (*logging.Router, error) {
	severity, err := logging.ParseSeverity(settings.LogLevel)
	if err != nil {
		return nil, err
	}
	logConfig := logging.DefaultConfig()
	logConfig.MinimumSeverity = severity
	logConfig.Console.UseColor = settings.LogColor

	logConfig.EnabledSinks = nil
	if settings.LogConsole {
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "console")
	}
	if settings.LogJSONPath != "" {
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
		logConfig.JSON.FilePath = settings.LogJSONPath
	}

	var sinks []logging.NamedSink
	if logConfig.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console),
		})
	}
	if logConfig.HasSink("json") {
		file, err := os.OpenFile(logConfig.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json log: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval),
		})
	}
	return logging.NewRouter(logging.SystemClock{}, logConfig, fallback, sinks), nil
}
