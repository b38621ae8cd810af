package logging_test

import (
	"context"
	"testing"
	"time"

	"roomsync/server/logging"
	"roomsync/server/logging/sinks"
)

func TestRouterDeliversToSinksAndFiltersSeverity(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.MinimumSeverity = logging.SeverityInfo
	cfg.Fields = map[string]any{"service": "roomsync"}

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	router := logging.NewRouter(logging.ClockFunc(func() time.Time { return fixed }), cfg, nil, []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.Event{Type: "test.debug", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "test.info", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(events), events)
	}
	if events[0].Type != "test.info" {
		t.Fatalf("unexpected event type %q", events[0].Type)
	}
	if !events[0].Time.Equal(fixed) {
		t.Fatalf("expected router clock to stamp event, got %v", events[0].Time)
	}
	if events[0].Extra["service"] != "roomsync" {
		t.Fatalf("expected configured fields to be merged, got %+v", events[0].Extra)
	}
	if router.Sink("memory") != memory {
		t.Fatalf("expected sink lookup by name")
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected one forwarded event, got %+v", stats)
	}

	router.Publish(context.Background(), logging.Event{Type: "after.close", Severity: logging.SeverityError})
	if len(memory.Events()) != 1 {
		t.Fatalf("expected publish after close to be ignored")
	}
}

func TestRouterSkipsDisabledSinks(t *testing.T) {
	enabled := sinks.NewMemorySink()
	disabled := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"enabled"}

	router := logging.NewRouter(nil, cfg, nil, []logging.NamedSink{
		{Name: "enabled", Sink: enabled},
		{Name: "disabled", Sink: disabled},
	})
	router.Publish(context.Background(), logging.Event{Type: "test.info", Severity: logging.SeverityInfo})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if router.Sink("disabled") != nil {
		t.Fatalf("expected disabled sink to be skipped")
	}
	if len(enabled.Events()) != 1 {
		t.Fatalf("expected enabled sink to receive the event, got %d", len(enabled.Events()))
	}
	if len(disabled.Events()) != 0 {
		t.Fatalf("expected disabled sink to receive nothing, got %d", len(disabled.Events()))
	}
}

func TestWithFieldsKeepsExistingExtra(t *testing.T) {
	memory := sinks.NewMemorySink()
	pub := logging.WithFields(memory, map[string]any{"a": 1, "b": 2})
	pub.Publish(context.Background(), logging.Event{Type: "x"}.WithExtra("a", "own"))

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Extra["a"] != "own" || events[0].Extra["b"] != 2 {
		t.Fatalf("unexpected extra %+v", events[0].Extra)
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug": logging.SeverityDebug,
		"":      logging.SeverityInfo,
		"WARN":  logging.SeverityWarn,
		"error": logging.SeverityError,
	}
	for name, want := range cases {
		got, err := logging.ParseSeverity(name)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}
