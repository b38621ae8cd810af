package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/fatih/color"

	"roomsync/server/logging"
)

// ConsoleSink prints one line per event, optionally colouring the severity.
type ConsoleSink struct {
	logger   *log.Logger
	useColor bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags), useColor: cfg.UseColor}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] tick=%d actor=%s severity=%s", event.Type, event.Tick, formatEntity(event.Actor), s.severity(event.Severity))
	if len(event.Targets) > 0 {
		parts := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			parts = append(parts, formatEntity(target))
		}
		fmt.Fprintf(&b, " targets=%s", strings.Join(parts, ","))
	}
	if event.TraceID != "" {
		fmt.Fprintf(&b, " trace=%s", event.TraceID)
	}
	b.WriteString(formatPayload(event.Payload))
	s.logger.Print(b.String())
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func (s *ConsoleSink) severity(sev logging.Severity) string {
	label := sev.String()
	if !s.useColor {
		return label
	}
	switch sev {
	case logging.SeverityDebug:
		return color.MagentaString(label)
	case logging.SeverityInfo:
		return color.BlueString(label)
	case logging.SeverityWarn:
		return color.YellowString(label)
	case logging.SeverityError:
		return color.RedString(label)
	default:
		return label
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
