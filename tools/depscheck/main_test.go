package main

import (
	"strings"
	"testing"
)

func TestFindViolations(t *testing.T) {
	input := `{"ImportPath":"roomsync/server","Imports":["roomsync/server/internal/net/proto","sync"]}
{"ImportPath":"roomsync/server/internal/config","Imports":["github.com/gorilla/websocket","roomsync/server/internal/net/ws"]}`

	violations, err := findViolations(strings.NewReader(input))
	if err != nil {
		t.Fatalf("findViolations failed: %v", err)
	}
	want := []string{
		"roomsync/server/internal/config -> github.com/gorilla/websocket",
		"roomsync/server/internal/config -> roomsync/server/internal/net/ws",
	}
	if len(violations) != len(want) {
		t.Fatalf("expected %v, got %v", want, violations)
	}
	for i := range want {
		if violations[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, violations)
		}
	}
}

func TestFindViolationsRejectsGarbage(t *testing.T) {
	if _, err := findViolations(strings.NewReader("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
