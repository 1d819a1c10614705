package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "prod", "bot"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewBuildsLogger(t *testing.T) {
	log, err := New("INFO", "dev", "bot")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if log.Core().Enabled(-1) {
		t.Fatalf("debug must be disabled at info level")
	}
}
