package journal

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Append("greeted candidate", LevelSuccess, "card-1")
	sink.Append("card skipped", LevelWarning, "card-2")
	sink.Append("scroll failed", LevelError, "")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("success entries should log at info level, got %s", entries[0].Level)
	}
	if entries[0].ContextMap()["correlation_id"] != "card-1" {
		t.Fatalf("missing correlation id: %+v", entries[0].ContextMap())
	}

	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[1].Level)
	}

	if entries[2].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[2].Level)
	}
	if _, ok := entries[2].ContextMap()["correlation_id"]; ok {
		t.Fatalf("empty correlation id must be omitted")
	}
}

func TestZapSinkNilLogger(t *testing.T) {
	sink := NewZapSink(nil)
	// Must not panic.
	sink.Append("noop", LevelInfo, "")
}

func TestMemoryKeepsOrder(t *testing.T) {
	m := NewMemory()
	m.Append("first", LevelInfo, "a")
	m.Append("second", LevelWarning, "b")

	entries := m.Entries()
	if len(entries) != 2 || m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "first" || entries[1].Action != "second" {
		t.Fatalf("entries out of order: %+v", entries)
	}
	if entries[1].Level != LevelWarning {
		t.Fatalf("unexpected level: %s", entries[1].Level)
	}
}
