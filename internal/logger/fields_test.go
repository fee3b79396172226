package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  Gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}

	empty := StringFields()
	if len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithFields(base, zap.String("run_id", "r1")).Info("step")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	if entries[0].ContextMap()["run_id"] != "r1" {
		t.Fatalf("expected run_id field, got %+v", entries[0].ContextMap())
	}

	if got := WithFields(nil); got == nil {
		t.Fatalf("expected non-nil logger for nil input")
	}
}

func TestCardFields(t *testing.T) {
	fields := CardFields("run-1", "")
	if len(fields) != 1 {
		t.Fatalf("expected empty card id to be dropped, got %d fields", len(fields))
	}
	if fields[0].Key != FieldRunID {
		t.Fatalf("unexpected field key: %s", fields[0].Key)
	}

	fields = CardFields("run-1", "card-9")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
}
