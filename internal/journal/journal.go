// Package journal provides the action log sink used by the screening
// pipeline. Appending is fire-and-forget: a sink must never block the
// pipeline or surface an error to it.
package journal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level classifies a journal entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Sink accepts journal entries from the pipeline.
type Sink interface {
	Append(action string, level Level, correlationID string)
}

// Entry is a recorded journal line.
type Entry struct {
	Action        string
	Level         Level
	CorrelationID string
	At            time.Time
}

// ZapSink writes journal entries to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink backed by the provided logger. A nil logger is
// replaced with a no-op one so Append stays safe to call.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Append(action string, level Level, correlationID string) {
	fields := []zap.Field{zap.String("journal_level", string(level))}
	if correlationID != "" {
		fields = append(fields, zap.String("correlation_id", correlationID))
	}

	switch level {
	case LevelWarning:
		s.logger.Warn(action, fields...)
	case LevelError:
		s.logger.Error(action, fields...)
	default:
		s.logger.Info(action, fields...)
	}
}

// Memory is an in-memory sink. It keeps every entry in order and is safe for
// concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(action string, level Level, correlationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{
		Action:        action,
		Level:         level,
		CorrelationID: correlationID,
		At:            time.Now(),
	})
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of recorded entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
