// Package transport is the request/response control channel between the CLI
// surface and the screening runner. Every request gets an answer: unknown
// message types produce an error reply and slow handlers are cut off by the
// timeout, so callers never leak a pending wait.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is the unit exchanged over the bus.
type Message struct {
	Type    string
	Payload map[string]any
}

// Well-known message types.
const (
	TypeStart  = "start"
	TypeStop   = "stop"
	TypeStatus = "status"
	TypeError  = "error"
)

// Handler answers one message type.
type Handler func(ctx context.Context, msg Message) (Message, error)

// ErrTimeout is returned when a handler does not answer within the bus timeout.
var ErrTimeout = fmt.Errorf("transport: request timed out")

const defaultTimeout = 10 * time.Second

// Bus routes requests to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	timeout  time.Duration
	logger   *zap.Logger
}

func NewBus(timeout time.Duration, logger *zap.Logger) *Bus {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string]Handler),
		timeout:  timeout,
		logger:   logger,
	}
}

// Handle registers the handler for a message type, replacing any previous one.
func (b *Bus) Handle(msgType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[msgType] = h
}

// Request dispatches the message and waits for the reply. The reply is always
// a usable Message: handler errors and unknown types come back as TypeError
// replies alongside the error.
func (b *Bus) Request(ctx context.Context, msg Message) (Message, error) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Type]
	b.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("transport: no handler for message type %q", msg.Type)
		return errorReply(err), err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		reply Message
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		reply, err := handler(ctx, msg)
		done <- outcome{reply: reply, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			b.logger.Debug("transport handler failed",
				zap.String("type", msg.Type),
				zap.Error(out.err),
			)
			return errorReply(out.err), out.err
		}
		return out.reply, nil
	case <-ctx.Done():
		err := ctx.Err()
		if err == context.DeadlineExceeded {
			err = ErrTimeout
		}
		return errorReply(err), err
	}
}

func errorReply(err error) Message {
	return Message{
		Type:    TypeError,
		Payload: map[string]any{"error": err.Error()},
	}
}
