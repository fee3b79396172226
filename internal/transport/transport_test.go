package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRequestAnswered(t *testing.T) {
	bus := NewBus(time.Second, zap.NewNop())
	bus.Handle(TypeStatus, func(_ context.Context, msg Message) (Message, error) {
		return Message{Type: TypeStatus, Payload: map[string]any{"processed": 3}}, nil
	})

	reply, err := bus.Request(context.Background(), Message{Type: TypeStatus})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Payload["processed"] != 3 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestRequestUnknownTypeStillAnswers(t *testing.T) {
	bus := NewBus(time.Second, zap.NewNop())

	reply, err := bus.Request(context.Background(), Message{Type: "bogus"})
	if err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if reply.Type != TypeError {
		t.Fatalf("unknown types must get an error reply, got %+v", reply)
	}
	if reply.Payload["error"] == "" {
		t.Fatalf("error reply must carry the reason")
	}
}

func TestRequestHandlerError(t *testing.T) {
	bus := NewBus(time.Second, zap.NewNop())
	boom := errors.New("boom")
	bus.Handle(TypeStart, func(context.Context, Message) (Message, error) {
		return Message{}, boom
	})

	reply, err := bus.Request(context.Background(), Message{Type: TypeStart})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if reply.Type != TypeError {
		t.Fatalf("expected error reply, got %+v", reply)
	}
}

func TestRequestTimeout(t *testing.T) {
	bus := NewBus(20*time.Millisecond, zap.NewNop())
	bus.Handle(TypeStop, func(ctx context.Context, _ Message) (Message, error) {
		<-ctx.Done()
		time.Sleep(time.Second)
		return Message{}, ctx.Err()
	})

	start := time.Now()
	reply, err := bus.Request(context.Background(), Message{Type: TypeStop})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if reply.Type != TypeError {
		t.Fatalf("timeouts must still answer, got %+v", reply)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("request must return promptly on timeout")
	}
}
