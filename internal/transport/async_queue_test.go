package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var (
	errOverflow = errors.New("overflow")
	errSendFail = errors.New("send fail")
)

// TestAsyncQueueSuccess verifies items are delivered and hooks fire.
func TestAsyncQueueSuccess(t *testing.T) {
	var sent atomic.Int64
	var after atomic.Int64
	q := NewAsyncQueue(context.Background(), 4, func(s string) error {
		sent.Add(1)
		return nil
	}, Hooks{OnAfter: func() { after.Add(1) }})
	defer q.Close()
	for _, s := range []string{"a", "b", "c"} {
		if err := q.Enqueue(s); err != nil {
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && after.Load() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if sent.Load() != 3 || after.Load() != 3 {
		t.Fatalf("expected 3 sent & after, got sent=%d after=%d", sent.Load(), after.Load())
	}
}

// TestAsyncQueueOverflow ensures OnDrop is invoked when the buffer is full.
func TestAsyncQueueOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var drops atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	q := NewAsyncQueue(ctx, 1, func(int) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, Hooks{OnDrop: func() error { drops.Add(1); return errOverflow }})
	defer q.Close()
	defer close(release)

	if err := q.Enqueue(1); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-started // worker holds item 1
	if err := q.Enqueue(2); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if err := q.Enqueue(3); !errors.Is(err, errOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if drops.Load() != 1 {
		t.Fatalf("expected 1 drop, got %d", drops.Load())
	}
}

// TestAsyncQueueSendError triggers the OnError hook.
func TestAsyncQueueSendError(t *testing.T) {
	var errs atomic.Int64
	q := NewAsyncQueue(context.Background(), 2, func(int) error { return errSendFail }, Hooks{OnError: func(error) { errs.Add(1) }})
	defer q.Close()
	_ = q.Enqueue(1)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && errs.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if errs.Load() == 0 {
		t.Fatalf("expected error hook invocation")
	}
}

func TestAsyncQueueEnqueueAfterClose(t *testing.T) {
	q := NewAsyncQueue(context.Background(), 2, func(int) error { return nil }, Hooks{})
	q.Close()
	q.Close() // idempotent
	if err := q.Enqueue(7); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestAsyncQueueCloseConcurrentEnqueue(t *testing.T) {
	for i := 0; i < 100; i++ {
		q := NewAsyncQueue(context.Background(), 1, func(int) error { return nil }, Hooks{})
		done := make(chan error, 1)
		go func() { done <- q.Enqueue(i) }()
		time.Sleep(time.Millisecond)
		q.Close()
		if err := <-done; err != nil && !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("iteration %d: unexpected enqueue error %v", i, err)
		}
	}
}
