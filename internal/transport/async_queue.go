package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// AsyncQueue funnels items to a slow consumer through a single goroutine
// (fan-in). Enqueue never blocks: if the buffer is full, the configured
// OnDrop hook runs and its error is returned. Sinks that talk to the
// network use it so the dispatch loop is never held up by them.
//
// Life-cycle:
//
//	q := NewAsyncQueue(ctx, buf, sendFn, hooks)
//	q.Enqueue(item)
//	q.Close()
//
// After Close returns no more items are processed and Enqueue returns
// ErrQueueClosed.
type AsyncQueue[T any] struct {
	mu     sync.Mutex
	ch     chan T
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	send   func(T) error
	hooks  Hooks
	closed atomic.Bool
}

// Hooks customize AsyncQueue behavior.
type Hooks struct {
	// OnError is called when send returns a non-nil error (item not delivered).
	OnError func(error)
	// OnAfter is called only after a successful send.
	OnAfter func()
	// OnDrop is called when the buffer is full; its returned error is returned
	// from Enqueue. If nil, the overflow is silent.
	OnDrop func() error
}

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("async queue closed")

// NewAsyncQueue constructs an AsyncQueue with a buffered channel of size buf.
func NewAsyncQueue[T any](parent context.Context, buf int, send func(T) error, hooks Hooks) *AsyncQueue[T] {
	ctx, cancel := context.WithCancel(parent)
	q := &AsyncQueue[T]{
		ch:     make(chan T, buf),
		ctx:    ctx,
		cancel: cancel,
		send:   send,
		hooks:  hooks,
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *AsyncQueue[T]) loop() {
	defer q.wg.Done()
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			if err := q.send(it); err != nil {
				if q.hooks.OnError != nil {
					q.hooks.OnError(err)
				}
				continue
			}
			if q.hooks.OnAfter != nil {
				q.hooks.OnAfter()
			}
		case <-q.ctx.Done():
			return
		}
	}
}

// Enqueue queues an item for asynchronous delivery or returns the drop
// error if the buffer is full.
func (q *AsyncQueue[T]) Enqueue(it T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.ch <- it:
		return nil
	default:
		if q.hooks.OnDrop != nil {
			return q.hooks.OnDrop()
		}
		return nil
	}
}

// Close stops the worker and waits for it to exit. Queued items not yet
// picked up are discarded.
func (q *AsyncQueue[T]) Close() {
	if q.closed.Swap(true) {
		return
	}
	q.cancel()
	q.mu.Lock()
	close(q.ch)
	q.mu.Unlock()
	q.wg.Wait()
}
