package mqtt

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/kstaniek/go-can-dump/internal/logging"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/transport"
)

// DefaultQueueLen bounds lines waiting for the broker.
const DefaultQueueLen = 256

// ErrOverflow is returned by Publish when the queue is full; the line is dropped.
var ErrOverflow = errors.New("mqtt queue full")

type message struct {
	topic   string
	payload []byte
}

// Sink publishes each line to <topic>/<message_id> off the caller's
// goroutine. It never blocks the dump loop.
type Sink struct {
	topic string
	q     *transport.AsyncQueue[message]
}

// NewSink starts the publishing worker. buf <= 0 selects DefaultQueueLen.
func NewSink(ctx context.Context, c Client, topic string, buf int) *Sink {
	if buf <= 0 {
		buf = DefaultQueueLen
	}
	send := func(m message) error { return c.Publish(m.topic, m.payload) }
	q := transport.NewAsyncQueue(ctx, buf, send, transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrMQTTPublish)
			logging.L().Warn("mqtt_publish_failed", "error", err)
		},
		OnAfter: metrics.IncPublished,
		OnDrop: func() error {
			metrics.IncError(metrics.ErrMQTTOverflow)
			return ErrOverflow
		},
	})
	return &Sink{topic: strings.TrimSuffix(topic, "/"), q: q}
}

// Topic returns the topic a line for messageID is published to.
func (s *Sink) Topic(messageID uint8) string {
	return s.topic + "/" + strconv.Itoa(int(messageID))
}

func (s *Sink) Publish(messageID uint8, line string) error {
	return s.q.Enqueue(message{topic: s.Topic(messageID), payload: []byte(line)})
}

// Close stops the worker; queued lines not yet sent are dropped.
func (s *Sink) Close() { s.q.Close() }
