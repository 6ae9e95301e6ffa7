// Package messenger carries command records from producers (the joystick
// handlers) to consumers (the motor) by topic.
package messenger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tigerbot-team/telescope/pkg/command"
)

const DefaultQueueSize = 16

// Publisher is what input-side handlers publish through.  Both the in-process
// Bus and the socket Client implement it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload command.Record) error
}

type subscription struct {
	ch   chan command.Record
	done chan struct{}
}

// Bus is an in-process publish/subscribe hub.  Every subscriber of a topic has
// its own bounded queue.
type Bus struct {
	lock      sync.RWMutex
	topics    map[string][]*subscription
	queueSize int
	log       *slog.Logger
}

func NewBus(queueSize int, log *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		topics:    map[string][]*subscription{},
		queueSize: queueSize,
		log:       log.With("component", "messenger"),
	}
}

var _ Publisher = (*Bus)(nil)

// Publish queues payload for every current subscriber of topic.  With no
// subscribers the payload is dropped.  If a subscriber's queue is full,
// Publish waits for room or for ctx to end.
func (b *Bus) Publish(ctx context.Context, topic string, payload command.Record) error {
	b.lock.RLock()
	subs := b.topics[topic]
	b.lock.RUnlock()

	if len(subs) == 0 {
		b.log.Debug("No listener, dropping", "topic", topic, "payload", payload.String())
		return nil
	}
	for _, s := range subs {
		select {
		case s.ch <- payload:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe calls handler for every payload published to topic until ctx is
// done or handler returns an error, which is returned.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler func(command.Record) error) error {
	s := &subscription{
		ch:   make(chan command.Record, b.queueSize),
		done: make(chan struct{}),
	}
	b.lock.Lock()
	b.topics[topic] = append(b.topics[topic], s)
	b.lock.Unlock()
	defer b.unsubscribe(topic, s)

	b.log.Debug("Listening", "topic", topic)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-s.ch:
			if err := handler(payload); err != nil {
				return err
			}
		}
	}
}

func (b *Bus) unsubscribe(topic string, s *subscription) {
	close(s.done)
	b.lock.Lock()
	defer b.lock.Unlock()
	var kept []*subscription
	for _, other := range b.topics[topic] {
		if other != s {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(b.topics, topic)
		return
	}
	b.topics[topic] = kept
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.topics[topic])
}
