// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

import (
	"sync"

	"github.com/pkg/errors"
)

// Bus is an in-process publish/subscribe channel.
//
// Each subscription owns a bounded delivery queue drained by a single
// dispatch goroutine, so its Handler observes messages serially and in
// publish order. When a queue is full, the oldest undelivered message is
// evicted to make room for the newest.
//
// Bus is safe for concurrent use. The zero value is a valid Bus.
type Bus struct {
	// QueueDepth is the per-subscription delivery queue depth. If <= 0,
	// DefaultQueueDepth is used.
	QueueDepth int

	mu   sync.Mutex
	subs map[string][]*busSubscription
}

func (b *Bus) queueDepth() int {
	if b.QueueDepth > 0 {
		return b.QueueDepth
	}
	return DefaultQueueDepth
}

// Publisher returns a Publisher that delivers messages to topic on b.
func (b *Bus) Publisher(topic string) Publisher {
	return &busPublisher{bus: b, topic: topic}
}

// Subscriber returns an unbound Subscriber for topic on b.
func (b *Bus) Subscriber(topic string) Subscriber {
	return &busSubscription{bus: b, topic: topic}
}

func (b *Bus) publish(topic string, msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	busPublishedMessages.Inc()
	for _, s := range b.subs[topic] {
		s.deliverLocked(msg)
	}
}

func (b *Bus) register(s *busSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[string][]*busSubscription)
	}
	b.subs[s.topic] = append(b.subs[s.topic], s)
}

func (b *Bus) unregister(s *busSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[s.topic]
	for i, cur := range subs {
		if cur == s {
			b.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type busPublisher struct {
	bus   *Bus
	topic string
}

func (bp *busPublisher) Publish(msg *Message) error {
	bp.bus.publish(bp.topic, msg)
	return nil
}

func (bp *busPublisher) Close() error { return nil }

type busSubscription struct {
	bus   *Bus
	topic string

	// queueC is the bounded delivery queue. It is only sent to while the
	// Bus lock is held, so closing it under the lock is safe.
	queueC chan *Message
	doneC  chan struct{}
}

func (s *busSubscription) Subscribe(h Handler) error {
	if s.queueC != nil {
		return errors.New("channel: already subscribed")
	}

	s.queueC = make(chan *Message, s.bus.queueDepth())
	s.doneC = make(chan struct{})
	s.bus.register(s)

	go s.dispatch(h)
	return nil
}

func (s *busSubscription) Close() error {
	if s.queueC == nil {
		return nil
	}

	s.bus.unregister(s)

	s.bus.mu.Lock()
	close(s.queueC)
	s.bus.mu.Unlock()

	<-s.doneC
	return nil
}

// deliverLocked enqueues msg, evicting the oldest queued message if the
// queue is full. Must be called with the Bus lock held.
func (s *busSubscription) deliverLocked(msg *Message) {
	for {
		select {
		case s.queueC <- msg:
			return
		default:
		}

		select {
		case <-s.queueC:
			busDroppedMessages.Inc()
		default:
		}
	}
}

func (s *busSubscription) dispatch(h Handler) {
	defer close(s.doneC)

	for msg := range s.queueC {
		h.HandleMessage(msg)
	}
}
