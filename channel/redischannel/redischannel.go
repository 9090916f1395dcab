// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package redischannel carries raw data stream messages between processes
// over Redis pub/sub.
//
// Messages are packed into their flat wire form and published as one
// Redis message per chunk. Frames may optionally be snappy-compressed on
// the wire; compression is transparent to the Message contract, but both
// ends of the channel must agree on it.
package redischannel

import (
	"context"
	"sync"

	"github.com/CMU-cabot/ublox/channel"
	"github.com/CMU-cabot/ublox/support/logging"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Options configures a Redis-backed channel endpoint.
type Options struct {
	// Client is the Redis client to use. It must not be nil.
	Client *redis.Client

	// Topic is the pub/sub channel name. If empty, channel.Topic is used.
	Topic string

	// Compress enables snappy compression of packed frames. Both ends of
	// the channel must agree on this setting.
	Compress bool

	// Logger is the logger instance to use. If nil, no logs will be
	// generated.
	Logger logging.L
}

func (o *Options) topic() string {
	if o.Topic != "" {
		return o.Topic
	}
	return channel.Topic
}

// Publisher returns a channel.Publisher that delivers frames through
// Redis.
func (o *Options) Publisher() channel.Publisher {
	return &publisher{opts: *o}
}

type publisher struct {
	opts Options
}

func (p *publisher) Publish(msg *channel.Message) error {
	frame, err := msg.Marshal()
	if err != nil {
		return err
	}
	if p.opts.Compress {
		frame = snappy.Encode(nil, frame)
	}

	if err := p.opts.Client.Publish(context.Background(), p.opts.topic(), frame).Err(); err != nil {
		return errors.Wrap(err, "publishing frame")
	}
	return nil
}

func (p *publisher) Close() error { return nil }

// Subscriber returns a channel.Subscriber that receives frames from
// Redis.
func (o *Options) Subscriber() channel.Subscriber {
	return &subscriber{opts: *o}
}

type subscriber struct {
	opts Options

	mu     sync.Mutex
	pubsub *redis.PubSub
	doneC  chan struct{}
}

func (s *subscriber) Subscribe(h channel.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub != nil {
		return errors.New("redischannel: already subscribed")
	}

	pubsub := s.opts.Client.Subscribe(context.Background(), s.opts.topic())

	// Confirm the subscription so delivery has begun by the time we
	// return.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return errors.Wrap(err, "subscribing")
	}

	s.pubsub = pubsub
	s.doneC = make(chan struct{})
	go s.dispatch(pubsub.Channel(redis.WithChannelSize(channel.DefaultQueueDepth)), h)
	return nil
}

func (s *subscriber) dispatch(msgC <-chan *redis.Message, h channel.Handler) {
	defer close(s.doneC)
	logger := logging.Must(s.opts.Logger)

	for m := range msgC {
		frame := []byte(m.Payload)
		if s.opts.Compress {
			var err error
			if frame, err = snappy.Decode(nil, frame); err != nil {
				logger.Warnf("Dropping frame with bad compression: %s", err)
				continue
			}
		}

		msg, err := channel.UnmarshalMessage(frame)
		if err != nil {
			logger.Warnf("Dropping undecodable frame: %s", err)
			continue
		}
		h.HandleMessage(msg)
	}
}

func (s *subscriber) Close() error {
	s.mu.Lock()
	pubsub := s.pubsub
	doneC := s.doneC
	s.pubsub = nil
	s.mu.Unlock()

	if pubsub == nil {
		return nil
	}

	err := pubsub.Close()
	<-doneC
	return err
}
