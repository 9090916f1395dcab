// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

// A Handler receives messages delivered on a subscribed channel.
//
// Handlers are invoked synchronously by the delivering transport: a
// Handler returns before the next message for its subscription is
// dispatched.
type Handler interface {
	HandleMessage(msg *Message)
}

// funcHandler is a Handler bound to a function.
type funcHandler struct {
	fn func(*Message)
}

// HandlerFunc returns a Handler bound to fn.
func HandlerFunc(fn func(*Message)) Handler {
	return &funcHandler{fn}
}

func (fh *funcHandler) HandleMessage(msg *Message) { fh.fn(msg) }

// Publisher is the sending half of a channel endpoint.
type Publisher interface {
	// Publish delivers msg to the channel. Delivery is best-effort; a
	// transport may evict undelivered messages under backpressure.
	Publish(msg *Message) error

	// Close releases the publisher's resources.
	Close() error
}

// Subscriber is the receiving half of a channel endpoint.
type Subscriber interface {
	// Subscribe registers h to receive delivered messages. It may be
	// called at most once per Subscriber.
	Subscribe(h Handler) error

	// Close terminates delivery and releases the subscriber's resources.
	Close() error
}
