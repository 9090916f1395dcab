// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package wschannel carries raw data stream messages between processes
// over WebSocket connections.
//
// A Hub is the publishing end: it accepts subscriber connections over
// HTTP and broadcasts each packed frame to every connected subscriber as
// a binary message. A Subscriber dials a hub and dispatches received
// frames to a Handler.
package wschannel

import (
	"net/http"
	"sync"
	"time"

	"github.com/CMU-cabot/ublox/channel"
	"github.com/CMU-cabot/ublox/support/logging"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single frame write to a subscriber connection.
const writeTimeout = 10 * time.Second

// Hub broadcasts published messages to connected WebSocket subscribers.
//
// Hub implements http.Handler for the subscriber endpoint and
// channel.Publisher for the sending side. Each connection owns a bounded
// send queue; when a subscriber falls behind, its oldest undelivered
// frame is evicted to make room for the newest.
type Hub struct {
	// QueueDepth is the per-connection send queue depth. If <= 0,
	// channel.DefaultQueueDepth is used.
	QueueDepth int

	// Logger is the logger instance to use. If nil, no logs will be
	// generated.
	Logger logging.L

	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*hubConn]struct{}
	closed bool
}

func (h *Hub) logger() logging.L { return logging.Must(h.Logger) }

func (h *Hub) queueDepth() int {
	if h.QueueDepth > 0 {
		return h.QueueDepth
	}
	return channel.DefaultQueueDepth
}

// ServeHTTP upgrades an incoming subscriber connection and begins
// streaming frames to it.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		h.logger().Warnf("Failed to upgrade subscriber connection: %s", err)
		return
	}

	hc := &hubConn{
		conn:  conn,
		sendC: make(chan []byte, h.queueDepth()),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if h.conns == nil {
		h.conns = make(map[*hubConn]struct{})
	}
	h.conns[hc] = struct{}{}
	h.mu.Unlock()

	h.logger().Infof("Raw data stream subscriber connected from %s.", conn.RemoteAddr())

	go hc.writeLoop(h)
	go hc.readLoop(h)
}

// Publish implements channel.Publisher, broadcasting msg to every
// connected subscriber.
func (h *Hub) Publish(msg *channel.Message) error {
	frame, err := msg.Marshal()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for hc := range h.conns {
		hc.sendLocked(frame)
	}
	return nil
}

// Close implements channel.Publisher, disconnecting all subscribers.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.closed = true
	h.mu.Unlock()

	for hc := range conns {
		close(hc.sendC)
	}
	return nil
}

// remove detaches hc from the hub. It is a no-op if hc was already
// removed.
func (h *Hub) remove(hc *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[hc]; ok {
		delete(h.conns, hc)
		close(hc.sendC)
	}
}

type hubConn struct {
	conn *websocket.Conn

	// sendC is the bounded send queue. It is only sent to while the Hub
	// lock is held, so closing it under the lock is safe.
	sendC chan []byte
}

// sendLocked enqueues frame, evicting the oldest queued frame if the
// queue is full. Must be called with the Hub lock held.
func (hc *hubConn) sendLocked(frame []byte) {
	for {
		select {
		case hc.sendC <- frame:
			return
		default:
		}

		select {
		case <-hc.sendC:
		default:
		}
	}
}

func (hc *hubConn) writeLoop(h *Hub) {
	defer func() {
		_ = hc.conn.Close()
	}()

	for frame := range hc.sendC {
		_ = hc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := hc.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			h.logger().Debugf("Dropping subscriber %s: %s", hc.conn.RemoteAddr(), err)
			h.remove(hc)
			return
		}
	}
}

// readLoop drains (and discards) inbound traffic so connection closure is
// observed promptly.
func (hc *hubConn) readLoop(h *Hub) {
	for {
		if _, _, err := hc.conn.ReadMessage(); err != nil {
			h.remove(hc)
			return
		}
	}
}
