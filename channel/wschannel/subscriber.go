// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package wschannel

import (
	"sync"

	"github.com/CMU-cabot/ublox/channel"
	"github.com/CMU-cabot/ublox/support/logging"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Subscriber dials a Hub and dispatches received frames to a Handler.
type Subscriber struct {
	// URL is the hub's WebSocket endpoint (a ws:// or wss:// URL).
	URL string

	// Dialer, if not nil, is used instead of websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger is the logger instance to use. If nil, no logs will be
	// generated.
	Logger logging.L

	mu    sync.Mutex
	conn  *websocket.Conn
	doneC chan struct{}
}

var _ channel.Subscriber = (*Subscriber)(nil)

// Subscribe implements channel.Subscriber, dialing the hub and beginning
// dispatch.
func (s *Subscriber) Subscribe(h channel.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.New("wschannel: already subscribed")
	}

	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.Dial(s.URL, nil)
	if err != nil {
		return errors.Wrapf(err, "dialing hub %q", s.URL)
	}

	s.conn = conn
	s.doneC = make(chan struct{})
	go s.dispatch(conn, h)
	return nil
}

func (s *Subscriber) dispatch(conn *websocket.Conn, h channel.Handler) {
	defer close(s.doneC)
	logger := logging.Must(s.Logger)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			logger.Debugf("Hub connection closed: %s", err)
			return
		}

		msg, err := channel.UnmarshalMessage(frame)
		if err != nil {
			logger.Warnf("Dropping undecodable frame: %s", err)
			continue
		}
		h.HandleMessage(msg)
	}
}

// Close implements channel.Subscriber, terminating delivery.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	conn := s.conn
	doneC := s.doneC
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	err := conn.Close()
	<-doneC
	return err
}
