// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rawstream

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CMU-cabot/ublox/channel"
	"github.com/CMU-cabot/ublox/support/logging"
)

// logFileTimeFormat is the minute-granularity layout of log file names.
//
// Two sessions initialized into the same directory within the same minute
// will race on the same file name, and the open truncates. This is a
// known limitation of the format.
const logFileTimeFormat = "2006_01_02_1504"

// logFileExt is the extension used for raw data log files.
const logFileExt = ".log"

// Session relays one raw receiver byte stream to up to two sinks: a
// publish channel and a timestamped on-disk log file.
//
// A Session owns at most one open log file, opened exactly once during
// Initialize; its name is fixed for the session's lifetime. Exported
// fields must be set before Initialize and not changed afterwards.
//
// Session is safe for use from concurrently-dispatched callbacks: the
// write path is serialized internally.
type Session struct {
	// Config is the resolved session configuration.
	Config Config

	// Publisher delivers captured chunks to the channel. It is only used
	// in Producer mode when Config.Publish is set; it may be nil
	// otherwise.
	Publisher channel.Publisher

	// Subscriber supplies chunks from the channel in Relay mode. It is
	// unused in Producer mode. A nil Subscriber in Relay mode downgrades
	// the session to file logging only.
	Subscriber channel.Subscriber

	// Logger is the logger instance to use. If nil, no logs will be
	// generated.
	Logger logging.L

	// NowFunc, if not nil, is the function used to resolve the local
	// wall-clock time for the log file name. If nil, time.Now will be
	// used.
	NowFunc func() time.Time

	mu          sync.Mutex
	initialized bool
	file        *os.File
	filePath    string
}

func (s *Session) logger() logging.L { return logging.Must(s.Logger) }

func (s *Session) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now()
}

// Enabled returns whether the session performs any work on incoming
// chunks.
//
// In Producer mode this is the logical OR of the publish flag and a
// non-empty log directory; in Relay mode the publish flag is never
// consulted, and only the log directory matters.
func (s *Session) Enabled() bool { return s.Config.Enabled() }

// FilePath returns the path of the session's log file, or "" if no file
// was opened.
func (s *Session) FilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filePath
}

// Initialize wires the channel side and the file side of the session,
// exactly once, synchronously.
//
// In Relay mode, every chunk delivered on the subscribed channel is
// routed to the log file and nowhere else. In Producer mode with
// publishing enabled, an empty readiness message is published.
//
// Failures never abort the session: each one downgrades capability (no
// log file, or no publishing) and is reported through the session logger.
func (s *Session) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		panic("already initialized")
	}
	s.initialized = true

	switch {
	case s.Config.Mode == Relay:
		if s.Subscriber == nil {
			s.logger().Errorf("Can't subscribe to raw data stream: no subscriber handle.")
			break
		}
		s.logger().Info("Subscribing to raw data stream.")
		if err := s.Subscriber.Subscribe(channel.HandlerFunc(s.receiveMessage)); err != nil {
			s.logger().Errorf("Can't subscribe to raw data stream: %s", err)
		}

	case s.Config.Publish:
		s.logger().Info("Publishing raw data stream.")
		s.publish(nil)
	}

	if s.Config.LogDir != "" {
		s.openLogFileLocked()
	}
}

// openLogFileLocked validates the configured directory, computes the
// session's log file name from the local wall-clock time, and opens it.
//
// Failures leave the file unopened; channel wiring is unaffected.
func (s *Session) openLogFileLocked() {
	dir := s.Config.LogDir

	switch st, err := os.Stat(dir); {
	case err != nil:
		s.logger().Errorf("Can't log raw data to file. Directory %q does not exist.", dir)
		return
	case !st.IsDir():
		s.logger().Errorf("Can't log raw data to file. %q exists, but is not a directory.", dir)
		return
	}

	path := filepath.Join(dir, s.now().Format(logFileTimeFormat)+logFileExt)
	fd, err := os.Create(path)
	if err != nil {
		s.logger().Errorf("Can't log raw data to file. Can't create file %q.", path)
		return
	}

	s.file = fd
	s.filePath = path
	sessionsLoggingGauge.Inc()
	s.logger().Infof("Logging raw data to file %q", path)
}

// CaptureBytes accepts one raw buffer directly from the receiver driver.
//
// The buffer is copied; the caller may reuse it immediately. If
// publishing is enabled the chunk is published to the channel, and the
// chunk is always routed to the file-write path, which is itself gated on
// whether a file was opened during Initialize.
//
// CaptureBytes is the Producer-mode entry point.
func (s *Session) CaptureBytes(p []byte) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	capturedBytes.Add(float64(len(chunk)))

	if s.Config.Publish {
		s.publish(chunk)
	}
	s.saveToFile(chunk)
}

// receiveMessage handles one chunk delivered by the subscribed channel.
//
// Any structure metadata on the message is informational only; the
// flattened payload bytes are routed to the log file and nowhere else.
//
// receiveMessage is the Relay-mode entry point.
func (s *Session) receiveMessage(msg *channel.Message) {
	receivedMessages.Inc()
	s.saveToFile(msg.Data)
}

func (s *Session) publish(chunk []byte) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(channel.NewMessage(chunk)); err != nil {
		s.logger().Warnf("Failed to publish raw data chunk: %s", err)
		return
	}
	publishedMessages.Inc()
}

// saveToFile appends chunk to the session's log file, in order, with no
// added framing or transformation.
//
// If no file is open this is a silent no-op. A write failure is reported
// as a warning and the chunk is skipped; the handle is kept open and
// subsequent chunks are still attempted against it.
func (s *Session) saveToFile(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}

	if _, err := s.file.Write(chunk); err != nil {
		writeErrors.Inc()
		s.logger().Warnf("Error writing to file %q: %s", s.filePath, err)
		return
	}
	writtenBytes.Add(float64(len(chunk)))
}

// Close releases the session's file and channel handles.
func (s *Session) Close() error {
	s.mu.Lock()
	file := s.file
	s.file = nil
	s.mu.Unlock()

	var err error
	if file != nil {
		err = file.Close()
		sessionsLoggingGauge.Dec()
	}

	// Close the channel handles outside of the session lock; subscriber
	// teardown may wait on a handler that is in the write path.
	if s.Subscriber != nil {
		if cerr := s.Subscriber.Close(); err == nil {
			err = cerr
		}
	}
	if s.Publisher != nil {
		if cerr := s.Publisher.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
