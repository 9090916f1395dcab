// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package replay streams recorded raw data log files back through a sink,
// for offline replay and analysis of captured receiver sessions.
package replay

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/CMU-cabot/ublox/support/logging"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the chunk size used when Player.ChunkSize is not
// set.
const DefaultChunkSize = 1024

// Player streams the contents of a recorded log file back through a sink.
//
// A recorded log is a raw concatenation of chunks with no framing, so the
// original chunk boundaries are not recoverable; the Player re-chunks the
// stream at a fixed size. The concatenation of all replayed chunks equals
// the file contents exactly.
//
// A Player is not safe for concurrent use. Its exported fields must not
// be changed after playback has begun.
type Player struct {
	// Send receives each replayed chunk. It must not be nil.
	//
	// Send calls are made synchronously, in stream order.
	Send func(chunk []byte) error

	// ChunkSize is the replay chunk size in bytes. If <= 0,
	// DefaultChunkSize is used.
	ChunkSize int

	// Interval is the delay between consecutive chunks. If <= 0, chunks
	// are sent back-to-back.
	Interval time.Duration

	// Logger is the logger instance to use. If nil, no logs will be
	// generated.
	Logger logging.L
}

func (p *Player) chunkSize() int {
	if p.ChunkSize > 0 {
		return p.ChunkSize
	}
	return DefaultChunkSize
}

// Play streams the log file at path through the Send sink until EOF or
// Context cancellation.
func (p *Player) Play(c context.Context, path string) error {
	fd, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening log file")
	}
	defer func() {
		_ = fd.Close()
	}()

	logging.Must(p.Logger).Infof("Replaying raw data from file %q", path)
	return p.playFrom(c, fd)
}

func (p *Player) playFrom(c context.Context, r io.Reader) error {
	buf := make([]byte, p.chunkSize())
	first := true

	for {
		if err := c.Err(); err != nil {
			return err
		}

		if !first && p.Interval > 0 {
			t := time.NewTimer(p.Interval)
			select {
			case <-c.Done():
				t.Stop()
				return c.Err()
			case <-t.C:
			}
		}
		first = false

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			if serr := p.Send(chunk); serr != nil {
				playerErrors.Inc()
				return errors.Wrap(serr, "sending chunk")
			}
			playerSentChunks.Inc()
			playerSentBytes.Add(float64(n))
		}

		switch err {
		case nil:
		case io.EOF:
			return nil
		default:
			playerErrors.Inc()
			return errors.Wrap(err, "reading log file")
		}
	}
}
