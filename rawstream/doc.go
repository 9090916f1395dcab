// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package rawstream relays the raw byte stream emitted by a u-blox
// receiver to up to two sinks: a publish channel and a timestamped
// on-disk log file.
//
// A Session operates in one of two modes, fixed at construction:
//
//   - Producer mode: bytes arrive locally from the receiver driver via
//     CaptureBytes. The session optionally publishes each chunk to the
//     channel and optionally appends it to the log file.
//   - Relay mode: bytes arrive on a subscribed channel, already published
//     by another process. The session only appends them to the log file.
//
// The byte stream is opaque; no parsing, framing, or transformation is
// applied. The log file is the raw concatenation of every chunk routed to
// it, in arrival order, suitable for offline analysis with tools such as
// rtklib.
//
// Nothing in this package is fatal to the hosting process: directory,
// file-open, and write failures degrade capability (no log file) and are
// reported through the session logger only.
package rawstream
