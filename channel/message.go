// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

import (
	"bytes"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const (
	// Topic is the channel topic on which raw receiver bytes are
	// exchanged.
	Topic = "raw_data_stream"

	// DefaultQueueDepth is the default number of undelivered messages a
	// channel endpoint retains before evicting the oldest.
	DefaultQueueDepth = 100
)

// Message is one delivery unit of raw receiver bytes.
//
// The wire form is a flat descriptor followed by the payload bytes in
// original order. Stride and Label are informational; the payload is
// always interpreted verbatim, contiguous, in delivery order.
type Message struct {
	// Length is the payload size in bytes. It is derived from Data when
	// the message is packed.
	Length uint32 `struc:",little,sizeof=Data"`
	// Stride is the element stride. Raw byte streams always use 1.
	Stride uint32 `struc:",little"`

	// LabelLen is the wire size of Label, derived when the message is
	// packed.
	LabelLen uint8 `struc:",sizeof=Label"`
	// Label identifies the stream that produced this payload.
	Label string

	// Data is the payload.
	Data []byte
}

// NewMessage creates a Message for data on the raw data stream topic.
//
// The descriptor fields are populated immediately, so consumers that
// never cross a Pack/Unpack boundary (such as the in-process Bus) still
// observe the payload length. Pack re-derives the same values.
//
// data is referenced, not copied. A nil or empty data is valid and yields
// a zero-length message; one such message is published as a readiness
// announcement when publishing begins.
func NewMessage(data []byte) *Message {
	return &Message{
		Length:   uint32(len(data)),
		Stride:   1,
		LabelLen: uint8(len(Topic)),
		Label:    Topic,
		Data:     data,
	}
}

// Pack writes the wire form of m to w, updating its derived size fields.
func (m *Message) Pack(w io.Writer) error {
	return struc.Pack(w, m)
}

// Unpack resets m to the wire-form message read from r.
func (m *Message) Unpack(r io.Reader) error {
	*m = Message{}
	return struc.Unpack(r, m)
}

// Marshal returns the wire form of m as a byte slice.
func (m *Message) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Pack(&buf); err != nil {
		return nil, errors.Wrap(err, "packing message")
	}
	return buf.Bytes(), nil
}

// UnmarshalMessage parses a wire-form message from frame.
func UnmarshalMessage(frame []byte) (*Message, error) {
	var m Message
	if err := m.Unpack(bytes.NewReader(frame)); err != nil {
		return nil, errors.Wrap(err, "unpacking message")
	}
	return &m, nil
}
