// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Message", func() {
	DescribeTable("round-trips payloads through the wire form",
		func(payload []byte) {
			m := NewMessage(payload)

			var buf bytes.Buffer
			Expect(m.Pack(&buf)).To(Succeed())

			var decoded Message
			Expect(decoded.Unpack(&buf)).To(Succeed())

			Expect(decoded.Length).To(Equal(uint32(len(payload))))
			Expect(decoded.Stride).To(Equal(uint32(1)))
			Expect(decoded.Label).To(Equal(Topic))
			if len(payload) == 0 {
				Expect(decoded.Data).To(BeEmpty())
			} else {
				Expect(decoded.Data).To(Equal(payload))
			}
		},
		Entry("empty", []byte(nil)),
		Entry("single byte", []byte{0x42}),
		Entry("small chunk", []byte{0x01, 0x02, 0x03}),
		Entry("binary with NULs", []byte{0x00, 0xff, 0x00, 0x7f, 0x80}),
		Entry("text", []byte("u-blox raw data")),
	)

	It("carries the descriptor fields at construction", func() {
		m := NewMessage([]byte{0x01, 0x02, 0x03})
		Expect(m.Length).To(Equal(uint32(3)))
		Expect(m.Stride).To(Equal(uint32(1)))
		Expect(m.Label).To(Equal(Topic))

		Expect(NewMessage(nil).Length).To(Equal(uint32(0)))
	})

	It("marshals and unmarshals a frame", func() {
		payload := []byte{0xb5, 0x62, 0x01, 0x07}

		frame, err := NewMessage(payload).Marshal()
		Expect(err).ToNot(HaveOccurred())

		msg, err := UnmarshalMessage(frame)
		Expect(err).ToNot(HaveOccurred())
		Expect(msg.Data).To(Equal(payload))
		Expect(msg.Length).To(Equal(uint32(4)))
	})

	It("rejects a truncated frame", func() {
		frame, err := NewMessage([]byte("payload")).Marshal()
		Expect(err).ToNot(HaveOccurred())

		_, err = UnmarshalMessage(frame[:len(frame)-2])
		Expect(err).To(HaveOccurred())
	})
})
