// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rawstream

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CMU-cabot/ublox/channel"
	"github.com/CMU-cabot/ublox/support/logging"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// testLogger records error- and warning-level output for assertions.
type testLogger struct {
	logging.L

	mu       sync.Mutex
	errors   []string
	warnings []string
}

func newTestLogger() *testLogger {
	return &testLogger{L: logging.Nop}
}

func (tl *testLogger) Errorf(format string, args ...interface{}) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.errors = append(tl.errors, fmt.Sprintf(format, args...))
}

func (tl *testLogger) Warnf(format string, args ...interface{}) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.warnings = append(tl.warnings, fmt.Sprintf(format, args...))
}

func (tl *testLogger) errorCount() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.errors)
}

func (tl *testLogger) warningCount() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.warnings)
}

var _ = Describe("Session", func() {
	// 2024-03-07 09:05 local time; the expected file name is fixed by the
	// minute-granularity format.
	fixedTime := time.Date(2024, 3, 7, 9, 5, 0, 0, time.Local)
	const fixedName = "2024_03_07_0905.log"

	var tdir string

	BeforeEach(func() {
		var err error
		tdir, err = os.MkdirTemp("", "rawstream_test")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if tdir != "" {
			_ = os.RemoveAll(tdir)
			tdir = ""
		}
	})

	It("computes the log file name from the local wall-clock time", func() {
		s := &Session{
			Config:  Config{Mode: Producer, LogDir: tdir},
			NowFunc: func() time.Time { return fixedTime },
		}
		s.Initialize()
		defer func() {
			_ = s.Close()
		}()

		Expect(s.FilePath()).To(Equal(filepath.Join(tdir, fixedName)))
		_, err := os.Stat(s.FilePath())
		Expect(err).ToNot(HaveOccurred())
	})

	It("appends all chunks to a single file in arrival order", func() {
		s := &Session{Config: Config{Mode: Producer, LogDir: tdir}}
		s.Initialize()

		s.CaptureBytes([]byte{0x01, 0x02})
		s.CaptureBytes(nil)
		s.CaptureBytes([]byte{0x03})

		path := s.FilePath()
		Expect(s.Close()).To(Succeed())

		content, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(content).To(Equal([]byte{0x01, 0x02, 0x03}))
	})

	It("copies captured buffers before dispatch", func() {
		s := &Session{Config: Config{Mode: Producer, LogDir: tdir}}
		s.Initialize()

		buf := []byte{0x01, 0x02, 0x03}
		s.CaptureBytes(buf)
		buf[0] = 0xff
		s.CaptureBytes(buf[:1])

		path := s.FilePath()
		Expect(s.Close()).To(Succeed())

		content, err := os.ReadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(content).To(Equal([]byte{0x01, 0x02, 0x03, 0xff}))
	})

	It("leaves the file unopened when the directory does not exist", func() {
		tl := newTestLogger()
		missing := filepath.Join(tdir, "missing")

		s := &Session{
			Config: Config{Mode: Producer, LogDir: missing},
			Logger: tl,
		}
		s.Initialize()
		defer func() {
			_ = s.Close()
		}()

		Expect(s.FilePath()).To(BeEmpty())
		Expect(tl.errorCount()).To(Equal(1))

		_, err := os.Stat(missing)
		Expect(os.IsNotExist(err)).To(BeTrue())

		// Capturing is a silent no-op without an open file.
		s.CaptureBytes([]byte{0x01, 0x02, 0x03})
	})

	It("leaves the file unopened when the path is a regular file", func() {
		tl := newTestLogger()
		plain := filepath.Join(tdir, "plain")
		Expect(os.WriteFile(plain, []byte("x"), 0o644)).To(Succeed())

		s := &Session{
			Config: Config{Mode: Producer, LogDir: plain},
			Logger: tl,
		}
		s.Initialize()
		defer func() {
			_ = s.Close()
		}()

		Expect(s.FilePath()).To(BeEmpty())
		Expect(tl.errorCount()).To(Equal(1))
	})

	It("warns on a failed write and keeps attempting the same handle", func() {
		tl := newTestLogger()
		s := &Session{
			Config: Config{Mode: Producer, LogDir: tdir},
			Logger: tl,
		}
		s.Initialize()

		s.CaptureBytes([]byte{0x01})

		// Swap in a read-only handle so subsequent writes fail.
		path := filepath.Join(tdir, "readonly.log")
		Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())
		ro, err := os.Open(path)
		Expect(err).ToNot(HaveOccurred())

		s.mu.Lock()
		good := s.file
		s.file = ro
		s.mu.Unlock()
		defer func() {
			_ = good.Close()
		}()

		s.CaptureBytes([]byte{0x02})
		Expect(tl.warningCount()).To(Equal(1))

		// The handle is kept open and the next chunk is still attempted.
		s.CaptureBytes([]byte{0x03})
		Expect(tl.warningCount()).To(Equal(2))
		Expect(s.FilePath()).ToNot(BeEmpty())

		Expect(s.Close()).To(Succeed())
	})

	It("panics when initialized twice", func() {
		s := &Session{Config: Config{Mode: Producer}}
		s.Initialize()
		Expect(func() { s.Initialize() }).To(Panic())
	})

	Describe("producer mode", func() {
		var bus *channel.Bus
		var msgC chan *channel.Message
		var sub channel.Subscriber

		BeforeEach(func() {
			bus = &channel.Bus{}
			msgC = make(chan *channel.Message, 16)
			sub = bus.Subscriber(channel.Topic)
			Expect(sub.Subscribe(channel.HandlerFunc(func(m *channel.Message) {
				msgC <- m
			}))).To(Succeed())
		})

		AfterEach(func() {
			_ = sub.Close()
		})

		It("publishes a readiness announcement, then chunks, and logs them", func() {
			s := &Session{
				Config:    Config{Mode: Producer, LogDir: tdir, Publish: true},
				Publisher: bus.Publisher(channel.Topic),
			}
			s.Initialize()

			var m *channel.Message
			Eventually(msgC).Should(Receive(&m))
			Expect(m.Data).To(BeEmpty())
			Expect(m.Label).To(Equal(channel.Topic))

			s.CaptureBytes([]byte{0x01, 0x02, 0x03})

			Eventually(msgC).Should(Receive(&m))
			Expect(m.Length).To(Equal(uint32(3)))
			Expect(m.Stride).To(Equal(uint32(1)))
			Expect(m.Data).To(Equal([]byte{0x01, 0x02, 0x03}))

			path := s.FilePath()
			Expect(s.Close()).To(Succeed())

			content, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(content).To(Equal([]byte{0x01, 0x02, 0x03}))
		})

		It("still logs when the publish flag is unset", func() {
			s := &Session{
				Config:    Config{Mode: Producer, LogDir: tdir},
				Publisher: bus.Publisher(channel.Topic),
			}
			s.Initialize()

			s.CaptureBytes([]byte{0x0a})
			Consistently(msgC).ShouldNot(Receive())

			path := s.FilePath()
			Expect(s.Close()).To(Succeed())

			content, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(content).To(Equal([]byte{0x0a}))
		})

		It("keeps publishing when the directory is invalid", func() {
			tl := newTestLogger()
			s := &Session{
				Config:    Config{Mode: Producer, LogDir: filepath.Join(tdir, "missing"), Publish: true},
				Publisher: bus.Publisher(channel.Topic),
				Logger:    tl,
			}
			s.Initialize()
			defer func() {
				_ = s.Close()
			}()

			Expect(s.FilePath()).To(BeEmpty())
			Expect(tl.errorCount()).To(Equal(1))

			// Readiness announcement.
			var m *channel.Message
			Eventually(msgC).Should(Receive(&m))
			Expect(m.Data).To(BeEmpty())

			s.CaptureBytes([]byte{0x01, 0x02})
			Eventually(msgC).Should(Receive(&m))
			Expect(m.Data).To(Equal([]byte{0x01, 0x02}))
		})
	})

	Describe("relay mode", func() {
		var bus *channel.Bus

		BeforeEach(func() {
			bus = &channel.Bus{}
		})

		It("routes channel chunks to the log file and nowhere else", func() {
			s := &Session{
				Config:     Config{Mode: Relay, LogDir: tdir},
				Subscriber: bus.Subscriber(channel.Topic),
				NowFunc:    func() time.Time { return fixedTime },
			}
			s.Initialize()

			pub := bus.Publisher(channel.Topic)
			Expect(pub.Publish(channel.NewMessage([]byte{0xaa, 0xbb}))).To(Succeed())
			Expect(pub.Publish(channel.NewMessage([]byte{0xcc}))).To(Succeed())

			path := s.FilePath()
			Expect(path).To(Equal(filepath.Join(tdir, fixedName)))

			Eventually(func() []byte {
				content, _ := os.ReadFile(path)
				return content
			}).Should(Equal([]byte{0xaa, 0xbb, 0xcc}))

			Expect(s.Close()).To(Succeed())
		})

		It("degrades to file logging only when no subscriber handle is set", func() {
			tl := newTestLogger()
			s := &Session{
				Config: Config{Mode: Relay, LogDir: tdir},
				Logger: tl,
			}

			Expect(func() { s.Initialize() }).ToNot(Panic())
			Expect(tl.errorCount()).To(Equal(1))

			// File wiring is unaffected.
			Expect(s.FilePath()).ToNot(BeEmpty())
			Expect(s.Close()).To(Succeed())
		})

		It("reports an error and keeps running when the directory is invalid", func() {
			tl := newTestLogger()
			s := &Session{
				Config:     Config{Mode: Relay, LogDir: filepath.Join(tdir, "missing")},
				Subscriber: bus.Subscriber(channel.Topic),
				Logger:     tl,
			}
			s.Initialize()

			pub := bus.Publisher(channel.Topic)
			Expect(pub.Publish(channel.NewMessage([]byte{1, 2, 3, 4, 5}))).To(Succeed())

			Expect(s.FilePath()).To(BeEmpty())
			Expect(tl.errorCount()).To(Equal(1))
			Expect(s.Close()).To(Succeed())

			// A subsequent session with a valid directory is unaffected.
			bus2 := &channel.Bus{}
			s2 := &Session{
				Config:     Config{Mode: Relay, LogDir: tdir},
				Subscriber: bus2.Subscriber(channel.Topic),
			}
			s2.Initialize()

			Expect(bus2.Publisher(channel.Topic).Publish(channel.NewMessage([]byte{9}))).To(Succeed())
			Eventually(func() []byte {
				content, _ := os.ReadFile(s2.FilePath())
				return content
			}).Should(Equal([]byte{9}))

			Expect(s2.Close()).To(Succeed())
		})
	})
})
