// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rawstream

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsLoggingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ublox_rawstream_logging_sessions",
		Help: "Count of sessions with an open log file.",
	})

	capturedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_rawstream_captured_bytes",
		Help: "Count of raw bytes captured from the receiver driver.",
	})

	publishedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_rawstream_published_messages",
		Help: "Count of messages published to the raw data stream channel.",
	})

	receivedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_rawstream_received_messages",
		Help: "Count of messages received from the subscribed channel.",
	})

	writtenBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_rawstream_written_bytes",
		Help: "Count of raw bytes appended to the session log file.",
	})

	writeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_rawstream_write_errors",
		Help: "Count of failed log file writes.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		sessionsLoggingGauge,
		capturedBytes,
		publishedMessages,
		receivedMessages,
		writtenBytes,
		writeErrors,
	)
}
