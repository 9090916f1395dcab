// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	busPublishedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_channel_published_messages",
		Help: "Count of messages published to the in-process bus.",
	})

	busDroppedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_channel_dropped_messages",
		Help: "Count of undelivered messages evicted from full subscription queues.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		busPublishedMessages,
		busDroppedMessages,
	)
}
