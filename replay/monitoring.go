// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	playerSentChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_player_sent_chunks",
		Help: "Count of chunks sent by the replay player.",
	})

	playerSentBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_player_sent_bytes",
		Help: "Count of bytes sent by the replay player.",
	})

	playerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ublox_player_error_count",
		Help: "Count of replay player errors encountered during playback.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		playerSentChunks,
		playerSentBytes,
		playerErrors,
	)
}
