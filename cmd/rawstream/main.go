// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Command rawstream relays a u-blox receiver's raw byte stream.
//
// In producer mode it captures bytes from a receiver device (or replays a
// previously recorded log file) and optionally publishes them to a
// channel and/or appends them to a timestamped log file. In relay mode it
// subscribes to the channel and appends the received bytes to a log file.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/CMU-cabot/ublox/channel"
	"github.com/CMU-cabot/ublox/channel/redischannel"
	"github.com/CMU-cabot/ublox/channel/wschannel"
	"github.com/CMU-cabot/ublox/rawstream"
	"github.com/CMU-cabot/ublox/replay"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// captureBufferSize is the read buffer size for device capture.
const captureBufferSize = 4096

var (
	mode = rawstream.ModeFlag(rawstream.Producer)

	configPath  = pflag.String("config", "", "Path to the YAML parameter file.")
	devicePath  = pflag.String("device", "", "Receiver device or file to capture bytes from (producer mode).")
	replayPath  = pflag.String("replay", "", "Recorded log file to replay instead of capturing from a device (producer mode).")
	replayDelay = pflag.Duration("replay-interval", 0, "Delay between replayed chunks.")
	redisAddr   = pflag.String("redis", "", "Redis address to use as the channel transport.")
	compress    = pflag.Bool("compress", false, "Snappy-compress frames on the Redis transport.")
	hubListen   = pflag.String("hub-listen", "", "Address to serve the WebSocket hub on (producer mode).")
	hubURL      = pflag.String("hub-url", "", "WebSocket hub URL to subscribe to (relay mode).")
	metricsAddr = pflag.String("metrics-addr", "", "Address to serve Prometheus metrics on.")
	verbose     = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
)

func main() {
	pflag.Var(&mode, "mode", fmt.Sprintf("Operating mode, one of: %s.", rawstream.ModeFlagValues()))
	pflag.Parse()

	zcfg := zap.NewProductionConfig()
	if *verbose {
		zcfg = zap.NewDevelopmentConfig()
	}
	z, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = z.Sync()
	}()
	logger := z.Sugar()

	store := rawstream.MapStore{}
	if *configPath != "" {
		if store, err = rawstream.LoadYAMLStore(*configPath); err != nil {
			logger.Fatalf("Failed to load parameter file: %s", err)
		}
	}

	session := rawstream.Session{
		Config: rawstream.ResolveConfig(mode.Value(), store),
		Logger: logger,
	}
	if !session.Enabled() {
		logger.Info("Raw data stream is disabled; nothing to do.")
		return
	}

	wireChannel(&session, logger)

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		rawstream.RegisterMonitoring(reg)
		channel.RegisterMonitoring(reg)
		replay.RegisterMonitoring(reg)

		go func() {
			if err := http.ListenAndServe(*metricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})); err != nil {
				logger.Errorf("Metrics server failed: %s", err)
			}
		}()
	}

	session.Initialize()
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnf("Error closing session: %s", err)
		}
	}()

	c, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if mode.Value() == rawstream.Relay {
		<-c.Done()
		return
	}

	switch {
	case *replayPath != "":
		p := replay.Player{
			Send: func(chunk []byte) error {
				session.CaptureBytes(chunk)
				return nil
			},
			Interval: *replayDelay,
			Logger:   logger,
		}
		if err := p.Play(c, *replayPath); err != nil && err != context.Canceled {
			logger.Errorf("Replay failed: %s", err)
		}

	case *devicePath != "":
		if err := captureFrom(c, *devicePath, &session); err != nil {
			logger.Errorf("Device capture failed: %s", err)
		}

	default:
		logger.Fatal("Producer mode requires -device or -replay.")
	}
}

// wireChannel attaches the configured channel transport to the session.
func wireChannel(s *rawstream.Session, logger *zap.SugaredLogger) {
	relay := s.Config.Mode == rawstream.Relay

	switch {
	case *redisAddr != "":
		opts := redischannel.Options{
			Client:   redis.NewClient(&redis.Options{Addr: *redisAddr}),
			Compress: *compress,
			Logger:   logger,
		}
		if relay {
			s.Subscriber = opts.Subscriber()
		} else {
			s.Publisher = opts.Publisher()
		}

	case relay && *hubURL != "":
		s.Subscriber = &wschannel.Subscriber{URL: *hubURL, Logger: logger}

	case !relay && *hubListen != "":
		hub := &wschannel.Hub{Logger: logger}
		s.Publisher = hub
		go func() {
			if err := http.ListenAndServe(*hubListen, hub); err != nil {
				logger.Errorf("Hub server failed: %s", err)
			}
		}()

	case relay:
		logger.Fatal("Relay mode requires -redis or -hub-url.")

	case s.Config.Publish:
		logger.Fatal("Publishing requires -redis or -hub-listen.")
	}
}

// captureFrom streams raw bytes from the device at path into the session
// until EOF or Context cancellation.
func captureFrom(c context.Context, path string, s *rawstream.Session) error {
	fd, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = fd.Close()
	}()

	// Unblock the read loop on shutdown.
	go func() {
		<-c.Done()
		_ = fd.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, captureBufferSize)
	for {
		n, err := fd.Read(buf)
		if n > 0 {
			s.CaptureBytes(buf[:n])
		}

		switch {
		case err == io.EOF || c.Err() != nil:
			return nil
		case err != nil:
			return err
		}
	}
}
