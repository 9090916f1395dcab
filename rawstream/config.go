// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rawstream

import (
	"fmt"
)

// Mode selects where a Session's raw bytes originate.
type Mode int

const (
	// Producer captures bytes locally from the receiver driver.
	Producer Mode = iota
	// Relay receives bytes from a subscribed channel.
	Relay
)

func (m Mode) String() string {
	switch m {
	case Producer:
		return "producer"
	case Relay:
		return "relay"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(m))
	}
}

// Configuration keys read from the parameter Store.
const (
	// relayDirKey is the log directory key in Relay mode.
	relayDirKey = "dir"
	// producerDirKey is the log directory key in Producer mode.
	producerDirKey = "raw_data_stream.dir"
	// producerPublishKey is the publish-enable key in Producer mode.
	producerPublishKey = "raw_data_stream.publish"
)

// Store supplies externally-resolved configuration values.
//
// Absent keys resolve to the type's zero value; no error conditions are
// defined at this layer.
type Store interface {
	// GetString returns the string value for key, or "" if absent.
	GetString(key string) string
	// GetBool returns the boolean value for key, or false if absent.
	GetBool(key string) bool
}

// MapStore is a Store backed by a key/value map.
type MapStore map[string]interface{}

// GetString implements Store.
func (ms MapStore) GetString(key string) string {
	v, _ := ms[key].(string)
	return v
}

// GetBool implements Store.
func (ms MapStore) GetBool(key string) bool {
	v, _ := ms[key].(bool)
	return v
}

// Config is a Session's resolved configuration.
type Config struct {
	// Mode is the operating mode, fixed at construction.
	Mode Mode

	// LogDir is the directory to log raw data into. Empty disables file
	// logging.
	LogDir string

	// Publish enables channel publishing. It is only consulted in
	// Producer mode; in Relay mode the data already arrived via the
	// channel and is never re-published.
	Publish bool
}

// ResolveConfig reads the mode-specific configuration values from store.
func ResolveConfig(mode Mode, store Store) Config {
	cfg := Config{Mode: mode}
	if mode == Relay {
		cfg.LogDir = store.GetString(relayDirKey)
	} else {
		cfg.LogDir = store.GetString(producerDirKey)
		cfg.Publish = store.GetBool(producerPublishKey)
	}
	return cfg
}

// Enabled returns whether a session with this configuration performs any
// work on incoming chunks.
func (c *Config) Enabled() bool {
	if c.Mode == Relay {
		return c.LogDir != ""
	}
	return c.Publish || c.LogDir != ""
}
