// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rawstream

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// ModeFlag is a pflag.Value implementation that stores a Mode value.
type ModeFlag Mode

var _ pflag.Value = (*ModeFlag)(nil)

func (mf *ModeFlag) String() string { return Mode(*mf).String() }

// Set implements pflag.Value.
func (mf *ModeFlag) Set(v string) error {
	switch strings.ToLower(v) {
	case "producer":
		*mf = ModeFlag(Producer)
	case "relay":
		*mf = ModeFlag(Relay)
	default:
		return errors.Errorf("unknown mode: %q", v)
	}
	return nil
}

// Type implements pflag.Value.
func (mf *ModeFlag) Type() string { return "rawstream.Mode" }

// Value returns the mode value held by this flag.
func (mf ModeFlag) Value() Mode { return Mode(mf) }

// ModeFlagValues returns the list of possible values for a ModeFlag.
func ModeFlagValues() string {
	return strings.Join([]string{Producer.String(), Relay.String()}, ", ")
}
