// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package knob

import (
	"fmt"
	"time"

	"github.com/aamcrae/config"
	"github.com/aamcrae/rotary/encoder"
)

// Default sampling interval when neither polling nor edges are configured.
const defaultPoll = time.Millisecond

// KnobConfig is the configuration of one encoder knob, read from a
// configuration file section.
type KnobConfig struct {
	Name    string
	Pins    [2]int            // GPIOs for encoder signals A and B
	Mode    encoder.LatchMode // Latch mode
	Poll    time.Duration     // Sampling interval, 0 for edge triggered only
	Edge    bool              // Sample on pin edges
	Detents int               // Detents per revolution
	Invert  bool              // Invert both input levels
}

// Config reads and validates a KnobConfig from a config file section.
// Sample config:
//  [volume]                 # name of knob
//  encoder=17,27            # GPIOs for encoder A and B
//  mode=FOUR0               # latch mode: FOUR3, FOUR0 or TWO03
//  poll=1ms                 # optional sampling interval, 0 to disable polling
//  edge=1                   # optional, sample on edges of either signal
//  detents=20               # optional detents per revolution
//  invert=0                 # optional, 1 to invert the signals
func Config(conf *config.Config, name string) (*KnobConfig, error) {
	s := conf.GetSection(name)
	if s == nil {
		return nil, fmt.Errorf("no config for %s", name)
	}
	k := &KnobConfig{Name: name, Mode: encoder.FOUR0, Poll: defaultPoll, Detents: 20}
	n, err := s.Parse("encoder", "%d,%d", &k.Pins[0], &k.Pins[1])
	if err != nil {
		return nil, fmt.Errorf("%s: encoder: %v", name, err)
	}
	if n != 2 {
		return nil, fmt.Errorf("%s: encoder: argument count", name)
	}
	if m, err := s.GetArg("mode"); err == nil {
		if k.Mode, err = encoder.ParseLatchMode(m); err != nil {
			return nil, fmt.Errorf("%s: mode: %v", name, err)
		}
	}
	if p, err := s.GetArg("poll"); err == nil {
		if k.Poll, err = time.ParseDuration(p); err != nil {
			return nil, fmt.Errorf("%s: poll: %v", name, err)
		}
	}
	flag := func(key string) (bool, error) {
		if _, err := s.GetArg(key); err != nil {
			return false, nil
		}
		var v int
		if n, err := s.Parse(key, "%d", &v); err != nil || n != 1 {
			return false, fmt.Errorf("%s: %s: invalid value", name, key)
		}
		return v != 0, nil
	}
	if k.Edge, err = flag("edge"); err != nil {
		return nil, err
	}
	if k.Invert, err = flag("invert"); err != nil {
		return nil, err
	}
	if _, err := s.GetArg("detents"); err == nil {
		if n, err := s.Parse("detents", "%d", &k.Detents); err != nil || n != 1 {
			return nil, fmt.Errorf("%s: detents: invalid value", name)
		}
	}
	if err := k.validate(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *KnobConfig) validate() error {
	if k.Pins[0] < 0 || k.Pins[1] < 0 || k.Pins[0] == k.Pins[1] {
		return fmt.Errorf("%s: invalid encoder pins %d,%d", k.Name, k.Pins[0], k.Pins[1])
	}
	if k.Poll < 0 {
		return fmt.Errorf("%s: negative poll interval", k.Name)
	}
	if k.Detents <= 0 {
		return fmt.Errorf("%s: detents must be positive", k.Name)
	}
	if k.Poll == 0 && !k.Edge {
		k.Poll = defaultPoll
	}
	return nil
}
