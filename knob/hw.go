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

	"github.com/aamcrae/rotary/io"
)

// NewKnob opens the GPIO inputs named in the configuration and creates
// a Knob using them. Close releases the GPIOs.
func NewKnob(cfg *KnobConfig) (*Knob, error) {
	var pins [2]*io.Gpio
	closeAll := func() {
		for _, p := range pins {
			if p != nil {
				p.Close()
			}
		}
	}
	for i, n := range cfg.Pins {
		p, err := io.Pin(n)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("%s: pin %d: %v", cfg.Name, n, err)
		}
		pins[i] = p
		if cfg.Edge {
			if err := p.Edge(io.BOTH); err != nil {
				closeAll()
				return nil, fmt.Errorf("%s: pin %d: %v", cfg.Name, n, err)
			}
		}
	}
	k := New(cfg, pins[0], pins[1])
	k.close = closeAll
	return k, nil
}
