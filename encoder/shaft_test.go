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

package encoder_test

import (
	"sync"
	"testing"

	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/sim"
)

func TestShaft(t *testing.T) {
	tests := []struct {
		mode    encoder.LatchMode
		detents int
	}{
		{encoder.FOUR3, 7},
		{encoder.FOUR3, -5},
		{encoder.TWO03, 9},
		{encoder.TWO03, -4},
	}
	for _, tc := range tests {
		s := sim.NewShaft(tc.mode.Steps())
		d := encoder.New(s.A(), s.B(), tc.mode)
		s.OnChange(d.Tick)
		s.Detents(tc.detents)
		if got := d.Position(); got != int32(tc.detents) {
			t.Errorf("%s: %d detents, position %d", tc.mode, tc.detents, got)
		}
		if got := d.Internal(); int64(got) != s.Moved() {
			t.Errorf("%s: internal %d, shaft moved %d", tc.mode, got, s.Moved())
		}
	}
}

func TestShaftBounce(t *testing.T) {
	s := sim.NewShaft(4)
	d := encoder.New(s.A(), s.B(), encoder.FOUR3)
	s.OnChange(d.Tick)
	s.Detents(2)
	for i := 0; i < 10; i++ {
		s.Bounce()
	}
	s.Glitch()
	s.Glitch()
	if d.Position() != 2 {
		t.Errorf("position %d after bounce, want 2", d.Position())
	}
	if d.Direction() != encoder.Clockwise {
		t.Errorf("bounce changed direction")
	}
}

// One goroutine samples while others query, as an interrupt handler
// and foreground code would.
func TestConcurrentQueries(t *testing.T) {
	s := sim.NewShaft(4)
	d := encoder.New(s.A(), s.B(), encoder.FOUR3)
	s.OnChange(d.Tick)
	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				p := d.Position()
				if p < 0 || p > 500 {
					t.Errorf("position out of range: %d", p)
					return
				}
				_ = d.Pending()
				_ = d.MillisBetweenRotations()
			}
		}()
	}
	s.Detents(500)
	close(done)
	wg.Wait()
	if d.Position() != 500 {
		t.Errorf("position %d, want 500", d.Position())
	}
}
