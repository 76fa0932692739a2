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
	"context"
	"testing"
	"time"

	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/sim"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// collect reads events until the position reaches want, or times out.
func collect(t *testing.T, c <-chan Event, want int32) []Event {
	t.Helper()
	var evs []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c:
			evs = append(evs, ev)
			if ev.Position == want {
				return evs
			}
		case <-timeout:
			t.Fatalf("timed out waiting for position %d, events %v", want, evs)
		}
	}
}

func runShaft(t *testing.T, cfg *KnobConfig, detents int) {
	s := sim.NewShaft(cfg.Mode.Steps())
	s.SetDelay(5 * time.Millisecond)
	k := New(cfg, s.A(), s.B())
	c, cancel := k.Subscribe(64)
	defer cancel()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.Run(ctx)
		close(done)
	}()
	// Let the sampler and edge watchers start.
	time.Sleep(20 * time.Millisecond)
	s.Detents(detents)
	evs := collect(t, c, int32(detents))
	stop()
	<-done
	var sum int32
	for _, ev := range evs {
		if ev.Name != cfg.Name {
			t.Errorf("event name %q", ev.Name)
		}
		sum += ev.Delta
	}
	if sum != int32(detents) {
		t.Errorf("sum of deltas %d, want %d", sum, detents)
	}
	if k.Position() != int32(detents) {
		t.Errorf("position %d, want %d", k.Position(), detents)
	}
	if k.Samples() == 0 {
		t.Errorf("no samples taken")
	}
}

func TestRunEdges(t *testing.T) {
	runShaft(t, &KnobConfig{Name: "edge", Mode: encoder.FOUR3, Edge: true, Detents: 20}, 6)
}

func TestRunPoll(t *testing.T) {
	runShaft(t, &KnobConfig{Name: "poll", Mode: encoder.TWO03, Poll: 200 * time.Microsecond, Detents: 20}, -5)
}

func TestRunDefaultPoll(t *testing.T) {
	cfg := &KnobConfig{Name: "default", Mode: encoder.FOUR3, Detents: 20}
	runShaft(t, cfg, 3)
	if cfg.Poll != 0 {
		t.Errorf("caller's config changed, poll %s", cfg.Poll)
	}
	k := New(cfg, sim.NewShaft(4).A(), sim.NewShaft(4).B())
	if k.Config.Poll != defaultPoll {
		t.Errorf("poll %s, want %s", k.Config.Poll, defaultPoll)
	}
}

// setState sets the pins so that the inverted levels give raw state s.
func setState(a, b *gpiotest.Pin, s uint32) {
	a.L = gpio.Level(s&1 == 0)
	b.L = gpio.Level(s&2 == 0)
}

func TestInvert(t *testing.T) {
	a := &gpiotest.Pin{N: "A", Num: 1}
	b := &gpiotest.Pin{N: "B", Num: 2}
	k := New(&KnobConfig{Name: "inv", Mode: encoder.FOUR3, Invert: true, Poll: time.Millisecond, Detents: 20}, a, b)
	c, cancel := k.Subscribe(4)
	defer cancel()
	for _, s := range []uint32{1, 0, 2, 3} {
		setState(a, b, s)
		k.sample()
	}
	if k.Position() != 1 {
		t.Fatalf("position %d, want 1", k.Position())
	}
	select {
	case ev := <-c:
		if ev.Position != 1 || ev.Delta != 1 {
			t.Errorf("event %+v", ev)
		}
	default:
		t.Errorf("no event published")
	}
	if d := k.Direction(); d != encoder.Clockwise {
		t.Errorf("direction %s", d)
	}
}

func TestSetPositionNoEvent(t *testing.T) {
	s := sim.NewShaft(4)
	k := New(&KnobConfig{Name: "set", Mode: encoder.FOUR3, Poll: time.Millisecond, Detents: 20}, s.A(), s.B())
	c, cancel := k.Subscribe(4)
	defer cancel()
	k.SetPosition(10)
	k.sample()
	select {
	case ev := <-c:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
	s.OnChange(k.sample)
	s.Detents(-1)
	ev := <-c
	if ev.Position != 9 || ev.Delta != -1 {
		t.Errorf("event %+v, want position 9 delta -1", ev)
	}
}

func TestDrops(t *testing.T) {
	s := sim.NewShaft(4)
	k := New(&KnobConfig{Name: "drops", Mode: encoder.FOUR3, Poll: time.Millisecond, Detents: 20}, s.A(), s.B())
	_, cancel := k.Subscribe(1)
	s.OnChange(k.sample)
	s.Detents(3)
	if k.Drops() != 2 {
		t.Errorf("drops %d, want 2", k.Drops())
	}
	cancel()
	cancel()
	s.Detents(1)
	if k.Drops() != 2 {
		t.Errorf("drops %d after cancel, want 2", k.Drops())
	}
	st := k.Status()
	if st.Position != 4 || st.Drops != 2 || st.Mode != "FOUR3" || st.Pending != "clockwise" {
		t.Errorf("status %+v", st)
	}
}
