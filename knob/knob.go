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

// Package knob runs a quadrature encoder as a knob, sampling the
// encoder signals and publishing position changes.

package knob

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aamcrae/rotary/encoder"
	"periph.io/x/conn/v3/gpio"
)

// How long an edge watcher waits before checking for shutdown.
const edgeTimeout = 100 * time.Millisecond

// Input is one encoder signal. The sysfs io.Gpio, periph gpio.PinIn
// and the simulated sim.Line all provide these methods.
type Input interface {
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// Event is published each time the knob position changes.
type Event struct {
	Name     string    `json:"name"`
	Position int32     `json:"position"`
	Delta    int32     `json:"delta"`
	RPM      uint32    `json:"rpm"`
	Millis   uint32    `json:"millis"` // Milliseconds between the last two changes
	Time     time.Time `json:"time"`
}

// Status is a snapshot of the knob state.
type Status struct {
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	Position int32  `json:"position"`
	Pending  string `json:"pending"`
	RPM      uint32 `json:"rpm"`
	Millis   uint32 `json:"millis"`
	Detents  int    `json:"detents"`
	Drops    uint32 `json:"drops"`
}

// Knob samples an encoder from a single goroutine, either on a polling
// interval, when a signal changes, or both.
// Edge watchers never sample the encoder themselves; they wake the sampler
// through a 1 slot channel, so the decoder only ever has one writer.
type Knob struct {
	samples uint64 // Number of samples taken, first for 64 bit alignment
	Name    string
	Config  *KnobConfig
	dec     *encoder.Decoder
	a, b    Input
	wake    chan struct{}
	last    int32  // Last published position
	drops   uint32 // Events dropped for slow subscribers
	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
	close   func() // Releases the inputs, if owned.
}

type inverted struct {
	Input
}

func (i inverted) Read() gpio.Level {
	return !i.Input.Read()
}

// New creates a Knob reading inputs a and b.
// Extra decoder options (e.g a test clock) may be supplied.
// A configuration with neither polling nor edges is polled at the default interval.
func New(cfg *KnobConfig, a, b Input, opts ...encoder.Option) *Knob {
	k := new(Knob)
	k.Name = cfg.Name
	if cfg.Poll <= 0 && !cfg.Edge {
		c := *cfg
		c.Poll = defaultPoll
		cfg = &c
	}
	k.Config = cfg
	if cfg.Invert {
		a, b = inverted{a}, inverted{b}
	}
	k.a, k.b = a, b
	k.wake = make(chan struct{}, 1)
	k.subs = make(map[int]chan Event)
	opts = append([]encoder.Option{encoder.WithDetents(uint32(cfg.Detents))}, opts...)
	k.dec = encoder.New(a, b, cfg.Mode, opts...)
	return k
}

// Run samples the encoder until the context is cancelled.
func (k *Knob) Run(ctx context.Context) {
	log.Printf("%s: mode %s, poll %s, edge %v", k.Name, k.Config.Mode, k.Config.Poll, k.Config.Edge)
	var wg sync.WaitGroup
	if k.Config.Edge {
		for _, in := range []Input{k.a, k.b} {
			wg.Add(1)
			go func(in Input) {
				defer wg.Done()
				k.watch(ctx, in)
			}(in)
		}
	}
	var tick <-chan time.Time
	if k.Config.Poll > 0 {
		t := time.NewTicker(k.Config.Poll)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Printf("%s: stopped at position %d (%d samples, %d dropped events)", k.Name, k.Position(), k.Samples(), k.Drops())
			return
		case <-tick:
		case <-k.wake:
		}
		k.sample()
	}
}

// watch wakes the sampler on each edge of the input.
func (k *Knob) watch(ctx context.Context, in Input) {
	for ctx.Err() == nil {
		if in.WaitForEdge(edgeTimeout) {
			select {
			case k.wake <- struct{}{}:
			default:
			}
		}
	}
}

// sample ticks the decoder and publishes any position change.
func (k *Knob) sample() {
	k.dec.Tick()
	atomic.AddUint64(&k.samples, 1)
	p := k.dec.Position()
	last := atomic.SwapInt32(&k.last, p)
	if p == last {
		return
	}
	k.publish(Event{
		Name:     k.Name,
		Position: p,
		Delta:    p - last,
		RPM:      k.dec.RPM(),
		Millis:   k.dec.MillisBetweenRotations(),
		Time:     time.Now(),
	})
}

func (k *Knob) publish(ev Event) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, c := range k.subs {
		select {
		case c <- ev:
		default:
			atomic.AddUint32(&k.drops, 1)
		}
	}
}

// Subscribe returns a channel receiving position change events,
// and a function to cancel the subscription. Events are dropped if
// the channel buffer is full.
func (k *Knob) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	c := make(chan Event, buf)
	k.mu.Lock()
	id := k.nextSub
	k.nextSub++
	k.subs[id] = c
	k.mu.Unlock()
	var once sync.Once
	return c, func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.subs, id)
			k.mu.Unlock()
			close(c)
		})
	}
}

// Decoder returns the encoder decoder of the knob.
func (k *Knob) Decoder() *encoder.Decoder {
	return k.dec
}

// Position returns the current knob position.
func (k *Knob) Position() int32 {
	return k.dec.Position()
}

// SetPosition sets the knob position. No event is published for the change.
func (k *Knob) SetPosition(p int32) {
	k.dec.SetPosition(p)
	atomic.StoreInt32(&k.last, p)
	log.Printf("%s: position set to %d", k.Name, p)
}

// Direction returns the direction the knob turned since the last call.
func (k *Knob) Direction() encoder.Direction {
	return k.dec.Direction()
}

// RPM returns the estimated speed of the knob.
func (k *Knob) RPM() uint32 {
	return k.dec.RPM()
}

// Drops returns the number of events dropped because a subscriber was slow.
func (k *Knob) Drops() uint32 {
	return atomic.LoadUint32(&k.drops)
}

// Samples returns the number of times the encoder was sampled.
func (k *Knob) Samples() uint64 {
	return atomic.LoadUint64(&k.samples)
}

// Status returns a snapshot of the knob.
func (k *Knob) Status() Status {
	return Status{
		Name:     k.Name,
		Mode:     k.Config.Mode.String(),
		Position: k.dec.Position(),
		Pending:  k.dec.Pending().String(),
		RPM:      k.dec.RPM(),
		Millis:   k.dec.MillisBetweenRotations(),
		Detents:  k.Config.Detents,
		Drops:    k.Drops(),
	}
}

// Close releases the inputs if the knob opened them.
func (k *Knob) Close() {
	if k.close != nil {
		k.close()
		k.close = nil
	}
}
