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

// Package sim simulates the shaft of a quadrature rotary encoder.

package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Raw states in the order the encoder moves when counting up.
var sequence = [4]uint32{3, 1, 0, 2}

// Shaft acts like an encoder shaft, moving through the quadrature
// states one at a time and presenting the result on two lines.
// The shaft starts at rest in state 3.
type Shaft struct {
	mu    sync.Mutex
	index int    // Index into sequence
	state uint32 // Current raw state, read atomically by the lines
	steps int    // Quadrature steps per detent
	moved int64  // Accumulated signed steps
	delay time.Duration
	hook  func()
	a, b  *Line
}

// Line is one output signal of the shaft.
type Line struct {
	name  string
	bit   uint32
	shaft *Shaft
	edge  chan struct{}
}

// NewShaft creates a shaft with the number of quadrature steps in a detent
// (4 for the FOUR3 and FOUR0 encoders, 2 for TWO03).
func NewShaft(steps int) *Shaft {
	if steps <= 0 {
		steps = 4
	}
	s := &Shaft{state: sequence[0], steps: steps}
	s.a = &Line{name: "A", bit: 1, shaft: s, edge: make(chan struct{}, 1)}
	s.b = &Line{name: "B", bit: 2, shaft: s, edge: make(chan struct{}, 1)}
	return s
}

// A returns the line that is bit 0 of the raw state.
func (s *Shaft) A() *Line {
	return s.a
}

// B returns the line that is bit 1 of the raw state.
func (s *Shaft) B() *Line {
	return s.b
}

// OnChange sets a function called after every state change, e.g to
// sample the lines synchronously.
func (s *Shaft) OnChange(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = f
}

// SetDelay sets a delay between each quadrature step, simulating
// the speed of rotation.
func (s *Shaft) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// State returns the current raw state.
func (s *Shaft) State() uint32 {
	return atomic.LoadUint32(&s.state)
}

// Moved returns the signed number of quadrature steps moved.
func (s *Shaft) Moved() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moved
}

// Step moves the shaft n quadrature steps, positive values counting up.
func (s *Shaft) Step(n int) {
	inc := 1
	if n < 0 {
		inc = -1
		n = -n
	}
	for i := 0; i < n; i++ {
		s.mu.Lock()
		s.index = (s.index + inc) & 3
		s.moved += int64(inc)
		v, hook, delay := sequence[s.index], s.hook, s.delay
		s.mu.Unlock()
		s.set(v)
		if hook != nil {
			hook()
		}
		if delay != 0 {
			time.Sleep(delay)
		}
	}
}

// Detents moves the shaft n detents.
func (s *Shaft) Detents(n int) {
	s.Step(n * s.steps)
}

// Glitch flips both lines at once, a transition a real encoder cannot make.
// The shaft position is not changed, so a second Glitch restores it.
func (s *Shaft) Glitch() {
	s.mu.Lock()
	s.index = (s.index + 2) & 3
	v, hook := sequence[s.index], s.hook
	s.mu.Unlock()
	s.set(v)
	if hook != nil {
		hook()
	}
}

// Bounce moves one step forward and straight back, as contact bounce does.
func (s *Shaft) Bounce() {
	s.Step(1)
	s.Step(-1)
}

func (s *Shaft) set(v uint32) {
	old := atomic.SwapUint32(&s.state, v)
	for _, l := range []*Line{s.a, s.b} {
		if (old^v)&l.bit != 0 {
			select {
			case l.edge <- struct{}{}:
			default:
			}
		}
	}
}

// Name returns the name of the line.
func (l *Line) Name() string {
	return l.name
}

// Read returns the current level of the line.
func (l *Line) Read() gpio.Level {
	return gpio.Level(atomic.LoadUint32(&l.shaft.state)&l.bit != 0)
}

// WaitForEdge waits for the line to change level. A negative timeout
// waits forever. It returns false if the timeout expired.
func (l *Line) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-l.edge
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-l.edge:
		return true
	case <-t.C:
		return false
	}
}
