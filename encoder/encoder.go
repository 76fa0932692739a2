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

// Package encoder decodes the two signals of a quadrature rotary encoder
// into a position, a rotation direction and a speed estimate.
//
// The raw state of the encoder is the 2 bit value of the two pin levels
// (pin1 is bit 0, pin2 is bit 1). Counting up (clockwise) the raw states
// follow the sequence [3] 1 0 2 [3] 1 0 2 [3], where the bracketed values
// are where a typical mechanical encoder rests (the detents).
package encoder

import (
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Pin provides the logical level of one encoder signal.
// Any periph gpio.PinIn satisfies this interface.
type Pin interface {
	Read() gpio.Level
}

// Clock returns a wrapping, monotonically increasing millisecond counter.
type Clock func() uint32

// idle is the raw state of an encoder at rest.
const idle = 3

// defaultDetents is the number of detents in one revolution of the
// reference encoder, used for the RPM estimate.
const defaultDetents = 20

// knobDir is the position change for each (previous << 2 | current) raw state pair.
// Unchanged states and transitions where both signals flip are 0.
var knobDir = [16]int32{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

var start = time.Now()

// Millis returns the milliseconds elapsed since the package was
// initialised, wrapping at 2^32.
func Millis() uint32 {
	return uint32(time.Since(start).Milliseconds())
}

// Decoder is a quadrature decoder for one encoder.
// A single goroutine (poll loop or interrupt handler) calls Tick or Sample;
// the queries may be called concurrently from any goroutine.
//
// The internal position counts every valid raw state transition. The
// external position is the internal position scaled down by the latch mode,
// and is only updated when the encoder reaches a latch state.
// Both positions are packed into one word, as are the two latch timestamps,
// so that readers never see a half updated pair.
type Decoder struct {
	// 64 bit words first, to keep them aligned on 32 bit platforms.
	pos        uint64 // External position (high 32 bits), internal position (low 32 bits)
	times      uint64 // Previous latch time (high 32 bits), last latch time (low 32 bits)
	prevExt    int32  // External position at the last Direction call
	oldState   uint32 // Previous raw state, only used by the sampler
	pin1, pin2 Pin
	mode       LatchMode
	shift      uint
	millis     Clock
	detents    uint32
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock sets the millisecond clock used to time stamp position changes.
func WithClock(c Clock) Option {
	return func(d *Decoder) {
		if c != nil {
			d.millis = c
		}
	}
}

// WithDetents sets the number of detents in one revolution, used by RPM.
// The reference encoder has 20; a value of 0 keeps that default.
func WithDetents(n uint32) Option {
	return func(d *Decoder) {
		if n != 0 {
			d.detents = n
		}
	}
}

// New creates a Decoder reading the two pins, latching according to mode.
// An unknown mode is treated as FOUR0.
func New(pin1, pin2 Pin, mode LatchMode, opts ...Option) *Decoder {
	if !mode.valid() {
		mode = FOUR0
	}
	d := &Decoder{
		pin1:     pin1,
		pin2:     pin2,
		mode:     mode,
		shift:    mode.shift(),
		millis:   Millis,
		detents:  defaultDetents,
		oldState: idle,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Mode returns the latch mode of the decoder.
func (d *Decoder) Mode() LatchMode {
	return d.mode
}

// Tick reads both pins and updates the decoder state.
// It should be called more often than the encoder can change state.
func (d *Decoder) Tick() {
	d.update(state(d.pin1.Read(), d.pin2.Read()))
}

// Sample updates the decoder state from levels already read by the caller,
// e.g levels captured in an interrupt handler.
func (d *Decoder) Sample(l1, l2 gpio.Level) {
	d.update(state(l1, l2))
}

func (d *Decoder) update(s uint32) {
	old := d.oldState
	if s == old {
		return
	}
	latch := d.mode.latches(s)
	inc := knobDir[s|old<<2]
	// The times are stored first so a reader seeing the new position
	// also sees its timing.
	if latch {
		last := uint32(atomic.LoadUint64(&d.times))
		atomic.StoreUint64(&d.times, uint64(last)<<32|uint64(d.millis()))
	}
	for {
		cur := atomic.LoadUint64(&d.pos)
		internal, ext := unpack(cur)
		internal += inc
		if latch {
			ext = internal >> d.shift
		}
		if atomic.CompareAndSwapUint64(&d.pos, cur, pack(internal, ext)) {
			break
		}
	}
	d.oldState = s
}

// Position returns the current external position.
func (d *Decoder) Position() int32 {
	_, ext := unpack(atomic.LoadUint64(&d.pos))
	return ext
}

// SetPosition sets the external position, keeping the sub-detent part of
// the internal position so the next transition continues from the same
// place. A following Direction call reports NoRotation.
func (d *Decoder) SetPosition(p int32) {
	mask := int32(1)<<d.shift - 1
	for {
		cur := atomic.LoadUint64(&d.pos)
		internal, _ := unpack(cur)
		internal = p<<d.shift | internal&mask
		if atomic.CompareAndSwapUint64(&d.pos, cur, pack(internal, p)) {
			break
		}
	}
	atomic.StoreInt32(&d.prevExt, p)
}

// Direction returns the direction of rotation since the last call.
// Each change is reported once: the call records the current position, so
// a second call without further movement returns NoRotation.
func (d *Decoder) Direction() Direction {
	ext := d.Position()
	return compare(atomic.SwapInt32(&d.prevExt, ext), ext)
}

// Pending returns the direction of rotation since the last Direction call
// without consuming it.
func (d *Decoder) Pending() Direction {
	return compare(atomic.LoadInt32(&d.prevExt), d.Position())
}

// MillisBetweenRotations returns the milliseconds between the last two
// position changes.
func (d *Decoder) MillisBetweenRotations() uint32 {
	prev, last := d.latchTimes()
	return last - prev
}

// RPM estimates the revolutions per minute from the time between the last
// two position changes, or the time since the last change if that is longer,
// so a stopped encoder decays towards 0.
// If both intervals are 0 the quotient is +Inf, and the conversion of that
// to uint32 is platform defined (it does not panic).
func (d *Decoder) RPM() uint32 {
	prev, last := d.latchTimes()
	between := last - prev
	since := d.millis() - last
	t := between
	if since > t {
		t = since
	}
	return uint32(60000.0 / float64(t*d.detents))
}

func (d *Decoder) latchTimes() (prev, last uint32) {
	v := atomic.LoadUint64(&d.times)
	return uint32(v >> 32), uint32(v)
}

func (d *Decoder) internal() int32 {
	i, _ := unpack(atomic.LoadUint64(&d.pos))
	return i
}

func compare(prev, cur int32) Direction {
	switch {
	case prev > cur:
		return CounterClockwise
	case prev < cur:
		return Clockwise
	}
	return NoRotation
}

func state(l1, l2 gpio.Level) uint32 {
	var s uint32
	if l1 {
		s |= 1
	}
	if l2 {
		s |= 2
	}
	return s
}

func pack(internal, ext int32) uint64 {
	return uint64(uint32(ext))<<32 | uint64(uint32(internal))
}

func unpack(v uint64) (internal, ext int32) {
	return int32(uint32(v)), int32(uint32(v >> 32))
}
