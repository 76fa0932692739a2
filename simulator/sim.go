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

// Simulator knob program

package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/knob"
	"github.com/aamcrae/rotary/sim"
)

type SimKnob struct {
	knob  *knob.Knob
	shaft *sim.Shaft
	steps int
}

var params = []struct {
	name    string
	mode    encoder.LatchMode
	delay   time.Duration // Delay between quadrature steps
	edge    bool
	poll    time.Duration
	detents int
}{
	{"volume", encoder.FOUR3, 5 * time.Millisecond, true, 0, 20},
	{"balance", encoder.TWO03, 10 * time.Millisecond, false, time.Millisecond, 20},
	{"tuning", encoder.FOUR3, 2 * time.Millisecond, true, 5 * time.Millisecond, 30},
}

var port = flag.Int("port", 8080, "Web server port number")
var report = flag.Duration("report", 5*time.Second, "Interval between consistency reports")

func main() {
	flag.Parse()
	ctx := context.Background()
	var knobs []*knob.Knob
	var sims []*SimKnob
	for i := range params {
		s := newSimKnob(ctx, i)
		sims = append(sims, s)
		knobs = append(knobs, s.knob)
	}
	go knob.Serve(*port, knobs...)
	for {
		time.Sleep(*report)
		for _, s := range sims {
			s.check()
		}
	}
}

func newSimKnob(ctx context.Context, index int) *SimKnob {
	p := &params[index]
	s := new(SimKnob)
	s.steps = p.mode.Steps()
	s.shaft = sim.NewShaft(s.steps)
	s.shaft.SetDelay(p.delay)
	cfg := &knob.KnobConfig{Name: p.name, Mode: p.mode, Poll: p.poll, Edge: p.edge, Detents: p.detents}
	s.knob = knob.New(cfg, s.shaft.A(), s.shaft.B())
	go s.knob.Run(ctx)
	go s.turn(rand.New(rand.NewSource(int64(index))))
	return s
}

// turn spins the shaft back and forth by random amounts, pausing
// at detents between moves.
func (s *SimKnob) turn(r *rand.Rand) {
	for {
		s.shaft.Detents(r.Intn(41) - 20)
		time.Sleep(time.Duration(r.Intn(500)) * time.Millisecond)
	}
}

// check compares the decoded position with the shaft, and reports any difference.
func (s *SimKnob) check() {
	moved := s.shaft.Moved()
	want := int32(moved / int64(s.steps))
	got := s.knob.Position()
	if got != want {
		log.Printf("%s: position %d, shaft at %d (%d steps) - diff is %d", s.knob.Name, got, want, moved, got-want)
	} else {
		log.Printf("%s: position %d, %d RPM", s.knob.Name, got, s.knob.RPM())
	}
}
