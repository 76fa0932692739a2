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

package main

import (
	"context"
	"testing"
	"time"

	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/knob"
	"github.com/aamcrae/rotary/sim"
)

func TestLogEventsStops(t *testing.T) {
	s := sim.NewShaft(4)
	k := knob.New(&knob.KnobConfig{Name: "log", Mode: encoder.FOUR3, Poll: time.Millisecond, Detents: 20}, s.A(), s.B())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		logEvents(ctx, k)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("logEvents still running after cancel")
	}
}
