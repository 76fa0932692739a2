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
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/sim"
	"github.com/gorilla/websocket"
)

func testServer(t *testing.T) (*httptest.Server, *Knob, *sim.Shaft) {
	s := sim.NewShaft(4)
	k := New(&KnobConfig{Name: "volume", Mode: encoder.FOUR3, Poll: time.Millisecond, Detents: 20}, s.A(), s.B())
	s.OnChange(k.sample)
	ts := httptest.NewServer(NewServer(k))
	t.Cleanup(ts.Close)
	return ts, k, s
}

func TestStatus(t *testing.T) {
	ts, _, s := testServer(t)
	s.Detents(3)
	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var st []Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(st) != 1 || st[0].Name != "volume" || st[0].Position != 3 {
		t.Errorf("status %+v", st)
	}
	resp, err = http.Get(ts.URL + "/status?knob=bass")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown knob status code %d", resp.StatusCode)
	}
}

func TestDial(t *testing.T) {
	ts, _, s := testServer(t)
	s.Detents(-7)
	resp, err := http.Get(ts.URL + "/dial.png?knob=volume")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != dialSize || b.Dy() != dialSize {
		t.Errorf("image size %v", b)
	}
	resp, err = http.Get(ts.URL + "/dial.png?knob=treble")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown knob status code %d", resp.StatusCode)
	}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		pos     int32
		detents int
		want    float64
	}{
		{0, 20, 0},
		{5, 20, 0.5 * 3.141592653589793},
		{25, 20, 0.5 * 3.141592653589793},
		{-5, 20, 1.5 * 3.141592653589793},
	}
	for _, tc := range tests {
		if got := angle(tc.pos, tc.detents); got-tc.want > 1e-9 || tc.want-got > 1e-9 {
			t.Errorf("angle(%d, %d) = %f, want %f", tc.pos, tc.detents, got, tc.want)
		}
	}
}

func TestEvents(t *testing.T) {
	ts, k, s := testServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events?knob=volume"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()
	// Wait for the handler to subscribe.
	deadline := time.Now().Add(2 * time.Second)
	for {
		k.mu.Lock()
		n := len(k.subs)
		k.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no subscription from events handler")
		}
		time.Sleep(time.Millisecond)
	}
	s.Detents(2)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for want := int32(1); want <= 2; want++ {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Name != "volume" || ev.Position != want || ev.Delta != 1 {
			t.Errorf("event %+v, want position %d", ev, want)
		}
	}
}
