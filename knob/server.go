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

// HTTP server for knob dials and events

package knob

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/fogleman/gg"
	"github.com/gorilla/websocket"
)

const (
	dialSize   = 320
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the state of a set of knobs:
//  /status              JSON status of all knobs
//  /dial.png?knob=name  PNG image of the knob dial
//  /events?knob=name    websocket stream of JSON events (all knobs if no name)
type Server struct {
	knobs map[string]*Knob
	mux   *http.ServeMux
}

// NewServer creates a server for the knobs.
func NewServer(knobs ...*Knob) *Server {
	s := &Server{knobs: make(map[string]*Knob), mux: http.NewServeMux()}
	for _, k := range knobs {
		s.knobs[k.Name] = k
	}
	s.mux.HandleFunc("/status", s.status)
	s.mux.HandleFunc("/dial.png", s.dial)
	s.mux.HandleFunc("/events", s.events)
	return s
}

// Serve starts a web server on the port, and does not return.
func Serve(port int, knobs ...*Knob) {
	url := fmt.Sprintf(":%d", port)
	log.Printf("Starting server on %s", url)
	server := &http.Server{Addr: url, Handler: NewServer(knobs...)}
	log.Fatal(server.ListenAndServe())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// lookup returns the knobs selected by the knob query parameter,
// sorted by name. With no parameter, all knobs are returned.
func (s *Server) lookup(r *http.Request) ([]*Knob, bool) {
	name := r.URL.Query().Get("knob")
	if name != "" {
		k, ok := s.knobs[name]
		if !ok {
			return nil, false
		}
		return []*Knob{k}, true
	}
	var l []*Knob
	for _, k := range s.knobs {
		l = append(l, k)
	}
	sort.Slice(l, func(i, j int) bool { return l[i].Name < l[j].Name })
	return l, true
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	knobs, ok := s.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	st := make([]Status, 0, len(knobs))
	for _, k := range knobs {
		st = append(st, k.Status())
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Printf("status: %v", err)
	}
}

func (s *Server) dial(w http.ResponseWriter, r *http.Request) {
	knobs, ok := s.lookup(r)
	if !ok || len(knobs) != 1 {
		http.Error(w, "knob not found", http.StatusNotFound)
		return
	}
	c := drawDial(knobs[0].Status())
	w.Header().Set("Content-Type", "image/png")
	if err := c.EncodePNG(w); err != nil {
		log.Printf("%s: error writing image: %v", knobs[0].Name, err)
	}
}

// drawDial renders a knob with a mark for each detent and an
// indicator at the current position.
func drawDial(st Status) *gg.Context {
	const mid = dialSize / 2
	const radius = mid - 30
	c := gg.NewContext(dialSize, dialSize)
	c.SetRGB(1, 1, 1)
	c.Clear()
	c.SetRGB(0.2, 0.2, 0.2)
	c.SetLineWidth(4)
	c.DrawCircle(mid, mid, radius)
	c.Stroke()
	c.SetLineWidth(2)
	for i := 0; i < st.Detents; i++ {
		a := angle(int32(i), st.Detents)
		c.DrawLine(mid+(radius+6)*math.Sin(a), mid-(radius+6)*math.Cos(a),
			mid+(radius+14)*math.Sin(a), mid-(radius+14)*math.Cos(a))
		c.Stroke()
	}
	a := angle(st.Position, st.Detents)
	c.SetRGB(0, 0, 1)
	c.SetLineWidth(8)
	c.DrawLine(mid, mid, mid+(radius-10)*math.Sin(a), mid-(radius-10)*math.Cos(a))
	c.Stroke()
	c.SetRGB(0, 0, 0)
	c.DrawStringAnchored(st.Name, mid, 12, 0.5, 0.5)
	c.DrawStringAnchored(fmt.Sprintf("%d", st.Position), mid, mid+radius/2, 0.5, 0.5)
	c.DrawStringAnchored(fmt.Sprintf("%d RPM", st.RPM), mid, dialSize-12, 0.5, 0.5)
	return c
}

// angle returns the dial angle in radians (clockwise from the top) of a position.
func angle(pos int32, detents int) float64 {
	p := int(pos) % detents
	if p < 0 {
		p += detents
	}
	return float64(p) * 2 * math.Pi / float64(detents)
}

// events streams knob events to a websocket client until it disconnects.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	knobs, ok := s.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: upgrade: %v", err)
		return
	}
	out := make(chan Event, 32)
	var cancels []func()
	for _, k := range knobs {
		c, cancel := k.Subscribe(16)
		cancels = append(cancels, cancel)
		go func(c <-chan Event) {
			for ev := range c {
				select {
				case out <- ev:
				default:
				}
			}
		}(c)
	}
	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, out, closed)
	for _, cancel := range cancels {
		cancel()
	}
	conn.Close()
	log.Printf("events: %s disconnected", r.RemoteAddr)
}

// readPump discards client messages, handling pongs, until the connection fails.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends events and keepalive pings until the client goes away.
func writePump(conn *websocket.Conn, out <-chan Event, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ev := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
