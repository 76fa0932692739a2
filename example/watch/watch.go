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

// Program to demonstrate how to watch the raw state of an encoder

package main

import (
	"flag"
	"log"
	"sync"

	"github.com/aamcrae/rotary/io"
)

var gpioA = flag.Int("a", 17, "GPIO pin for encoder signal A")
var gpioB = flag.Int("b", 27, "GPIO pin for encoder signal B")

func main() {
	flag.Parse()
	var pins []*io.Gpio
	for _, n := range []int{*gpioA, *gpioB} {
		p, err := io.Pin(n)
		if err != nil {
			log.Fatalf("Pin %d: %v", n, err)
		}
		defer p.Close()
		if err := p.Edge(io.BOTH); err != nil {
			log.Fatalf("Pin %d: edge BOTH: %v", n, err)
		}
		pins = append(pins, p)
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range pins {
		wg.Add(1)
		go func(p *io.Gpio) {
			defer wg.Done()
			for p.WaitForEdge(-1) {
				mu.Lock()
				a, b := pins[0].Read(), pins[1].Read()
				state := 0
				if a {
					state |= 1
				}
				if b {
					state |= 2
				}
				log.Printf("%s edge: A=%v B=%v state %d", p, a, b, state)
				mu.Unlock()
			}
			log.Printf("%s: wait failed", p)
		}(p)
	}
	wg.Wait()
}
