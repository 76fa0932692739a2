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

// Package io manages GPIO pins

package io

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/gpio"
)

// Mode
const (
	IN  = iota // Default
	OUT = iota
)

// Edge
const (
	NONE    = iota // Default
	RISING  = iota
	FALLING = iota
	BOTH    = iota
)

const (
	baseDir      = "/sys/class/gpio/"
	exportFile   = baseDir + "export"
	unexportFile = baseDir + "unexport"
	valueFile    = "/value"
)

// Gpio represents one GPIO pin.
// The level can be read by one goroutine while another waits for an edge.
type Gpio struct {
	number    int
	value     *os.File
	direction int
	edge      int
	mu        sync.Mutex // Guards err
	err       error      // Last error from Read
}

// OutputPin opens a GPIO pin and sets the direction as OUTPUT.
func OutputPin(n int) (*Gpio, error) {
	g, err := Pin(n)
	if err != nil {
		return nil, err
	}
	err = g.Direction(OUT)
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Pin opens a GPIO pin as an input (by default)
func Pin(n int) (*Gpio, error) {
	g := new(Gpio)
	g.number = n
	base := fmt.Sprintf("%sgpio%d", baseDir, n)
	err := gpioClass.acquire(n, base+valueFile)
	if err != nil {
		return nil, err
	}
	err = g.Direction(IN)
	if err != nil {
		gpioClass.release(n)
		return nil, err
	}
	err = g.Edge(NONE)
	if err != nil {
		gpioClass.release(n)
		return nil, err
	}
	g.value, err = os.OpenFile(base+valueFile, os.O_RDWR, 0600)
	if err != nil {
		gpioClass.release(n)
		return nil, err
	}
	return g, nil
}

// Number returns the GPIO number of the pin.
func (g *Gpio) Number() int {
	return g.number
}

// String returns the name of the pin.
func (g *Gpio) String() string {
	return fmt.Sprintf("gpio%d", g.number)
}

// Direction sets the mode (direction) of the GPIO pin.
func (g *Gpio) Direction(d int) error {
	var s string
	switch d {
	case IN:
		s = "in"
	case OUT:
		s = "out"
	default:
		return fmt.Errorf("gpio%d: unknown direction", g.number)
	}
	err := writeFile(fmt.Sprintf("%sgpio%d/direction", baseDir, g.number), s)
	if err == nil {
		g.direction = d
	}
	return err
}

// Edge sets the edge detection on the GPIO pin.
func (g *Gpio) Edge(e int) error {
	if g.direction != IN {
		return fmt.Errorf("gpio%d: not set as an input pin", g.number)
	}
	var s string
	switch e {
	case NONE:
		s = "none"
	case RISING:
		s = "rising"
	case FALLING:
		s = "falling"
	case BOTH:
		s = "both"
	default:
		return fmt.Errorf("gpio%d: unknown edge", g.number)
	}
	err := writeFile(fmt.Sprintf("%sgpio%d/edge", baseDir, g.number), s)
	if err == nil {
		g.edge = e
	}
	return err
}

// Set the output of the GPIO pin (only valid for OUTPUT pins)
func (g *Gpio) Set(v int) error {
	if g.direction != OUT {
		return fmt.Errorf("gpio%d: is not output", g.number)
	}
	var b []byte
	if v == 0 {
		b = []byte{'0'}
	} else if v == 1 {
		b = []byte{'1'}
	} else {
		return fmt.Errorf("gpio%d: illegal value", g.number)
	}
	_, err := g.value.WriteAt(b, 0)
	return err
}

// Get returns the current value of the GPIO pin.
// If edge detection is enabled, Get waits for an edge first.
func (g *Gpio) Get() (int, error) {
	if g.edge != NONE {
		// With no timeout, poll should always return an event.
		if _, err := g.poll(-1); err != nil {
			return 0, err
		}
	}
	return g.get()
}

// Read returns the current level of the pin without waiting.
// A read error is reported as Low, and is available from Err.
func (g *Gpio) Read() gpio.Level {
	v, err := g.get()
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
	return v == 1
}

// Err returns the error from the last Read.
func (g *Gpio) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// WaitForEdge waits for an edge on the pin, as selected by Edge.
// A negative timeout waits forever. It returns false on timeout or error.
func (g *Gpio) WaitForEdge(timeout time.Duration) bool {
	if g.edge == NONE {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return false
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	ok, err := g.poll(ms)
	if err != nil {
		return false
	}
	// Clear the pending event.
	g.get()
	return ok
}

// Close the GPIO pin and unexport it.
func (g *Gpio) Close() {
	g.value.Close()
	gpioClass.release(g.number)
}

func (g *Gpio) poll(ms int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

func (g *Gpio) get() (int, error) {
	var buf [1]byte
	_, err := g.value.ReadAt(buf[:], 0)
	if err != nil {
		return 0, err
	}
	return parseValue(g.number, buf[0])
}

func parseValue(n int, b byte) (int, error) {
	switch b {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("gpio%d: unknown value %q", n, b)
}
