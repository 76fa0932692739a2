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

// Program to demonstrate a knob controlling the brightness of an LED

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/io"
	"github.com/aamcrae/rotary/knob"
)

var gpioA = flag.Int("a", 17, "GPIO pin for encoder signal A")
var gpioB = flag.Int("b", 27, "GPIO pin for encoder signal B")
var mode = flag.String("mode", "FOUR0", "Latch mode")
var pwmUnit = flag.Int("pwm", -1, "Hardware PWM unit, -1 for software PWM")
var led = flag.Int("led", 18, "GPIO pin for software PWM LED")
var steps = flag.Int("steps", 20, "Knob positions from off to full brightness")

const period = time.Millisecond * 5

func main() {
	flag.Parse()
	m, err := encoder.ParseLatchMode(*mode)
	if err != nil {
		log.Fatalf("%v", err)
	}
	var pwm io.PWM
	if *pwmUnit >= 0 {
		hw, err := io.NewHwPWM(*pwmUnit)
		if err != nil {
			log.Fatalf("PWM unit %d: %v", *pwmUnit, err)
		}
		pwm = hw
	} else {
		pin, err := io.OutputPin(*led)
		if err != nil {
			log.Fatalf("Pin %d: %v", *led, err)
		}
		defer pin.Close()
		pwm = io.NewSwPWM(pin)
	}
	defer pwm.Close()
	k, err := knob.NewKnob(&knob.KnobConfig{Name: "dimmer", Pins: [2]int{*gpioA, *gpioB}, Mode: m, Poll: time.Millisecond, Detents: 20})
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer k.Close()
	c, _ := k.Subscribe(16)
	go k.Run(context.Background())
	for ev := range c {
		// Clamp the knob to the brightness range.
		p := ev.Position
		if p < 0 {
			p = 0
		} else if p > int32(*steps) {
			p = int32(*steps)
		}
		if p != ev.Position {
			k.SetPosition(p)
		}
		d := int(p) * 100 / *steps
		if err := pwm.Set(period, d); err != nil {
			log.Fatalf("Set: period %s, duty %d: %v", period, d, err)
		}
		log.Printf("Brightness %d%%", d)
	}
}
