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

package io

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	pwmBaseDir      = "/sys/class/pwm/pwmchip0/"
	pwmExportFile   = pwmBaseDir + "export"
	pwmUnexportFile = pwmBaseDir + "unexport"
	periodFile      = "/period"
	dutyFile        = "/duty_cycle"
	enableFile      = "/enable"
)

// PWM is a pulse width modulated output, with the duty cycle as a percentage.
type PWM interface {
	Close()
	Set(time.Duration, int) error
}

// HwPwm is a PWM unit of the first sysfs PWM chip.
type HwPwm struct {
	unit   int
	base   string
	pFile  *os.File
	dFile  *os.File
	period int64
	duty   int64
}

// NewHwPWM creates a new hardware PWM controller.
func NewHwPWM(unit int) (*HwPwm, error) {
	p := &HwPwm{unit: unit, period: -1, duty: -1}
	p.base = fmt.Sprintf("%spwm%d", pwmBaseDir, unit)
	err := pwmClass.acquire(unit, p.base+periodFile)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*HwPwm, error) {
		if p.pFile != nil {
			p.pFile.Close()
		}
		if p.dFile != nil {
			p.dFile.Close()
		}
		pwmClass.release(unit)
		return nil, fmt.Errorf("pwm%d: %v", unit, err)
	}
	if p.pFile, err = os.OpenFile(p.base+periodFile, os.O_RDWR, 0600); err != nil {
		return fail(err)
	}
	if err = waitWritable(p.base + dutyFile); err != nil {
		return fail(err)
	}
	if p.dFile, err = os.OpenFile(p.base+dutyFile, os.O_RDWR, 0600); err != nil {
		return fail(err)
	}
	// Default settings
	if err = p.Set(time.Millisecond, 0); err != nil {
		return fail(err)
	}
	if err = writeFile(p.base+enableFile, "1"); err != nil {
		return fail(err)
	}
	return p, nil
}

// Close disables the PWM output.
func (p *HwPwm) Close() {
	writeFile(p.base+enableFile, "0")
	p.pFile.Close()
	p.dFile.Close()
	pwmClass.release(p.unit)
}

// Set sets the period and duty cycle percentage.
func (p *HwPwm) Set(period time.Duration, duty int) error {
	pNano, dNano, err := pwmParams(period, duty)
	if err != nil {
		return err
	}
	// The duty cycle must never be greater than the current period,
	// so the order of writes depends on the direction of the change.
	if dNano > p.period {
		err = p.write(p.pFile, pNano, p.period)
		if err == nil {
			err = p.write(p.dFile, dNano, p.duty)
		}
	} else {
		err = p.write(p.dFile, dNano, p.duty)
		if err == nil {
			err = p.write(p.pFile, pNano, p.period)
		}
	}
	if err != nil {
		return err
	}
	p.period = pNano
	p.duty = dNano
	return nil
}

func (p *HwPwm) write(f *os.File, v, current int64) error {
	if v == current {
		return nil
	}
	_, err := f.WriteAt([]byte(strconv.FormatInt(v, 10)), 0)
	return err
}

func pwmParams(period time.Duration, duty int) (int64, int64, error) {
	if duty < 0 || duty > 100 {
		return 0, 0, fmt.Errorf("%d: invalid duty cycle percentage", duty)
	}
	pNano := period.Nanoseconds()
	if pNano < 15 {
		return 0, 0, fmt.Errorf("%s: invalid period", period)
	}
	return pNano, pNano * int64(duty) / 100, nil
}

type pwmMsg struct {
	on, off time.Duration
	stop    chan struct{}
}

// SwPwm drives a PWM output from a goroutine toggling a pin.
type SwPwm struct {
	pin Setter
	c   chan pwmMsg
}

// NewSwPWM creates a new s/w PWM controller. The output is off until Set is called.
func NewSwPWM(pin Setter) *SwPwm {
	p := &SwPwm{pin: pin, c: make(chan pwmMsg, 1)}
	go p.handler()
	return p
}

// Close stops the PWM goroutine, leaving the output off.
func (p *SwPwm) Close() {
	sc := make(chan struct{})
	p.c <- pwmMsg{stop: sc}
	<-sc
}

// Set sets the PWM parameters. The changes take
// place at the end of the current period.
func (p *SwPwm) Set(period time.Duration, duty int) error {
	if _, _, err := pwmParams(period, duty); err != nil {
		return err
	}
	on := period * time.Duration(duty) / 100
	p.c <- pwmMsg{on: on, off: period - on}
	return nil
}

// handler runs the output, checking for new parameters after each cycle.
func (p *SwPwm) handler() {
	var m pwmMsg
	current := 0
	p.pin.Set(0)
	for {
		for m.stop == nil && m.on == 0 && m.off == 0 {
			// Idle until parameters arrive.
			m = <-p.c
		}
		if m.stop != nil {
			p.pin.Set(0)
			close(m.stop)
			return
		}
		if m.on != 0 {
			if current != 1 {
				p.pin.Set(1)
				current = 1
			}
			time.Sleep(m.on)
		}
		if m.off != 0 {
			if current != 0 {
				p.pin.Set(0)
				current = 0
			}
			time.Sleep(m.off)
		}
		select {
		case m = <-p.c:
		default:
		}
	}
}
