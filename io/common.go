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

// sysfs device classes shared by the GPIO and PWM drivers

package io

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// Setter is an output that is switched between 0 and 1, such as a GPIO pin.
type Setter interface {
	Set(int) error
}

// Verify makes acquire wait for the files of a newly exported unit to
// become writable. udev fixes up their group permissions shortly after the
// export, so it is on by default when not running as root.
var Verify = os.Geteuid() != 0

const verifyTimeout = 2 * time.Second

// sysfsClass is a sysfs device class whose units are exported and
// unexported by writing the unit number to a control file.
type sysfsClass struct {
	export   string
	unexport string
}

var (
	gpioClass = sysfsClass{export: exportFile, unexport: unexportFile}
	pwmClass  = sysfsClass{export: pwmExportFile, unexport: pwmUnexportFile}
)

// acquire exports the unit unless its attribute file is already
// accessible.
func (c sysfsClass) acquire(unit int, attr string) error {
	if unix.Access(attr, unix.W_OK|unix.R_OK) == nil {
		return nil
	}
	if err := writeFile(c.export, strconv.Itoa(unit)); err != nil {
		return fmt.Errorf("export %d: %v", unit, err)
	}
	if Verify {
		return waitWritable(attr)
	}
	return nil
}

func (c sysfsClass) release(unit int) error {
	return writeFile(c.unexport, strconv.Itoa(unit))
}

func writeFile(name, s string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

func waitWritable(name string) error {
	deadline := time.Now().Add(verifyTimeout)
	for unix.Access(name, unix.W_OK) != nil {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: not writable", name)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
