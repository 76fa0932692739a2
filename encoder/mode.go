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

package encoder

import (
	"fmt"
	"strings"
)

// LatchMode selects the raw states at which the external position is
// updated, and the number of raw state transitions per position step.
type LatchMode int

const (
	FOUR3 LatchMode = 1 // 4 steps, latch at state 3 only
	FOUR0 LatchMode = 2 // 4 steps, latch at state 0 (reverse wiring)
	TWO03 LatchMode = 3 // 2 steps, latch at states 0 and 3
)

// Direction of rotation.
type Direction int

const (
	NoRotation       Direction = 0
	Clockwise        Direction = 1
	CounterClockwise Direction = -1
)

// ParseLatchMode converts a mode name (case insensitive) to a LatchMode.
func ParseLatchMode(s string) (LatchMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FOUR3":
		return FOUR3, nil
	case "FOUR0":
		return FOUR0, nil
	case "TWO03":
		return TWO03, nil
	}
	return 0, fmt.Errorf("%s: unknown latch mode", s)
}

func (m LatchMode) String() string {
	switch m {
	case FOUR3:
		return "FOUR3"
	case FOUR0:
		return "FOUR0"
	case TWO03:
		return "TWO03"
	}
	return fmt.Sprintf("LatchMode(%d)", int(m))
}

// Steps returns the number of raw state transitions in one detent.
func (m LatchMode) Steps() int {
	return 1 << m.shift()
}

func (m LatchMode) valid() bool {
	return m == FOUR3 || m == FOUR0 || m == TWO03
}

func (m LatchMode) shift() uint {
	if m == TWO03 {
		return 1
	}
	return 2
}

// latches returns true if the raw state s is a latch state for this mode.
func (m LatchMode) latches(s uint32) bool {
	switch m {
	case FOUR3:
		return s == 3
	case FOUR0:
		return s == 0
	case TWO03:
		return s == 0 || s == 3
	}
	return false
}

func (d Direction) String() string {
	switch d {
	case Clockwise:
		return "clockwise"
	case CounterClockwise:
		return "counterclockwise"
	}
	return "none"
}
