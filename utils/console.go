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

// Interactive console for a knob

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aamcrae/config"
	"github.com/aamcrae/rotary/knob"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("knob", "", "Knob to monitor e.g volume")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	kc, err := knob.Config(conf, *section)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	k, err := knob.NewKnob(kc)
	if err != nil {
		log.Fatalf("Knob: %s %v", *section, err)
	}
	defer k.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.Run(ctx)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter command ('help' for help) ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if quit := command(k, strings.TrimSpace(text)); quit {
			return
		}
	}
}

// command runs one console command, returning true to quit.
func command(k *knob.Knob, text string) bool {
	switch text {
	case "help":
		fmt.Println("  help - print help")
		fmt.Println("  p - print position")
		fmt.Println("  d - print direction since last 'd'")
		fmt.Println("  r - print speed")
		fmt.Println("  s NNN - set position")
		fmt.Println("  q - quit")
	case "q":
		return true
	case "p":
		fmt.Printf("Position %d\n", k.Position())
	case "d":
		fmt.Printf("Direction %s\n", k.Direction())
	case "r":
		st := k.Status()
		fmt.Printf("%d RPM, %d ms between changes\n", st.RPM, st.Millis)
	default:
		var p int32
		n, err := fmt.Sscanf(text, "s %d", &p)
		if err != nil || n != 1 {
			fmt.Printf("Unrecognised input\n")
		} else {
			k.SetPosition(p)
		}
	}
	return false
}
