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

// Rotary encoder knob program

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aamcrae/config"
	"github.com/aamcrae/rotary/knob"
)

var configFile = flag.String("config", "rotary.conf", "Configuration file")
var knobNames = flag.String("knobs", "knob", "Comma separated list of knob sections")
var port = flag.Int("port", 8080, "Web server port number, 0 to disable")
var verbose = flag.Bool("verbose", false, "Log every position change")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var knobs []*knob.Knob
	var wg sync.WaitGroup
	for _, name := range strings.Split(*knobNames, ",") {
		kc, err := knob.Config(conf, strings.TrimSpace(name))
		if err != nil {
			log.Fatalf("%s: %v", *configFile, err)
		}
		k, err := knob.NewKnob(kc)
		if err != nil {
			log.Fatalf("Knob %s: %v", kc.Name, err)
		}
		defer k.Close()
		knobs = append(knobs, k)
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Run(ctx)
		}()
		if *verbose {
			go logEvents(ctx, k)
		}
	}
	if *port != 0 {
		go knob.Serve(*port, knobs...)
	}
	<-ctx.Done()
	log.Printf("Shutting down")
	wg.Wait()
}

// logEvents logs the knob's events until the context is done.
func logEvents(ctx context.Context, k *knob.Knob) {
	c, cancel := k.Subscribe(64)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	for ev := range c {
		log.Printf("%s: position %d (%+d), %d RPM", ev.Name, ev.Position, ev.Delta, ev.RPM)
	}
}
