// Command gbrunner runs a test ROM headless and judges the result from
// its serial output. Blargg-style ROMs print "Passed" or "Failed N
// tests" over the link port, so the exit code is usable from scripts:
// 0 pass, 1 fail, 2 timeout.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/emu"
)

var (
	failRe  = regexp.MustCompile(`(?i)failed(\s+\d+\s+tests?)?`)
	stageRe = regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM")
	maxFrames := flag.Int("frames", 3600, "max frames to run before giving up")
	until := flag.String("until", "", "stop with exit 0 when serial output contains this substring (case-insensitive); overrides pass/fail detection")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	quiet := flag.Bool("quiet", false, "do not echo serial output to stdout")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}

	m := emu.New(emu.Config{})
	if *bootPath != "" {
		boot, err := os.ReadFile(*bootPath)
		if err != nil {
			log.Fatalf("read bootrom: %v", err)
		}
		m.SetBootROM(boot)
	}
	if err := m.LoadROMFromFile(*romPath); err != nil {
		log.Fatalf("load rom: %v", err)
	}

	var ser bytes.Buffer
	w := io.Writer(&ser)
	if !*quiet {
		w = io.MultiWriter(os.Stdout, &ser)
	}
	m.SetSerialWriter(w)

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}

	lastStage := ""
	for i := 0; i < *maxFrames; i++ {
		if err := m.StepFrame(); err != nil {
			fmt.Printf("\nMachine fault at frame %d: %v\n", i, err)
			report(i+1, start, lastStage)
			os.Exit(1)
		}

		out := ser.String()
		if mm := stageRe.FindAllString(out, -1); len(mm) > 0 {
			lastStage = mm[len(mm)-1]
		}

		if *until != "" {
			if strings.Contains(strings.ToLower(out), strings.ToLower(*until)) {
				fmt.Printf("\nDetected %q in serial output.\n", *until)
				report(i+1, start, lastStage)
				return
			}
		} else {
			if strings.Contains(out, "Passed") {
				fmt.Printf("\nDetected PASS in serial output.\n")
				report(i+1, start, lastStage)
				return
			}
			if verdict := failRe.FindString(out); verdict != "" {
				fmt.Printf("\nDetected %q in serial output.\n", verdict)
				report(i+1, start, lastStage)
				os.Exit(1)
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			report(i+1, start, lastStage)
			os.Exit(2)
		}
	}

	fmt.Printf("\nNo verdict within %d frames.\n", *maxFrames)
	report(*maxFrames, start, lastStage)
	os.Exit(2)
}

func report(frames int, start time.Time, lastStage string) {
	if lastStage != "" {
		fmt.Printf("Last stage seen: %s\n", lastStage)
	}
	fmt.Printf("Done: frames=%d elapsed=%s\n", frames, time.Since(start).Truncate(time.Millisecond))
}
