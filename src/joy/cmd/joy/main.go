package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tty "github.com/mattn/go-tty"

	"equanimity/src/joy"
	"equanimity/src/lib/timeline"
	"equanimity/src/lib/trust"
	"equanimity/src/trap"
	"equanimity/src/user"
)

var helpFlag = flag.Bool("h", false, "get usage info")
var listFlag = flag.Bool("list", false, "list the programs that can be run and exit")
var appsFlag = flag.String("apps", "", "comma separated programs to boot with, in order (default: all)")
var policyFlag = flag.String("policy", "stride", "scheduling policy: stride or fifo")
var sliceFlag = flag.Int("slice", int(joy.DefaultSlice/time.Millisecond), "time slice in milliseconds")
var stepFlag = flag.Int("step", 0, "if > 0, use a clock that advances this many microseconds per read")
var maxFlag = flag.Uint64("max-dispatches", 0, "shut down after this many dispatches (0 means no limit)")
var traceFlag = flag.String("trace", "", "write a png of the schedule to this file")
var ttyFlag = flag.String("tty", "", "console device for the programs, - for the controlling terminal")

func usage() {
	fmt.Fprintf(os.Stderr, "usage: joy [flags]\n")
	flag.PrintDefaults()
	os.Exit(1)
}

// openConsole gives the programs a terminal instead of our own stdio.
func openConsole(path string) (*tty.TTY, error) {
	if path == "-" {
		return tty.Open()
	}
	return tty.OpenDevice(path)
}

func main() {
	flag.Parse()
	if *helpFlag || flag.NArg() != 0 {
		usage()
	}
	trust.InitFromEnv()
	os.Exit(run())
}

// run boots the machine and returns the process exit code: 0 when every
// task completed, 1 on a setup error and 2 when the dispatch limit shut it
// down. Errors are returned rather than fatal so the console is restored.
func run() int {
	if *listFlag {
		for _, n := range user.Names() {
			fmt.Println(n)
		}
		return 0
	}

	policy, err := joy.ParsePolicy(*policyFlag)
	if err != nil {
		trust.Errorf("%v", err)
		return 1
	}
	cfg := joy.Config{
		Policy:        policy,
		Slice:         time.Duration(*sliceFlag) * time.Millisecond,
		MaxDispatches: *maxFlag,
	}
	if *stepFlag > 0 {
		cfg.Clock = joy.NewStepClock(time.Duration(*stepFlag) * time.Microsecond)
	}
	var rec *timeline.Recorder
	if *traceFlag != "" {
		rec = timeline.NewRecorder()
		cfg.Tracer = rec
	}
	if *ttyFlag != "" {
		console, err := openConsole(*ttyFlag)
		if err != nil {
			trust.Errorf("unable to open console %s: %v", *ttyFlag, err)
			return 1
		}
		defer console.Close()
		cfg.Stdin = console.Input()
		cfg.Stdout = console.Output()
	}

	names := user.Names()
	if *appsFlag != "" {
		names = strings.Split(*appsFlag, ",")
	}
	k, err := trap.NewMachine(cfg, names...)
	if err != nil {
		trust.Errorf("%v", err)
		return 1
	}
	defer k.Close()
	halt := k.Run()
	trust.Infof("machine halted: %v", halt)

	if rec != nil {
		if err := writeTrace(*traceFlag, rec); err != nil {
			trust.Errorf("trace: %v", err)
		}
		for pid, n := range rec.Shares() {
			trust.Statsf("shares", "pid %d ran %d slices", pid, n)
		}
	}
	if halt != joy.HaltAllCompleted {
		return 2
	}
	return 0
}

func writeTrace(path string, rec *timeline.Recorder) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rec.RenderPNG(fp, 1200, 24); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
