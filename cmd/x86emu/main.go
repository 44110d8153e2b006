// Command x86emu loads a statically-linked x86/x86-64 ELF executable and
// interprets it to completion.
package main

import (
	"fmt"
	"os"

	"github.com/cranklab/x86emu/emu"
	"github.com/cranklab/x86emu/loader"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: x86emu <program.elf>\n")
		os.Exit(1)
	}

	os.Exit(run(os.Args[1]))
}

// run opens path, loads it, and interprets it to completion. Load failures
// (an unrecognized format, a malformed ELF) come back as errors and are
// reported directly. Every fatal condition during interpretation (a
// segmentation fault, an unsupported decode) surfaces as a typed panic, and
// the deferred recover here is the single point that translates one into a
// diagnostic and a process exit code.
func run(path string) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				fmt.Fprintf(os.Stderr, "x86emu: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "x86emu: %v\n", r)
			}
			exitCode = 1
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "x86emu: %v\n", err)
		return 1
	}
	defer f.Close()

	format, ok := loader.Probe(f)
	if !ok {
		fmt.Fprintf(os.Stderr, "x86emu: %s: unrecognized file format\n", path)
		return 1
	}

	mm, err := loader.Load(format, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "x86emu: %v\n", err)
		return 1
	}

	interp := emu.NewInterpreter()
	interp.Init(mm)
	for interp.Running() {
		interp.Tick(mm)
	}

	return 0
}
