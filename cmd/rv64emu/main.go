// Command rv64emu boots a bare-metal RV64IMA guest image against a
// memory-mapped device set resembling QEMU's virt machine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/tinyrange/rv64emu/internal/riscv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rv64emu: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	debug := flag.Bool("debug", false, "enable debug logging and a register dump on fatal exit")
	tickTimer := flag.Bool("tick-timer", false, "advance the CLINT timer once per executed batch")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <kernel-image> [disk-image]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Boot a flat RV64IMA guest image against a virt-machine-like device set.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return fmt.Errorf("kernel image required")
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read kernel image: %w", err)
	}

	var disk []byte
	if len(args) > 1 {
		disk, err = os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read disk image: %w", err)
		}
	}

	m := riscv.NewMachine(code, disk, os.Stdout, os.Stdin)
	m.TickTimer = *tickTimer

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("enable raw mode: %w", err)
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.Info("booting guest", "kernel", args[0], "dram_size", riscv.DramSize)

	err = m.Run(ctx, 0)
	if err == nil || errors.Is(err, riscv.ErrHalt) {
		slog.Info("guest halted")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		slog.Info("interrupted")
		return nil
	}

	slog.Error("fatal exception", "error", err, "pc", m.Hart.PC)
	if *debug {
		fmt.Fprintf(os.Stderr, "pc=0x%x mode=%d\n", m.Hart.PC, m.Hart.Mode)
		for i := 0; i < 32; i++ {
			fmt.Fprintf(os.Stderr, "x%-2d=0x%016x ", i, m.Hart.X[i])
			if i%4 == 3 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	return err
}
