package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rendis/deskbot/internal/driver/robot"
)

func runPick(args []string) error {
	fs := flag.NewFlagSet("pick", flag.ExitOnError)
	delay := fs.Int("delay", 0, "seconds to wait before reading the pointer (0 = wait for the next click)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := robot.Picker{Tick: func(remaining int) {
		fmt.Fprintf(os.Stderr, "\rreading position in %ds ", remaining)
	}}

	var (
		pt  robot.Point
		err error
	)
	if *delay > 0 {
		colorYellow.Fprintln(os.Stderr, "Hover over the target.")
		pt, err = p.After(ctx, time.Duration(*delay)*time.Second)
		fmt.Fprintln(os.Stderr)
	} else {
		colorYellow.Fprintln(os.Stderr, "Click the target. Ctrl+C to cancel.")
		pt, err = p.NextClick(ctx)
	}
	if err != nil {
		return err
	}
	printPoint(os.Stdout, pt)
	return nil
}

// printPoint writes the coordinates as a click step fragment.
func printPoint(w io.Writer, pt robot.Point) {
	fmt.Fprintf(w, "x: %d\ny: %d\n", pt.X, pt.Y)
}
