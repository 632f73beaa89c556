package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/rendis/deskbot/internal/engine"
	"github.com/rendis/deskbot/internal/job"
	"github.com/rendis/deskbot/pkg/schema"
)

var (
	colorBold   = color.New(color.Bold)
	colorGreen  = color.New(color.FgGreen)
	colorRed    = color.New(color.FgRed)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

func runRun(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", cfg.JobFile, "job file")
	limit := fs.Int("limit", 0, "process at most N records (0 = all)")
	yes := fs.Bool("yes", false, "start without waiting for Enter")
	noHistory := fs.Bool("no-history", false, "do not record this run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return schema.NewError(schema.ErrCodeConfiguration, "--limit must not be negative")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{JobPath: *configPath, History: !*noHistory})
	if err != nil {
		return err
	}
	defer a.close()

	if !*yes {
		printBanner(os.Stdout, *configPath, *limit)
		if !waitForEnter(ctx, os.Stdin) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	res, err := a.service.Run(ctx, job.RunRequest{
		ConfigPath: *configPath,
		Limit:      *limit,
		OnStatus:   printStatus(os.Stdout),
	})
	if err != nil {
		return err
	}
	printSummary(os.Stdout, res)
	if res.Status != schema.RunStatusCompleted {
		return errAborted
	}
	return nil
}

func printBanner(w io.Writer, configPath string, limit int) {
	colorBold.Fprintf(w, "deskbot %s\n", version)
	fmt.Fprintf(w, "Job: %s\n", configPath)
	if limit > 0 {
		fmt.Fprintf(w, "Limit: %d records\n", limit)
	}
	colorYellow.Fprintln(w, "Open the target application and put it in the starting state.")
	colorYellow.Fprintln(w, "Move the mouse to the top-left corner of the screen to stop.")
	fmt.Fprint(w, "Press Enter to start, Ctrl+C to cancel: ")
}

// waitForEnter returns false if ctx ends or stdin closes before a line is read.
func waitForEnter(ctx context.Context, r io.Reader) bool {
	line := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(r).ReadString('\n')
		line <- err
	}()
	select {
	case <-ctx.Done():
		return false
	case err := <-line:
		return err == nil
	}
}

// printStatus reports the phases the summary does not cover.
func printStatus(w io.Writer) func(from, to schema.RunStatus) {
	return func(_, to schema.RunStatus) {
		switch to {
		case schema.RunStatusCountingDown:
			colorYellow.Fprintln(w, "Counting down, switch to the target application.")
		case schema.RunStatusProcessing:
			colorCyan.Fprintln(w, "Processing records.")
		}
	}
}

func printSummary(w io.Writer, res *engine.RunResult) {
	fmt.Fprintln(w)
	colorBold.Fprint(w, "Run ")
	fmt.Fprintf(w, "%s ", res.RunID)
	statusColor(res.Status).Fprintln(w, res.Status)

	colorGreen.Fprintf(w, "  success  %d\n", res.Stats.Success)
	colorRed.Fprintf(w, "  failed   %d\n", res.Stats.Failed)
	colorYellow.Fprintf(w, "  skipped  %d\n", res.Stats.Skipped)
	fmt.Fprintf(w, "  total    %d of %d\n", res.Stats.Total(), res.Records)

	if !res.CompletedAt.IsZero() && !res.StartedAt.IsZero() {
		fmt.Fprintf(w, "  elapsed  %s\n", res.CompletedAt.Sub(res.StartedAt).Round(10*time.Millisecond))
	}
	if res.Error != nil {
		colorRed.Fprintf(w, "  stopped: %s\n", res.Error.Error())
	}
	if res.LogPath != "" {
		colorCyan.Fprintf(w, "  log: %s\n", res.LogPath)
	}
}

func statusColor(s schema.RunStatus) *color.Color {
	switch s {
	case schema.RunStatusCompleted:
		return colorGreen
	case schema.RunStatusAborted:
		return colorYellow
	default:
		return colorRed
	}
}
