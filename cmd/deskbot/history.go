package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rendis/deskbot/internal/job"
	"github.com/rendis/deskbot/pkg/schema"
)

func runHistory(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	runID := fs.String("run", "", "show one run in detail")
	status := fs.String("status", "", "filter by status: completed, aborted, failed")
	limit := fs.Int("limit", job.DefaultHistoryLimit, "maximum number of runs")
	jq := fs.String("jq", "", "jq program applied to the result")
	prune := fs.Int("prune", -1, "delete all but the newest N runs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return schema.NewError(schema.ErrCodeConfiguration, "--limit must not be negative")
	}
	pruning := false
	fs.Visit(func(f *flag.Flag) { pruning = pruning || f.Name == "prune" })

	ctx := context.Background()
	a, err := newApp(ctx, cfg, appOptions{History: true})
	if err != nil {
		return err
	}
	defer a.close()

	h, err := a.history()
	if err != nil {
		return err
	}
	if pruning {
		deleted, err := h.Prune(ctx, *prune)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d runs.\n", deleted)
		return nil
	}
	out, err := h.Query(ctx, job.HistoryQuery{RunID: *runID, Status: *status, Limit: *limit, JQ: *jq})
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, out)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
