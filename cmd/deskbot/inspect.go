package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rendis/deskbot/internal/job"
	"github.com/rendis/deskbot/internal/source"
	"github.com/rendis/deskbot/pkg/schema"
)

const previewRows = 10

func runCheck(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", cfg.JobFile, "job file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	j, err := job.Load(*configPath)
	if err != nil {
		return err
	}
	r := j.Check()
	printReadiness(os.Stdout, r)
	if !r.Ready() {
		return schema.NewErrorf(schema.ErrCodeConfiguration, "%s is not ready", *configPath)
	}
	return nil
}

func printReadiness(w io.Writer, r job.Readiness) {
	mark := colorGreen.Sprint("ok")
	if !r.DataExists {
		mark = colorRed.Sprint("missing")
	}
	fmt.Fprintf(w, "data file  %s (%s)\n", r.DataFile, mark)
	fmt.Fprintf(w, "steps      %d\n", r.Steps)
	for _, p := range r.Problems {
		colorRed.Fprintf(w, "  - %s\n", p)
	}
	if r.Ready() {
		colorGreen.Fprintln(w, "ready")
	}
}

func runPreview(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	configPath := fs.String("config", cfg.JobFile, "job file")
	rows := fs.Int("rows", previewRows, "number of data rows to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	j, err := job.Load(*configPath)
	if err != nil {
		return err
	}
	header, data, err := source.Preview(j.DataPath(), j.Definition.Excel.SheetName, *rows)
	if err != nil {
		return err
	}
	printTable(os.Stdout, header, data)
	return nil
}

func printTable(w io.Writer, header []string, rows [][]string) {
	colorBold.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func runValidate(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", cfg.JobFile, "job file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(context.Background(), cfg, appOptions{JobPath: *configPath})
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.service.Validate(*configPath)
	if err != nil {
		return err
	}
	printValidation(os.Stdout, *configPath, result)
	return result.ToError()
}

func printValidation(w io.Writer, path string, r *schema.ValidationResult) {
	for _, i := range r.Issues() {
		if i.Severity == schema.SeverityError {
			colorRed.Fprintf(w, "error   %s (%s)\n", i, i.Code)
		} else {
			colorYellow.Fprintf(w, "warning %s (%s)\n", i, i.Code)
		}
	}
	if r.Valid() {
		colorGreen.Fprintf(w, "%s is valid\n", path)
	}
}
