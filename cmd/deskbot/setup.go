package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rendis/deskbot/internal/job"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := job.DefaultFileName
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := job.WriteTemplate(path, *force); err != nil {
		return err
	}
	fmt.Printf("Job file written to %s\n", path)
	return nil
}

func runInstall(args []string) error {
	defaults := defaultConfig()
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	dbPath := fs.String("db-path", defaults.DBPath, "run history database path")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	baseDir := fs.String("base-dir", "", "directory for logs/ (default: the job file's directory)")
	jobFile := fs.String("job-file", defaults.JobFile, "default job file")
	corner := fs.Int("failsafe-corner", defaults.Corner, "fail-safe tolerance in pixels around (0,0)")
	history := fs.Bool("history", defaults.History, "record run history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *corner < 0 {
		return fmt.Errorf("--failsafe-corner must not be negative")
	}

	dir := deskbotDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	cfg := Config{
		DBPath:   *dbPath,
		LogLevel: *logLevel,
		BaseDir:  *baseDir,
		JobFile:  *jobFile,
		Corner:   *corner,
		History:  *history,
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}
