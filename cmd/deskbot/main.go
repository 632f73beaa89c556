package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/rendis/deskbot/pkg/schema"
)

const usageText = `deskbot replays desktop UI steps once per spreadsheet row.

Usage:
  deskbot <command> [flags]

Commands:
  run        run a job file against the desktop
  check      report whether a job is ready to run
  preview    print the first rows of the data sheet
  validate   validate a job file
  pick       capture a screen coordinate for a click step
  history    query recorded runs
  schedule   run a job on a cron schedule
  serve      serve deskbot tools over MCP stdio
  init       write a starter job file
  install    write ~/.deskbot/settings.json
  version    print the version

Run "deskbot <command> -h" for command flags.
`

func main() {
	// A missing .env is fine; real env vars always win.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "run":
		err = runRun(args)
	case "check":
		err = runCheck(args)
	case "preview":
		err = runPreview(args)
	case "validate":
		err = runValidate(args)
	case "pick":
		err = runPick(args)
	case "history":
		err = runHistory(args)
	case "schedule":
		err = runSchedule(args)
	case "serve":
		err = runServe(args)
	case "init":
		err = runInit(args)
	case "install":
		err = runInstall(args)
	case "version", "--version":
		printVersion()
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// errAborted marks a run that stopped early. The summary has already been printed.
var errAborted = errors.New("run did not complete")

func exitCode(err error) int {
	var dbErr *schema.DeskbotError
	switch {
	case errors.Is(err, errAborted):
		return 3
	case errors.As(err, &dbErr) && dbErr.Code == schema.ErrCodeConfiguration:
		return 2
	default:
		return 1
	}
}
