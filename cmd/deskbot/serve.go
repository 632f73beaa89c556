package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/deskbot/pkg/mcp"
)

func runServe(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", cfg.JobFile, "job file used when a tool call omits config_path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; every log line goes to stderr.
	a, err := newApp(ctx, cfg, appOptions{JobPath: *configPath, History: true})
	if err != nil {
		return err
	}
	defer a.close()

	deps := mcp.ServerDeps{
		Jobs:       a.service,
		Actions:    a.service,
		ConfigPath: *configPath,
		Version:    version,
		Logger:     a.logger,
	}
	if h, err := a.history(); err == nil {
		deps.History = h
	}

	a.logger.Info("serving MCP over stdio", "config", *configPath)
	return mcp.NewDeskbotServer(deps).Serve(ctx)
}
